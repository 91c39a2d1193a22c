// Copyright 2026 The Rlsr Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package deb

import (
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/goreleaser/nfpm/v2"
	_ "github.com/goreleaser/nfpm/v2/deb" // init format
	"github.com/goreleaser/nfpm/v2/files"
	"github.com/rlsr/rlsr/internal/common/ioh"
	"github.com/rlsr/rlsr/internal/model"
)

// Options configures the package metadata.
type Options struct {
	// Package name.
	Name string

	// Package version, a leading "v" is removed.
	Version string

	// Go architecture, e.g. amd64 or arm.
	Arch string

	// Build archive_meta settings, decoded into Meta.
	Meta map[string]any
}

// Meta is the Debian control metadata read from a build's archive_meta.
type Meta struct {
	Vendor      string
	Homepage    string
	Maintainer  string
	Description string
	License     string
	Section     string
	Priority    string

	// Where files are installed, defaults to /usr/bin.
	InstallDir string `mapstructure:"install_dir"`
}

func New(opts Options, out io.WriteCloser) (*Archive, error) {
	meta, err := model.FromMap[Meta](opts.Meta)
	if err != nil {
		return nil, err
	}
	if meta.InstallDir == "" {
		meta.InstallDir = "/usr/bin"
	}

	return &Archive{
		out:  out,
		opts: opts,
		meta: meta,
	}, nil
}

type Archive struct {
	out   io.WriteCloser
	files files.Contents
	opts  Options
	meta  Meta
}

func (a *Archive) AddAndClose(targetPath string, f ioh.File) error {
	defer f.Close()
	src := f.Name()

	a.files = append(a.files, &files.Content{
		Source:      filepath.ToSlash(src),
		Destination: path.Join(a.meta.InstallDir, targetPath),
		FileInfo: &files.ContentFileInfo{
			Mode: 0o755,
		},
	})

	return nil
}

func (a *Archive) Finalize() error {
	defer a.out.Close()

	meta := a.meta

	version := strings.TrimPrefix(a.opts.Version, "v")
	if version == "" {
		version = "0.0.0"
	}

	info := &nfpm.Info{
		Platform:    "linux",
		Name:        a.opts.Name,
		Version:     version,
		Arch:        debArch(a.opts.Arch),
		Section:     meta.Section,
		Priority:    meta.Priority,
		Maintainer:  meta.Maintainer,
		Description: meta.Description,
		Vendor:      meta.Vendor,
		Homepage:    meta.Homepage,
		License:     meta.License,
		Overridables: nfpm.Overridables{
			Contents: a.files,
		},
	}

	packager, err := nfpm.Get("deb")
	if err != nil {
		return err
	}

	info = nfpm.WithDefaults(info)

	return packager.Package(info, a.out)
}

func debArch(goarch string) string {
	switch goarch {
	case "386":
		return "i386"
	case "arm":
		return "armhf"
	case "":
		return "amd64"
	default:
		return goarch
	}
}
