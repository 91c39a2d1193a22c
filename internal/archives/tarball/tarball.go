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

// Package tarball holds the tar writer shared by the compressed tar formats.
package tarball

import (
	"archive/tar"
	"io"

	"github.com/rlsr/rlsr/internal/common/ioh"
)

// EntryMode is the file mode of every entry written.
const EntryMode = 0o744

// New returns a tar Archive writing through the compressor cw into out.
// Finalize closes the tar writer, cw and out in that order.
func New(out, cw io.WriteCloser) *Archive {
	return &Archive{
		out: out,
		cw:  cw,
		tw:  tar.NewWriter(cw),
	}
}

type Archive struct {
	out io.WriteCloser
	cw  io.WriteCloser
	tw  *tar.Writer
}

func (a *Archive) AddAndClose(targetPath string, f ioh.File) error {
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     targetPath,
		Size:     info.Size(),
		Mode:     EntryMode,
		ModTime:  info.ModTime(),
	}

	if err := a.tw.WriteHeader(header); err != nil {
		return err
	}

	_, err = io.Copy(a.tw, f)

	return err
}

func (a *Archive) Finalize() error {
	if err := a.tw.Close(); err != nil {
		a.out.Close()
		return err
	}
	if err := a.cw.Close(); err != nil {
		a.out.Close()
		return err
	}

	return a.out.Close()
}
