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

package archives

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rlsr/rlsr/internal/archives/archiveformats"
	"github.com/rlsr/rlsr/internal/archives/deb"
	"github.com/rlsr/rlsr/internal/archives/renamer"
	"github.com/rlsr/rlsr/internal/archives/tarlz4"
	"github.com/rlsr/rlsr/internal/archives/targz"
	"github.com/rlsr/rlsr/internal/archives/tarzstd"
	"github.com/rlsr/rlsr/internal/archives/zip"
	"github.com/rlsr/rlsr/internal/common/ioh"
	"golang.org/x/exp/slices"
)

// Settings selects and configures the archive format.
type Settings struct {
	Format archiveformats.Format

	// Used by the deb format only.
	Deb deb.Options
}

func New(settings Settings, out io.WriteCloser) (Archiver, error) {
	switch settings.Format {
	case archiveformats.Zip:
		return zip.New(out), nil
	case archiveformats.TarGz:
		return targz.New(out), nil
	case archiveformats.TarZstd:
		return tarzstd.New(out)
	case archiveformats.TarLz4:
		return tarlz4.New(out), nil
	case archiveformats.Deb:
		return deb.New(settings.Deb, out)
	default:
		return nil, fmt.Errorf("unsupported archive format %q", settings.Format)
	}
}

type Archiver interface {
	// AddAndClose adds a file to the archive, then closes it.
	AddAndClose(targetPath string, f ioh.File) error

	// Finalize finalizes the archive and closes all writers in use.
	// It is not safe to call AddAndClose after Finalize.
	Finalize() error
}

// File is a file on disk and the entry name it gets in an archive.
type File struct {
	// The source path on disk.
	Path string

	// The entry name inside the archive.
	Name string
}

// Less orders files by Path, then by Name.
func (f File) Less(other File) bool {
	if f.Path != other.Path {
		return f.Path < other.Path
	}
	return f.Name < other.Name
}

func (f File) String() string {
	return fmt.Sprintf("%s => %s", f.Path, f.Name)
}

// SortAndDedupe sorts files in place and removes exact duplicates.
func SortAndDedupe(files []File) []File {
	slices.SortFunc(files, func(a, b File) bool {
		return a.Less(b)
	})
	return slices.Compact(files)
}

// Filename returns the archive path for name in distDir.
func Filename(distDir, name string, format archiveformats.Format) string {
	return filepath.Join(distDir, name+format.Extension())
}

// Build writes files into a new archive <distDir>/<name><ext> and returns its path.
// In try mode nothing is written to disk.
func Build(files []File, distDir, name string, settings Settings, try bool) (filename string, err error) {
	filename = Filename(distDir, name, settings.Format)

	if try {
		archiver, err := New(settings, ioh.NopWriteCloser(io.Discard))
		if err != nil {
			return "", err
		}
		return filename, archiver.Finalize()
	}

	if err := os.MkdirAll(distDir, 0o755); err != nil {
		return "", err
	}

	outFile, err := os.Create(filename)
	if err != nil {
		return "", err
	}

	archiver, err := New(settings, outFile)
	if err != nil {
		outFile.Close()
		return "", err
	}

	for _, file := range files {
		f, err := os.Open(file.Path)
		if err != nil {
			archiver.Finalize()
			os.Remove(filename)
			return "", fmt.Errorf("archive %q: %w", filename, err)
		}
		if err := archiver.AddAndClose(file.Name, f); err != nil {
			archiver.Finalize()
			os.Remove(filename)
			return "", fmt.Errorf("archive %q: add %q: %w", filename, file.Path, err)
		}
	}

	if err := archiver.Finalize(); err != nil {
		return "", fmt.Errorf("archive %q: %w", filename, err)
	}

	return filename, nil
}

// Copy writes src unchanged to <distDir>/<name> and returns its path.
// The file mode of src is preserved.
func Copy(src, distDir, name string, try bool) (string, error) {
	filename := filepath.Join(distDir, name)
	if try {
		return filename, nil
	}

	f, err := os.Open(src)
	if err != nil {
		return "", fmt.Errorf("open %q: %w", src, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return "", err
	}

	if err := os.MkdirAll(distDir, 0o755); err != nil {
		f.Close()
		return "", err
	}

	out, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		f.Close()
		return "", err
	}

	r := renamer.New(out)
	if err := r.AddAndClose(name, f); err != nil {
		r.Finalize()
		return "", err
	}

	return filename, r.Finalize()
}
