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

package zip

import (
	"archive/zip"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/rlsr/rlsr/internal/common/ioh"
)

// EntryMode is the file mode of every entry written.
const EntryMode = 0o744

// DefaultModTime is used when the source has no usable modification time.
// Zip timestamps cannot represent anything earlier.
var DefaultModTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

func New(out io.WriteCloser) *Archive {
	zipw := zip.NewWriter(out)
	zipw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})

	return &Archive{
		out:  out,
		zipw: zipw,
	}
}

type Archive struct {
	out  io.WriteCloser
	zipw *zip.Writer
}

func (a *Archive) AddAndClose(targetPath string, f ioh.File) error {
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	modTime := info.ModTime()
	if modTime.Before(DefaultModTime) {
		modTime = DefaultModTime
	}

	header := &zip.FileHeader{
		Name:     targetPath,
		Method:   zip.Deflate,
		Modified: modTime,
	}
	header.SetMode(EntryMode)

	zw, err := a.zipw.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = io.Copy(zw, f)

	return err
}

func (a *Archive) Finalize() error {
	err1 := a.zipw.Close()
	err2 := a.out.Close()

	if err1 != nil {
		return err1
	}
	if err2 != nil {
		return err2
	}

	return nil
}
