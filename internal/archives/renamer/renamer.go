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

// Package renamer writes a single file unchanged, used for builds with no_archive set.
package renamer

import (
	"io"
	"sync"

	"github.com/rlsr/rlsr/internal/common/ioh"
)

func New(out io.WriteCloser) *Renamer {
	return &Renamer{
		out: out,
	}
}

type Renamer struct {
	out io.WriteCloser

	writeOnce sync.Once
}

// AddAndClose copies the first file added to out. Later files are closed and ignored.
func (a *Renamer) AddAndClose(targetPath string, f ioh.File) error {
	defer f.Close()
	var err error
	a.writeOnce.Do(func() {
		_, err = io.Copy(a.out, f)
	})
	return err
}

func (a *Renamer) Finalize() error {
	return a.out.Close()
}
