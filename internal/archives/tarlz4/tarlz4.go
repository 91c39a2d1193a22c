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

package tarlz4

import (
	"io"

	"github.com/pierrec/lz4/v4"
	"github.com/rlsr/rlsr/internal/archives/tarball"
)

// New returns a tar archive compressed as an lz4 frame.
func New(out io.WriteCloser) *tarball.Archive {
	return tarball.New(out, lz4.NewWriter(out))
}
