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

package logging

import (
	"fmt"
	"io"
	"sync"

	"github.com/bep/logg"
)

type NoColoursHandler struct {
	mu        sync.Mutex
	outWriter io.Writer // Defaults to os.Stdout.
	errWriter io.Writer // Defaults to os.Stderr.
}

// NewNoColoursHandler creates a new NoColoursHandler
func NewNoColoursHandler(outWriter, errWriter io.Writer) *NoColoursHandler {
	return &NoColoursHandler{
		outWriter: outWriter,
		errWriter: errWriter,
	}
}

func (h *NoColoursHandler) HandleLog(e *logg.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	w := h.outWriter
	if e.Level > logg.LevelInfo {
		w = h.errWriter
	}

	fmt.Fprintf(w, "%s%s", entryPrefix(e), e.Message)
	for _, field := range e.Fields {
		if isPrefixField(field.Name) {
			continue
		}
		fmt.Fprintf(w, " %s %v", field.Name, field.Value)
	}
	fmt.Fprintln(w)

	return nil
}
