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
	"bytes"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/bep/logg"
	"github.com/bep/logg/handlers/multi"
	"github.com/mattn/go-isatty"
)

const (
	// FieldCmd is the sub command, printed upper case first on every line.
	FieldCmd = "cmd"
	// FieldBuild is the name of the build being executed.
	FieldBuild = "build"
)

func isPrefixField(name string) bool {
	return name == FieldCmd || name == FieldBuild
}

// entryPrefix returns e.g. "BUILD:\t[linux-amd64] ".
func entryPrefix(e *logg.Entry) string {
	var cmd, build string
	for _, field := range e.Fields {
		switch field.Name {
		case FieldCmd:
			cmd = fmt.Sprint(field.Value)
		case FieldBuild:
			build = fmt.Sprint(field.Value)
		}
	}
	var prefix string
	if cmd != "" {
		prefix = strings.ToUpper(cmd) + ":\t"
	}
	if build != "" {
		prefix += "[" + build + "] "
	}
	return prefix
}

// Options configures New.
type Options struct {
	Stdout io.Writer
	Stderr io.Writer
	Level  logg.Level

	// Colours enables the colored output.
	Colours bool

	// Replacer, if set, is applied to all messages and string fields.
	Replacer *strings.Replacer
}

// New creates a new logger.
func New(opts Options) logg.Logger {
	var h logg.Handler
	if opts.Colours {
		h = NewDefaultHandler(opts.Stdout, opts.Stderr)
	} else {
		h = NewNoColoursHandler(opts.Stdout, opts.Stderr)
	}
	if opts.Replacer != nil {
		h = multi.New(Replacer(opts.Replacer), h)
	}
	return logg.New(
		logg.Options{
			Level:   opts.Level,
			Handler: h,
		},
	)
}

// Discard returns a logger that writes nothing.
func Discard() logg.Logger {
	return New(Options{Stdout: io.Discard, Stderr: io.Discard, Level: logg.LevelDebug})
}

// FormatBuildDuration formats a duration to a string on the form expected in "Total in ..." etc.
func FormatBuildDuration(d time.Duration) string {
	if d.Milliseconds() < 2000 {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// IsTerminal return true if the file descriptor is terminal and the TERM
// environment variable isn't a dumb one.
func IsTerminal(f *os.File) bool {
	if runtime.GOOS == "windows" {
		return false
	}
	if os.Getenv("CI") != "" {
		return true
	}

	fd := f.Fd()
	return os.Getenv("TERM") != "dumb" && (isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd))
}

// Replacer creates a new log handler that does string replacement in log messages.
func Replacer(repl *strings.Replacer) logg.Handler {
	return logg.HandlerFunc(func(e *logg.Entry) error {
		e.Message = repl.Replace(e.Message)
		for i, field := range e.Fields {
			if s, ok := field.Value.(string); ok {
				e.Fields[i].Value = repl.Replace(s)
			}
		}
		return nil
	})
}

// NewLineWriter returns a writer that logs every complete line written to it to l.
// Call Close to flush any trailing partial line.
func NewLineWriter(l logg.LevelLogger) io.WriteCloser {
	return &lineWriter{l: l}
}

type lineWriter struct {
	mu  sync.Mutex
	l   logg.LevelLogger
	buf bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Incomplete line, put it back.
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}
		w.log(line)
	}
	return len(p), nil
}

func (w *lineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.log(w.buf.String())
		w.buf.Reset()
	}
	return nil
}

func (w *lineWriter) log(line string) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return
	}
	w.l.Log(logg.String(line))
}
