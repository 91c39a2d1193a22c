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

package errorsh

import (
	"context"
	"errors"
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestRecover(t *testing.T) {
	c := qt.New(t)

	err := Recover(func() error {
		panic("boom")
	})
	c.Assert(err, qt.ErrorMatches, "panic: boom")
	var perr *PanicError
	c.Assert(errors.As(err, &perr), qt.IsTrue)
	c.Assert(len(perr.Stack) > 0, qt.IsTrue)

	c.Assert(Recover(func() error { return nil }), qt.IsNil)
	c.Assert(Recover(func() error { return errors.New("plain") }), qt.ErrorMatches, "plain")
}

func TestIsShutdownError(t *testing.T) {
	c := qt.New(t)

	c.Assert(IsShutdownError(fmt.Errorf("wrapped: %w", context.Canceled)), qt.IsTrue)
	c.Assert(IsShutdownError(context.DeadlineExceeded), qt.IsTrue)
	c.Assert(IsShutdownError(errors.New("other")), qt.IsFalse)
}
