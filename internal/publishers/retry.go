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

package publishers

import (
	"errors"
	"math/rand"
	"time"
)

const numRetries = 10

func withRetries(f func() (err error, shouldTryAgain bool)) error {
	var (
		lastErr      error
		nextInterval time.Duration = 77 * time.Millisecond
	)

	for i := 0; i < numRetries; i++ {
		err, shouldTryAgain := f()
		if err == nil || !shouldTryAgain {
			return err
		}

		lastErr = err

		time.Sleep(nextInterval)
		nextInterval += time.Duration(rand.Int63n(int64(nextInterval)))
	}

	return lastErr
}

// TemporaryError marks an upload failure worth retrying.
type TemporaryError struct {
	error
}

func (e TemporaryError) Unwrap() error {
	return e.error
}

func isTemporary(err error) bool {
	var te TemporaryError
	return errors.As(err, &te)
}
