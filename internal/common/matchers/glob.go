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

package matchers

import (
	"errors"
	"strings"
	"sync"

	"github.com/gobwas/glob"
)

type globCacheMap struct {
	sync.RWMutex
	globs map[string]Matcher
}

var globCache = globCacheMap{
	globs: make(map[string]Matcher),
}

// Glob returns a matcher that matches if all given glob patterns matches the given string.
// A pattern can be negated with a leading !.
func Glob(patterns ...string) (Matcher, error) {
	if len(patterns) == 0 {
		return nil, errors.New("empty patterns")
	}
	if len(patterns) == 1 {
		return globOne(patterns[0])
	}

	matchers := make([]Matcher, len(patterns))
	for i, p := range patterns {
		g, err := globOne(p)
		if err != nil {
			return nil, err
		}
		matchers[i] = g
	}

	return And(matchers...), nil
}

func globOne(pattern string) (Matcher, error) {
	if pattern == "" {
		return nil, errors.New("empty pattern")
	}
	globCache.RLock()
	g, ok := globCache.globs[pattern]
	globCache.RUnlock()
	if ok {
		return g, nil
	}

	key := pattern

	var negate bool
	if pattern[0] == '!' {
		negate = true
		pattern = strings.TrimPrefix(pattern, "!")
	}

	// Build names contain slashes only when the user puts them there,
	// so ** and * behave the same unless separators are given.
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, err
	}

	if negate {
		g = Not(g)
	}

	globCache.Lock()
	globCache.globs[key] = g
	globCache.Unlock()

	return g, nil
}
