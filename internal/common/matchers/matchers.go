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

// Matcher reports whether a name (a release name or an expanded build name)
// is selected.
type Matcher interface {
	Match(string) bool
}

// MatchEverything matches any name.
var MatchEverything Matcher = matchFunc(func(string) bool { return true })

// And matches if all of the given matchers match.
func And(matchers ...Matcher) Matcher {
	return and(matchers)
}

// Or matches if any of the given matchers match.
func Or(matchers ...Matcher) Matcher {
	return or(matchers)
}

// Not negates m.
func Not(m Matcher) Matcher {
	return not{m}
}

type matchFunc func(string) bool

func (f matchFunc) Match(s string) bool {
	return f(s)
}

type and []Matcher

func (m and) Match(s string) bool {
	for _, matcher := range m {
		if !matcher.Match(s) {
			return false
		}
	}
	return true
}

type or []Matcher

func (m or) Match(s string) bool {
	for _, matcher := range m {
		if matcher.Match(s) {
			return true
		}
	}
	return false
}

type not struct {
	m Matcher
}

func (n not) Match(s string) bool {
	return !n.m.Match(s)
}
