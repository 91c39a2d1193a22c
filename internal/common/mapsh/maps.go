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

package mapsh

import (
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

// KeysSorted returns the keys of the map sorted.
func KeysSorted[M ~map[K]V, K constraints.Ordered, V any](m M) []K {
	keys := KeysComparable(m)
	slices.Sort(keys)
	return keys
}

// KeysComparable returns the keys of the map m.
// The keys will be in an indeterminate order but K needs to be ordered.
func KeysComparable[M ~map[K]V, K constraints.Ordered, V any](m M) []K {
	r := make([]K, 0, len(m))
	for k := range m {
		r = append(r, k)
	}
	return r
}

// Clone returns a shallow copy of m.
// A nil map is returned as nil.
func Clone[M ~map[K]V, K comparable, V any](m M) M {
	if m == nil {
		return nil
	}
	r := make(M, len(m))
	for k, v := range m {
		r[k] = v
	}
	return r
}

// RangeSorted calls f for every entry in m in key order, stopping at the first error.
func RangeSorted[M ~map[K]V, K constraints.Ordered, V any](m M, f func(k K, v V) error) error {
	for _, k := range KeysSorted(m) {
		if err := f(k, m[k]); err != nil {
			return err
		}
	}
	return nil
}
