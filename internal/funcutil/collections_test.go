// Copyright The taintflow Authors. All rights reserved.
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

package funcutil

import (
	"testing"
)

func TestMap(t *testing.T) {
	got := Map([]int{1, 2, 3}, func(x int) int { return x * 2 })
	for i, want := range []int{2, 4, 6} {
		if got[i] != want {
			t.Errorf("got %v", got)
		}
	}
}

func TestExistsAndContains(t *testing.T) {
	xs := []string{"a", "b", "c"}
	if !Exists(xs, func(s string) bool { return s == "b" }) {
		t.Errorf("b is in the slice")
	}
	if Contains(xs, "z") {
		t.Errorf("z is not in the slice")
	}
}

func TestSortedKeys(t *testing.T) {
	keys := SortedKeys(map[string]int{"c": 1, "a": 2, "b": 3})
	for i, want := range []string{"a", "b", "c"} {
		if keys[i] != want {
			t.Errorf("got %v", keys)
		}
	}
}

func TestMapParallelPreservesOrder(t *testing.T) {
	xs := make([]int, 100)
	for i := range xs {
		xs[i] = i
	}
	got := MapParallel(xs, func(x int) int { return x * x }, 8)
	for i := range xs {
		if got[i] != i*i {
			t.Fatalf("result out of order at %d: %d", i, got[i])
		}
	}
}
