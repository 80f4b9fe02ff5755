// Copyright 2019 The Go Cloud Development Kit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lightblue

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSelectPath(t *testing.T) {
	doc := map[string]any{
		"processed": []any{
			map[string]any{"login": "bob", "a/b": 1.0},
			map[string]any{"login": "alice"},
		},
		"matchCount": 2.0,
		"meta":       map[string]any{"x1": "p", "x2": "q", "y": "r"},
	}
	for _, test := range []struct {
		path   string
		want   any
		wantOK bool
	}{
		{"", doc, true},
		{"/matchCount", 2.0, true},
		{"matchCount", 2.0, true},
		{"/processed/0/login", "bob", true},
		{"/processed/0/a~1b", 1.0, true},
		{"/processed/2", nil, false},
		{"/processed/x", nil, false},
		{"/nope", nil, false},
		{"/processed/*/login", []any{"bob", "alice"}, true},
		{"/meta/x?", []any{"p", "q"}, true},
		{"/meta/[xy]*", []any{"p", "q", "r"}, true},
		{"/processed/*/nope", nil, false},
		{"/meta/[", nil, false},
	} {
		got, ok := selectPath(doc, test.path)
		if ok != test.wantOK {
			t.Errorf("%q: got ok=%t, want %t", test.path, ok, test.wantOK)
			continue
		}
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("%q: mismatch (-want +got):\n%s", test.path, diff)
		}
	}
}

func TestCountMatch(t *testing.T) {
	var none *Count
	for _, test := range []struct {
		c    *Count
		n    int
		want bool
	}{
		{none, 0, true},
		{Exactly(0), 0, true},
		{Exactly(0), 1, false},
		{Exactly(2), 2, true},
		{AtLeast(1), 0, false},
		{AtLeast(1), 100, true},
		{Between(1, 3), 3, true},
		{Between(1, 3), 4, false},
	} {
		if got := test.c.Match(test.n); got != test.want {
			t.Errorf("%+v.Match(%d) = %t, want %t", test.c, test.n, got, test.want)
		}
	}
}
