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
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/go-openapi/jsonpointer"
)

// selectPath returns the value at p within doc. p is a JSON pointer; the
// leading slash may be left out. Tokens may be glob patterns (see
// path.Match), in which case every match is returned, in document order for
// arrays and key order for objects. ok is false when nothing matches.
func selectPath(doc any, p string) (v any, ok bool) {
	if p == "" {
		return doc, true
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	ptr, err := jsonpointer.New(p)
	if err != nil {
		return nil, false
	}
	tokens := ptr.DecodedTokens()
	if !hasGlob(tokens) {
		v, _, err := ptr.Get(doc)
		if err != nil {
			return nil, false
		}
		return v, true
	}
	matches := []any{}
	if !walk(doc, tokens, func(v any) { matches = append(matches, v) }) {
		return nil, false
	}
	if len(matches) == 0 {
		return nil, false
	}
	return matches, true
}

func hasGlob(tokens []string) bool {
	for _, t := range tokens {
		if strings.ContainsAny(t, `*?[`) {
			return true
		}
	}
	return false
}

// walk calls visit for every value under doc reached by tokens. It returns
// false if a token is a malformed pattern.
func walk(doc any, tokens []string, visit func(any)) bool {
	if len(tokens) == 0 {
		visit(doc)
		return true
	}
	tok, rest := tokens[0], tokens[1:]
	switch d := doc.(type) {
	case map[string]any:
		keys := make([]string, 0, len(d))
		for k := range d {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			match, err := path.Match(tok, k)
			if err != nil {
				return false
			}
			if match && !walk(d[k], rest, visit) {
				return false
			}
		}
	case []any:
		for i, elem := range d {
			match, err := path.Match(tok, strconv.Itoa(i))
			if err != nil {
				return false
			}
			if match && !walk(elem, rest, visit) {
				return false
			}
		}
	}
	return true
}
