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

// Package openurl provides helpers for URLMux and URLOpeners in portable APIs.
package openurl // import "lightblue.dev/internal/openurl"

import (
	"fmt"
	"net/url"
	"sort"
)

// SchemeMap maps URL schemes to values. The zero value is an empty map, ready
// for use.
type SchemeMap[T any] struct {
	api string
	m   map[string]T
}

// Register registers scheme for value; subsequent calls to FromString or
// FromURL with scheme will return value.
// api is the portable API name (e.g., "lightblue"); the same value should
// always be passed.
// typ is the portable type (e.g., "Entity").
// Register panics if scheme has already been registered.
func (m *SchemeMap[T]) Register(api, typ, scheme string, value T) {
	if m.m == nil {
		m.m = map[string]T{}
	}
	if m.api == "" {
		m.api = api
	} else if m.api != api {
		panic(fmt.Errorf("previously registered using api %q (now %q)", m.api, api))
	}
	if _, exists := m.m[scheme]; exists {
		panic(fmt.Errorf("scheme %q already registered for %s.%s", scheme, api, typ))
	}
	m.m[scheme] = value
}

// Schemes returns the registered schemes in sorted order.
func (m *SchemeMap[T]) Schemes() []string {
	s := make([]string, 0, len(m.m))
	for k := range m.m {
		s = append(s, k)
	}
	sort.Strings(s)
	return s
}

// ValidScheme returns true iff scheme has been registered.
func (m *SchemeMap[T]) ValidScheme(scheme string) bool {
	_, ok := m.m[scheme]
	return ok
}

// FromString parses urlstr as an URL and looks up the value for the URL's scheme.
func (m *SchemeMap[T]) FromString(typ, urlstr string) (T, *url.URL, error) {
	var zero T
	u, err := url.Parse(urlstr)
	if err != nil {
		return zero, nil, fmt.Errorf("open %s.%s: %v", m.api, typ, err)
	}
	val, err := m.FromURL(typ, u)
	if err != nil {
		return zero, nil, err
	}
	return val, u, nil
}

// FromURL looks up the value for u's scheme.
func (m *SchemeMap[T]) FromURL(typ string, u *url.URL) (T, error) {
	var zero T
	if u.Scheme == "" {
		return zero, fmt.Errorf("open %s.%s: no scheme in URL %q", m.api, typ, u)
	}
	v, ok := m.m[u.Scheme]
	if !ok {
		return zero, fmt.Errorf("open %s.%s: no provider registered for %q for URL %q", m.api, typ, u.Scheme, u)
	}
	return v, nil
}

// CheckParams returns an error naming the first query parameter of u that is
// not in allowed, or that appears more than once.
func CheckParams(u *url.URL, allowed ...string) error {
	q := u.Query()
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !contains(allowed, k) {
			return fmt.Errorf("unknown query parameter %q", k)
		}
		if len(q[k]) > 1 {
			return fmt.Errorf("query parameter %q given %d times", k, len(q[k]))
		}
	}
	return nil
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
