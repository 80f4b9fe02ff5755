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
	"context"
	"reflect"
	"sort"

	"lightblue.dev/internal/lberr"
	"lightblue.dev/lightblue/driver"
)

// Count constrains the matchCount of a response.
type Count struct {
	min, max int
	hasMax   bool
}

// Exactly requires matchCount to be n.
func Exactly(n int) *Count { return &Count{min: n, max: n, hasMax: true} }

// AtLeast requires matchCount to be at least n.
func AtLeast(n int) *Count { return &Count{min: n} }

// Between requires matchCount to be in [min, max].
func Between(min, max int) *Count { return &Count{min: min, max: max, hasMax: true} }

// Match reports whether n satisfies c. A nil Count matches anything.
func (c *Count) Match(n int) bool {
	if c == nil {
		return true
	}
	return n >= c.min && (!c.hasMax || n <= c.max)
}

// SelectOptions controls how a Selection turns a response into a value.
// The steps run in field order and stop at the first failure, which yields
// Fallback.
type SelectOptions struct {
	// SkipCheck disables the CheckResponse step.
	SkipCheck bool
	// Count, if set, constrains the response's matchCount.
	Count *Count
	// Path selects part of the response document; see Selection.
	Path string
	// Fallback is returned when any step fails.
	Fallback any
	// Postprocess, if set, transforms the selected value. A nil result,
	// including a nil map, slice or pointer, means nothing was found.
	Postprocess func(any) any
}

// Selection is a Query whose Find, Update and Delete post-process the
// response according to SelectOptions.
//
// Paths are JSON pointers into the whole response document, such as
// "/processed/0/login"; the leading slash is optional. A token may be a glob
// pattern like "*", in which case the value is the list of all matches. A
// path that matches nothing yields the fallback.
type Selection struct {
	*Query
}

// NewSelection returns a Selection on e with the given initial filters.
func NewSelection(e *Entity, triples ...Triple) *Selection {
	return &Selection{Query: e.Query(triples...)}
}

// FilterCreatedBy restricts s to documents created by service.
func (s *Selection) FilterCreatedBy(service string) *Selection {
	s.AddEquals(map[string]any{"createdBy": service})
	return s
}

// Find runs the query and post-processes the response.
func (s *Selection) Find(ctx context.Context, opts *SelectOptions) (any, error) {
	r, err := s.Query.Find(ctx)
	if err != nil {
		return nil, err
	}
	return s.postprocess(ctx, r, opts), nil
}

// Update runs Query.Update and post-processes the response.
func (s *Selection) Update(ctx context.Context, opts *SelectOptions) (any, error) {
	r, err := s.Query.Update(ctx)
	if err != nil {
		return nil, err
	}
	return s.postprocess(ctx, r, opts), nil
}

// Delete runs Query.Delete and post-processes the response.
func (s *Selection) Delete(ctx context.Context, opts *SelectOptions) (any, error) {
	r, err := s.Query.Delete(ctx)
	if err != nil {
		return nil, err
	}
	return s.postprocess(ctx, r, opts), nil
}

func (s *Selection) postprocess(ctx context.Context, r *driver.Response, opts *SelectOptions) any {
	if opts == nil {
		opts = &SelectOptions{}
	}
	if !opts.SkipCheck && !s.entity.CheckResponse(ctx, r) {
		return opts.Fallback
	}
	if r == nil {
		return opts.Fallback
	}
	if !opts.Count.Match(r.MatchCount) {
		return opts.Fallback
	}
	var v any = r.Body
	if opts.Path != "" {
		var ok bool
		if v, ok = selectPath(r.Body, opts.Path); !ok {
			return opts.Fallback
		}
	}
	if opts.Postprocess != nil {
		if v = opts.Postprocess(v); isNil(v) {
			return opts.Fallback
		}
	}
	return v
}

// First returns the first matching document, or nil if there is none.
func (s *Selection) First(ctx context.Context) (map[string]any, error) {
	v, err := s.Find(ctx, &SelectOptions{Count: AtLeast(1), Path: "/processed/0"})
	if err != nil {
		return nil, err
	}
	doc, _ := v.(map[string]any)
	return doc, nil
}

// All returns the matching documents, or an empty slice if there are none.
func (s *Selection) All(ctx context.Context) ([]any, error) {
	v, err := s.Find(ctx, &SelectOptions{Count: AtLeast(1), Path: "/processed", Fallback: []any{}})
	if err != nil {
		return nil, err
	}
	docs, ok := v.([]any)
	if !ok {
		return []any{}, nil
	}
	return docs, nil
}

// Exist reports whether any document matches. A response that fails
// CheckResponse counts as no match.
func (s *Selection) Exist(ctx context.Context) (bool, error) {
	v, err := s.Find(ctx, &SelectOptions{Count: AtLeast(1)})
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// GetSelectorQuery returns equality filters identifying data: for each field
// of primaryKeys, the value found in data at the field's path. Filters are
// ordered by field.
func GetSelectorQuery(data any, primaryKeys map[string]string) ([]Triple, error) {
	fields := make([]string, 0, len(primaryKeys))
	for f := range primaryKeys {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	ts := make([]Triple, 0, len(fields))
	for _, f := range fields {
		v, ok := selectPath(data, primaryKeys[f])
		if !ok {
			return nil, lberr.Newf(lberr.NotFound, nil, "lightblue: no value at %q for field %q", primaryKeys[f], f)
		}
		ts = append(ts, Eq(f, v))
	}
	return ts, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Pointer, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
