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
	"sort"

	"lightblue.dev/lightblue/driver"
)

// Comparison operators understood by the data service.
const (
	OpEqual          = "="
	OpNotEqual       = "!="
	OpLess           = "<"
	OpGreater        = ">"
	OpLessOrEqual    = "<="
	OpGreaterOrEqual = ">="
	OpIn             = "$in"
	OpNotIn          = "$nin"
)

// Triple is a single "field op value" filter.
type Triple struct {
	Field string
	Op    string
	Value any
}

// Eq returns the triple field = value.
func Eq(field string, value any) Triple {
	return Triple{Field: field, Op: OpEqual, Value: value}
}

// Where returns the triple field op value.
func Where(field, op string, value any) Triple {
	return Triple{Field: field, Op: op, Value: value}
}

// Equals expands a map of equality filters into triples, ordered by field.
func Equals(m map[string]any) []Triple {
	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	ts := make([]Triple, len(fields))
	for i, f := range fields {
		ts[i] = Eq(f, m[f])
	}
	return ts
}

func (t Triple) clause() driver.FieldClause {
	return driver.FieldClause{Field: t.Field, Op: t.Op, RValue: t.Value}
}

// Update holds update operators to merge into a Query.
type Update struct {
	Set    map[string]any
	Unset  []string
	Append map[string]any
}

type queryState int

const (
	stateOpen queryState = iota
	stateLocked
)

// Query accumulates a query, a projection and an update for one entity.
// The builder methods modify the Query in place and return it for chaining.
//
// A Query is not safe for concurrent use.
type Query struct {
	entity  *Entity
	state   queryState
	aliases map[string]string

	triples []Triple
	raw     []any

	fields    []string
	recursive []string

	set     map[string]any
	unset   []string
	appends map[string]any
}

// Query returns a new Query on e with the given initial filters.
func (e *Entity) Query(triples ...Triple) *Query {
	return &Query{entity: e, triples: append([]Triple(nil), triples...)}
}

// Entity returns the entity q runs against.
func (q *Query) Entity() *Entity { return q.entity }

// WithAliases sets the field aliases used by AddEquals: a filter on a key of
// aliases is applied to the corresponding value instead.
func (q *Query) WithAliases(aliases map[string]string) *Query {
	q.aliases = aliases
	return q
}

// AddToQuery adds filters.
func (q *Query) AddToQuery(triples ...Triple) *Query {
	q.triples = append(q.triples, triples...)
	return q
}

// AddEquals adds an equality filter for each entry of m, in field order,
// after mapping the fields through the aliases.
func (q *Query) AddEquals(m map[string]any) *Query {
	for _, t := range Equals(m) {
		if alias, ok := q.aliases[t.Field]; ok {
			t.Field = alias
		}
		q.triples = append(q.triples, t)
	}
	return q
}

// AddRawQuery adds a prebuilt query fragment, combined with the other filters
// under the same $and.
func (q *Query) AddRawQuery(fragment any) *Query {
	q.raw = append(q.raw, fragment)
	return q
}

// AddToProjection adds fields to return.
func (q *Query) AddToProjection(fields ...string) *Query {
	q.fields = append(q.fields, fields...)
	return q
}

// AddToRecursiveProjection adds fields to return together with everything
// beneath them.
func (q *Query) AddToRecursiveProjection(fields ...string) *Query {
	q.recursive = append(q.recursive, fields...)
	return q
}

// AddToUpdate merges u into the update. Set and Append entries replace
// earlier values for the same field; Unset fields are appended.
func (q *Query) AddToUpdate(u Update) *Query {
	if len(u.Set) > 0 && q.set == nil {
		q.set = map[string]any{}
	}
	for k, v := range u.Set {
		q.set[k] = v
	}
	q.unset = append(q.unset, u.Unset...)
	if len(u.Append) > 0 && q.appends == nil {
		q.appends = map[string]any{}
	}
	for k, v := range u.Append {
		q.appends[k] = v
	}
	return q
}

// Refresh clears the projection and the update and unlocks q. The filters are
// kept.
func (q *Query) Refresh() *Query {
	q.fields, q.recursive = nil, nil
	q.set, q.unset, q.appends = nil, nil, nil
	q.state = stateOpen
	return q
}

// Locked reports whether q has run an Update or Delete since it was created
// or last refreshed.
func (q *Query) Locked() bool { return q.state == stateLocked }

// HasQuery reports whether q has any filter.
func (q *Query) HasQuery() bool { return len(q.triples) > 0 || len(q.raw) > 0 }

// HasProjection reports whether q has any projected field.
func (q *Query) HasProjection() bool { return len(q.fields) > 0 || len(q.recursive) > 0 }

// HasUpdate reports whether q has any update operator.
func (q *Query) HasUpdate() bool { return !q.CompileUpdate().Empty() }

// CompileQuery returns the filters combined under $and, structured triples
// first. A single filter is wrapped too.
func (q *Query) CompileQuery() driver.And {
	clauses := make([]any, 0, len(q.triples)+len(q.raw))
	for _, t := range q.triples {
		clauses = append(clauses, t.clause())
	}
	clauses = append(clauses, q.raw...)
	return driver.And{Clauses: clauses}
}

// CompileProjection returns the projection, plain fields first.
func (q *Query) CompileProjection() []driver.Projection {
	ps := make([]driver.Projection, 0, len(q.fields)+len(q.recursive))
	for _, f := range q.fields {
		ps = append(ps, driver.Projection{Field: f, Include: true})
	}
	for _, f := range q.recursive {
		ps = append(ps, driver.Projection{Field: f, Include: true, Recursive: true})
	}
	return ps
}

// CompileUpdate returns the update operators. Empty groups are left out.
func (q *Query) CompileUpdate() *driver.UpdateExpression {
	u := &driver.UpdateExpression{}
	if len(q.set) > 0 {
		u.Set = q.set
	}
	if len(q.unset) > 0 {
		u.Unset = q.unset
	}
	if len(q.appends) > 0 {
		u.Append = q.appends
	}
	return u
}

// Find runs the query. Without filters it finds every document of the entity.
// Find never locks q.
func (q *Query) Find(ctx context.Context) (*driver.Response, error) {
	opts := &FindOptions{}
	if q.HasProjection() {
		opts.Projection = q.CompileProjection()
	}
	if !q.HasQuery() {
		return q.entity.FindAll(ctx, opts)
	}
	return q.entity.FindItem(ctx, q.CompileQuery(), opts)
}

// Update applies the update to the matching documents and locks q.
// It fails without calling the service if q is locked, or if it has no
// filter or no update.
func (q *Query) Update(ctx context.Context) (*driver.Response, error) {
	if q.Locked() {
		return nil, ErrLockedQuery
	}
	if !q.HasQuery() || !q.HasUpdate() {
		return nil, ErrIncompleteQuery
	}
	q.state = stateLocked
	return q.entity.UpdateItem(ctx, q.CompileQuery(), q.CompileUpdate())
}

// Delete deletes the matching documents and locks q.
// It fails without calling the service if q is locked or has no filter;
// use Entity.DeleteAll to delete everything.
func (q *Query) Delete(ctx context.Context) (*driver.Response, error) {
	if q.Locked() {
		return nil, ErrLockedQuery
	}
	if !q.HasQuery() {
		return nil, ErrIncompleteQuery
	}
	q.state = stateLocked
	return q.entity.DeleteItem(ctx, q.CompileQuery())
}

// Insert inserts data into e. It does not depend on any Query state.
func Insert(ctx context.Context, e *Entity, data any) (*driver.Response, error) {
	return e.InsertData(ctx, data)
}
