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
	"encoding/json"
	"log/slog"
	"time"

	"lightblue.dev/internal/lberr"
	"lightblue.dev/lightblue/driver"
	"lightblue.dev/log"
)

// Errors returned for misuse of the package. Test for them with errors.Is.
var (
	// ErrIncompleteQuery is returned by Update when the query or the update is
	// empty, and by Delete when the query is empty.
	ErrIncompleteQuery error = lberr.New(lberr.InvalidArgument, nil, 1, "lightblue: incomplete query")
	// ErrLockedQuery is returned by a second Update or Delete on a Query.
	ErrLockedQuery error = lberr.New(lberr.FailedPrecondition, nil, 1, "lightblue: query already executed")
	// ErrNoVersion is returned by GetSchema when no version is known.
	ErrNoVersion error = lberr.New(lberr.FailedPrecondition, nil, 1, "lightblue: no version was provided")
	// ErrInvalidPage is returned by the paginated finds when a page was
	// rejected by CheckResponse.
	ErrInvalidPage error = lberr.New(lberr.Internal, nil, 1, "lightblue: invalid page")
)

// EntityOptions controls Entity behavior.
type EntityOptions struct {
	// Observer receives invalid responses rejected by CheckResponse.
	// The default logs through slog.Default.
	Observer log.Observer
}

// Entity is a named, optionally versioned, collection of documents in a
// Lightblue data service.
//
// An Entity is safe for concurrent use when its driver.Service is.
type Entity struct {
	svc     driver.Service
	name    string
	version string
	obs     log.Observer
}

// NewEntity binds svc to the entity name and version. An empty version means
// the service's default version.
func NewEntity(svc driver.Service, name, version string, opts *EntityOptions) *Entity {
	if opts == nil {
		opts = &EntityOptions{}
	}
	obs := opts.Observer
	if obs == nil {
		obs = log.Default()
	}
	return &Entity{svc: svc, name: name, version: version, obs: obs}
}

// Name returns the entity name.
func (e *Entity) Name() string { return e.name }

// Version returns the bound version, which may be empty.
func (e *Entity) Version() string { return e.version }

// CheckResponse reports whether r is a successful response, that is non-nil
// with status COMPLETE. Anything else is reported to the observer.
func (e *Entity) CheckResponse(ctx context.Context, r *driver.Response) bool {
	if r.Complete() {
		return true
	}
	var detail any
	if r != nil {
		detail = r.Body
	}
	e.obs.Record(ctx, log.Event{
		Time:    time.Now(),
		Level:   slog.LevelError,
		Message: "received invalid response from Lightblue",
		Op:      "CheckResponse",
		Entity:  e.name,
		Version: e.version,
		Detail:  detail,
	})
	return false
}

// GetSchema returns the entity's schema at version, or at the bound version
// if version is empty.
func (e *Entity) GetSchema(ctx context.Context, version string) (json.RawMessage, error) {
	if version == "" {
		version = e.version
	}
	if version == "" {
		return nil, ErrNoVersion
	}
	return e.svc.GetSchema(ctx, e.name, version)
}

func (e *Entity) request() *driver.Request {
	return &driver.Request{ObjectType: e.name, Version: e.version}
}

// allQuery matches every document of the entity.
func (e *Entity) allQuery() driver.FieldClause {
	return driver.FieldClause{Field: "objectType", Op: OpEqual, RValue: e.name}
}

// InsertData inserts data, a document or a slice of documents, and asks for
// the inserted documents back in full.
func (e *Entity) InsertData(ctx context.Context, data any) (*driver.Response, error) {
	req := e.request()
	req.Data = data
	req.Projection = driver.FullProjection
	return e.svc.Insert(ctx, e.name, e.version, req)
}

// DeleteAll deletes every document of the entity.
func (e *Entity) DeleteAll(ctx context.Context) (*driver.Response, error) {
	return e.DeleteItem(ctx, e.allQuery())
}

// DeleteItem deletes the documents matching query.
func (e *Entity) DeleteItem(ctx context.Context, query any) (*driver.Response, error) {
	req := e.request()
	req.Query = query
	return e.svc.Delete(ctx, e.name, e.version, req)
}

// UpdateItem applies update to the documents matching query.
func (e *Entity) UpdateItem(ctx context.Context, query, update any) (*driver.Response, error) {
	req := e.request()
	req.Query = query
	req.Update = update
	return e.svc.Update(ctx, e.name, e.version, req)
}

// FindOptions controls a find.
type FindOptions struct {
	// Projection selects the returned fields. The default returns
	// everything.
	Projection any
	// From and MaxResults are sent only when set.
	From       *int
	MaxResults *int
}

// FindItem returns the documents matching query.
func (e *Entity) FindItem(ctx context.Context, query any, opts *FindOptions) (*driver.Response, error) {
	if opts == nil {
		opts = &FindOptions{}
	}
	req := e.request()
	req.Query = query
	req.Projection = opts.Projection
	if req.Projection == nil {
		req.Projection = driver.FullProjection
	}
	req.From = opts.From
	req.MaxResults = opts.MaxResults
	return e.svc.Find(ctx, e.name, e.version, req)
}

// FindAll returns every document of the entity.
func (e *Entity) FindAll(ctx context.Context, opts *FindOptions) (*driver.Response, error) {
	return e.FindItem(ctx, e.allQuery(), opts)
}
