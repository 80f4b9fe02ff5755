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

// Package lbtest provides an in-memory driver.Service for testing code that
// uses the lightblue package.
package lbtest // import "lightblue.dev/lightblue/lbtest"

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"lightblue.dev/internal/lberr"
	"lightblue.dev/lightblue/driver"
)

// Call describes one call made to a Service.
type Call struct {
	Op      string // "GetSchema", "Insert", "Delete", "Update" or "Find"
	Entity  string
	Version string
	Request *driver.Request
	// Payload is Request encoded as JSON, as a real service would receive it.
	Payload string
}

type reply struct {
	resp *driver.Response
	err  error
}

// Service is a scripted driver.Service. Data calls consume queued replies in
// order; once the queue is empty they return an empty COMPLETE response.
// Every call is recorded.
//
// The zero value is ready to use and is safe for concurrent use.
type Service struct {
	mu      sync.Mutex
	calls   []Call
	replies []reply
	schemas map[string]json.RawMessage
}

var _ driver.Service = (*Service)(nil)

// Push queues responses for the next data calls. A nil response is returned as
// the service does for an application error.
func (s *Service) Push(rs ...*driver.Response) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rs {
		s.replies = append(s.replies, reply{resp: r})
	}
	return s
}

// PushError queues a transport error for the next data call.
func (s *Service) PushError(err error) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, reply{err: err})
	return s
}

// SetSchema makes GetSchema return schema for entity at version.
func (s *Service) SetSchema(entity, version string, schema json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schemas == nil {
		s.schemas = map[string]json.RawMessage{}
	}
	s.schemas[entity+"/"+version] = schema
}

// Calls returns the calls made so far.
func (s *Service) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// GetSchema implements driver.Service.GetSchema.
func (s *Service) GetSchema(_ context.Context, entity, version string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: "GetSchema", Entity: entity, Version: version})
	schema, ok := s.schemas[entity+"/"+version]
	if !ok {
		return nil, lberr.Newf(lberr.NotFound, nil, "lbtest: no schema for %s/%s", entity, version)
	}
	return schema, nil
}

// Insert implements driver.Service.Insert.
func (s *Service) Insert(ctx context.Context, entity, version string, req *driver.Request) (*driver.Response, error) {
	return s.do(ctx, "Insert", entity, version, req)
}

// Delete implements driver.Service.Delete.
func (s *Service) Delete(ctx context.Context, entity, version string, req *driver.Request) (*driver.Response, error) {
	return s.do(ctx, "Delete", entity, version, req)
}

// Update implements driver.Service.Update.
func (s *Service) Update(ctx context.Context, entity, version string, req *driver.Request) (*driver.Response, error) {
	return s.do(ctx, "Update", entity, version, req)
}

// Find implements driver.Service.Find.
func (s *Service) Find(ctx context.Context, entity, version string, req *driver.Request) (*driver.Response, error) {
	return s.do(ctx, "Find", entity, version, req)
}

func (s *Service) do(ctx context.Context, op, entity, version string, req *driver.Request) (*driver.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Op: op, Entity: entity, Version: version, Request: req, Payload: string(payload)})
	if len(s.replies) == 0 {
		return Complete(), nil
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r.resp, r.err
}

// Complete returns a COMPLETE response whose processed documents are docs and
// whose matchCount is len(docs).
func Complete(docs ...any) *driver.Response {
	if docs == nil {
		docs = []any{}
	}
	return Response(map[string]any{
		"status":        driver.StatusComplete,
		"matchCount":    len(docs),
		"modifiedCount": 0,
		"processed":     docs,
	})
}

// Response returns the response the service would produce for the JSON
// encoding of body. It panics if body does not encode to a JSON object.
func Response(body any) *driver.Response {
	b, err := json.Marshal(body)
	if err != nil {
		panic(fmt.Sprintf("lbtest: %v", err))
	}
	r, err := driver.ParseResponse(b)
	if err != nil {
		panic(fmt.Sprintf("lbtest: %v", err))
	}
	return r
}
