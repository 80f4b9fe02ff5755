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

// Package driver defines interfaces to be implemented by Lightblue service
// drivers, which will be used by the lightblue package to interact with the
// Lightblue data and metadata services, together with the JSON shapes those
// services exchange.
package driver // import "lightblue.dev/lightblue/driver"

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Service is the interface a Lightblue service driver must implement.
//
// An empty version means the entity's default version; drivers must omit the
// version from the request path rather than send an empty segment.
//
// Insert, Delete, Update and Find return a nil *Response and a nil error when
// the service answered with anything other than a successful JSON document.
// Such failures are reported to the driver's observer, not to the caller. A
// non-nil error means the request could not be carried out at all, for
// example because the transport gave up after retrying.
type Service interface {
	// GetSchema returns the JSON schema of the entity at version.
	// Unlike the data operations, any failure is returned as an error.
	GetSchema(ctx context.Context, entity, version string) (json.RawMessage, error)

	// Insert stores the documents in req.Data.
	Insert(ctx context.Context, entity, version string, req *Request) (*Response, error)

	// Delete removes the documents matching req.Query.
	Delete(ctx context.Context, entity, version string, req *Request) (*Response, error)

	// Update applies req.Update to the documents matching req.Query.
	Update(ctx context.Context, entity, version string, req *Request) (*Response, error)

	// Find returns the documents matching req.Query, shaped by req.Projection.
	Find(ctx context.Context, entity, version string, req *Request) (*Response, error)
}

// Request is the envelope sent to the data service. Which fields are set
// depends on the operation.
type Request struct {
	ObjectType string `json:"objectType"`
	Version    string `json:"version,omitempty"`
	Query      any    `json:"query,omitempty"`
	Projection any    `json:"projection,omitempty"`
	Update     any    `json:"update,omitempty"`
	Data       any    `json:"data,omitempty"`
	From       *int   `json:"from,omitempty"`
	MaxResults *int   `json:"maxResults,omitempty"`
}

// Projection selects a field, and optionally everything beneath it, for
// inclusion in returned documents.
type Projection struct {
	Field     string `json:"field"`
	Include   bool   `json:"include"`
	Recursive bool   `json:"recursive,omitempty"`
}

// FullProjection returns every field of a document. It is used whenever a
// request does not specify a projection.
var FullProjection = Projection{Field: "*", Include: true, Recursive: true}

// FieldClause is a single "field op value" comparison.
type FieldClause struct {
	Field  string `json:"field"`
	Op     string `json:"op"`
	RValue any    `json:"rvalue"`
}

// And combines clauses under a logical AND.
type And struct {
	Clauses []any `json:"$and"`
}

// UpdateExpression is the update document sent with an update request.
// Empty groups are omitted.
type UpdateExpression struct {
	Set    map[string]any `json:"$set,omitempty"`
	Unset  []string       `json:"$unset,omitempty"`
	Append map[string]any `json:"$append,omitempty"`
}

// Empty reports whether u has no operations in it.
func (u *UpdateExpression) Empty() bool {
	return u == nil || (len(u.Set) == 0 && len(u.Unset) == 0 && len(u.Append) == 0)
}

// Status is the outcome reported by the data service.
type Status string

// Status values reported by the data service.
const (
	StatusComplete Status = "COMPLETE"
	StatusPartial  Status = "PARTIAL"
	StatusFailed   Status = "FAILED"
	StatusError    Status = "ERROR"
	// StatusUnknown is used when the response carried no status at all.
	StatusUnknown Status = ""
)

// Known reports whether s is one of the statuses the service documents.
func (s Status) Known() bool {
	switch s {
	case StatusComplete, StatusPartial, StatusFailed, StatusError:
		return true
	}
	return false
}

// Response is a parsed reply from the data service.
type Response struct {
	Status        Status `json:"status"`
	MatchCount    int    `json:"matchCount"`
	ModifiedCount int    `json:"modifiedCount"`
	Processed     []any  `json:"processed"`
	DataErrors    []any  `json:"dataErrors"`
	Errors        []any  `json:"errors"`

	// Body is the whole response document, for path selection.
	Body map[string]any `json:"-"`
}

// Complete reports whether r is non-nil and has status COMPLETE.
func (r *Response) Complete() bool {
	return r != nil && r.Status == StatusComplete
}

// DecodeProcessed decodes the processed documents into dst, which should be a
// pointer to a slice.
func (r *Response) DecodeProcessed(dst any) error {
	b, err := json.Marshal(r.Processed)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

// ParseResponse parses a data service reply. The body must be a JSON object.
func ParseResponse(body []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(body, &r.Body); err != nil {
		return nil, err
	}
	if r.Body == nil {
		return nil, fmt.Errorf("response is not a JSON object: %s", abbrev(body))
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func abbrev(b []byte) []byte {
	b = bytes.TrimSpace(b)
	if len(b) > 64 {
		return append(b[:61:61], "..."...)
	}
	return b
}
