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

// Package log defines the observer that Lightblue client packages report to.
//
// Every call made by a Service produces an Event carrying a ResponseRecord.
// Events are handed to an Observer passed in at construction time, so there
// is no process-wide logger and tests can assert on emitted events directly
// with a Recorder.
package log // import "lightblue.dev/log"

import (
	"context"
	"log/slog"
	"time"
)

// An Observer receives events from the Lightblue client.
// Implementations must be safe for use from multiple goroutines.
type Observer interface {
	Record(ctx context.Context, e Event)
}

// ObserverFunc adapts an ordinary function to the Observer interface.
type ObserverFunc func(ctx context.Context, e Event)

// Record calls f(ctx, e).
func (f ObserverFunc) Record(ctx context.Context, e Event) { f(ctx, e) }

// Event is a single structured log entry.
type Event struct {
	Time    time.Time
	Level   slog.Level
	Message string

	// Op is the client operation: "GetSchema", "Insert", "Delete", "Update",
	// "Find" or "CheckResponse".
	Op      string
	Entity  string
	Version string

	Method    string
	URL       string
	RequestID string

	// Record describes the service's response, if one was received.
	Record *ResponseRecord
	// Payload is the serialized request body. It is set only for failed calls.
	Payload []byte
	// Detail holds any other value worth reporting, such as a rejected response.
	Detail any
	Err    error
}

// ResponseRecord summarizes a response from the Lightblue service.
// Document data is never included; only the counters and any errors.
type ResponseRecord struct {
	StatusCode int
	Elapsed    time.Duration

	// JSON reports whether the body parsed as JSON. When it did not,
	// TextResponse holds the raw body and the remaining fields are empty.
	JSON         bool
	TextResponse string

	Status        string
	MatchCount    int
	ModifiedCount int
	// DataErrors and Errors are only recorded when Status is not COMPLETE.
	DataErrors []any
	Errors     []any
}

// Attrs returns the record as slog attributes.
func (r *ResponseRecord) Attrs() []slog.Attr {
	if r == nil {
		return nil
	}
	if !r.JSON {
		return []slog.Attr{
			slog.String("text_response", r.TextResponse),
			slog.Int("statusCode", r.StatusCode),
			slog.Duration("elapsed", r.Elapsed),
		}
	}
	attrs := []slog.Attr{
		slog.String("status", r.Status),
		slog.Int("matchCount", r.MatchCount),
		slog.Int("modifiedCount", r.ModifiedCount),
	}
	if r.Status != "COMPLETE" {
		attrs = append(attrs,
			slog.Any("dataErrors", r.DataErrors),
			slog.Any("errors", r.Errors),
		)
	}
	return append(attrs,
		slog.Int("statusCode", r.StatusCode),
		slog.Duration("elapsed", r.Elapsed),
	)
}
