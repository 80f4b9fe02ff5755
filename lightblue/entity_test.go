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

package lightblue_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"lightblue.dev/lberrors"
	"lightblue.dev/lightblue"
	"lightblue.dev/lightblue/driver"
	"lightblue.dev/lightblue/lbtest"
	"lightblue.dev/log"
)

func newEntity(version string) (*lightblue.Entity, *lbtest.Service, *log.Recorder) {
	svc := &lbtest.Service{}
	rec := &log.Recorder{}
	return lightblue.NewEntity(svc, "user", version, &lightblue.EntityOptions{Observer: rec}), svc, rec
}

func payloads(calls []lbtest.Call) []string {
	var ps []string
	for _, c := range calls {
		ps = append(ps, c.Payload)
	}
	return ps
}

func TestCheckResponse(t *testing.T) {
	ctx := context.Background()
	for _, test := range []struct {
		desc string
		resp *driver.Response
		want bool
	}{
		{"complete", lbtest.Response(map[string]any{"status": "COMPLETE", "matchCount": 0}), true},
		{"nil", nil, false},
		{"empty", lbtest.Response(map[string]any{}), false},
		{"partial", lbtest.Response(map[string]any{"status": "PARTIAL"}), false},
		{"error", lbtest.Response(map[string]any{"status": "ERROR", "errors": []any{"boom"}}), false},
	} {
		t.Run(test.desc, func(t *testing.T) {
			e, _, rec := newEntity("")
			if got := e.CheckResponse(ctx, test.resp); got != test.want {
				t.Errorf("got %t, want %t", got, test.want)
			}
			events := rec.Events()
			if test.want {
				if len(events) != 0 {
					t.Errorf("got %d events for a valid response, want 0", len(events))
				}
				return
			}
			if len(events) != 1 {
				t.Fatalf("got %d events, want 1", len(events))
			}
			if events[0].Entity != "user" || events[0].Level.String() != "ERROR" {
				t.Errorf("unexpected event %+v", events[0])
			}
			if test.resp != nil {
				if diff := cmp.Diff(test.resp.Body, events[0].Detail); diff != "" {
					t.Errorf("detail mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestGetSchema(t *testing.T) {
	ctx := context.Background()
	schema := json.RawMessage(`{"entityInfo":{"name":"user"}}`)

	e, svc, _ := newEntity("1.0.0")
	svc.SetSchema("user", "1.0.0", schema)
	svc.SetSchema("user", "2.0.0", schema)
	if _, err := e.GetSchema(ctx, ""); err != nil {
		t.Fatalf("bound version: %v", err)
	}
	got, err := e.GetSchema(ctx, "2.0.0")
	if err != nil {
		t.Fatalf("explicit version: %v", err)
	}
	if string(got) != string(schema) {
		t.Errorf("got %s, want %s", got, schema)
	}
	var versions []string
	for _, c := range svc.Calls() {
		versions = append(versions, c.Version)
	}
	if diff := cmp.Diff([]string{"1.0.0", "2.0.0"}, versions); diff != "" {
		t.Errorf("versions mismatch (-want +got):\n%s", diff)
	}

	e, svc, _ = newEntity("")
	_, err = e.GetSchema(ctx, "")
	if !errors.Is(err, lightblue.ErrNoVersion) {
		t.Errorf("got %v, want ErrNoVersion", err)
	}
	if lberrors.Code(err) != lberrors.FailedPrecondition {
		t.Errorf("got code %v, want FailedPrecondition", lberrors.Code(err))
	}
	if n := len(svc.Calls()); n != 0 {
		t.Errorf("got %d calls, want 0", n)
	}
}

func TestEnvelopes(t *testing.T) {
	ctx := context.Background()
	from, maxResults := 10, 5
	for _, test := range []struct {
		desc    string
		version string
		call    func(*lightblue.Entity) (*driver.Response, error)
		wantOp  string
		want    string
	}{
		{
			desc:    "insert",
			version: "1.0.0",
			call: func(e *lightblue.Entity) (*driver.Response, error) {
				return e.InsertData(ctx, []any{map[string]any{"login": "bob"}})
			},
			wantOp: "Insert",
			want:   `{"objectType":"user","version":"1.0.0","projection":{"field":"*","include":true,"recursive":true},"data":[{"login":"bob"}]}`,
		},
		{
			desc: "insert without version",
			call: func(e *lightblue.Entity) (*driver.Response, error) {
				return e.InsertData(ctx, map[string]any{"login": "bob"})
			},
			wantOp: "Insert",
			want:   `{"objectType":"user","projection":{"field":"*","include":true,"recursive":true},"data":{"login":"bob"}}`,
		},
		{
			desc:    "delete all",
			version: "1.0.0",
			call:    func(e *lightblue.Entity) (*driver.Response, error) { return e.DeleteAll(ctx) },
			wantOp:  "Delete",
			want:    `{"objectType":"user","version":"1.0.0","query":{"field":"objectType","op":"=","rvalue":"user"}}`,
		},
		{
			desc: "delete item",
			call: func(e *lightblue.Entity) (*driver.Response, error) {
				return e.DeleteItem(ctx, map[string]any{"field": "login", "op": "=", "rvalue": "bob"})
			},
			wantOp: "Delete",
			want:   `{"objectType":"user","query":{"field":"login","op":"=","rvalue":"bob"}}`,
		},
		{
			desc: "update item",
			call: func(e *lightblue.Entity) (*driver.Response, error) {
				return e.UpdateItem(ctx,
					map[string]any{"field": "login", "op": "=", "rvalue": "bob"},
					map[string]any{"$set": map[string]any{"age": 3}})
			},
			wantOp: "Update",
			want:   `{"objectType":"user","query":{"field":"login","op":"=","rvalue":"bob"},"update":{"$set":{"age":3}}}`,
		},
		{
			desc: "find item with default projection",
			call: func(e *lightblue.Entity) (*driver.Response, error) {
				return e.FindItem(ctx, map[string]any{"field": "login", "op": "=", "rvalue": "bob"}, nil)
			},
			wantOp: "Find",
			want:   `{"objectType":"user","query":{"field":"login","op":"=","rvalue":"bob"},"projection":{"field":"*","include":true,"recursive":true}}`,
		},
		{
			desc: "find all with paging",
			call: func(e *lightblue.Entity) (*driver.Response, error) {
				return e.FindAll(ctx, &lightblue.FindOptions{
					Projection: []driver.Projection{{Field: "login", Include: true}},
					From:       &from,
					MaxResults: &maxResults,
				})
			},
			wantOp: "Find",
			want:   `{"objectType":"user","query":{"field":"objectType","op":"=","rvalue":"user"},"projection":[{"field":"login","include":true}],"from":10,"maxResults":5}`,
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			e, svc, _ := newEntity(test.version)
			if _, err := test.call(e); err != nil {
				t.Fatal(err)
			}
			calls := svc.Calls()
			if len(calls) != 1 {
				t.Fatalf("got %d calls, want 1", len(calls))
			}
			c := calls[0]
			if c.Op != test.wantOp || c.Entity != "user" || c.Version != test.version {
				t.Errorf("got call %s %s %q, want %s user %q", c.Op, c.Entity, c.Version, test.wantOp, test.version)
			}
			if c.Payload != test.want {
				t.Errorf("payload:\ngot  %s\nwant %s", c.Payload, test.want)
			}
		})
	}
}

func TestApplicationErrorPassesThrough(t *testing.T) {
	ctx := context.Background()
	e, svc, _ := newEntity("")
	svc.Push(nil)
	r, err := e.FindAll(ctx, nil)
	if r != nil || err != nil {
		t.Errorf("got (%v, %v), want (nil, nil)", r, err)
	}

	wantErr := errors.New("connection refused")
	svc.PushError(wantErr)
	if _, err := e.DeleteAll(ctx); !errors.Is(err, wantErr) {
		t.Errorf("got %v, want %v", err, wantErr)
	}
}
