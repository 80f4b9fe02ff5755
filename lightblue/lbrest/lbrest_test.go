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

package lbrest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"lightblue.dev/internal/testing/oteltest"
	"lightblue.dev/internal/useragent"
	"lightblue.dev/lberrors"
	"lightblue.dev/lightblue/driver"
	"lightblue.dev/log"
)

// served is one request seen by a fakeServer.
type served struct {
	Method string
	Path   string
	Body   string
}

// fakeServer answers with the queued status/body pairs in order, then with
// 200 and an empty COMPLETE response.
type fakeServer struct {
	*httptest.Server
	mu      sync.Mutex
	seen    []served
	replies []reply
	headers []http.Header
}

type reply struct {
	status int
	body   string
}

func newFakeServer(t *testing.T, replies ...reply) *fakeServer {
	t.Helper()
	fs := &fakeServer{replies: replies}
	fs.Server = httptest.NewServer(http.HandlerFunc(fs.serve))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	fs.mu.Lock()
	fs.seen = append(fs.seen, served{Method: r.Method, Path: r.URL.EscapedPath(), Body: string(body)})
	fs.headers = append(fs.headers, r.Header.Clone())
	rep := reply{http.StatusOK, `{"status":"COMPLETE","matchCount":0,"modifiedCount":0,"processed":[]}`}
	if len(fs.replies) > 0 {
		rep, fs.replies = fs.replies[0], fs.replies[1:]
	}
	fs.mu.Unlock()
	w.WriteHeader(rep.status)
	io.WriteString(w, rep.body)
}

func (fs *fakeServer) requests() []served {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]served(nil), fs.seen...)
}

var fastRetry = &RetryPolicy{
	MaxAttempts: 3,
	Initial:     time.Millisecond,
	Multiplier:  1,
	Max:         time.Millisecond,
	Statuses:    DefaultRetryPolicy.Statuses,
}

func newTestService(t *testing.T, fs *fakeServer, opts *Options) (*Service, *log.Recorder) {
	t.Helper()
	rec := &log.Recorder{}
	if opts == nil {
		opts = &Options{}
	}
	opts.Observer = rec
	if opts.Retry == nil {
		opts.Retry = fastRetry
	}
	s, err := NewService(fs.URL+"/rest/data/", fs.URL+"/rest/metadata//", opts)
	if err != nil {
		t.Fatal(err)
	}
	return s, rec
}

func TestURLShapes(t *testing.T) {
	ctx := context.Background()
	req := &driver.Request{ObjectType: "user"}
	for _, test := range []struct {
		desc       string
		call       func(*Service, string) error
		wantMethod string
		wantPath   string
	}{
		{"insert", func(s *Service, v string) error { _, err := s.Insert(ctx, "user", v, req); return err }, "PUT", "/rest/data/insert/user"},
		{"delete", func(s *Service, v string) error { _, err := s.Delete(ctx, "user", v, req); return err }, "POST", "/rest/data/delete/user"},
		{"update", func(s *Service, v string) error { _, err := s.Update(ctx, "user", v, req); return err }, "POST", "/rest/data/update/user"},
		{"find", func(s *Service, v string) error { _, err := s.Find(ctx, "user", v, req); return err }, "POST", "/rest/data/find/user"},
	} {
		t.Run(test.desc, func(t *testing.T) {
			fs := newFakeServer(t)
			s, _ := newTestService(t, fs, nil)
			if err := test.call(s, "1.0.0"); err != nil {
				t.Fatal(err)
			}
			if err := test.call(s, ""); err != nil {
				t.Fatal(err)
			}
			want := []served{
				{Method: test.wantMethod, Path: test.wantPath + "/1.0.0", Body: `{"objectType":"user"}`},
				{Method: test.wantMethod, Path: test.wantPath, Body: `{"objectType":"user"}`},
			}
			if diff := cmp.Diff(want, fs.requests()); diff != "" {
				t.Errorf("requests mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestURLEscaping(t *testing.T) {
	s, err := NewService("http://h/data/", "http://h/meta", nil)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := s.DataURL("find", "a b", "1/0"), "http://h/data/find/a%20b/1%2F0"; got != want {
		t.Errorf("DataURL: got %q, want %q", got, want)
	}
	if got, want := s.MetadataURL("user", "1.0.0"), "http://h/meta/user/1.0.0"; got != want {
		t.Errorf("MetadataURL: got %q, want %q", got, want)
	}
}

func TestNewServiceErrors(t *testing.T) {
	for _, test := range []struct {
		desc       string
		data, meta string
		opts       *Options
	}{
		{"no data URL", "", "http://m", nil},
		{"no metadata URL", "http://d", "", nil},
		{"missing certificate", "http://d", "http://m", &Options{CertFile: "/does/not/exist.pem"}},
	} {
		t.Run(test.desc, func(t *testing.T) {
			_, err := NewService(test.data, test.meta, test.opts)
			if lberrors.Code(err) != lberrors.InvalidArgument {
				t.Errorf("got %v, want InvalidArgument", err)
			}
		})
	}
}

func TestInsert(t *testing.T) {
	ctx := context.Background()
	payload := &driver.Request{ObjectType: "user", Data: []any{map[string]any{"login": "bob"}}}
	const okBody = `{"status":"COMPLETE","matchCount":1,"modifiedCount":1,"processed":[{"login":"bob"}]}`

	t.Run("200", func(t *testing.T) {
		fs := newFakeServer(t, reply{http.StatusOK, okBody})
		s, rec := newTestService(t, fs, nil)
		r, err := s.Insert(ctx, "user", "", payload)
		if err != nil {
			t.Fatal(err)
		}
		want := &driver.Response{
			Status:        driver.StatusComplete,
			MatchCount:    1,
			ModifiedCount: 1,
			Processed:     []any{map[string]any{"login": "bob"}},
		}
		if diff := cmp.Diff(want, r, cmpopts.IgnoreFields(driver.Response{}, "Body")); diff != "" {
			t.Errorf("response mismatch (-want +got):\n%s", diff)
		}
		for _, e := range rec.Events() {
			if e.Level >= slog.LevelError {
				t.Errorf("unexpected error event %+v", e)
			}
		}
	})

	t.Run("500", func(t *testing.T) {
		fs := newFakeServer(t, reply{http.StatusInternalServerError, "oops"})
		s, rec := newTestService(t, fs, &Options{Retry: &RetryPolicy{MaxAttempts: 1}})
		r, err := s.Insert(ctx, "user", "", payload)
		if r != nil {
			t.Errorf("got response %+v, want nil", r)
		}
		// With retries disabled the 500 reaches the client as an
		// application error.
		if err != nil {
			t.Fatalf("got error %v, want nil", err)
		}
		failed := errorEvents(rec)
		if len(failed) != 1 {
			t.Fatalf("got %d error events, want 1", len(failed))
		}
		e := failed[0]
		wantPayload, _ := json.Marshal(payload)
		if string(e.Payload) != string(wantPayload) {
			t.Errorf("logged payload %s, want %s", e.Payload, wantPayload)
		}
		if e.Record == nil || e.Record.StatusCode != 500 || e.Record.TextResponse != "oops" {
			t.Errorf("logged record %+v", e.Record)
		}
		if e.Op != "Insert" || e.Method != "PUT" || e.Entity != "user" {
			t.Errorf("logged event %+v", e)
		}
	})

	t.Run("200 with non-JSON body", func(t *testing.T) {
		fs := newFakeServer(t, reply{http.StatusOK, "<html>"})
		s, rec := newTestService(t, fs, nil)
		r, err := s.Insert(ctx, "user", "", payload)
		if r != nil || err != nil {
			t.Errorf("got (%v, %v), want (nil, nil)", r, err)
		}
		if len(errorEvents(rec)) != 1 {
			t.Error("failure was not logged")
		}
	})

	t.Run("semantic error is returned", func(t *testing.T) {
		body := `{"status":"FAILED","matchCount":0,"modifiedCount":0,"dataErrors":[{"id":1}]}`
		fs := newFakeServer(t, reply{http.StatusOK, body})
		s, _ := newTestService(t, fs, nil)
		r, err := s.Insert(ctx, "user", "", payload)
		if err != nil {
			t.Fatal(err)
		}
		if r == nil || r.Status != driver.StatusFailed || len(r.DataErrors) != 1 {
			t.Errorf("got %+v, want the FAILED response", r)
		}
	})
}

func errorEvents(rec *log.Recorder) []log.Event {
	var es []log.Event
	for _, e := range rec.Events() {
		if e.Level >= slog.LevelError {
			es = append(es, e)
		}
	}
	return es
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("recovers", func(t *testing.T) {
		fs := newFakeServer(t,
			reply{http.StatusBadGateway, ""},
			reply{http.StatusInternalServerError, ""},
			reply{http.StatusOK, `{"status":"COMPLETE","matchCount":1,"modifiedCount":0,"processed":[{}]}`},
		)
		s, rec := newTestService(t, fs, nil)
		r, err := s.Find(ctx, "user", "", &driver.Request{ObjectType: "user"})
		if err != nil {
			t.Fatal(err)
		}
		if r.MatchCount != 1 {
			t.Errorf("got %+v", r)
		}
		reqs := fs.requests()
		if len(reqs) != 3 {
			t.Fatalf("got %d requests, want 3", len(reqs))
		}
		for _, req := range reqs {
			if req.Body != `{"objectType":"user"}` {
				t.Errorf("retried body %q", req.Body)
			}
		}
		if len(errorEvents(rec)) != 0 {
			t.Error("recovered call logged an error")
		}
		// All attempts carry the same request ID.
		ids := map[string]bool{}
		for _, h := range fs.headers {
			ids[h.Get(useragent.RequestIDHeader)] = true
		}
		if len(ids) != 1 {
			t.Errorf("got request IDs %v, want one", ids)
		}
	})

	t.Run("gives up", func(t *testing.T) {
		fs := newFakeServer(t,
			reply{http.StatusGatewayTimeout, ""},
			reply{http.StatusGatewayTimeout, ""},
			reply{http.StatusGatewayTimeout, "still down"},
		)
		s, rec := newTestService(t, fs, nil)
		r, err := s.Find(ctx, "user", "", &driver.Request{ObjectType: "user"})
		if r != nil {
			t.Errorf("got response %+v, want nil", r)
		}
		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("got %v, want a *StatusError", err)
		}
		if se.StatusCode != http.StatusGatewayTimeout || se.Attempts != 3 || string(se.Body) != "still down" {
			t.Errorf("got %+v", se)
		}
		if lberrors.Code(err) != lberrors.DeadlineExceeded {
			t.Errorf("got code %v, want DeadlineExceeded", lberrors.Code(err))
		}
		if n := len(fs.requests()); n != 3 {
			t.Errorf("got %d requests, want 3", n)
		}
		failed := errorEvents(rec)
		if len(failed) != 1 {
			t.Fatalf("got %d error events, want 1", len(failed))
		}
		want := &log.ResponseRecord{StatusCode: http.StatusGatewayTimeout, TextResponse: "still down"}
		if diff := cmp.Diff(want, failed[0].Record, cmpopts.IgnoreFields(log.ResponseRecord{}, "Elapsed")); diff != "" {
			t.Errorf("logged record mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("not retried", func(t *testing.T) {
		fs := newFakeServer(t, reply{http.StatusServiceUnavailable, ""})
		s, _ := newTestService(t, fs, nil)
		r, err := s.Find(ctx, "user", "", &driver.Request{ObjectType: "user"})
		if r != nil || err != nil {
			t.Errorf("got (%v, %v), want (nil, nil)", r, err)
		}
		if n := len(fs.requests()); n != 1 {
			t.Errorf("got %d requests, want 1", n)
		}
	})

	t.Run("canceled", func(t *testing.T) {
		fs := newFakeServer(t)
		s, _ := newTestService(t, fs, nil)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.Find(cctx, "user", "", &driver.Request{ObjectType: "user"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, want context.Canceled", err)
		}
		if lberrors.Code(err) != lberrors.Canceled {
			t.Errorf("got code %v, want Canceled", lberrors.Code(err))
		}
	})
}

func TestCustomHTTPClient(t *testing.T) {
	fs := newFakeServer(t, reply{http.StatusInternalServerError, ""})
	s, rec := newTestService(t, fs, &Options{HTTPClient: fs.Client(), UserAgent: "tests"})
	r, err := s.Find(context.Background(), "user", "1", &driver.Request{ObjectType: "user"})
	if r != nil || err != nil {
		t.Errorf("got (%v, %v), want (nil, nil)", r, err)
	}
	if n := len(fs.requests()); n != 1 {
		t.Errorf("custom client retried: got %d requests, want 1", n)
	}
	h := fs.headers[0]
	if ua := h.Get("User-Agent"); !strings.Contains(ua, useragent.ClientUserAgent+" tests") {
		t.Errorf("User-Agent %q", ua)
	}
	id := h.Get(useragent.RequestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("request ID %q: %v", id, err)
	}
	events := rec.Events()
	if len(events) == 0 || events[len(events)-1].RequestID != id {
		t.Errorf("events do not carry request ID %q", id)
	}
}

func TestGetSchema(t *testing.T) {
	ctx := context.Background()
	fs := newFakeServer(t,
		reply{http.StatusOK, `{"entityInfo":{"name":"user"}}`},
		reply{http.StatusNotFound, "no such entity"},
		reply{http.StatusOK, "not json"},
	)
	s, _ := newTestService(t, fs, nil)

	got, err := s.GetSchema(ctx, "user", "1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"entityInfo":{"name":"user"}}` {
		t.Errorf("got %s", got)
	}

	_, err = s.GetSchema(ctx, "user", "9.9.9")
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusNotFound {
		t.Errorf("got %v, want a 404 *StatusError", err)
	}
	if lberrors.Code(err) != lberrors.NotFound {
		t.Errorf("got code %v, want NotFound", lberrors.Code(err))
	}

	if _, err := s.GetSchema(ctx, "user", "1.0.0"); lberrors.Code(err) != lberrors.Internal {
		t.Errorf("got %v, want Internal", err)
	}

	want := []served{
		{Method: "GET", Path: "/rest/metadata/user/1.0.0"},
		{Method: "GET", Path: "/rest/metadata/user/9.9.9"},
		{Method: "GET", Path: "/rest/metadata/user/1.0.0"},
	}
	if diff := cmp.Diff(want, fs.requests()); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestLogResponse(t *testing.T) {
	for _, test := range []struct {
		desc   string
		status int
		body   string
		want   *log.ResponseRecord
	}{
		{
			desc:   "not JSON",
			status: 502,
			body:   "Bad Gateway",
			want:   &log.ResponseRecord{StatusCode: 502, Elapsed: time.Second, TextResponse: "Bad Gateway"},
		},
		{
			desc:   "complete",
			status: 200,
			body:   `{"status":"COMPLETE","matchCount":3,"modifiedCount":1,"dataErrors":[{"x":1}],"processed":[]}`,
			want: &log.ResponseRecord{
				StatusCode: 200, Elapsed: time.Second, JSON: true,
				Status: "COMPLETE", MatchCount: 3, ModifiedCount: 1,
			},
		},
		{
			desc:   "not complete",
			status: 200,
			body:   `{"status":"ERROR","matchCount":0,"modifiedCount":0,"dataErrors":[{"x":1}],"errors":[{"errorCode":"bad"}]}`,
			want: &log.ResponseRecord{
				StatusCode: 200, Elapsed: time.Second, JSON: true,
				Status:     "ERROR",
				DataErrors: []any{map[string]any{"x": 1.0}},
				Errors:     []any{map[string]any{"errorCode": "bad"}},
			},
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			got := LogResponse(test.status, []byte(test.body), time.Second)
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTelemetry(t *testing.T) {
	exp := oteltest.NewExporter(t)
	fs := newFakeServer(t, reply{http.StatusNotFound, ""})
	s, _ := newTestService(t, fs, nil)
	ctx := context.Background()
	s.Find(ctx, "user", "", &driver.Request{ObjectType: "user"})
	s.Insert(ctx, "user", "", &driver.Request{ObjectType: "user"})

	if diff := cmp.Diff([]string{pkgName + ".Find", pkgName + ".Insert"}, exp.SpanNames()); diff != "" {
		t.Errorf("spans mismatch (-want +got):\n%s", diff)
	}
	if got := oteltest.Attr(exp.Spans()[0], "lightblue.entity").AsString(); got != "user" {
		t.Errorf("entity attribute: got %q", got)
	}
	if got := exp.Count(ctx, pkgName+".completed_calls"); got != 2 {
		t.Errorf("completed calls: got %d, want 2", got)
	}
}
