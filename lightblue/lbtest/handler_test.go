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

package lbtest

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lightblue.dev/internal/lberr"
)

func TestHandler(t *testing.T) {
	for _, test := range []struct {
		desc         string
		method, path string
		body         string
		setup        func(*Service)
		wantStatus   int
	}{
		{"find", http.MethodPost, "/data/find/user/1.0.0", `{"objectType":"user"}`, nil, http.StatusOK},
		{"insert without version", http.MethodPut, "/data/insert/user", `{"objectType":"user"}`, nil, http.StatusOK},
		{"insert must be PUT", http.MethodPost, "/data/insert/user", `{}`, nil, http.StatusMethodNotAllowed},
		{"unknown op", http.MethodPost, "/data/save/user", `{}`, nil, http.StatusNotFound},
		{"bad body", http.MethodPost, "/data/find/user", `{`, nil, http.StatusBadRequest},
		{"application error", http.MethodPost, "/data/update/user", `{}`, func(s *Service) { s.Push(nil) }, http.StatusInternalServerError},
		{"not found", http.MethodPost, "/data/delete/user", `{}`, func(s *Service) {
			s.PushError(lberr.New(lberr.NotFound, errors.New("gone"), 1, "lbtest"))
		}, http.StatusNotFound},
		{"schema", http.MethodGet, "/metadata/user/1.0.0", "", func(s *Service) {
			s.SetSchema("user", "1.0.0", []byte(`{}`))
		}, http.StatusOK},
		{"missing schema", http.MethodGet, "/metadata/user/2.0.0", "", nil, http.StatusNotFound},
	} {
		t.Run(test.desc, func(t *testing.T) {
			svc := &Service{}
			if test.setup != nil {
				test.setup(svc)
			}
			req := httptest.NewRequest(test.method, test.path, strings.NewReader(test.body))
			w := httptest.NewRecorder()
			NewHandler(svc).ServeHTTP(w, req)
			if w.Code != test.wantStatus {
				t.Errorf("got status %d, want %d (body %q)", w.Code, test.wantStatus, w.Body.String())
			}
		})
	}
}
