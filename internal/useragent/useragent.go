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

// Package useragent sets the User-Agent and request ID headers sent with
// every Lightblue request.
package useragent // import "lightblue.dev/internal/useragent"

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// ClientUserAgent is the User-Agent product token for this client.
const ClientUserAgent = "lightblue-go/0.1"

// RequestIDHeader carries a fresh identifier for each logical request.
const RequestIDHeader = "X-Request-Id"

// Transport wraps an http.RoundTripper, adding a User-Agent header and, if
// missing, a request ID to each request.
type Transport struct {
	// Base is the underlying transport. If nil, http.DefaultTransport is used.
	Base http.RoundTripper
	// Suffix is appended after ClientUserAgent, e.g. an application name.
	Suffix string
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid mutating it.
	newReq := req.Clone(req.Context())
	newReq.Header.Set("User-Agent", UserAgent(req.UserAgent(), t.Suffix))
	if newReq.Header.Get(RequestIDHeader) == "" {
		newReq.Header.Set(RequestIDHeader, uuid.NewString())
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(newReq)
}

// UserAgent joins the non-empty parts around ClientUserAgent.
func UserAgent(prefix, suffix string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{prefix, ClientUserAgent, suffix} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// HTTPClient returns a shallow copy of client whose transport goes through a
// Transport with the given suffix.
func HTTPClient(client *http.Client, suffix string) *http.Client {
	c := *client
	c.Transport = &Transport{Base: c.Transport, Suffix: suffix}
	return &c
}
