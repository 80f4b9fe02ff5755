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
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	gax "github.com/googleapis/gax-go/v2"
	"lightblue.dev/internal/retry"
)

// RetryPolicy controls how the Service's transport retries a request.
// Retries happen below the Service: a retried request is still one call as
// far as logging and the returned result are concerned.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values below 1 mean a single attempt.
	MaxAttempts int
	// Initial is the pause before the second attempt.
	Initial time.Duration
	// Multiplier scales the pause after each attempt.
	Multiplier float64
	// Max caps the pause between attempts.
	Max time.Duration
	// Statuses are the HTTP status codes that are retried.
	Statuses []int
}

// DefaultRetryPolicy is used when Options.Retry is nil.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 5,
	Initial:     300 * time.Millisecond,
	Multiplier:  2,
	Max:         10 * time.Second,
	Statuses:    []int{http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout},
}

func (p *RetryPolicy) backoff() gax.Backoff {
	return gax.Backoff{Initial: p.Initial, Max: p.Max, Multiplier: p.Multiplier}
}

func (p *RetryPolicy) retryStatus(code int) bool {
	for _, s := range p.Statuses {
		if s == code {
			return true
		}
	}
	return false
}

// StatusError is returned when the service kept answering with a retryable
// status until the retry policy gave up, and when a schema fetch fails.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Attempts   int
	// Body is the start of the last response body.
	Body []byte
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.StatusCode)
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if len(e.Body) > 0 {
		msg += fmt.Sprintf(": %s", e.Body)
	}
	return msg
}

// maxErrorBody bounds how much of a failed response is kept in a StatusError.
const maxErrorBody = 512

func newStatusError(req *http.Request, resp *http.Response, attempts int) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: resp.StatusCode,
		Attempts:   attempts,
		Body:       body,
	}
}

// retryTransport retries requests that fail at the network level or that are
// answered with one of the policy's statuses.
type retryTransport struct {
	base   http.RoundTripper
	policy RetryPolicy
}

// permanentError marks a failure that must not be retried.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	maxAttempts := t.policy.MaxAttempts
	// A body that cannot be replayed gets exactly one attempt.
	if maxAttempts < 1 || (req.Body != nil && req.Body != http.NoBody && req.GetBody == nil) {
		maxAttempts = 1
	}
	var (
		resp    *http.Response
		attempt int
	)
	isRetryable := func(err error) bool {
		if attempt >= maxAttempts {
			return false
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return false
		}
		var se *StatusError
		if errors.As(err, &se) {
			return true
		}
		// Certificate problems do not go away on retry.
		var cve *tls.CertificateVerificationError
		var uae x509.UnknownAuthorityError
		if errors.As(err, &cve) || errors.As(err, &uae) {
			return false
		}
		var ne net.Error
		return errors.As(err, &ne) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
	}
	err := retry.Call(req.Context(), t.policy.backoff(), isRetryable, func() error {
		attempt++
		r := req
		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return &permanentError{err}
			}
			r = req.Clone(req.Context())
			r.Body = body
		}
		res, err := t.base.RoundTrip(r)
		if err != nil {
			return err
		}
		if t.policy.retryStatus(res.StatusCode) {
			se := newStatusError(req, res, attempt)
			res.Body.Close()
			return se
		}
		resp = res
		return nil
	})
	if err != nil {
		var perm *permanentError
		if errors.As(err, &perm) {
			return nil, perm.err
		}
		var cerr *retry.ContextError
		if errors.As(err, &cerr) && cerr.FuncErr == nil {
			return nil, cerr.CtxErr
		}
		return nil, err
	}
	return resp, nil
}
