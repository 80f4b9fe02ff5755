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

// Package lbrest provides a driver.Service that talks to the Lightblue data
// and metadata services over HTTP.
//
// Every call is retried by the Service's transport according to a
// RetryPolicy, runs inside an OpenTelemetry span, and is reported to a
// log.Observer together with a record built by LogResponse. A data call that
// is answered with anything but HTTP 200 and a JSON object returns a nil
// *driver.Response and a nil error; the observer receives the failure along
// with the request payload.
//
// # URLs
//
// For lightblue.OpenEntity, lbrest registers for the scheme "lightblue".
// The default URL opener reads its configuration from the environment; see
// ConfigFromEnv. To customize the URL opener, or for more details on the URL
// format, see URLOpener.
package lbrest // import "lightblue.dev/lightblue/lbrest"

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/google/wire"
	"lightblue.dev/internal/lberr"
	"lightblue.dev/internal/otel"
	"lightblue.dev/internal/useragent"
	"lightblue.dev/lberrors"
	"lightblue.dev/lightblue/driver"
	"lightblue.dev/log"
)

const pkgName = "lightblue.dev/lightblue/lbrest"

var tracer = otel.NewTracer(pkgName, pkgName)

// Set holds Wire providers for this package.
var Set = wire.NewSet(
	OpenService,
	wire.Bind(new(driver.Service), new(*Service)),
	wire.Struct(new(URLOpener), "Service"),
)

// Options configures a Service. The zero value verifies TLS certificates,
// retries with DefaultRetryPolicy and logs through log.Default.
type Options struct {
	// CertFile and KeyFile name a PEM client certificate and its key.
	// If KeyFile is empty, the key is read from CertFile.
	CertFile string
	KeyFile  string
	// InsecureSkipVerify disables server certificate verification.
	InsecureSkipVerify bool

	// HTTPClient, if set, is used as-is: the retry policy and TLS settings
	// above are not applied to it.
	HTTPClient *http.Client

	// Observer receives an Event for every call.
	Observer log.Observer
	// Retry overrides DefaultRetryPolicy.
	Retry *RetryPolicy
	// UserAgent is appended to the User-Agent header.
	UserAgent string
}

// Config is everything needed to construct a Service.
type Config struct {
	DataURL     string
	MetadataURL string
	Options     Options
}

// OpenService returns a Service configured by cfg.
func OpenService(cfg *Config) (*Service, error) {
	return NewService(cfg.DataURL, cfg.MetadataURL, &cfg.Options)
}

// Service is a driver.Service backed by the Lightblue REST API.
// It is safe for concurrent use when its HTTP client is.
type Service struct {
	dataURL     string
	metadataURL string
	client      *http.Client
	obs         log.Observer
	metrics     *otel.MetricSet
}

var _ driver.Service = (*Service)(nil)

// NewService returns a Service for the given data and metadata base URLs.
func NewService(dataURL, metadataURL string, opts *Options) (*Service, error) {
	if opts == nil {
		opts = &Options{}
	}
	if dataURL == "" {
		return nil, lberr.Newf(lberr.InvalidArgument, nil, "lbrest: empty data URL")
	}
	if metadataURL == "" {
		return nil, lberr.Newf(lberr.InvalidArgument, nil, "lbrest: empty metadata URL")
	}
	client := opts.HTTPClient
	if client == nil {
		var err error
		if client, err = newHTTPClient(opts); err != nil {
			return nil, err
		}
	}
	obs := opts.Observer
	if obs == nil {
		obs = log.Default()
	}
	// A nil MetricSet records nothing, so a meter failure is not fatal.
	ms, _ := otel.NewMetricSet(pkgName)
	return &Service{
		dataURL:     strings.TrimRight(dataURL, "/"),
		metadataURL: strings.TrimRight(metadataURL, "/"),
		client:      useragent.HTTPClient(client, opts.UserAgent),
		obs:         obs,
		metrics:     ms,
	}, nil
}

func newHTTPClient(opts *Options) (*http.Client, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: opts.InsecureSkipVerify}
	if opts.CertFile != "" {
		keyFile := opts.KeyFile
		if keyFile == "" {
			keyFile = opts.CertFile
		}
		cert, err := tls.LoadX509KeyPair(opts.CertFile, keyFile)
		if err != nil {
			return nil, lberr.Newf(lberr.InvalidArgument, err, "lbrest: loading client certificate")
		}
		tr.TLSClientConfig.Certificates = []tls.Certificate{cert}
	}
	policy := DefaultRetryPolicy
	if opts.Retry != nil {
		policy = *opts.Retry
	}
	return &http.Client{Transport: &retryTransport{base: tr, policy: policy}}, nil
}

// DataURL returns the data service URL for op, entity and version.
// The version segment is omitted when version is empty.
func (s *Service) DataURL(op, entity, version string) string {
	return joinURL(s.dataURL, op, entity, version)
}

// MetadataURL returns the metadata service URL for entity and version.
func (s *Service) MetadataURL(entity, version string) string {
	return joinURL(s.metadataURL, entity, version)
}

func joinURL(base string, segments ...string) string {
	var b strings.Builder
	b.WriteString(base)
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(url.PathEscape(seg))
	}
	return b.String()
}

// GetSchema implements driver.Service.GetSchema.
func (s *Service) GetSchema(ctx context.Context, entity, version string) (_ json.RawMessage, err error) {
	const op = "GetSchema"
	u := s.MetadataURL(entity, version)
	ctx, span := tracer.Start(ctx, op, otel.EntityKey.String(entity))
	start := time.Now()
	status := ""
	defer func() {
		s.metrics.Record(ctx, op, pkgName, status, time.Since(start))
		tracer.End(span, err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, lberr.Newf(lberr.InvalidArgument, err, "lbrest: %s", op)
	}
	req.Header.Set("Accept", "application/json")
	reqID := setRequestID(req)
	ev := log.Event{Op: op, Entity: entity, Version: version, Method: req.Method, URL: u, RequestID: reqID}
	s.record(ctx, ev, slog.LevelDebug, "request")

	resp, err := s.client.Do(req)
	if err != nil {
		err = wrapError(op, err)
		status = statusOf(0, err)
		ev.Err = err
		ev.Record = statusRecord(err, time.Since(start))
		s.record(ctx, ev, slog.LevelError, "request failed")
		return nil, err
	}
	defer resp.Body.Close()
	status = statusOf(resp.StatusCode, nil)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := newStatusError(req, resp, 1)
		err = lberr.New(lberr.HTTPCode(resp.StatusCode), se, 1, "lbrest: "+op)
		ev.Err = err
		ev.Record = statusRecord(err, time.Since(start))
		s.record(ctx, ev, slog.LevelError, "schema fetch failed")
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapError(op, err)
	}
	if !json.Valid(body) {
		err = lberr.Newf(lberr.Internal, nil, "lbrest: %s: response is not JSON", op)
		ev.Err = err
		s.record(ctx, ev, slog.LevelError, "schema fetch failed")
		return nil, err
	}
	ev.Record = &log.ResponseRecord{StatusCode: resp.StatusCode, Elapsed: time.Since(start), JSON: true}
	s.record(ctx, ev, slog.LevelDebug, "schema fetched")
	return json.RawMessage(body), nil
}

// Insert implements driver.Service.Insert.
func (s *Service) Insert(ctx context.Context, entity, version string, req *driver.Request) (*driver.Response, error) {
	return s.do(ctx, "Insert", http.MethodPut, s.DataURL("insert", entity, version), entity, version, req)
}

// Delete implements driver.Service.Delete.
func (s *Service) Delete(ctx context.Context, entity, version string, req *driver.Request) (*driver.Response, error) {
	return s.do(ctx, "Delete", http.MethodPost, s.DataURL("delete", entity, version), entity, version, req)
}

// Update implements driver.Service.Update.
func (s *Service) Update(ctx context.Context, entity, version string, req *driver.Request) (*driver.Response, error) {
	return s.do(ctx, "Update", http.MethodPost, s.DataURL("update", entity, version), entity, version, req)
}

// Find implements driver.Service.Find.
func (s *Service) Find(ctx context.Context, entity, version string, req *driver.Request) (*driver.Response, error) {
	return s.do(ctx, "Find", http.MethodPost, s.DataURL("find", entity, version), entity, version, req)
}

func (s *Service) do(ctx context.Context, op, method, u, entity, version string, dreq *driver.Request) (_ *driver.Response, err error) {
	ctx, span := tracer.Start(ctx, op, otel.EntityKey.String(entity))
	start := time.Now()
	status := ""
	defer func() {
		s.metrics.Record(ctx, op, pkgName, status, time.Since(start))
		tracer.End(span, err)
	}()

	payload, err := json.Marshal(dreq)
	if err != nil {
		return nil, lberr.Newf(lberr.InvalidArgument, err, "lbrest: %s: encoding request", op)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(payload))
	if err != nil {
		return nil, lberr.Newf(lberr.InvalidArgument, err, "lbrest: %s", op)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	reqID := setRequestID(req)
	ev := log.Event{Op: op, Entity: entity, Version: version, Method: method, URL: u, RequestID: reqID}
	s.record(ctx, ev, slog.LevelDebug, "request")

	resp, err := s.client.Do(req)
	if err != nil {
		err = wrapError(op, err)
		status = statusOf(0, err)
		ev.Err, ev.Payload = err, payload
		ev.Record = statusRecord(err, time.Since(start))
		s.record(ctx, ev, slog.LevelError, op+" failed")
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		err = wrapError(op, err)
		status = statusOf(0, err)
		ev.Err, ev.Payload = err, payload
		s.record(ctx, ev, slog.LevelError, op+" failed")
		return nil, err
	}
	status = statusOf(resp.StatusCode, nil)
	ev.Record = LogResponse(resp.StatusCode, body, time.Since(start))

	var parsed *driver.Response
	if resp.StatusCode == http.StatusOK {
		parsed, err = driver.ParseResponse(body)
		if err != nil {
			ev.Err = err
			err = nil
		}
	}
	if parsed == nil {
		ev.Payload = payload
		s.record(ctx, ev, slog.LevelError, op+" failed")
		return nil, nil
	}
	s.record(ctx, ev, slog.LevelDebug, op)
	return parsed, nil
}

func (s *Service) record(ctx context.Context, ev log.Event, level slog.Level, msg string) {
	ev.Time = time.Now()
	ev.Level = level
	ev.Message = msg
	s.obs.Record(ctx, ev)
}

func setRequestID(req *http.Request) string {
	id := uuid.NewString()
	req.Header.Set(useragent.RequestIDHeader, id)
	return id
}

// statusRecord returns the response record for a call that failed with a
// StatusError, or nil if no response was received.
func statusRecord(err error, elapsed time.Duration) *log.ResponseRecord {
	var se *StatusError
	if !errors.As(err, &se) {
		return nil
	}
	return LogResponse(se.StatusCode, se.Body, elapsed)
}

// statusOf labels a call for metrics: the HTTP status class when a response
// arrived, otherwise the error code.
func statusOf(code int, err error) string {
	if code > 0 {
		return fmt.Sprintf("%dxx", code/100)
	}
	return lberrors.Code(err).String()
}

// wrapError converts a transport failure into an *lberr.Error, leaving
// context errors alone.
func wrapError(op string, err error) error {
	if lberr.DoNotWrap(err) {
		var ue *url.Error
		if errors.As(err, &ue) {
			return ue.Err
		}
		return err
	}
	code := lberr.Unavailable
	var se *StatusError
	if errors.As(err, &se) {
		code = lberr.HTTPCode(se.StatusCode)
	}
	return lberr.New(code, err, 2, "lbrest: "+op)
}
