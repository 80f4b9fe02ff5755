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

package log

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	otellog "go.opentelemetry.io/otel/log"
)

type otelObserver struct {
	l otellog.Logger
}

// NewOTelObserver returns an Observer that emits events as OpenTelemetry
// log records through l.
func NewOTelObserver(l otellog.Logger) Observer {
	return &otelObserver{l: l}
}

func severity(l slog.Level) otellog.Severity {
	switch {
	case l < slog.LevelInfo:
		return otellog.SeverityDebug
	case l < slog.LevelWarn:
		return otellog.SeverityInfo
	case l < slog.LevelError:
		return otellog.SeverityWarn
	default:
		return otellog.SeverityError
	}
}

func (o *otelObserver) Record(ctx context.Context, e Event) {
	var r otellog.Record
	ts := e.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	r.SetTimestamp(ts)
	r.SetSeverity(severity(e.Level))
	r.SetSeverityText(e.Level.String())
	r.SetBody(otellog.StringValue(e.Message))
	r.AddAttributes(eventAttributes(e)...)
	o.l.Emit(ctx, r)
}

func eventAttributes(e Event) []otellog.KeyValue {
	var kvs []otellog.KeyValue
	for _, kv := range []struct{ k, v string }{
		{"op", e.Op},
		{"entity", e.Entity},
		{"version", e.Version},
		{"method", e.Method},
		{"url", e.URL},
		{"requestID", e.RequestID},
	} {
		if kv.v != "" {
			kvs = append(kvs, otellog.String(kv.k, kv.v))
		}
	}
	if rec := e.Record; rec != nil {
		var fields []otellog.KeyValue
		for _, a := range rec.Attrs() {
			fields = append(fields, otellog.String(a.Key, a.Value.String()))
		}
		kvs = append(kvs, otellog.Map("response", fields...))
	}
	if e.Payload != nil {
		kvs = append(kvs, otellog.String("payload", string(e.Payload)))
	}
	if e.Detail != nil {
		kvs = append(kvs, otellog.String("detail", fmt.Sprint(e.Detail)))
	}
	if e.Err != nil {
		kvs = append(kvs, otellog.String("error", e.Err.Error()))
	}
	return kvs
}
