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
	"log/slog"
)

type slogObserver struct {
	l *slog.Logger
}

// NewSlogObserver returns an Observer that writes events to l.
// If l is nil, slog.Default() is consulted on every event.
func NewSlogObserver(l *slog.Logger) Observer {
	return &slogObserver{l: l}
}

func (o *slogObserver) logger() *slog.Logger {
	if o.l != nil {
		return o.l
	}
	return slog.Default()
}

func (o *slogObserver) Record(ctx context.Context, e Event) {
	l := o.logger()
	if !l.Enabled(ctx, e.Level) {
		return
	}
	attrs := make([]slog.Attr, 0, 12)
	for _, kv := range []struct{ k, v string }{
		{"op", e.Op},
		{"entity", e.Entity},
		{"version", e.Version},
		{"method", e.Method},
		{"url", e.URL},
		{"requestID", e.RequestID},
	} {
		if kv.v != "" {
			attrs = append(attrs, slog.String(kv.k, kv.v))
		}
	}
	if e.Record != nil {
		attrs = append(attrs, slog.Attr{Key: "response", Value: slog.GroupValue(e.Record.Attrs()...)})
	}
	if e.Payload != nil {
		attrs = append(attrs, slog.String("payload", string(e.Payload)))
	}
	if e.Detail != nil {
		attrs = append(attrs, slog.Any("detail", e.Detail))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}
	l.LogAttrs(ctx, e.Level, e.Message, attrs...)
}
