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

// Package otel supports OpenTelemetry tracing and metrics for the Lightblue client.
package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"lightblue.dev/lberrors"
)

// Common attribute keys used across the Lightblue client.
var (
	MethodKey   = attribute.Key("lightblue.method")
	PackageKey  = attribute.Key("lightblue.package")
	ProviderKey = attribute.Key("lightblue.provider")
	EntityKey   = attribute.Key("lightblue.entity")
	StatusKey   = attribute.Key("lightblue.status")
	ErrorKey    = attribute.Key("lightblue.error")
)

// Tracer provides OpenTelemetry tracing for Lightblue client packages.
type Tracer struct {
	Package  string
	Provider string
}

// NewTracer creates a new Tracer for a package and optional provider.
func NewTracer(pkg string, provider ...string) *Tracer {
	providerName := ""
	if len(provider) > 0 && provider[0] != "" {
		providerName = provider[0]
	}
	return &Tracer{
		Package:  pkg,
		Provider: providerName,
	}
}

// Start creates and starts a new span and returns the updated context and span.
// Extra attributes are attached to the span in addition to the package, method
// and provider.
func (t *Tracer) Start(ctx context.Context, methodName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	fullName := t.Package + "." + methodName
	all := []attribute.KeyValue{
		PackageKey.String(t.Package),
		MethodKey.String(methodName),
	}
	if t.Provider != "" {
		all = append(all, ProviderKey.String(t.Provider))
	}
	all = append(all, attrs...)
	return otel.Tracer(t.Package).Start(ctx, fullName, trace.WithAttributes(all...))
}

// End completes a span with error information if applicable.
func (t *Tracer) End(span trace.Span, err error) {
	if err != nil {
		code := lberrors.Code(err)
		span.SetAttributes(
			ErrorKey.String(err.Error()),
			StatusKey.String(fmt.Sprint(code)),
		)
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
