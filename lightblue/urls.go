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

package lightblue

import (
	"context"
	"net/url"

	"lightblue.dev/internal/openurl"
)

// EntityURLOpener opens an entity based on a URL.
// The opener must not modify the URL argument. It must be safe to call from
// multiple goroutines.
//
// This interface is generally implemented by types in driver packages.
type EntityURLOpener interface {
	OpenEntityURL(ctx context.Context, u *url.URL) (*Entity, error)
}

// URLMux is a URL opener multiplexer. It matches the scheme of the URLs against
// a set of registered schemes and calls the opener that matches the URL's
// scheme.
//
// The zero value is a multiplexer with no registered scheme.
type URLMux struct {
	schemes openurl.SchemeMap[EntityURLOpener]
}

// EntitySchemes returns a sorted slice of the registered Entity schemes.
func (mux *URLMux) EntitySchemes() []string { return mux.schemes.Schemes() }

// ValidEntityScheme returns true iff scheme has been registered for Entities.
func (mux *URLMux) ValidEntityScheme(scheme string) bool { return mux.schemes.ValidScheme(scheme) }

// RegisterEntity registers the opener with the given scheme. If an opener
// already exists for the scheme, RegisterEntity panics.
func (mux *URLMux) RegisterEntity(scheme string, opener EntityURLOpener) {
	mux.schemes.Register("lightblue", "Entity", scheme, opener)
}

// OpenEntity calls OpenEntityURL with the URL parsed from urlstr.
// OpenEntity is safe to call from multiple goroutines.
func (mux *URLMux) OpenEntity(ctx context.Context, urlstr string) (*Entity, error) {
	opener, u, err := mux.schemes.FromString("Entity", urlstr)
	if err != nil {
		return nil, err
	}
	return opener.OpenEntityURL(ctx, u)
}

// OpenEntityURL dispatches the URL to the opener that is registered with the
// URL's scheme. OpenEntityURL is safe to call from multiple goroutines.
func (mux *URLMux) OpenEntityURL(ctx context.Context, u *url.URL) (*Entity, error) {
	opener, err := mux.schemes.FromURL("Entity", u)
	if err != nil {
		return nil, err
	}
	return opener.OpenEntityURL(ctx, u)
}

var defaultURLMux = new(URLMux)

// DefaultURLMux returns the URLMux used by OpenEntity.
//
// Driver packages can use this to register their EntityURLOpener on the mux.
func DefaultURLMux() *URLMux {
	return defaultURLMux
}

// OpenEntity opens the entity identified by the URL given.
// See the URLOpener documentation in driver subpackages for details
// on supported URL formats.
func OpenEntity(ctx context.Context, urlstr string) (*Entity, error) {
	return defaultURLMux.OpenEntity(ctx, urlstr)
}
