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

	"lightblue.dev/internal/lberr"
	"lightblue.dev/lightblue/driver"
)

// PageFunc fetches one page of at most maxResults documents starting at from.
type PageFunc func(ctx context.Context, from, maxResults int) (*driver.Response, error)

// FindPaginated calls find with offsets 0, pageSize, 2*pageSize and so on,
// one page at a time, and returns the concatenated processed documents once a
// page comes back empty.
//
// If a page fails CheckResponse, the pages collected so far are discarded and
// FindPaginated returns a nil slice and an error wrapping ErrInvalidPage.
// When nothing matches, the result is an empty, non-nil slice.
func (e *Entity) FindPaginated(ctx context.Context, pageSize int, find PageFunc) ([]any, error) {
	if pageSize <= 0 {
		return nil, lberr.Newf(lberr.InvalidArgument, nil, "lightblue: page size must be positive, got %d", pageSize)
	}
	result := []any{}
	for from := 0; ; from += pageSize {
		r, err := find(ctx, from, pageSize)
		if err != nil {
			return nil, err
		}
		if !e.CheckResponse(ctx, r) {
			return nil, lberr.Newf(lberr.Internal, ErrInvalidPage, "lightblue: page at offset %d", from)
		}
		if len(r.Processed) == 0 {
			return result, nil
		}
		result = append(result, r.Processed...)
	}
}

// FindAllPaginated returns every document of the entity, fetched pageSize at a
// time. A nil projection returns whole documents.
func (e *Entity) FindAllPaginated(ctx context.Context, pageSize int, projection any) ([]any, error) {
	return e.FindPaginated(ctx, pageSize, func(ctx context.Context, from, maxResults int) (*driver.Response, error) {
		return e.FindAll(ctx, &FindOptions{Projection: projection, From: &from, MaxResults: &maxResults})
	})
}

// FindItemPaginated returns the documents matching query, fetched pageSize at a
// time.
func (e *Entity) FindItemPaginated(ctx context.Context, pageSize int, query, projection any) ([]any, error) {
	return e.FindPaginated(ctx, pageSize, func(ctx context.Context, from, maxResults int) (*driver.Response, error) {
		return e.FindItem(ctx, query, &FindOptions{Projection: projection, From: &from, MaxResults: &maxResults})
	})
}
