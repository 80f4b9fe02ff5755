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

// Package lberrors provides support for getting error codes from
// errors returned by Lightblue client APIs.
package lberrors

import (
	"context"

	"golang.org/x/xerrors"
	"lightblue.dev/internal/lberr"
)

// An ErrorCode describes the error's category. Programs should act upon an error's
// code, not its message.
type ErrorCode = lberr.ErrorCode

const (
	// Returned by the Code function on a nil error. It is not a valid
	// code for an error.
	OK ErrorCode = lberr.OK

	// The error could not be categorized.
	Unknown ErrorCode = lberr.Unknown

	// The resource was not found.
	NotFound ErrorCode = lberr.NotFound

	// A value given to a Lightblue client API is incorrect. Update or delete
	// without a query is reported with this code.
	InvalidArgument ErrorCode = lberr.InvalidArgument

	// The system was in the wrong state, such as re-executing a locked query
	// or fetching a schema with no version known.
	FailedPrecondition ErrorCode = lberr.FailedPrecondition

	// The caller does not have permission to execute the specified operation.
	PermissionDenied ErrorCode = lberr.PermissionDenied

	// Something unexpected happened.
	Internal ErrorCode = lberr.Internal

	// The service could not be reached, or kept failing after retries.
	Unavailable ErrorCode = lberr.Unavailable

	// The operation was canceled.
	Canceled ErrorCode = lberr.Canceled

	// The operation timed out.
	DeadlineExceeded ErrorCode = lberr.DeadlineExceeded
)

// Code returns the ErrorCode of err if it, or some error it wraps, is an *Error.
// If err is context.Canceled or context.DeadlineExceeded, or wraps one of those errors,
// it returns the Canceled or DeadlineExceeded codes, respectively.
// If err is nil, it returns the special code OK.
// Otherwise, it returns Unknown.
func Code(err error) ErrorCode {
	if err == nil {
		return OK
	}
	var e *lberr.Error
	if xerrors.As(err, &e) {
		return e.Code
	}
	if xerrors.Is(err, context.Canceled) {
		return Canceled
	}
	if xerrors.Is(err, context.DeadlineExceeded) {
		return DeadlineExceeded
	}
	return Unknown
}
