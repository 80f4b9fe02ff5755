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

// Package lberr provides an error type for Lightblue client APIs.
package lberr

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/xerrors"
)

// An ErrorCode describes the error's category.
type ErrorCode int

const (
	// Returned by the Code function on a nil error. It is not a valid
	// code for an error.
	OK ErrorCode = 0

	// The error could not be categorized.
	Unknown ErrorCode = 1

	// The resource was not found.
	NotFound ErrorCode = 2

	// A value given to a Lightblue client API is incorrect.
	InvalidArgument ErrorCode = 3

	// The system was in the wrong state.
	FailedPrecondition ErrorCode = 4

	// The caller does not have permission to execute the specified operation.
	PermissionDenied ErrorCode = 5

	// Something unexpected happened. Internal errors always indicate
	// bugs in the client (or possibly the Lightblue service).
	Internal ErrorCode = 6

	// The service could not be reached or kept failing after retries.
	Unavailable ErrorCode = 7

	// The operation was canceled.
	Canceled ErrorCode = 8

	// The operation timed out.
	DeadlineExceeded ErrorCode = 9
)

var codeNames = [...]string{
	OK:                 "OK",
	Unknown:            "Unknown",
	NotFound:           "NotFound",
	InvalidArgument:    "InvalidArgument",
	FailedPrecondition: "FailedPrecondition",
	PermissionDenied:   "PermissionDenied",
	Internal:           "Internal",
	Unavailable:        "Unavailable",
	Canceled:           "Canceled",
	DeadlineExceeded:   "DeadlineExceeded",
}

func (c ErrorCode) String() string {
	if c < 0 || int(c) >= len(codeNames) {
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
	return codeNames[c]
}

// An Error describes a Lightblue client error.
type Error struct {
	Code  ErrorCode
	msg   string
	frame xerrors.Frame
	err   error
}

func (e *Error) Error() string {
	return fmt.Sprint(e)
}

func (e *Error) Format(s fmt.State, c rune) {
	xerrors.FormatError(e, s, c)
}

func (e *Error) FormatError(p xerrors.Printer) (next error) {
	if e.msg == "" {
		p.Printf("code=%v", e.Code)
	} else {
		p.Printf("%s (code=%v)", e.msg, e.Code)
	}
	e.frame.Format(p)
	return e.err
}

// Unwrap returns the error underlying the receiver, which may be nil.
func (e *Error) Unwrap() error {
	return e.err
}

// New returns a new error with the given code, underlying error and message. Pass 1
// for the call depth if New is called from the function raising the error; pass 2 if
// it is called from a helper function that was invoked by the original function; and
// so on.
func New(c ErrorCode, err error, callDepth int, msg string) *Error {
	return &Error{
		Code:  c,
		msg:   msg,
		frame: xerrors.Caller(callDepth),
		err:   err,
	}
}

// Newf uses format and args to format a message, then calls New.
func Newf(c ErrorCode, err error, format string, args ...interface{}) *Error {
	return New(c, err, 2, fmt.Sprintf(format, args...))
}

// DoNotWrap reports whether an error should not be wrapped in the Error
// type from this package.
// It returns true if err is a context error.
func DoNotWrap(err error) bool {
	return xerrors.Is(err, context.Canceled) || xerrors.Is(err, context.DeadlineExceeded)
}

// HTTPCode maps an HTTP status code onto an ErrorCode.
func HTTPCode(status int) ErrorCode {
	switch status {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return OK
	case http.StatusBadRequest:
		return InvalidArgument
	case http.StatusNotFound:
		return NotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return PermissionDenied
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return DeadlineExceeded
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return Unavailable
	case http.StatusInternalServerError:
		return Internal
	}
	return Unknown
}
