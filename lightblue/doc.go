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

// Package lightblue provides an easy and portable way to work with documents
// stored in a Lightblue data service.
//
// An Entity binds a driver.Service to one entity name and, optionally, a
// version. It builds the request envelopes the service expects and leaves
// the interpretation of the service's status to its callers; CheckResponse
// is the usual way to do that.
//
// A Query accumulates filter triples, projections and update operators over
// several calls and compiles them into one envelope when it runs. Find can run
// any number of times. Update and Delete run at most once: afterwards the
// Query is locked, and further mutations fail with ErrLockedQuery until
// Refresh is called.
//
// A Selection is a Query whose results go through a declarative
// post-processing step (status check, match count check, path selection and
// a transform), falling back to a caller-supplied default at the first
// failing step.
//
// # URLs
//
// Entities can be opened from URLs with OpenEntity, once a driver package has
// registered itself with DefaultURLMux. The lbrest package registers the
// "lightblue" scheme:
//
//	import _ "lightblue.dev/lightblue/lbrest"
//	...
//	users, err := lightblue.OpenEntity(ctx, "lightblue://user?version=1.0.0")
//
// # Errors
//
// Usage errors are returned immediately and never reach the service:
// ErrIncompleteQuery, ErrLockedQuery and ErrNoVersion. Use lberrors.Code to
// classify other errors. A nil *driver.Response with a nil error means the
// service answered with an application error, which the driver has already
// reported to its observer.
package lightblue // import "lightblue.dev/lightblue"
