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
	"time"

	"lightblue.dev/lightblue/driver"
	"lightblue.dev/log"
)

// LogResponse builds the record logged for every data service call.
// A body that is not a JSON object is kept verbatim as TextResponse.
// The error lists are only kept when the status is not COMPLETE.
func LogResponse(statusCode int, body []byte, elapsed time.Duration) *log.ResponseRecord {
	rec := &log.ResponseRecord{StatusCode: statusCode, Elapsed: elapsed}
	r, err := driver.ParseResponse(body)
	if err != nil {
		rec.TextResponse = string(body)
		return rec
	}
	rec.JSON = true
	rec.Status = string(r.Status)
	rec.MatchCount = r.MatchCount
	rec.ModifiedCount = r.ModifiedCount
	if r.Status != driver.StatusComplete {
		rec.DataErrors = r.DataErrors
		rec.Errors = r.Errors
	}
	return rec
}
