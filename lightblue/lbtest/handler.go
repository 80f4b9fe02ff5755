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

package lbtest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"lightblue.dev/lberrors"
	"lightblue.dev/lightblue/driver"
)

// NewHandler serves the Lightblue REST API from svc: the data service under
// /data and the metadata service under /metadata. A nil response from svc is
// answered with HTTP 500, an error with a status derived from its code.
func NewHandler(svc driver.Service) http.Handler {
	h := &handler{svc: svc}
	r := mux.NewRouter()
	r.HandleFunc("/metadata/{entity}/{version}", h.schema).Methods(http.MethodGet)
	for _, suffix := range []string{"/{entity}", "/{entity}/{version}"} {
		r.HandleFunc("/data/{op:insert}"+suffix, h.data).Methods(http.MethodPut)
		r.HandleFunc("/data/{op:delete|update|find}"+suffix, h.data).Methods(http.MethodPost)
	}
	return r
}

type handler struct {
	svc driver.Service
}

func (h *handler) schema(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	schema, err := h.svc.GetSchema(r.Context(), vars["entity"], vars["version"])
	if err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(schema)
}

func (h *handler) data(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req driver.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx, entity, version := r.Context(), vars["entity"], vars["version"]
	var (
		resp *driver.Response
		err  error
	)
	switch vars["op"] {
	case "insert":
		resp, err = h.svc.Insert(ctx, entity, version, &req)
	case "delete":
		resp, err = h.svc.Delete(ctx, entity, version, &req)
	case "update":
		resp, err = h.svc.Update(ctx, entity, version, &req)
	default:
		resp, err = h.svc.Find(ctx, entity, version, &req)
	}
	if err != nil {
		http.Error(w, err.Error(), httpStatus(err))
		return
	}
	if resp == nil {
		http.Error(w, "lbtest: no response", http.StatusInternalServerError)
		return
	}
	var body any = resp.Body
	if resp.Body == nil {
		body = resp
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func httpStatus(err error) int {
	switch lberrors.Code(err) {
	case lberrors.NotFound:
		return http.StatusNotFound
	case lberrors.InvalidArgument:
		return http.StatusBadRequest
	case lberrors.PermissionDenied:
		return http.StatusForbidden
	case lberrors.Unavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
