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

//go:build wireinject

package main

import (
	"github.com/google/wire"
	"lightblue.dev/lightblue/lbrest"
)

// setupOpener builds the URL opener for lightblue:// entity URLs from cfg.
func setupOpener(cfg *lbrest.Config) (*lbrest.URLOpener, error) {
	panic(wire.Build(lbrest.Set))
}
