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
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"sync"

	"lightblue.dev/internal/openurl"
	"lightblue.dev/lightblue"
	"lightblue.dev/lightblue/driver"
	"lightblue.dev/log"
)

func init() {
	lightblue.DefaultURLMux().RegisterEntity(Scheme, new(defaultOpener))
}

// Environment variables read by ConfigFromEnv.
const (
	EnvDataURL     = "LIGHTBLUE_DATA_URL"
	EnvMetadataURL = "LIGHTBLUE_METADATA_URL"
	EnvCertFile    = "LIGHTBLUE_CERT_FILE"
	EnvKeyFile     = "LIGHTBLUE_KEY_FILE"
	EnvSkipVerify  = "LIGHTBLUE_SKIP_VERIFY"
)

// ConfigFromEnv builds a Config from the LIGHTBLUE_* environment variables.
// LIGHTBLUE_DATA_URL and LIGHTBLUE_METADATA_URL are required.
func ConfigFromEnv() (*Config, error) {
	cfg := &Config{
		DataURL:     os.Getenv(EnvDataURL),
		MetadataURL: os.Getenv(EnvMetadataURL),
		Options: Options{
			CertFile: os.Getenv(EnvCertFile),
			KeyFile:  os.Getenv(EnvKeyFile),
		},
	}
	if cfg.DataURL == "" {
		return nil, fmt.Errorf("%s environment variable is not set", EnvDataURL)
	}
	if cfg.MetadataURL == "" {
		return nil, fmt.Errorf("%s environment variable is not set", EnvMetadataURL)
	}
	if v := os.Getenv(EnvSkipVerify); v != "" {
		skip, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", EnvSkipVerify, err)
		}
		cfg.Options.InsecureSkipVerify = skip
	}
	return cfg, nil
}

// defaultOpener opens entities on a Service configured from the environment.
// The Service is rebuilt whenever the environment changes.
type defaultOpener struct {
	mu     sync.Mutex
	cfg    Config
	opener *URLOpener
}

func (o *defaultOpener) OpenEntityURL(ctx context.Context, u *url.URL) (*lightblue.Entity, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("open entity %s: %v", u, err)
	}
	if o.opener == nil || *cfg != o.cfg {
		svc, err := OpenService(cfg)
		if err != nil {
			return nil, fmt.Errorf("open entity %s: %v", u, err)
		}
		o.cfg = *cfg
		o.opener = &URLOpener{Service: svc}
	}
	return o.opener.OpenEntityURL(ctx, u)
}

// Scheme is the URL scheme lbrest registers its URLOpener under on
// lightblue.DefaultURLMux.
const Scheme = "lightblue"

// URLOpener opens URLs like "lightblue://user?version=1.0.0".
//
// The URL Host is used as the entity name.
//
// The following query parameters are supported:
//
//   - version (optional): the entity version bound to the returned Entity.
type URLOpener struct {
	// Service performs the calls, must be non-nil.
	Service driver.Service

	// Observer is passed to the opened entities.
	Observer log.Observer
}

// OpenEntityURL opens the Entity URL.
func (o *URLOpener) OpenEntityURL(ctx context.Context, u *url.URL) (*lightblue.Entity, error) {
	if o.Service == nil {
		return nil, fmt.Errorf("open entity %s: URLOpener has no Service", u)
	}
	if err := openurl.CheckParams(u, "version"); err != nil {
		return nil, fmt.Errorf("open entity %s: %v", u, err)
	}
	name := u.Host
	if name == "" {
		return nil, fmt.Errorf("open entity %s: URL must have a non-empty Host (entity name)", u)
	}
	if u.Path != "" && u.Path != "/" {
		return nil, fmt.Errorf("open entity %s: URL must not have a Path", u)
	}
	return lightblue.NewEntity(o.Service, name, u.Query().Get("version"), &lightblue.EntityOptions{Observer: o.Observer}), nil
}
