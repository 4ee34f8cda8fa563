/*
Copyright 2021 The Crossplane Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config loads the converger's tunables (§10.3): registry root
// path, bucket count, poll interval, reauth status codes, log record
// size cap, and HTTP timeout.
package config

import "time"

// Config is the converger's runtime configuration.
type Config struct {
	Registry RegistryConfig `koanf:"registry"`
	HTTP     HTTPConfig     `koanf:"http"`
	Log      LogConfig      `koanf:"log"`
}

// RegistryConfig governs the divergence registry and partitioner.
type RegistryConfig struct {
	Addr         string        `koanf:"addr"`
	RootPath     string        `koanf:"root_path"`
	Buckets      int           `koanf:"buckets"`
	PollInterval time.Duration `koanf:"poll_interval"`
}

// HTTPConfig governs the cloud-client transport.
type HTTPConfig struct {
	Timeout     time.Duration `koanf:"timeout"`
	ReauthCodes []int         `koanf:"reauth_codes"`
	Region      string        `koanf:"region"`
}

// LogConfig governs the log-spec wrapper's record size cap (§4.6).
type LogConfig struct {
	Level        string `koanf:"level"`
	MaxRecordLen int    `koanf:"max_record_len"`
}

// Validate checks the tunables that would otherwise fail confusingly deep
// inside the registry or cloud client.
func (c Config) Validate() error {
	if c.Registry.Buckets <= 0 {
		return errInvalidBuckets
	}
	if c.Registry.RootPath == "" {
		return errEmptyRootPath
	}
	if c.HTTP.Timeout <= 0 {
		return errInvalidTimeout
	}
	return nil
}
