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

package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const (
	envPrefix = "CONVERGER_"

	errInvalidBuckets = constError("registry.buckets must be positive")
	errEmptyRootPath  = constError("registry.root_path must not be empty")
	errInvalidTimeout = constError("http.timeout must be positive")
)

type constError string

func (e constError) Error() string { return string(e) }

func defaults() map[string]any {
	return map[string]any{
		"registry.addr":          "localhost:6379",
		"registry.root_path":     "/groups/divergent",
		"registry.buckets":       10,
		"registry.poll_interval": 10 * time.Second,
		"http.timeout":           30 * time.Second,
		"http.reauth_codes":      []int{401, 403},
		"http.region":            "DFW",
		"log.level":              "info",
		"log.max_record_len":     65536,
	}
}

// Load reads defaults, then configPath (if non-empty and present), then
// CONVERGER_-prefixed environment variables, in that increasing order of
// precedence (§10.3), and validates the result.
func Load(configPath string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Config{}, errors.Wrap(err, "cannot load config defaults")
	}

	if configPath != "" {
		if _, statErr := os.Stat(configPath); statErr == nil {
			if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
				return Config{}, errors.Wrapf(err, "cannot load config file %q", configPath)
			}
		}
	}

	envTransform := func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".", 1)
	}
	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return Config{}, errors.Wrap(err, "cannot load config from environment")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "cannot unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
