package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "BEATFEAT_"
	envFileKey = envPrefix + "CONFIG"
)

// LoadOption adjusts how Load layers its sources.
type LoadOption func(*loadOptions)

type loadOptions struct {
	file      string
	overrides map[string]any
}

// WithFile loads the YAML file at path instead of the one named by BEATFEAT_CONFIG.
func WithFile(path string) LoadOption {
	return func(o *loadOptions) {
		if path != "" {
			o.file = path
		}
	}
}

// WithOverrides applies values on top of every other source. Keys are the
// koanf tags of Config; callers pass only values the user set explicitly.
func WithOverrides(values map[string]any) LoadOption {
	return func(o *loadOptions) {
		o.overrides = values
	}
}

// Load builds a Config by layering defaults, optional file, env vars and
// overrides. Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) from WithFile or BEATFEAT_CONFIG
//  3. env (prefix BEATFEAT_)
//  4. overrides (CLI flags)
func Load(ctx context.Context, opts ...LoadOption) (*Config, error) {
	lo := loadOptions{file: os.Getenv(envFileKey)}
	for _, opt := range opts {
		opt(&lo)
	}

	base := New(ctx)
	k := koanf.New(".")

	if lo.file != "" {
		if err := k.Load(file.Provider(lo.file), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, lo.file, err)
		}
	}

	// BEATFEAT_WORKER_COUNT -> worker_count. Underscores are kept to match
	// the flat koanf tags on the struct.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	k.Delete("config")

	for key, val := range lo.overrides {
		if err := k.Set(key, val); err != nil {
			return nil, fmt.Errorf("%w: override %s: %w", ErrLoadConfig, key, err)
		}
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
