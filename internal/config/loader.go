package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variables that locate configuration sources.
const (
	EnvPrefix  = "CRITIQL_"
	EnvConfig  = EnvPrefix + "CONFIG"
	EnvDotenv  = EnvPrefix + "ENV_FILE"
	dotenvFile = ".env"
)

// Load builds a Config by layering defaults, an optional .env file, an
// optional YAML file and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. .env (CRITIQL_ENV_FILE or ./.env), which only fills unset variables
//  3. file (YAML) if CRITIQL_CONFIG is set
//  4. env (prefix CRITIQL_)
//
// CRITIQL_DOCUMENTS may be given as "id:campaign,id:campaign".
func Load(_ context.Context) (*Config, error) {
	if err := loadDotenv(); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if path := os.Getenv(EnvConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// CRITIQL_SYNC_QUEUE_SIZE -> sync_queue_size (flat keys).
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	if raw, ok := k.Get("documents").(string); ok {
		docs, err := parseDocuments(raw)
		if err != nil {
			return nil, err
		}
		k.Delete("documents")
		for id, c := range docs {
			if err := k.Set("documents."+id, c); err != nil {
				return nil, fmt.Errorf("%w: documents: %w", ErrLoadConfig, err)
			}
		}
	}

	cfg := New()
	// Decoding merges into existing maps and slices; configured values
	// replace the defaults instead.
	if k.Exists("documents") {
		cfg.Documents = nil
	}
	if k.Exists("name_blocklist") {
		cfg.NameBlocklist = nil
	}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cfg.Documents == nil {
		cfg.Documents = map[string]int{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotenv() error {
	path := os.Getenv(EnvDotenv)
	explicit := path != ""
	if !explicit {
		path = dotenvFile
	}
	err := godotenv.Load(path)
	if err == nil || (!explicit && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
}

// parseDocuments parses "id:campaign,id:campaign".
func parseDocuments(raw string) (map[string]int, error) {
	out := map[string]int{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, campaign, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("%w: documents entry %q lacks a campaign", ErrInvalidConfig, pair)
		}
		n, err := strconv.Atoi(strings.TrimSpace(campaign))
		if err != nil {
			return nil, fmt.Errorf("%w: documents entry %q: %w", ErrInvalidConfig, pair, err)
		}
		out[strings.TrimSpace(id)] = n
	}
	return out, nil
}
