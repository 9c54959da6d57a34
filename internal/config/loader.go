package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed config.schema.json
var schemaData []byte

const schemaURL = "https://xdrop.local/config.schema.json"

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func configSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaData)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// Load reads configuration from path. An empty path means ConfigPath(),
// which may be absent, in which case the defaults apply; a path named
// explicitly must exist. Environment overrides are applied and the
// result is validated.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := Decode(data, filepath.Ext(path), cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode parses data in the format implied by ext (".toml", ".json",
// ".yaml" or ".yml") over cfg. Other extensions are auto-detected.
// The document is checked against the embedded schema first.
func Decode(data []byte, ext string, cfg *Config) error {
	doc, err := parseDocument(data, strings.ToLower(ext))
	if err != nil {
		return err
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("normalize config: %w", err)
	}
	var instance any
	if err := json.Unmarshal(normalized, &instance); err != nil {
		return fmt.Errorf("normalize config: %w", err)
	}

	schema, err := configSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}

	if err := json.Unmarshal(normalized, cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

func parseDocument(data []byte, ext string) (map[string]any, error) {
	doc := map[string]any{}
	switch ext {
	case ".toml":
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		// JSON documents are valid YAML.
		if _, err := toml.Decode(string(data), &doc); err == nil {
			return doc, nil
		}
		doc = map[string]any{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, errors.New("unrecognised config format")
		}
	}
	return doc, nil
}
