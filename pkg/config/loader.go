package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/ce-data-e/opencodex/pkg/debug"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. Config file (explicit path, OPENCODEX_CONFIG env, ./opencodex.yaml, /etc/opencodex/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log("config", "loaded config file", "path", filePath, "providers", len(cfg.Providers))
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. OPENCODEX_CONFIG environment variable
// 3. ./opencodex.yaml in the current directory
// 4. /etc/opencodex/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("OPENCODEX_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"opencodex.yaml",
		"/etc/opencodex/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadFile reads and parses a config file into the Config struct. Files
// ending in .json or .jsonc may carry comments and trailing commas; they are
// normalized to plain JSON, which the YAML decoder accepts as is. Fields not
// present in the file retain their current (default) values.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables to config fields.
//
// OPENCODEX_PROVIDERS replaces the provider list with a JSON (or YAML) array.
// The single-value variables (OPENCODEX_BASE_URL, OPENCODEX_WIRE_API,
// OPENCODEX_MODEL, OPENCODEX_API_KEY) apply to the first provider, creating
// one named "default" when none is configured.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("OPENCODEX_PROVIDERS"); v != "" {
		var providers []ProviderConfig
		if err := yaml.Unmarshal(jsonc.ToJSON([]byte(v)), &providers); err != nil {
			return fmt.Errorf("OPENCODEX_PROVIDERS: %w", err)
		}
		cfg.Providers = providers
	}

	first := func() *ProviderConfig {
		if len(cfg.Providers) == 0 {
			p := DefaultProvider()
			p.Name = "default"
			cfg.Providers = append(cfg.Providers, p)
		}
		return &cfg.Providers[0]
	}
	if v := os.Getenv("OPENCODEX_BASE_URL"); v != "" {
		first().BaseURL = v
	}
	if v := os.Getenv("OPENCODEX_WIRE_API"); v != "" {
		first().WireAPI = v
	}
	if v := os.Getenv("OPENCODEX_MODEL"); v != "" {
		first().Model = v
	}
	if v := os.Getenv("OPENCODEX_API_KEY"); v != "" {
		p := first()
		p.Auth.APIKey = v
		if p.Auth.Type == "none" || p.Auth.Type == "" {
			p.Auth.Type = "apikey"
		}
	}
	if v := os.Getenv("OPENCODEX_STREAM_IDLE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("OPENCODEX_STREAM_IDLE_TIMEOUT: %w", err)
		}
		first().StreamIdleTimeout = d
	}

	if v := os.Getenv("OPENCODEX_SECURITY_DENY"); v != "" {
		cfg.Security.Deny = splitPatterns(v)
	}
	if v := os.Getenv("OPENCODEX_SECURITY_FORBIDDEN"); v != "" {
		cfg.Security.Forbidden = splitPatterns(v)
	}

	if v := os.Getenv("OPENCODEX_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("OPENCODEX_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("OPENCODEX_DEBUG"); v != "" {
		cfg.Log.Debug = v
	}

	if v := os.Getenv("OPENCODEX_METRICS_ADDR"); v != "" {
		cfg.Observability.Metrics.Enabled = true
		cfg.Observability.Metrics.Addr = v
	}
	if v := os.Getenv("OPENCODEX_TRACING"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Observability.Tracing.Enabled = enabled
		}
	}
	if v := os.Getenv("OPENCODEX_TRACING_EXPORTER"); v != "" {
		cfg.Observability.Tracing.Exporter = v
	}
	if v := os.Getenv("OPENCODEX_TRACING_ENDPOINT"); v != "" {
		cfg.Observability.Tracing.Endpoint = v
	}
	return nil
}

// splitPatterns splits a newline-separated pattern list. Commas are not
// separators because they are common inside regular expressions.
func splitPatterns(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	for i := range cfg.Providers {
		a := &cfg.Providers[i].Auth
		refs := []struct {
			name  string
			file  string
			value *string
		}{
			{"auth.api_key_file", a.APIKeyFile, &a.APIKey},
			{"auth.jwt.private_key_file", a.JWT.PrivateKeyFile, &a.JWT.PrivateKey},
			{"auth.oauth.client_id_file", a.OAuth.ClientIDFile, &a.OAuth.ClientID},
			{"auth.oauth.client_secret_file", a.OAuth.ClientSecretFile, &a.OAuth.ClientSecret},
		}
		for _, ref := range refs {
			if ref.file == "" || *ref.value != "" {
				continue
			}
			val, err := readSecretFile(ref.file)
			if err != nil {
				return fmt.Errorf("providers[%d].%s: %w", i, ref.name, err)
			}
			*ref.value = val
		}
	}
	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
