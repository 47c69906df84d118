// Package config handles loading and resolving carprice configuration.
// Resolution order (first non-empty value wins):
//  1. CLI flag --api-url
//  2. Environment variable CARPRICE_API_URL
//  3. config.json (or config.yaml) in the current working directory
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigFile = "config.json"
	DefaultYAMLFile   = "config.yaml"
	DefaultFormat     = "table"
	DefaultAPIURL     = "http://localhost:8000"
	DefaultListen     = ":8080"
	DefaultRate       = 10.0
	DefaultSessionTTL = 30 * time.Minute
	EnvAPIURL         = "CARPRICE_API_URL"
	EnvDBPath         = "CARPRICE_DB_PATH"
	EnvListen         = "CARPRICE_LISTEN"
)

// File is the on-disk representation of config.json / config.yaml.
type File struct {
	APIURL        string  `json:"api_url" yaml:"api_url"`
	DefaultFormat string  `json:"default_format" yaml:"default_format"`
	Timeout       string  `json:"timeout" yaml:"timeout"`
	Rate          float64 `json:"rate" yaml:"rate"`
	DBPath        string  `json:"db_path" yaml:"db_path"`
	Listen        string  `json:"listen" yaml:"listen"`
	SessionTTL    string  `json:"session_ttl" yaml:"session_ttl"`
}

// Config is the fully-resolved runtime configuration.
// All callers use this struct; the File is only read during loading.
type Config struct {
	APIURL     string
	Format     string
	Timeout    time.Duration // zero means no client timeout
	Rate       float64
	RateSet    bool // rate came from a config file or flag, not the default
	DBPath     string
	Listen     string
	SessionTTL time.Duration
	ConfigPath string // path of the config file that was loaded (empty if none found)

	// Runtime overrides set from CLI flags after Load()
	Quiet   bool
	Verbose bool
	Debug   bool
}

// Load resolves configuration from all sources.
// flagAPIURL is the value of --api-url (empty string if not set).
func Load(flagAPIURL string) (*Config, error) {
	cfg := &Config{
		APIURL:     DefaultAPIURL,
		Format:     DefaultFormat,
		Rate:       DefaultRate,
		Listen:     DefaultListen,
		SessionTTL: DefaultSessionTTL,
	}

	// Layer 1: config file (lowest priority)
	f, path, err := loadFile()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if f != nil {
		applyFile(cfg, f, path)
	}

	// Layer 2: environment
	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		cfg.Listen = v
	}

	// Layer 3: CLI flag (highest priority)
	if flagAPIURL != "" {
		cfg.APIURL = flagAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.DBPath = filepath.Join(home, ".carprice", "history.db")
		}
	}

	return cfg, nil
}

// Validate returns an error if the resolved values cannot be used.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf(
			"invalid API URL %q.\n\n"+
				"Set it one of these ways:\n"+
				"  1. CLI flag:        carprice --api-url http://localhost:8000 ...\n"+
				"  2. Environment:     export %s=http://localhost:8000\n"+
				"  3. config.json:     {\"api_url\": \"http://localhost:8000\"}",
			c.APIURL, EnvAPIURL,
		)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid API URL %q: scheme must be http or https", c.APIURL)
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate must not be negative, got %g", c.Rate)
	}
	return nil
}

// loadFile reads config.json, falling back to config.yaml, from the current
// working directory. A missing file is reported as os.ErrNotExist.
func loadFile() (*File, string, error) {
	for _, name := range []string{DefaultConfigFile, DefaultYAMLFile, "config.yml"} {
		path, err := filepath.Abs(name)
		if err != nil {
			return nil, "", err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, "", fmt.Errorf("reading %s: %w", name, err)
		}
		var f File
		if strings.HasSuffix(name, ".json") {
			err = json.Unmarshal(data, &f)
		} else {
			err = yaml.Unmarshal(data, &f)
		}
		if err != nil {
			return nil, "", fmt.Errorf("parsing %s: %w", name, err)
		}
		return &f, path, nil
	}
	return nil, "", os.ErrNotExist
}

// applyFile copies values from a parsed File into cfg,
// skipping any fields that are zero/empty.
func applyFile(cfg *Config, f *File, path string) {
	cfg.ConfigPath = path
	if f.APIURL != "" {
		cfg.APIURL = f.APIURL
	}
	if f.DefaultFormat != "" {
		cfg.Format = f.DefaultFormat
	}
	if f.Timeout != "" {
		if d, err := time.ParseDuration(f.Timeout); err == nil {
			cfg.Timeout = d
		}
	}
	if f.Rate > 0 {
		cfg.Rate = f.Rate
		cfg.RateSet = true
	}
	if f.DBPath != "" {
		cfg.DBPath = f.DBPath
	}
	if f.Listen != "" {
		cfg.Listen = f.Listen
	}
	if f.SessionTTL != "" {
		if d, err := time.ParseDuration(f.SessionTTL); err == nil && d > 0 {
			cfg.SessionTTL = d
		}
	}
}

// Template returns a File populated with sensible defaults, suitable for
// writing an initial config.json via `carprice config init`.
func Template() File {
	return File{
		APIURL:        DefaultAPIURL,
		DefaultFormat: DefaultFormat,
		Rate:          DefaultRate,
		Listen:        DefaultListen,
		SessionTTL:    DefaultSessionTTL.String(),
	}
}

// WriteFile serialises a File to the given path. The encoding follows the
// file extension: .yaml/.yml is written as YAML, anything else as JSON.
func WriteFile(path string, f File) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(f)
	default:
		data, err = json.MarshalIndent(f, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
