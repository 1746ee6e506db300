package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/settingsync/internal/engine"
	"github.com/roach88/settingsync/internal/signatures"
)

// Storage backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Verifier kinds.
const (
	VerifierNone             = "none"
	VerifierContentSignature = "content-signature"
)

// ValidBackends lists the accepted storage backends.
var ValidBackends = []string{BackendNone, BackendMemory, BackendFile, BackendSQLite}

// ValidVerifiers lists the accepted verifier kinds.
var ValidVerifiers = []string{VerifierNone, VerifierContentSignature}

// ErrUnknownFormat is returned by Load for unsupported file extensions.
var ErrUnknownFormat = errors.New("unknown config format")

//go:embed schema.cue
var schemaSource string

// Config is the complete client configuration.
type Config struct {
	ServerURL   string         `json:"server_url" yaml:"server_url"`
	Bucket      string         `json:"bucket" yaml:"bucket"`
	Collection  string         `json:"collection" yaml:"collection"`
	Storage     StorageConfig  `json:"storage" yaml:"storage"`
	Verifier    VerifierConfig `json:"verifier" yaml:"verifier"`
	SyncIfEmpty bool           `json:"sync_if_empty" yaml:"sync_if_empty"`
	TrustLocal  bool           `json:"trust_local" yaml:"trust_local"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is one of ValidBackends.
	Backend string `json:"backend" yaml:"backend"`

	// Path is the directory (file) or database file (sqlite).
	Path string `json:"path" yaml:"path"`
}

// VerifierConfig selects how collections are verified.
type VerifierConfig struct {
	// Kind is one of ValidVerifiers.
	Kind string `json:"kind" yaml:"kind"`

	// RootHash is the SHA-256 fingerprint of the trusted root certificate,
	// hex with or without colons. Empty anchors the chain on its own last
	// certificate.
	RootHash string `json:"root_hash" yaml:"root_hash"`

	// DNSName is the expected leaf certificate name. Empty skips the check.
	DNSName string `json:"dns_name" yaml:"dns_name"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ServerURL:   engine.DefaultServerURL,
		Bucket:      engine.DefaultBucketName,
		Storage:     StorageConfig{Backend: BackendNone},
		Verifier:    VerifierConfig{Kind: VerifierNone},
		SyncIfEmpty: true,
		TrustLocal:  true,
	}
}

// Load reads a configuration file, choosing the format by extension.
func Load(path string) (*Config, error) {
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		return LoadYAML(path)
	case ".cue":
		return LoadCUE(path)
	default:
		return nil, fmt.Errorf("%w %q: %s", ErrUnknownFormat, ext, path)
	}
}

// LoadYAML reads a YAML configuration file.
// Absent fields keep their Default() value; unknown fields are rejected.
func LoadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML decodes YAML configuration bytes.
func ParseYAML(data []byte) (*Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return &cfg, nil
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &cfg, nil
}

// LoadCUE reads a CUE configuration file.
func LoadCUE(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseCUE(data, path)
}

// ParseCUE unifies CUE configuration source with the #Config schema.
// filename is used in error positions only.
func ParseCUE(data []byte, filename string) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("building config schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse CUE: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// Validate checks that the configuration can build a client.
func (c *Config) Validate() error {
	if c.Collection == "" {
		return fmt.Errorf("collection is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}

	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server_url %q: %w", c.ServerURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server_url %q: must be an absolute http(s) URL", c.ServerURL)
	}

	if !slices.Contains(ValidBackends, c.Storage.Backend) {
		return fmt.Errorf("invalid storage backend %q: must be one of %v", c.Storage.Backend, ValidBackends)
	}
	if (c.Storage.Backend == BackendFile || c.Storage.Backend == BackendSQLite) && c.Storage.Path == "" {
		return fmt.Errorf("storage backend %q requires a path", c.Storage.Backend)
	}

	if !slices.Contains(ValidVerifiers, c.Verifier.Kind) {
		return fmt.Errorf("invalid verifier %q: must be one of %v", c.Verifier.Kind, ValidVerifiers)
	}
	if c.Verifier.RootHash != "" {
		if _, err := signatures.ParseRootHash(c.Verifier.RootHash); err != nil {
			return fmt.Errorf("invalid root_hash: %w", err)
		}
	}
	return nil
}
