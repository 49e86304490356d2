// Package config loads catsync project configuration.
//
// A .catsync.yaml in the project root declares where catalogs live and
// which languages to synchronize:
//
//	source_lang: en
//	catalog_dir: ui/src/translations
//	languages:
//	  - code: de
//	  - code: zh-CN
//	    name: Simplified Chinese (Mandarin)
//	provider:
//	  id: google
//	  model: gemini-2.5-flash
//	terms:
//	  - namespace
//	  - tenant
//
// Every field is optional; missing languages fall back to the default
// roster with display names from the langmeta registry. Provider
// credentials never live in the file; they come from the environment
// (CATSYNC_API_KEY etc.), optionally seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/catsync/catsync/langmeta"
)

// FileName is the project configuration file name.
const FileName = ".catsync.yaml"

// Language pairs a catalog code with the display name used in provider
// prompts.
type Language struct {
	Code string `yaml:"code"`
	Name string `yaml:"name,omitempty"`
}

// ProviderConfig holds non-secret provider defaults from the config file.
type ProviderConfig struct {
	ID      string `yaml:"id,omitempty"`
	Model   string `yaml:"model,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// Config is the parsed .catsync.yaml (or its defaults).
type Config struct {
	// SourceLang is the source language code. Default "en".
	SourceLang string `yaml:"source_lang,omitempty"`
	// CatalogDir contains one <code>.json catalog per language,
	// relative to the project root. Default "translations".
	CatalogDir string `yaml:"catalog_dir,omitempty"`
	// Languages are the target languages. Default: langmeta.DefaultRoster.
	Languages []Language `yaml:"languages,omitempty"`
	// Provider sets provider defaults overridable by flags and env.
	Provider ProviderConfig `yaml:"provider,omitempty"`
	// Terms overrides the default kept-in-English term list.
	Terms []string `yaml:"terms,omitempty"`

	rootDir string
}

// Load reads .catsync.yaml from rootDir. A missing file yields a fully
// defaulted Config, not an error.
func Load(rootDir string) (*Config, error) {
	cfg := &Config{rootDir: rootDir}

	path := filepath.Join(rootDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SourceLang == "" {
		c.SourceLang = "en"
	}
	if c.CatalogDir == "" {
		c.CatalogDir = "translations"
	}
	if len(c.Languages) == 0 {
		for _, code := range langmeta.DefaultRoster {
			c.Languages = append(c.Languages, Language{Code: code})
		}
	}
	for i := range c.Languages {
		if c.Languages[i].Name == "" {
			c.Languages[i].Name = langmeta.Resolve(c.Languages[i].Code).Name
		}
	}
}

func (c *Config) validate(path string) error {
	seen := make(map[string]bool)
	for _, l := range c.Languages {
		if l.Code == "" {
			return fmt.Errorf("%s: language entry with no code", path)
		}
		if l.Code == c.SourceLang {
			return fmt.Errorf("%s: language %q is the source language", path, l.Code)
		}
		if seen[l.Code] {
			return fmt.Errorf("%s: language %q declared twice", path, l.Code)
		}
		seen[l.Code] = true
	}
	return nil
}

// SourcePath returns the source-language catalog file path.
func (c *Config) SourcePath() string {
	return c.CatalogPath(c.SourceLang)
}

// CatalogPath returns the catalog file path for a language code.
func (c *Config) CatalogPath(code string) string {
	return filepath.Join(c.rootDir, c.CatalogDir, code+".json")
}

// ---------------------------------------------------------------------------
// Environment
// ---------------------------------------------------------------------------

// Env carries provider credentials and overrides from the process
// environment, prefixed CATSYNC_.
type Env struct {
	APIKey   string `envconfig:"API_KEY"`
	Provider string `envconfig:"PROVIDER"`
	Model    string `envconfig:"MODEL"`
	BaseURL  string `envconfig:"BASE_URL"`
	Proxy    string `envconfig:"PROXY"`
}

// LoadEnv reads CATSYNC_* variables, after seeding the environment from a
// .env file in rootDir when one exists.
func LoadEnv(rootDir string) (*Env, error) {
	// Missing .env is the normal case; only a parse failure matters.
	if path := filepath.Join(rootDir, ".env"); fileExists(path) {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	var e Env
	if err := envconfig.Process("catsync", &e); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	return &e, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
