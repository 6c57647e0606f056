// Package config defines the HCL configuration shared by the papermill
// binaries.
package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Config is the root configuration structure.
type Config struct {
	Database    *Database    `hcl:"database,block"`
	Store       *Store       `hcl:"store,block"`
	Search      *Search      `hcl:"search,block"`
	Coordinator *Coordinator `hcl:"coordinator,block"`
	Indexer     *Indexer     `hcl:"indexer,block"`
}

// Database configures the relational record store.
type Database struct {
	Driver   string `hcl:"driver,optional"`
	Host     string `hcl:"host,optional"`
	Port     int    `hcl:"port,optional"`
	User     string `hcl:"user,optional"`
	Password string `hcl:"password,optional"`
	DBName   string `hcl:"dbname,optional"`
	SSLMode  string `hcl:"sslmode,optional"`

	// Path is the database file for the sqlite driver.
	Path string `hcl:"path,optional"`
}

// Store configures the content store.
type Store struct {
	// Provider selects the adapter: "local" or "s3".
	Provider string `hcl:"provider"`

	DefaultTier int `hcl:"default_tier,optional"`

	Tiers []StoreTier `hcl:"tier,block"`

	S3 *S3 `hcl:"s3,block"`
}

// StoreTier maps a tier id to a local filesystem root.
type StoreTier struct {
	ID   int    `hcl:"id,label"`
	Path string `hcl:"path"`
}

// S3 configures the S3 content store adapter.
type S3 struct {
	Bucket    string `hcl:"bucket"`
	Region    string `hcl:"region,optional"`
	AccessKey string `hcl:"access_key,optional"`
	SecretKey string `hcl:"secret_key,optional"`
	// Endpoint points the client at an S3-compatible service such as MinIO.
	Endpoint string `hcl:"endpoint,optional"`
	Prefix   string `hcl:"prefix,optional"`
}

// Search configures the full-text index.
type Search struct {
	// Provider selects the adapter: "bleve" or "meilisearch".
	Provider string `hcl:"provider"`

	Bleve       *Bleve       `hcl:"bleve,block"`
	Meilisearch *Meilisearch `hcl:"meilisearch,block"`
}

// Bleve configures the embedded bleve index.
type Bleve struct {
	IndexPath string `hcl:"index_path"`
}

// Meilisearch configures the meilisearch adapter.
type Meilisearch struct {
	Host      string `hcl:"host"`
	APIKey    string `hcl:"api_key,optional"`
	IndexName string `hcl:"index_name,optional"`
}

// Coordinator tunes the document lifecycle coordinator.
type Coordinator struct {
	StartVersion        string `hcl:"start_version,optional"`
	TicketTTLHours      int    `hcl:"ticket_ttl_hours,optional"`
	ServerURL           string `hcl:"server_url,optional"`
	DefaultStoreTier    int    `hcl:"default_store_tier,optional"`
	SkipIndexingOnError bool   `hcl:"skip_indexing_on_error,optional"`
}

// Indexer tunes the background indexing loop.
type Indexer struct {
	BatchSize       int `hcl:"batch_size,optional"`
	IntervalSeconds int `hcl:"interval_seconds,optional"`
}

// Load reads and decodes an HCL configuration file.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database == nil {
		return nil, fmt.Errorf("database configuration is missing")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("store configuration is missing")
	}
	if cfg.Search == nil {
		return nil, fmt.Errorf("search configuration is missing")
	}
	return &cfg, nil
}
