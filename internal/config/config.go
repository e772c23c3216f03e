package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed schema.yaml
var schemaYAML []byte

type Config struct {
	Data     DataConfig
	Matcher  MatcherConfig
	Ledger   LedgerConfig
	Embedder EmbedderConfig
	Web      WebConfig
	Schema   SchemaConfig
}

type DataConfig struct {
	Dir         string        // directory holding the identity store and the ledger files
	LockTimeout time.Duration // bounded wait for exclusive file locks
}

// IdentitiesFile is the path of the persisted identity corpus.
func (c *DataConfig) IdentitiesFile() string {
	return filepath.Join(c.Dir, "identities.json")
}

// LedgerFile is the path of the attendance ledger for the given format
// extension ("csv" or "xlsx").
func (c *DataConfig) LedgerFile(ext string) string {
	return filepath.Join(c.Dir, "attendance."+ext)
}

type MatcherConfig struct {
	Tolerance    float64 // maximum embedding distance still considered the same person, in (0, 1]
	EmbeddingDim int     // expected embedding length; 0 adopts the first enrollment's length
	UseIndex     bool    // use the HNSW index instead of the linear scan (serve path)
}

type LedgerConfig struct {
	Format string // "csv" or "xlsx"
}

type EmbedderConfig struct {
	URL string // face detection/embedding service, defaults to http://localhost:8000
}

type WebConfig struct {
	Host string
	Port int
}

type SchemaConfig struct {
	Attributes []AttributeColumn `yaml:"attributes"`
}

// AttributeColumn maps an identity attribute key to the header label
// written in exported attendance files.
type AttributeColumn struct {
	Key   string `yaml:"key"`
	Label string `yaml:"label"`
}

// IdentityKeyMode selects how enrollments are merged into existing
// identities (set via IDENTITY_KEY).
type IdentityKeyMode string

const (
	// KeyModeExternalID merges on the external_id attribute, falling
	// back to the normalized name when no external id is present.
	KeyModeExternalID IdentityKeyMode = "external-id"
	// KeyModeName merges on the normalized display name only. Legacy
	// mode: name collisions merge distinct people.
	KeyModeName IdentityKeyMode = "name"
)

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float, falling back to the
// default when unset or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var schema SchemaConfig
	if err := yaml.Unmarshal(schemaYAML, &schema); err != nil {
		// Embedded file, cannot fail in practice.
		panic("failed to unmarshal embedded schema.yaml: " + err.Error())
	}

	tolerance := envFloat("TOLERANCE", 0.6)
	if tolerance <= 0 || tolerance > 1 {
		tolerance = 0.6
	}

	return &Config{
		Data: DataConfig{
			Dir:         envString("DATA_DIR", "data"),
			LockTimeout: time.Duration(envInt("LOCK_TIMEOUT_MS", 5000)) * time.Millisecond,
		},
		Matcher: MatcherConfig{
			Tolerance:    tolerance,
			EmbeddingDim: envInt("EMBEDDING_DIM", 128),
			UseIndex:     os.Getenv("MATCHER_INDEX") == "hnsw",
		},
		Ledger: LedgerConfig{
			Format: envString("LEDGER_FORMAT", "csv"),
		},
		Embedder: EmbedderConfig{
			URL: os.Getenv("EMBEDDER_URL"),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),
		},
		Schema: schema,
	}
}

// KeyMode returns the configured identity key policy mode.
func (c *Config) KeyMode() IdentityKeyMode {
	if IdentityKeyMode(os.Getenv("IDENTITY_KEY")) == KeyModeName {
		return KeyModeName
	}
	return KeyModeExternalID
}
