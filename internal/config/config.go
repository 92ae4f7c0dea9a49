// Package config resolves settings from a config file, a .env file and the
// environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported config file format")
	ErrInvalidConfig     = errors.New("invalid configuration")
)

// Config is the resolved application configuration.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding" toml:"embedding"`
	Index     IndexConfig     `yaml:"index" toml:"index"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	GitHub    GitHubConfig    `yaml:"github" toml:"github"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
}

// EmbeddingConfig selects the embedding provider and model.
type EmbeddingConfig struct {
	Model             string `yaml:"model" toml:"model"`
	Dimensions        int    `yaml:"dimensions" toml:"dimensions"`
	OpenAIAPIKey      string `yaml:"openaiApiKey" toml:"openai_api_key"`
	BaseURL           string `yaml:"baseUrl" toml:"base_url"`
	AzureEndpoint     string `yaml:"azureEndpoint" toml:"azure_endpoint"`
	AzureAPIKey       string `yaml:"azureApiKey" toml:"azure_api_key"`
	AzureAPIVersion   string `yaml:"azureApiVersion" toml:"azure_api_version"`
	RequestsPerMinute int    `yaml:"requestsPerMinute" toml:"requests_per_minute"`
}

// IndexConfig selects the search index backend.
type IndexConfig struct {
	Backend      string `yaml:"backend" toml:"backend"`
	SQLitePath   string `yaml:"sqlitePath" toml:"sqlite_path"`
	QdrantHost   string `yaml:"qdrantHost" toml:"qdrant_host"`
	QdrantPort   int    `yaml:"qdrantPort" toml:"qdrant_port"`
	QdrantAPIKey string `yaml:"qdrantApiKey" toml:"qdrant_api_key"`
	QdrantTLS    bool   `yaml:"qdrantTls" toml:"qdrant_tls"`
}

// StorageConfig locates the blob store source files are uploaded to.
type StorageConfig struct {
	BaseURL   string `yaml:"baseUrl" toml:"base_url"`
	Container string `yaml:"container" toml:"container"`
}

// GitHubConfig holds credentials for GitHub sources.
type GitHubConfig struct {
	Token string `yaml:"token" toml:"token"`
}

// ServerConfig configures the MCP search server.
type ServerConfig struct {
	Port  int    `yaml:"port" toml:"port"`
	Index string `yaml:"index" toml:"index"`
	HTTP  bool   `yaml:"http" toml:"http"` // Serve MCP over HTTP instead of stdio
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Model:      "text-embedding-3-small",
			Dimensions: 1536,
		},
		Index: IndexConfig{
			Backend:    "qdrant",
			SQLitePath: "docindex.db",
			QdrantHost: "localhost",
			QdrantPort: 6334,
		},
		Storage: StorageConfig{
			BaseURL:   "file://" + filepath.ToSlash(filepath.Join(os.TempDir(), "docindex")),
			Container: "pdfdocuments",
		},
		Server: ServerConfig{
			Port:  8080,
			Index: "documents",
		},
	}
}

// Load reads the optional config file at path, then .env in the working
// directory, then the process environment, and validates the result.
func Load(path string) (*Config, error) {
	return LoadFiles(path, ".env")
}

// LoadFiles is Load with an explicit .env location.
func LoadFiles(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := readFile(path, cfg); err != nil {
			return nil, err
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		values, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read %s: %w", envFile, err)
		}
		if values != nil {
			dotenv = values
		}
	}

	lookup := func(key string) (string, bool) {
		if v := os.Getenv(key); v != "" {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strVars := map[string]*string{
		"AZURE_OPENAI_ENDPOINT":    &cfg.Embedding.AzureEndpoint,
		"AZURE_OPENAI_KEY":         &cfg.Embedding.AzureAPIKey,
		"AZURE_OPENAI_API_VERSION": &cfg.Embedding.AzureAPIVersion,
		"OPENAI_API_KEY":           &cfg.Embedding.OpenAIAPIKey,
		"OPENAI_BASE_URL":          &cfg.Embedding.BaseURL,
		"EMBEDDING_MODEL":          &cfg.Embedding.Model,
		"INDEX_BACKEND":            &cfg.Index.Backend,
		"SQLITE_PATH":              &cfg.Index.SQLitePath,
		"QDRANT_HOST":              &cfg.Index.QdrantHost,
		"QDRANT_API_KEY":           &cfg.Index.QdrantAPIKey,
		"STORAGE_BASE_URL":         &cfg.Storage.BaseURL,
		"STORAGE_CONTAINER":        &cfg.Storage.Container,
		"GITHUB_TOKEN":             &cfg.GitHub.Token,
		"INDEX_NAME":               &cfg.Server.Index,
	}
	for key, dst := range strVars {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	intVars := map[string]*int{
		"EMBEDDING_DIMENSIONS": &cfg.Embedding.Dimensions,
		"EMBEDDING_RPM":        &cfg.Embedding.RequestsPerMinute,
		"QDRANT_PORT":          &cfg.Index.QdrantPort,
		"PORT":                 &cfg.Server.Port,
	}
	for key, dst := range intVars {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, key, v)
		}
		*dst = n
	}

	boolVars := map[string]*bool{
		"QDRANT_TLS":  &cfg.Index.QdrantTLS,
		"SERVER_MODE": &cfg.Server.HTTP,
	}
	for key, dst := range boolVars {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidConfig, key, v)
		}
		*dst = b
	}
	return nil
}

// Validate checks structural settings. Credentials are checked by the
// clients that use them.
func (c *Config) Validate() error {
	var problems []string

	switch c.Index.Backend {
	case "qdrant":
		if c.Index.QdrantHost == "" {
			problems = append(problems, "index.qdrantHost is required")
		}
		if c.Index.QdrantPort <= 0 || c.Index.QdrantPort > 65535 {
			problems = append(problems, fmt.Sprintf("index.qdrantPort %d out of range", c.Index.QdrantPort))
		}
	case "sqlite":
		if c.Index.SQLitePath == "" {
			problems = append(problems, "index.sqlitePath is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown index.backend %q", c.Index.Backend))
	}

	if c.Embedding.Dimensions <= 0 {
		problems = append(problems, "embedding.dimensions must be positive")
	}
	if c.Embedding.RequestsPerMinute < 0 {
		problems = append(problems, "embedding.requestsPerMinute must not be negative")
	}
	if c.Storage.BaseURL == "" {
		problems = append(problems, "storage.baseUrl is required")
	}
	if c.Storage.Container == "" {
		problems = append(problems, "storage.container is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
