package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration of the router.
type Config struct {
	Log         LogConfig         `json:"log"`
	Server      ServerConfig      `json:"server"`
	AWS         AWSConfig         `json:"aws"`
	Store       StoreConfig       `json:"store"`
	Teams       TeamsConfig       `json:"teams"`
	Ticketing   TicketingConfig   `json:"ticketing"`
	Search      SearchConfig      `json:"search"`
	Translation TranslationConfig `json:"translation"`
	Transcript  TranscriptConfig  `json:"transcript"`
	Routing     RoutingConfig     `json:"routing"`
	Metrics     MetricsConfig     `json:"metrics"`
}

type LogConfig struct {
	Level  string `json:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `json:"format"` // "text" | "json"
}

// ServerConfig configures the webhook ingress.
type ServerConfig struct {
	Host                   string  `json:"host"`
	Port                   int     `json:"port"`
	Path                   string  `json:"path"`
	Secret                 string  `json:"secret,omitempty"` // HMAC-SHA256 key; empty disables signature checks
	RateLimit              float64 `json:"rateLimit"`        // events per second, 0 = unlimited
	Burst                  int     `json:"burst"`
	Shards                 int     `json:"shards"`
	QueueSize              int     `json:"queueSize"`
	ShutdownTimeoutSeconds int     `json:"shutdownTimeoutSeconds"`
}

// AWSConfig is shared by every AWS-backed component.
type AWSConfig struct {
	Region   string `json:"region"`
	Endpoint string `json:"endpoint,omitempty"` // LocalStack and friends
}

type StoreConfig struct {
	Driver             string     `json:"driver"` // "sqlite" | "dynamodb"
	SQLitePath         string     `json:"sqlitePath"`
	ConversationsTable string     `json:"conversationsTable"`
	BindingsTable      string     `json:"bindingsTable"`
	TenantsTable       string     `json:"tenantsTable"`
	Lock               LockConfig `json:"lock"`
}

// LockConfig enables the Redis lock around transcript updates.
type LockConfig struct {
	Enabled    bool   `json:"enabled"`
	Addr       string `json:"addr"`
	Password   string `json:"password,omitempty"`
	DB         int    `json:"db"`
	TTLSeconds int    `json:"ttlSeconds"`
}

type TeamsConfig struct {
	AuthTokenURL   string `json:"authTokenUrl"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
	FileConsent    bool   `json:"fileConsent"` // send carousel images as file-consent cards
}

type TicketingConfig struct {
	Sink           string `json:"sink"`               // "log" | "lambda" | "http"
	Function       string `json:"function,omitempty"` // lambda function name or ARN
	URL            string `json:"url,omitempty"`
	Token          string `json:"token,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

type SearchConfig struct {
	Provider        string        `json:"provider"` // "static" | "kendra"
	IndexID         string        `json:"indexId,omitempty"`
	NoResultMessage string        `json:"noResultMessage"`
	Entries         []SearchEntry `json:"entries,omitempty"`
}

// SearchEntry is one keyword answer of the static search provider.
type SearchEntry struct {
	Keyword string `json:"keyword"`
	Answer  string `json:"answer"`
	Link    string `json:"link,omitempty"`
}

type TranslationConfig struct {
	Provider        string `json:"provider"` // "none" | "aws"
	SourceLanguage  string `json:"sourceLanguage"`
	DefaultLanguage string `json:"defaultLanguage"`
}

// TranscriptConfig points at the chat provider's history API.
type TranscriptConfig struct {
	BaseURL        string `json:"baseUrl"`
	Path           string `json:"path"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

type RoutingConfig struct {
	FallbackMarker       string `json:"fallbackMarker"`
	TerminationPhrase    string `json:"terminationPhrase"`
	TerminationTenant    string `json:"terminationTenant"`
	TerminationDelimiter string `json:"terminationDelimiter"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.teamsrouter).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".teamsrouter"
	}
	return filepath.Join(home, ".teamsrouter")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads a JSON or YAML (.yaml, .yml) config file on top of Defaults.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	if isYAML(path) {
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
		}
	}

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Store.SQLitePath = ExpandPath(cfg.Store.SQLitePath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// yamlToJSON re-encodes a YAML document as JSON so both formats share the
// json struct tags.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(doc)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		hasDefault := len(groups) >= 3 && groups[2] != ""

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return groups[2]
			}
			return match
		}
		return val
	})
}

// Save writes the config as JSON, or as YAML for .yaml/.yml paths.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if isYAML(path) {
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("cannot marshal config: %w", err)
		}
		if data, err = yaml.Marshal(doc); err != nil {
			return fmt.Errorf("cannot marshal config: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "log.level must be one of: debug, info, warn, error")
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, "log.format must be one of: text, json")
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	if !strings.HasPrefix(cfg.Server.Path, "/") {
		errs = append(errs, "server.path must start with /")
	}
	if cfg.Server.RateLimit < 0 {
		errs = append(errs, "server.rateLimit must be >= 0")
	}
	if cfg.Server.Shards < 1 || cfg.Server.Shards > 256 {
		errs = append(errs, "server.shards must be between 1 and 256")
	}
	if cfg.Server.QueueSize < 1 {
		errs = append(errs, "server.queueSize must be >= 1")
	}

	switch cfg.Store.Driver {
	case "sqlite":
		if cfg.Store.SQLitePath == "" {
			errs = append(errs, "store.sqlitePath is required for the sqlite driver")
		}
	case "dynamodb":
		if cfg.Store.ConversationsTable == "" || cfg.Store.BindingsTable == "" || cfg.Store.TenantsTable == "" {
			errs = append(errs, "store.conversationsTable, store.bindingsTable and store.tenantsTable are required for the dynamodb driver")
		}
	default:
		errs = append(errs, "store.driver must be one of: sqlite, dynamodb")
	}
	if cfg.Store.Lock.Enabled && cfg.Store.Lock.Addr == "" {
		errs = append(errs, "store.lock.addr is required when the lock is enabled")
	}

	if _, err := url.ParseRequestURI(cfg.Teams.AuthTokenURL); err != nil {
		errs = append(errs, "teams.authTokenUrl must be an absolute URL")
	}

	switch cfg.Ticketing.Sink {
	case "log":
	case "lambda":
		if cfg.Ticketing.Function == "" {
			errs = append(errs, "ticketing.function is required for the lambda sink")
		}
	case "http":
		if cfg.Ticketing.URL == "" {
			errs = append(errs, "ticketing.url is required for the http sink")
		}
	default:
		errs = append(errs, "ticketing.sink must be one of: log, lambda, http")
	}

	switch cfg.Search.Provider {
	case "static":
	case "kendra":
		if cfg.Search.IndexID == "" {
			errs = append(errs, "search.indexId is required for the kendra provider")
		}
	default:
		errs = append(errs, "search.provider must be one of: static, kendra")
	}

	switch cfg.Translation.Provider {
	case "none", "aws":
	default:
		errs = append(errs, "translation.provider must be one of: none, aws")
	}

	if cfg.Transcript.BaseURL != "" {
		if _, err := url.ParseRequestURI(cfg.Transcript.BaseURL); err != nil {
			errs = append(errs, "transcript.baseUrl must be an absolute URL")
		}
	}

	if cfg.Routing.TerminationDelimiter == "" {
		errs = append(errs, "routing.terminationDelimiter must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
