package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Corpora    Corpora    `yaml:"corpora"`
	Generator  Generator  `yaml:"generator"`
	Collectors Collectors `yaml:"collectors"`
	Cache      Cache      `yaml:"cache"`
	Search     Search     `yaml:"search"`
	Heuristics Heuristics `yaml:"heuristics"`
	Output     Output     `yaml:"output"`
	Server     Server     `yaml:"server"`
	Refresh    Refresh    `yaml:"refresh"`
	Logging    Logging    `yaml:"logging"`
}

// Corpora locates the operator-maintained rules, notes, pins and seed files.
// BaseURL takes precedence over Dir when both are set.
type Corpora struct {
	Dir     string        `yaml:"dir"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type Generator struct {
	Enabled     bool          `yaml:"enabled"`
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	OllamaURL   string        `yaml:"ollama_url"`
	OpenAIModel string        `yaml:"openai_model"`
	OpenAIURL   string        `yaml:"openai_url"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

type Collectors struct {
	UserAgent    string        `yaml:"user_agent"`
	RequestEvery time.Duration `yaml:"request_every"`
	Timeout      time.Duration `yaml:"timeout"`
	Feeds        []Feed        `yaml:"feeds"`
	Pages        []Page        `yaml:"pages"`
	Cards        []CardSource  `yaml:"cards"`
	SearchAPI    SearchAPI     `yaml:"search_api"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

// Page is a free-form "what's on" page. Extract picks how events are read
// from its text: "blocks" (default) or "llm".
type Page struct {
	URL     string `yaml:"url"`
	Name    string `yaml:"name"`
	Extract string `yaml:"extract"`
}

// CardSource describes an HTML listing page in terms of CSS selectors.
// URL may contain {region} and {query} placeholders. Venue is the location
// used when the card has none, for single-venue listings such as malls.
type CardSource struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	BaseURL     string `yaml:"base_url"`
	Card        string `yaml:"card"`
	Title       string `yaml:"title"`
	Link        string `yaml:"link"`
	Description string `yaml:"description"`
	Date        string `yaml:"date"`
	Location    string `yaml:"location"`
	Venue       string `yaml:"venue"`
}

type SearchAPI struct {
	Enabled        bool     `yaml:"enabled"`
	APIKeyEnv      string   `yaml:"api_key_env"`
	EngineIDEnv    string   `yaml:"engine_id_env"`
	Endpoint       string   `yaml:"endpoint"`
	QueryTemplates []string `yaml:"query_templates"`
}

type Cache struct {
	Backend      string        `yaml:"backend"`
	RedisURL     string        `yaml:"redis_url"`
	CollectorTTL time.Duration `yaml:"collector_ttl"`
	GeneratorTTL time.Duration `yaml:"generator_ttl"`
}

type Search struct {
	MaxResults    int           `yaml:"max_results"`
	SourceTimeout time.Duration `yaml:"source_timeout"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

// Refresh schedules background re-collection while serving. An empty
// schedule disables it.
type Refresh struct {
	Schedule string   `yaml:"schedule"`
	Regions  []string `yaml:"regions"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ConfigDir returns the XDG config directory for popfinder.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "popfinder")
}

// DataDir returns the XDG data directory for popfinder.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "popfinder")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/popfinder/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'popfinder init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the embedded default configuration.
func Default() *Config {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default config is invalid: %v", err))
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults. Heuristic lists
// from the file replace the defaults wholesale rather than merging.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Corpora: Corpora{Timeout: 10 * time.Second},
		Generator: Generator{
			Enabled:     true,
			Provider:    "openai",
			Model:       "qwen2.5:7b",
			OllamaURL:   "http://localhost:11434",
			OpenAIModel: "gpt-4.1-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   2500,
			Timeout:     60 * time.Second,
		},
		Collectors: Collectors{
			UserAgent:    "PopFinder/1.0 (event finder)",
			RequestEvery: 500 * time.Millisecond,
			Timeout:      10 * time.Second,
			SearchAPI: SearchAPI{
				APIKeyEnv:   "GOOGLE_API_KEY",
				EngineIDEnv: "GOOGLE_SEARCH_ENGINE_ID",
				Endpoint:    "https://www.googleapis.com/customsearch/v1",
			},
		},
		Cache: Cache{
			Backend:      "sqlite",
			CollectorTTL: 6 * time.Hour,
			GeneratorTTL: 48 * time.Hour,
		},
		Search: Search{
			MaxResults:    40,
			SourceTimeout: 10 * time.Second,
		},
		Heuristics: DefaultHeuristics(),
		Server:     Server{Port: 8000},
		Logging:    Logging{Level: "info", Format: "console"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at run time.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Generator.Provider) {
	case "ollama", "openai":
	default:
		return fmt.Errorf("invalid config: unknown generator provider %q", c.Generator.Provider)
	}
	switch strings.ToLower(c.Cache.Backend) {
	case "sqlite", "redis", "none":
	default:
		return fmt.Errorf("invalid config: unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisURL == "" {
		return fmt.Errorf("invalid config: cache.redis_url is required for the redis backend")
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("invalid config: search.max_results must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port must be between 1 and 65535")
	}
	for _, cs := range c.Collectors.Cards {
		if cs.URL == "" || cs.Card == "" || cs.Title == "" {
			return fmt.Errorf("invalid config: card source %q needs url, card and title selectors", cs.Name)
		}
	}
	for _, p := range c.Collectors.Pages {
		switch strings.ToLower(p.Extract) {
		case "", "blocks", "llm":
		default:
			return fmt.Errorf("invalid config: page %q: unknown extract mode %q", p.URL, p.Extract)
		}
	}
	if c.Refresh.Schedule != "" {
		if _, err := cron.ParseStandard(c.Refresh.Schedule); err != nil {
			return fmt.Errorf("invalid config: refresh.schedule: %w", err)
		}
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// GetCorporaDir returns the corpora directory, defaulting to <data>/corpora.
func (c *Config) GetCorporaDir() string {
	if c.Corpora.Dir != "" {
		return c.Corpora.Dir
	}
	return filepath.Join(c.GetDataDir(), "corpora")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
