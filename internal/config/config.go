// Package config holds the persisted settings for InsightLens.
// Settings live in ~/.insightlens/config.yaml and can be overridden with
// INSIGHTLENS_* environment variables. The store keeps the browser
// extension's storage contract: string-keyed Get/Set plus change watchers,
// and values are re-read on every Get so a toggle applies to the very next
// request.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Keys the orchestrator reads on every request.
const (
	KeyAPIMode       = "apiMode"       // "local" or "gemini"
	KeyResponseStyle = "responseStyle" // "short" or "detailed"
	KeyNotifications = "isNotification"
	KeyUserAPIKey    = "userApiKey"
)

// Defaults mirrors the extension's first-run settings.
type Defaults struct {
	APIMode       string        `yaml:"apiMode"`
	ResponseStyle string        `yaml:"responseStyle"`
	Notifications bool          `yaml:"isNotification"`
	UserAPIKey    string        `yaml:"userApiKey"`
	Logging       LoggingConfig `yaml:"logging"`
	LLM           LLMConfig     `yaml:"llm"`
	Snippets      SnippetConfig `yaml:"snippets"`
	Relay         RelayConfig   `yaml:"relay"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// LLMConfig carries per-backend endpoints and models.
type LLMConfig struct {
	Ollama BackendConfig `yaml:"ollama"`
	Gemini BackendConfig `yaml:"gemini"`
}

// BackendConfig is the endpoint/model pair for one backend.
type BackendConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
}

// SnippetConfig locates the saved-code database.
type SnippetConfig struct {
	DBPath string `yaml:"db_path"`
}

// RelayConfig configures the background relay for the hosted-API path.
// An empty URL keeps the relay in-process.
type RelayConfig struct {
	URL    string `yaml:"url"`
	Listen string `yaml:"listen"`
}

// Default returns the first-run configuration.
func Default() Defaults {
	return Defaults{
		APIMode:       "local",
		ResponseStyle: "short",
		Notifications: true,
		Logging:       LoggingConfig{Level: "info"},
		LLM: LLMConfig{
			Ollama: BackendConfig{
				Endpoint: "http://127.0.0.1:11434",
				Model:    "llama3",
			},
			Gemini: BackendConfig{
				Endpoint: "https://generativelanguage.googleapis.com/v1beta",
				Model:    "gemini-1.5-flash",
			},
		},
		Snippets: SnippetConfig{DBPath: "~/.insightlens/snippets.db"},
		Relay:    RelayConfig{Listen: "127.0.0.1:8743"},
	}
}

// Store is the live settings store backed by a viper instance.
type Store struct {
	mu       sync.RWMutex
	v        *viper.Viper
	path     string
	watchers map[string][]func(value string)
}

// Load opens (or creates) the config file under the user's home directory.
func Load() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	return LoadFromPath(filepath.Join(home, ".insightlens", "config.yaml"))
}

// LoadFromPath opens the config file at path, writing defaults first if it
// does not exist yet.
func LoadFromPath(path string) (*Store, error) {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("INSIGHTLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	s := &Store{
		v:        v,
		path:     path,
		watchers: make(map[string][]func(string)),
	}

	// Pick up edits made outside this process (the extension's onChange).
	v.OnConfigChange(func(fsnotify.Event) {
		s.fireAll()
	})
	v.WatchConfig()

	return s, nil
}

// Get returns the value for key, empty string when unset.
func (s *Store) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.v == nil {
		return "", fmt.Errorf("config store not initialized")
	}
	return s.v.GetString(key), nil
}

// Bool reads key as a boolean; def is used when the key is unset or garbage.
func (s *Store) Bool(key string, def bool) bool {
	raw, err := s.Get(key)
	if err != nil || raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}

// Set updates key, persists the file, and fires watchers for that key.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	s.v.Set(key, value)
	err := s.v.WriteConfig()
	fns := append([]func(string){}, s.watchers[normalizeKey(key)]...)
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("persist config: %w", err)
	}
	for _, fn := range fns {
		fn(value)
	}
	return nil
}

// Watch registers fn to run whenever key changes (via Set or a file edit).
func (s *Store) Watch(key string, fn func(value string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := normalizeKey(key)
	s.watchers[k] = append(s.watchers[k], fn)
}

// fireAll re-reads every watched key and notifies its watchers.
func (s *Store) fireAll() {
	s.mu.RLock()
	type pending struct {
		fn    func(string)
		value string
	}
	var calls []pending
	for key, fns := range s.watchers {
		value := s.v.GetString(key)
		for _, fn := range fns {
			calls = append(calls, pending{fn: fn, value: value})
		}
	}
	s.mu.RUnlock()

	for _, c := range calls {
		c.fn(c.value)
	}
}

// Path returns the location of the backing file.
func (s *Store) Path() string {
	return s.path
}

func normalizeKey(key string) string {
	return strings.ToLower(key)
}

// writeConfigFile writes cfg as YAML with a short header comment.
func writeConfigFile(path string, cfg Defaults) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	header := "# InsightLens configuration.\n# apiMode: local | gemini · responseStyle: short | detailed\n"
	return os.WriteFile(path, append([]byte(header), data...), 0o644)
}

// expandPath resolves a leading ~ to the user's home directory.
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
