// Package config provides configuration management for the gateway.
// It handles loading and parsing YAML configuration files, environment
// overlay, and live reload, and provides structured access to application
// settings: server port, store backend, credential pool policy, IP guard
// thresholds, and streaming behavior.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// DefaultPanelGitHubRepository is kept for operators who reference the
// upstream project in their own tooling.
const DefaultPanelGitHubRepository = "cliforge/codeassist-gateway"

// Config is the application's full configuration, loaded from a YAML file
// and overlaid with recognized environment variables.
type Config struct {
	SDKConfig `yaml:",inline"`

	// Debug enables verbose logging and request/response dumping.
	Debug bool `yaml:"debug" json:"debug"`

	// Port is the TCP port the HTTP server listens on.
	Port int `yaml:"port" json:"port"`

	// AuthDir is the base directory for credential and log storage when no
	// writable override is available.
	AuthDir string `yaml:"auth-dir" json:"auth-dir"`

	// LoggingToFile switches the request logger from stdout to a rotating
	// file under the resolved log directory.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogsMaxTotalSizeMB bounds the total size of rotated log files; 0
	// disables the cleaner.
	LogsMaxTotalSizeMB int `yaml:"logs-max-total-size-mb,omitempty" json:"logs-max-total-size-mb,omitempty"`

	// AdminUsername / AdminPassword gate the administrative surface.
	AdminUsername string `yaml:"admin-username,omitempty" json:"admin-username,omitempty"`
	AdminPassword string `yaml:"admin-password,omitempty" json:"admin-password,omitempty"`

	// JWTSecret signs administrative session tokens.
	JWTSecret string `yaml:"jwt-secret,omitempty" json:"jwt-secret,omitempty"`

	// SystemInstruction and OfficialSystemPrompt are merged ahead of every
	// inbound request's own system messages.
	SystemInstruction    string `yaml:"system-instruction,omitempty" json:"system-instruction,omitempty"`
	OfficialSystemPrompt string `yaml:"official-system-prompt,omitempty" json:"official-system-prompt,omitempty"`
	OfficialPromptFirst  bool   `yaml:"official-prompt-first,omitempty" json:"official-prompt-first,omitempty"`

	// ImageBaseURL selects the image sink: "s3://bucket" routes to the
	// object-storage backend, anything else (or empty) uses local disk
	// under AuthDir/images served by the gateway itself.
	ImageBaseURL string `yaml:"image-base-url,omitempty" json:"image-base-url,omitempty"`

	// MaxImagesPerRequest caps inline image attachments per inbound request.
	MaxImagesPerRequest int `yaml:"max-images-per-request,omitempty" json:"max-images-per-request,omitempty"`

	// Store selects and configures the credential store backend.
	Store StoreConfig `yaml:"store,omitempty" json:"store,omitempty"`

	// Pool configures credential rotation.
	Pool PoolConfig `yaml:"pool,omitempty" json:"pool,omitempty"`

	// IPGuard configures the violation/block thresholds.
	IPGuard IPGuardConfig `yaml:"ip-guard,omitempty" json:"ip-guard,omitempty"`

	// SignatureCache configures the thought-signature cache policy.
	SignatureCache SignatureCacheConfig `yaml:"signature-cache,omitempty" json:"signature-cache,omitempty"`

	// MaxRetries bounds retryable-rate-limit/capacity-exhausted failover
	// attempts per inbound request.
	MaxRetries int `yaml:"max-retries,omitempty" json:"max-retries,omitempty"`

	// HeartbeatMillis controls SSE heartbeat cadence; 0 disables heartbeats.
	HeartbeatMillis int `yaml:"heartbeat-millis,omitempty" json:"heartbeat-millis,omitempty"`

	// FakeNonStream runs non-stream requests through the stream path and
	// collects a single final response, avoiding long-poll upstream timeouts.
	FakeNonStream bool `yaml:"fake-non-stream,omitempty" json:"fake-non-stream,omitempty"`

	// UpstreamHost selects between the sandbox and production CodeAssist
	// hosts. Empty uses the production default.
	UpstreamHost string `yaml:"upstream-host,omitempty" json:"upstream-host,omitempty"`

	// UseUTLS prefers the TLS-fingerprinting dialer over net/http when true.
	UseUTLS bool `yaml:"use-utls,omitempty" json:"use-utls,omitempty"`

	// OpenAICompatibility lists third-party OpenAI-shaped upstream aliases.
	OpenAICompatibility []OpenAICompatibility `yaml:"openai-compatibility,omitempty" json:"openai-compatibility,omitempty"`

	// path records where this Config was loaded from, for SaveConfig and
	// for the fsnotify watcher.
	path string
}

// StoreConfig selects and configures the credential store backend.
type StoreConfig struct {
	// Driver is "file" (default) or "postgres".
	Driver string `yaml:"driver,omitempty" json:"driver,omitempty"`

	// Path is the encrypted credential file path for the file driver.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// DSN is the Postgres connection string for the postgres driver.
	DSN string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
}

// PoolConfig configures credential rotation.
type PoolConfig struct {
	// Strategy is one of "round_robin", "request_count", "quota_exhausted".
	Strategy string `yaml:"strategy,omitempty" json:"strategy,omitempty"`

	// RequestCount is N for the request_count strategy.
	RequestCount int `yaml:"request-count,omitempty" json:"request-count,omitempty"`
}

// IPGuardConfig configures violation counting and block durations.
type IPGuardConfig struct {
	WindowSeconds          int      `yaml:"window-seconds,omitempty" json:"window-seconds,omitempty"`
	Threshold              int      `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	TempBlockSeconds       int      `yaml:"temp-block-seconds,omitempty" json:"temp-block-seconds,omitempty"`
	CycleWindowSeconds     int      `yaml:"cycle-window-seconds,omitempty" json:"cycle-window-seconds,omitempty"`
	PermanentBlockCycles   int      `yaml:"permanent-block-cycles,omitempty" json:"permanent-block-cycles,omitempty"`
	Whitelist              []string `yaml:"whitelist,omitempty" json:"whitelist,omitempty"`
}

// SignatureCacheConfig selects the thought-signature caching policy.
type SignatureCacheConfig struct {
	// Mode is one of "always", "tool-calls-or-image", "never".
	Mode     string `yaml:"mode,omitempty" json:"mode,omitempty"`
	MaxSize  int    `yaml:"max-size,omitempty" json:"max-size,omitempty"`
	TTLSeconds int  `yaml:"ttl-seconds,omitempty" json:"ttl-seconds,omitempty"`
}

// OpenAICompatibility describes one third-party OpenAI-shaped upstream.
type OpenAICompatibility struct {
	Name    string                      `yaml:"name" json:"name"`
	BaseURL string                      `yaml:"base-url" json:"base-url"`
	APIKey  string                      `yaml:"api-key,omitempty" json:"api-key,omitempty"`
	Models  []OpenAICompatibilityModel  `yaml:"models,omitempty" json:"models,omitempty"`
}

// OpenAICompatibilityModel aliases a local model name to an upstream one.
type OpenAICompatibilityModel struct {
	Name  string `yaml:"name" json:"name"`
	Alias string `yaml:"alias" json:"alias"`
}

func defaultConfig() *Config {
	return &Config{
		Port:                8080,
		AuthDir:             "~/.codeassist-gateway",
		MaxImagesPerRequest: 8,
		MaxRetries:          3,
		HeartbeatMillis:     15_000,
		Store:               StoreConfig{Driver: "file", Path: "credentials.enc"},
		Pool:                PoolConfig{Strategy: "round_robin", RequestCount: 5},
		IPGuard: IPGuardConfig{
			WindowSeconds:        600,
			Threshold:            10,
			TempBlockSeconds:     1800,
			CycleWindowSeconds:   86400,
			PermanentBlockCycles: 5,
		},
		SignatureCache: SignatureCacheConfig{
			Mode:       "tool-calls-or-image",
			MaxSize:    4096,
			TTLSeconds: 3600,
		},
	}
}

// LoadConfig reads and parses the YAML configuration at path, applying
// defaults for any unset field.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional is like LoadConfig but, when optional is true, returns
// the default configuration instead of an error when the file is absent.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(configFile)
	if err != nil {
		if optional && os.IsNotExist(err) {
			cfg.path = configFile
			applyEnvOverlay(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", configFile, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", configFile, err)
	}
	cfg.path = configFile
	applyEnvOverlay(cfg)
	return cfg, nil
}

// applyEnvOverlay applies the documented environment variables over
// whatever the YAML file provided, without overwriting explicit YAML values
// with empty ones.
func applyEnvOverlay(cfg *Config) {
	if v := os.Getenv("API_KEY"); v != "" && len(cfg.APIKeys) == 0 {
		cfg.APIKeys = []string{v}
	}
	if v := os.Getenv("ADMIN_USERNAME"); v != "" {
		cfg.AdminUsername = v
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		cfg.AdminPassword = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("SYSTEM_INSTRUCTION"); v != "" {
		cfg.SystemInstruction = v
	}
	if v := os.Getenv("OFFICIAL_SYSTEM_PROMPT"); v != "" {
		cfg.OfficialSystemPrompt = v
	}
	if v := os.Getenv("IMAGE_BASE_URL"); v != "" {
		cfg.ImageBaseURL = v
	}
	if v := os.Getenv("PROXY"); v != "" {
		cfg.ProxyURL = v
	} else if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.ProxyURL = v
	} else if v := os.Getenv("HTTP_PROXY"); v != "" {
		cfg.ProxyURL = v
	} else if v := os.Getenv("ALL_PROXY"); v != "" {
		cfg.ProxyURL = v
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("DEBUG_DUMP_REQUEST_RESPONSE"); v == "1" || v == "true" {
		cfg.Debug = true
	}
}

// SaveConfigPreserveComments writes cfg back to its source file. Comment
// preservation is not implemented for the trimmed config shape this gateway
// uses; callers that need byte-stable round trips should keep their own
// copy of the file's comments out of band.
func SaveConfigPreserveComments(configFile string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	return os.WriteFile(configFile, data, 0o600)
}

// Watch starts a live-reload watcher on the config's source file. On every
// write event it re-parses the file and, if valid, invokes onReload with
// the new Config; an invalid file is logged and the previous Config is
// kept running. The returned stop function closes the watcher.
func (c *Config) Watch(onReload func(*Config)) (stop func(), err error) {
	if c.path == "" {
		return func() {}, nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: watcher: %w", err)
	}
	dir := filepath.Dir(c.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("config: watch %s: %w", dir, err)
	}
	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(c.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				reloaded, errReload := LoadConfigOptional(c.path, false)
				if errReload != nil {
					log.WithError(errReload).Warn("config: reload failed, keeping previous configuration")
					continue
				}
				onReload(reloaded)
			case errWatch, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(errWatch).Warn("config: watcher error")
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		_ = watcher.Close()
	}, nil
}
