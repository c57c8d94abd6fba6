// Package config loads the gateway's process-wide configuration: a handful
// of environment variables in the teacher's hand-rolled getEnv style (no
// config file parser, no struct-tag library — the teacher itself reads
// cmd/main.go's env vars this way), plus the permissions ruleset from a
// YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Permission is a single {effect, action, resource} tuple as returned by the
// permission service and referenced by the ruleset.
type Permission struct {
	Effect   string `yaml:"effect" json:"effect"`
	Action   string `yaml:"action" json:"action"`
	Resource string `yaml:"resource" json:"resource"`
}

// ConjunctiveGroup is a list of tuples that must ALL be present in the
// fetched permission list for the owning tag to be granted.
type ConjunctiveGroup []Permission

// RulesetEntry is a single tag and its alternative conjunctive groups. A tag
// is granted if ANY group's tuples are all present.
type RulesetEntry struct {
	Tag    string
	Groups []ConjunctiveGroup
}

// Ruleset is the ordered list of configured tags: the fixed vector that
// session permission sets are built against (see the design note on
// interning permission tags as indices into a startup-built vector rather
// than through a global mutable table). Order is taken from the YAML
// document's own key order, not Go's randomized map iteration, so that tag
// sets built from it are deterministic across runs of the same config.
type Ruleset []RulesetEntry

// UnmarshalYAML decodes a mapping of tag name -> list-of-groups while
// preserving the order the tags appear in the source document.
func (r *Ruleset) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("permissions ruleset must be a YAML mapping, got kind %d", value.Kind)
	}
	entries := make(Ruleset, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		keyNode, valNode := value.Content[i], value.Content[i+1]
		var groups []ConjunctiveGroup
		if err := valNode.Decode(&groups); err != nil {
			return fmt.Errorf("tag %q: %w", keyNode.Value, err)
		}
		entries = append(entries, RulesetEntry{Tag: keyNode.Value, Groups: groups})
	}
	*r = entries
	return nil
}

type rulesetFile struct {
	Permissions Ruleset `yaml:"permissions"`
}

// Config is the gateway's full process-wide configuration.
type Config struct {
	ListeningAddress string

	PermissionURL string
	SidecarURL    string

	SocketEncryptionKey string

	AccessTokenCookieName  string
	RefreshTokenCookieName string

	Permissions Ruleset

	LogLevel  string
	LogPretty bool

	RedisAddr    string
	RedisEnabled bool

	MetricsEnabled bool

	AdminTokenHash string

	SweepInterval time.Duration
}

// Load reads configuration from the process environment and the YAML
// ruleset file named by PERMISSIONS_CONFIG_FILE. It returns an error rather
// than exiting so callers (main, tests) control the exit path.
func Load() (*Config, error) {
	cfg := &Config{
		ListeningAddress:       getEnv("LISTENING_ADDRESS", ":8080"),
		PermissionURL:          getEnv("PERMISSION_URL", ""),
		SidecarURL:             getEnv("SIDECAR_URL", ""),
		SocketEncryptionKey:    getEnv("SOCKET_ENCRYPTION_KEY", ""),
		AccessTokenCookieName:  getEnv("ACCESS_TOKEN_JWT_COOKIE_NAME", "access_token"),
		RefreshTokenCookieName: getEnv("REFRESH_TOKEN_JWT_COOKIE_NAME", "refresh_token"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogPretty:              getEnvBool("LOG_PRETTY", false),
		RedisAddr:              getEnv("REDIS_ADDR", ""),
		RedisEnabled:           getEnvBool("REDIS_ENABLED", false),
		MetricsEnabled:         getEnvBool("METRICS_ENABLED", true),
		AdminTokenHash:         getEnv("GATEWAY_ADMIN_TOKEN_HASH", ""),
		SweepInterval:          getEnvDuration("SWEEP_INTERVAL", time.Minute),
	}

	if cfg.PermissionURL == "" {
		return nil, fmt.Errorf("PERMISSION_URL is required")
	}
	if cfg.SidecarURL == "" {
		return nil, fmt.Errorf("SIDECAR_URL is required")
	}
	if cfg.SocketEncryptionKey == "" {
		return nil, fmt.Errorf("SOCKET_ENCRYPTION_KEY is required")
	}

	rulesetPath := getEnv("PERMISSIONS_CONFIG_FILE", "")
	ruleset, err := loadRuleset(rulesetPath)
	if err != nil {
		return nil, fmt.Errorf("loading permissions ruleset: %w", err)
	}
	cfg.Permissions = ruleset

	return cfg, nil
}

func loadRuleset(path string) (Ruleset, error) {
	if path == "" {
		return Ruleset{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var parsed rulesetFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}
	if parsed.Permissions == nil {
		parsed.Permissions = Ruleset{}
	}
	return parsed.Permissions, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
