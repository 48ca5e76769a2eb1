package commands

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xraph/replydesk/extension"
)

// Config is the file layout read by the CLI.
type Config struct {
	Server    ServerConfig      `yaml:"server"`
	Logging   LoggingConfig     `yaml:"logging"`
	Redis     RedisConfig       `yaml:"redis"`
	Desk      extension.Config  `yaml:"replydesk"`
	Tenants   []TenantConfig    `yaml:"tenants"`
	Knowledge []KnowledgeConfig `yaml:"knowledge"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level"`

	// Format is "json" or "text".
	Format string `yaml:"format"`
}

// RedisConfig enables shared idempotency and rate limiting. Left empty,
// both stay in process.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TenantConfig seeds one tenant's platform credentials at startup.
type TenantConfig struct {
	ID            string `yaml:"id"`
	BotID         string `yaml:"bot_id"`
	ChannelSecret string `yaml:"channel_secret"`
	AccessToken   string `yaml:"access_token"`

	// ConfidenceThreshold overrides replydesk.confidence_threshold for this
	// tenant. Zero keeps the desk default.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// KnowledgeConfig seeds one knowledge base entry at startup.
type KnowledgeConfig struct {
	Tenant   string `yaml:"tenant"`
	Title    string `yaml:"title"`
	Category string `yaml:"category"`
	Content  string `yaml:"content"`
}

// DefaultConfig returns the configuration used when a file leaves a field
// out.
func DefaultConfig() *Config {
	return &Config{
		Server:  ServerConfig{Addr: ":8080"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Desk:    extension.DefaultConfig(),
	}
}

// Validate reports configuration the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if len(c.Desk.Vault.Keys) == 0 && c.Desk.Vault.Legacy == "" {
		errs = append(errs, errors.New("replydesk.vault needs at least one key"))
	}
	if c.Desk.QueueURL != "" && c.Desk.QueueSecret == "" {
		errs = append(errs, errors.New("replydesk.queue_secret is required with queue_url"))
	}
	for i, t := range c.Tenants {
		if t.ID == "" || t.ChannelSecret == "" || t.AccessToken == "" {
			errs = append(errs, fmt.Errorf("tenants[%d]: id, channel_secret and access_token are required", i))
		}
		if t.ConfidenceThreshold < 0 || t.ConfidenceThreshold > 1 {
			errs = append(errs, fmt.Errorf("tenants[%d]: confidence_threshold must be within [0, 1]", i))
		}
	}
	for i, k := range c.Knowledge {
		if k.Tenant == "" || k.Title == "" || k.Content == "" {
			errs = append(errs, fmt.Errorf("knowledge[%d]: tenant, title and content are required", i))
		}
	}
	return errors.Join(errs...)
}

// LoadConfigFromFile reads path, expands environment references and
// decodes the result over DefaultConfig.
func LoadConfigFromFile(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded, err := expandEnvVars(string(data))
	if err != nil {
		return nil, err
	}
	return ParseConfig([]byte(expanded))
}

// ParseConfig decodes YAML over DefaultConfig.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// FindConfigFile returns the first config file found in the usual places,
// or "" when there is none.
func FindConfigFile() string {
	candidates := []string{
		"replydesk.yaml",
		"replydesk.yml",
		"config.yaml",
		"config.yml",
		"configs/replydesk.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// resolveConfig loads the --config file, falling back to discovery and then
// to defaults plus environment.
func resolveConfig(cmd *cobra.Command) (*Config, string, error) {
	path, _ := cmd.Root().PersistentFlags().GetString("config")
	if path == "" {
		path = FindConfigFile()
	}
	if path == "" {
		loadEnvFiles()
		return DefaultConfig(), "", nil
	}

	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("loading config from %s: %w", path, err)
	}
	return cfg, path, nil
}

// loadEnvFiles loads .env and .env.local. Variables already set win.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}

// envVarPattern matches ${VAR}, ${VAR:-default}, ${VAR:?message} and $VAR.
// Groups: 1=name, 2=modifier, 3=modifier value, 4=bare name.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::([-?])([^}]*))?\}|\$([A-Z_][A-Z0-9_]*)`)

// expandEnvVars substitutes environment references. Unset plain references
// are left as written; an unset ${VAR:?message} is an error.
func expandEnvVars(input string) (string, error) {
	var missing []string

	out := envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := envVarPattern.FindStringSubmatch(match)
		name, modifier, value, bare := sub[1], sub[2], sub[3], sub[4]

		if bare != "" {
			if v, ok := os.LookupEnv(bare); ok {
				return v
			}
			return match
		}

		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		switch modifier {
		case "-":
			return value
		case "?":
			msg := value
			if msg == "" {
				msg = "required environment variable not set"
			}
			missing = append(missing, name+": "+msg)
			return ""
		}
		return match
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("config error: %s", strings.Join(missing, "; "))
	}
	return out, nil
}
