package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gookit/validate"
	"github.com/spf13/viper"

	"kpiconsole/internal/platform/crypto"
)

const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"

	StoreMemory   = "memory"
	StoreFile     = "file"
	StorePostgres = "postgres"
)

type Config struct {
	Addr               string        `mapstructure:"APP_ADDR" validate:"required"`
	Environment        string        `mapstructure:"APP_ENV" validate:"required|in:development,test,production"`
	LogLevel           string        `mapstructure:"LOG_LEVEL" validate:"required|in:debug,info,warn,error"`
	LogFormat          string        `mapstructure:"LOG_FORMAT" validate:"required|in:text,json"`
	JWTSecret          string        `mapstructure:"JWT_SECRET"`
	TokenTTL           time.Duration `mapstructure:"TOKEN_TTL"`
	StoreDriver        string        `mapstructure:"STORE_DRIVER" validate:"required|in:memory,file,postgres"`
	StoreDir           string        `mapstructure:"STORE_DIR"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	RunMigrations      bool          `mapstructure:"RUN_MIGRATIONS"`
	DataEncryptionKey  string        `mapstructure:"DATA_ENCRYPTION_KEY"`
	CacheSizeMB        int           `mapstructure:"CACHE_SIZE_MB" validate:"min:0"`
	DepartmentSecret   string        `mapstructure:"DEPARTMENT_SECRET" validate:"required"`
	DefaultPasskey     string        `mapstructure:"DEFAULT_PASSKEY" validate:"required|minLen:4"`
	SeedDepartments    []string      `mapstructure:"SEED_DEPARTMENTS"`
	MaxBodyBytes       int64         `mapstructure:"MAX_BODY_BYTES"`
	RateLimitPerMinute int           `mapstructure:"RATE_LIMIT_PER_MINUTE"`
	SnapshotInterval   time.Duration `mapstructure:"SNAPSHOT_INTERVAL"`
	SnapshotDir        string        `mapstructure:"SNAPSHOT_DIR"`
	SnapshotKeep       int           `mapstructure:"SNAPSHOT_KEEP" validate:"min:0"`
	ReportDir          string        `mapstructure:"REPORT_DIR"`
	MetricsEnabled     bool          `mapstructure:"METRICS_ENABLED"`
	TemplatesFile      string        `mapstructure:"TEMPLATES_FILE"`
}

func defaults() map[string]any {
	return map[string]any{
		"APP_ADDR":              ":8080",
		"APP_ENV":               EnvDevelopment,
		"LOG_LEVEL":             "info",
		"LOG_FORMAT":            "text",
		"JWT_SECRET":            "",
		"TOKEN_TTL":             "12h",
		"STORE_DRIVER":          StoreFile,
		"STORE_DIR":             "data/store",
		"DATABASE_URL":          "",
		"RUN_MIGRATIONS":        true,
		"DATA_ENCRYPTION_KEY":   "",
		"CACHE_SIZE_MB":         8,
		"DEPARTMENT_SECRET":     "AA2001",
		"DEFAULT_PASSKEY":       "123456",
		"SEED_DEPARTMENTS":      "Operations,Engineering,Finance",
		"MAX_BODY_BYTES":        1048576,
		"RATE_LIMIT_PER_MINUTE": 120,
		"SNAPSHOT_INTERVAL":     "1h",
		"SNAPSHOT_DIR":          "data/snapshots",
		"SNAPSHOT_KEEP":         24,
		"REPORT_DIR":            "data/reports",
		"METRICS_ENABLED":       true,
		"TEMPLATES_FILE":        "",
	}
}

// Load reads configuration from the environment and, when CONFIG_FILE is
// set, from that YAML file. Environment variables win over the file.
func Load() (Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode into config struct: %w", err)
	}
	cfg.SeedDepartments = splitList(v.GetStringSlice("SEED_DEPARTMENTS"))
	return cfg, nil
}

func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c Config) Validate() error {
	v := validate.Struct(&c)
	if !v.Validate() {
		return v.Errors
	}
	if c.Environment == EnvProduction {
		if strings.TrimSpace(c.JWTSecret) == "" {
			return errors.New("JWT_SECRET must be set to a strong value in production")
		}
		if c.StoreDriver == StoreFile && strings.TrimSpace(c.DataEncryptionKey) == "" {
			return errors.New("DATA_ENCRYPTION_KEY must be set in production for encryption at rest")
		}
	}
	switch c.StoreDriver {
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	case StoreFile:
		if strings.TrimSpace(c.StoreDir) == "" {
			return errors.New("STORE_DIR is required for the file store")
		}
	}
	if c.DataEncryptionKey != "" {
		if _, err := crypto.DecodeKey(c.DataEncryptionKey); err != nil {
			return fmt.Errorf("DATA_ENCRYPTION_KEY: %w", err)
		}
	}
	if c.TokenTTL < time.Minute {
		return errors.New("TOKEN_TTL must be at least 1m")
	}
	if c.MaxBodyBytes < 1024 {
		return errors.New("MAX_BODY_BYTES must be at least 1024")
	}
	if c.RateLimitPerMinute <= 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.SnapshotInterval < 0 {
		return errors.New("SNAPSHOT_INTERVAL must not be negative")
	}
	return nil
}

// Secret returns the JWT signing secret, falling back to a fixed development
// secret outside production.
func (c Config) Secret() string {
	if c.JWTSecret != "" {
		return c.JWTSecret
	}
	return "kpiconsole-dev-secret"
}
