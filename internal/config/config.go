// Package config loads server settings from CFGREG_* environment variables,
// an optional .env file and an optional config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/alfredjeanlab/cfgregistry/internal/model"
	"github.com/alfredjeanlab/cfgregistry/internal/tracing"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CFGREG"

// Store backends.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	Store       string // CFGREG_STORE (postgres|sqlite; default postgres when a database URL is set)
	DatabaseURL string // CFGREG_DATABASE_URL (required for postgres)
	SQLitePath  string // CFGREG_SQLITE_PATH (default "cfgregistry.db")

	DBMaxOpenConns    int           // CFGREG_DB_MAX_OPEN_CONNS (default 25)
	DBMaxIdleConns    int           // CFGREG_DB_MAX_IDLE_CONNS (default 5)
	DBConnMaxLifetime time.Duration // CFGREG_DB_CONN_MAX_LIFETIME (default 5m)

	GRPCAddr  string // CFGREG_GRPC_ADDR (default ":9090")
	HTTPAddr  string // CFGREG_HTTP_ADDR (default ":8080")
	NATSURL   string // CFGREG_NATS_URL (optional, empty = no events)
	AuthToken string // CFGREG_AUTH_TOKEN (optional, empty = auth disabled)

	// Global configuration target searched by non-strict lookups.
	GlobalConfigOrg   string // CFGREG_GLOBAL_CONFIG_ORG
	GlobalConfigSpace string // CFGREG_GLOBAL_CONFIG_SPACE

	LogFile   string // CFGREG_LOG_FILE (optional, rotated)
	LogLevel  string // CFGREG_LOG_LEVEL (default "info")
	LogFormat string // CFGREG_LOG_FORMAT (text|json, default "text")

	// Sync settings
	SyncInterval   time.Duration // CFGREG_SYNC_INTERVAL (default 3m; 0 = disabled)
	SyncS3Bucket   string        // CFGREG_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // CFGREG_SYNC_S3_ENDPOINT (custom endpoint for MinIO)
	SyncS3Region   string        // CFGREG_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // CFGREG_SYNC_S3_KEY (default "cfgregistry/snapshot.jsonl")
	SyncGitRepo    string        // CFGREG_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile    string        // CFGREG_SYNC_GIT_FILE (default "cfgregistry.jsonl")
	SyncGitBranch  string        // CFGREG_SYNC_GIT_BRANCH (default "main")

	Tracing tracing.Config // CFGREG_TRACING_*
}

var defaults = map[string]any{
	"store":                 "",
	"database_url":          "",
	"sqlite_path":           "cfgregistry.db",
	"db_max_open_conns":     25,
	"db_max_idle_conns":     5,
	"db_conn_max_lifetime":  "5m",
	"grpc_addr":             ":9090",
	"http_addr":             ":8080",
	"nats_url":              "",
	"auth_token":            "",
	"global_config_org":     "",
	"global_config_space":   "",
	"log_file":              "",
	"log_level":             "info",
	"log_format":            "text",
	"sync_interval":         "3m",
	"sync_s3_bucket":        "",
	"sync_s3_endpoint":      "",
	"sync_s3_region":        "us-east-1",
	"sync_s3_key":           "cfgregistry/snapshot.jsonl",
	"sync_git_repo":         "",
	"sync_git_file":         "cfgregistry.jsonl",
	"sync_git_branch":       "main",
	"tracing_enabled":       false,
	"tracing_exporter":      tracing.ExporterOTLP,
	"tracing_file":          "",
	"tracing_otlp_endpoint": "localhost:4317",
	"tracing_sample_rate":   1.0,
}

// Load reads the configuration. A .env file in the working directory is
// loaded first without overriding the environment. configFile is optional;
// when given it must exist. Environment variables take precedence over
// file values.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	c := &Config{
		Store:             strings.ToLower(v.GetString("store")),
		DatabaseURL:       v.GetString("database_url"),
		SQLitePath:        v.GetString("sqlite_path"),
		DBMaxOpenConns:    v.GetInt("db_max_open_conns"),
		DBMaxIdleConns:    v.GetInt("db_max_idle_conns"),
		DBConnMaxLifetime: v.GetDuration("db_conn_max_lifetime"),
		GRPCAddr:          v.GetString("grpc_addr"),
		HTTPAddr:          v.GetString("http_addr"),
		NATSURL:           v.GetString("nats_url"),
		AuthToken:         v.GetString("auth_token"),
		GlobalConfigOrg:   v.GetString("global_config_org"),
		GlobalConfigSpace: v.GetString("global_config_space"),
		LogFile:           v.GetString("log_file"),
		LogLevel:          v.GetString("log_level"),
		LogFormat:         v.GetString("log_format"),
		SyncS3Bucket:      v.GetString("sync_s3_bucket"),
		SyncS3Endpoint:    v.GetString("sync_s3_endpoint"),
		SyncS3Region:      v.GetString("sync_s3_region"),
		SyncS3Key:         v.GetString("sync_s3_key"),
		SyncGitRepo:       v.GetString("sync_git_repo"),
		SyncGitFile:       v.GetString("sync_git_file"),
		SyncGitBranch:     v.GetString("sync_git_branch"),
		Tracing: tracing.Config{
			Enabled:      v.GetBool("tracing_enabled"),
			Exporter:     v.GetString("tracing_exporter"),
			FilePath:     v.GetString("tracing_file"),
			OTLPEndpoint: v.GetString("tracing_otlp_endpoint"),
			SampleRate:   v.GetFloat64("tracing_sample_rate"),
			ServiceName:  "cfgregistry",
		},
	}

	if s := v.GetString("sync_interval"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("%s_SYNC_INTERVAL: %w", EnvPrefix, err)
		}
		c.SyncInterval = d
	}

	if c.Store == "" {
		c.Store = StoreSQLite
		if c.DatabaseURL != "" {
			c.Store = StorePostgres
		}
	}
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return nil, fmt.Errorf("%s_DATABASE_URL is required for the postgres store", EnvPrefix)
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return nil, fmt.Errorf("%s_SQLITE_PATH is required for the sqlite store", EnvPrefix)
		}
	default:
		return nil, fmt.Errorf("%s_STORE: unknown store %q", EnvPrefix, c.Store)
	}

	if (c.GlobalConfigOrg == "") != (c.GlobalConfigSpace == "") {
		return nil, fmt.Errorf("%s_GLOBAL_CONFIG_ORG and %s_GLOBAL_CONFIG_SPACE must be set together", EnvPrefix, EnvPrefix)
	}

	return c, nil
}

// GlobalConfigTarget returns the configured global configuration target,
// or nil when none is configured.
func (c *Config) GlobalConfigTarget() *model.Target {
	if c.GlobalConfigOrg == "" {
		return nil
	}
	return &model.Target{Org: c.GlobalConfigOrg, Space: c.GlobalConfigSpace}
}
