package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type ConfigLoader struct {
	logger *zap.Logger
	v      *viper.Viper
}

func NewConfigLoader(logger *zap.Logger) *ConfigLoader {
	v := viper.New()
	v.SetConfigType("yaml")
	return &ConfigLoader{
		logger: logger,
		v:      v,
	}
}

func (cl *ConfigLoader) Load(filePath string) (*Config, error) {
	cl.v.SetConfigFile(filePath)
	if err := cl.v.ReadInConfig(); err != nil {
		cl.logger.Error("Failed to read config file", zap.String("file", filePath), zap.Error(err))
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := cl.v.Unmarshal(&cfg); err != nil {
		cl.logger.Error("Failed to unmarshal config", zap.Error(err))
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cl.validate(&cfg); err != nil {
		cl.logger.Error("Config validation failed", zap.Error(err))
		return nil, err
	}

	cl.logger.Info("Config loaded successfully", zap.String("file", filePath))
	return &cfg, nil
}

func (cl *ConfigLoader) validate(cfg *Config) error {
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn required")
	}

	if cfg.Temporal.HostPort == "" {
		cfg.Temporal.HostPort = "localhost:7233"
	}
	if cfg.Temporal.Namespace == "" {
		cfg.Temporal.Namespace = "default"
	}
	if cfg.Temporal.TaskQueue == "" {
		cfg.Temporal.TaskQueue = "plugin-runs"
	}

	storage := strings.ToLower(cfg.Storage.Type)
	switch storage {
	case "s3":
		if cfg.Storage.S3.Bucket == "" {
			return fmt.Errorf("s3 bucket required")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("s3 region required")
		}
		if cfg.Storage.S3.AccessKeyID == "" || cfg.Storage.S3.SecretAccessKey == "" {
			return fmt.Errorf("s3 access_key and secret_key required")
		}
		if cfg.Storage.Bucket == "" {
			cfg.Storage.Bucket = cfg.Storage.S3.Bucket
		}
	case "local":
		if cfg.Storage.Local.BasePath == "" {
			return fmt.Errorf("base_path required for local storage")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s", storage)
	}

	cache := strings.ToLower(cfg.Cache.Type)
	switch cache {
	case "leveldb", "":
		cfg.Cache.Type = "leveldb"
		if cfg.Cache.LevelDB.Dir == "" {
			cfg.Cache.LevelDB.Dir = "./cache"
		}
	case "redis":
		if cfg.Cache.Redis.Addr == "" {
			return fmt.Errorf("redis addr required")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s", cache)
	}

	if cfg.Remote.Enabled {
		if cfg.Remote.ControlURL == "" {
			return fmt.Errorf("remote.control_url required")
		}
		if cfg.Remote.InvokeURL == "" {
			cfg.Remote.InvokeURL = cfg.Remote.ControlURL
		}
		if cfg.Remote.TimeoutSec <= 0 {
			cfg.Remote.TimeoutSec = 60
		}
		if cfg.Remote.RouteTTLSec <= 0 {
			cfg.Remote.RouteTTLSec = 30
		}
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if !isValidLogLevel(cfg.Logging.Level) {
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "console"
	}
	if cfg.Logging.Output == "file" && cfg.Logging.FilePath == "" {
		return fmt.Errorf("file_path required for file logging")
	}

	return nil
}

func isValidLogLevel(level string) bool {
	levels := []string{"debug", "info", "warn", "error"}
	for _, l := range levels {
		if strings.ToLower(level) == l {
			return true
		}
	}
	return false
}
