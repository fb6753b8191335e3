package config

type Config struct {
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	Temporal TemporalConfig `mapstructure:"temporal" json:"temporal"`
	Storage  StorageConfig  `mapstructure:"storage" json:"storage"`
	Cache    CacheConfig    `mapstructure:"cache" json:"cache"`
	Remote   RemoteConfig   `mapstructure:"remote" json:"remote"`
	Plugins  []PluginConfig `mapstructure:"plugins" json:"plugins"`
	Logging  LoggingConfig  `mapstructure:"logging" json:"logging"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn" json:"dsn"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port" json:"host_port"`
	Namespace string `mapstructure:"namespace" json:"namespace"`
	TaskQueue string `mapstructure:"task_queue" json:"task_queue"`
}

type StorageConfig struct {
	Type   string      `mapstructure:"type" json:"type"`
	Bucket string      `mapstructure:"bucket" json:"bucket"`
	Local  LocalConfig `mapstructure:"local" json:"local"`
	S3     S3Config    `mapstructure:"s3" json:"s3"`
}

type LocalConfig struct {
	BasePath string `mapstructure:"base_path" json:"base_path"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket" json:"bucket"`
	Region          string `mapstructure:"region" json:"region"`
	AccessKeyID     string `mapstructure:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" json:"secret_access_key"`
}

type CacheConfig struct {
	Type    string        `mapstructure:"type" json:"type"`
	LevelDB LevelDBConfig `mapstructure:"leveldb" json:"leveldb"`
	Redis   RedisConfig   `mapstructure:"redis" json:"redis"`
}

type LevelDBConfig struct {
	Dir string `mapstructure:"dir" json:"dir"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" json:"addr"`
	Password string `mapstructure:"password" json:"password"`
	DB       int    `mapstructure:"db" json:"db"`
}

type RemoteConfig struct {
	Enabled     bool    `mapstructure:"enabled" json:"enabled"`
	ControlURL  string  `mapstructure:"control_url" json:"control_url"`
	InvokeURL   string  `mapstructure:"invoke_url" json:"invoke_url"`
	TimeoutSec  float64 `mapstructure:"timeout_sec" json:"timeout_sec"`
	RouteTTLSec float64 `mapstructure:"route_ttl_sec" json:"route_ttl_sec"`
	ListenAddr  string  `mapstructure:"listen_addr" json:"listen_addr"`
}

type PluginConfig struct {
	Name    string                 `mapstructure:"name" json:"name"`
	Enabled bool                   `mapstructure:"enabled" json:"enabled"`
	Remote  bool                   `mapstructure:"remote" json:"remote"`
	Config  map[string]interface{} `mapstructure:"config" json:"config"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level" json:"level"`
	Output   string `mapstructure:"output" json:"output"`
	FilePath string `mapstructure:"file_path" json:"file_path"`
}
