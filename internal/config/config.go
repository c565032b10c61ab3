// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Dropbox       DropboxConfig       `mapstructure:"dropbox"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Tika          TikaConfig          `mapstructure:"tika"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Sync          SyncConfig          `mapstructure:"sync"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// DeadLetterTopic 返回死信队列的主题名，固定为 "<topic>.deadletter"。
func (c KafkaConfig) DeadLetterTopic() string {
	return c.Topic + ".deadletter"
}

// DropboxConfig 存储 Dropbox API 相关的配置。
type DropboxConfig struct {
	AccessToken string `mapstructure:"access_token"`
	AppKey      string `mapstructure:"app_key"`
	AppSecret   string `mapstructure:"app_secret"`
	RootPath    string `mapstructure:"root_path"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// TikaConfig 存储 Tika 服务器相关的配置。
type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// WorkerConfig 存储消费者与处理管道相关的配置。
type WorkerConfig struct {
	MaxReceiveCount    int     `mapstructure:"max_receive_count"`
	MaxWaitTimeSeconds int     `mapstructure:"max_wait_time"`
	MaxRetries         int     `mapstructure:"max_retries"`
	RetryDelayBase     float64 `mapstructure:"retry_delay_base"`
	ChunkSize          int     `mapstructure:"chunk_size"`
	ChunkOverlap       int     `mapstructure:"chunk_overlap"`
	TempDir            string  `mapstructure:"temp_dir"`
}

// MaxWaitTime 返回队列空轮询的最长等待时间。
func (c WorkerConfig) MaxWaitTime() time.Duration {
	return time.Duration(c.MaxWaitTimeSeconds) * time.Second
}

// SyncConfig 存储同步编排相关的配置。
type SyncConfig struct {
	SupportedTypes []string `mapstructure:"supported_types"`
	LockTTLSeconds int      `mapstructure:"lock_ttl_seconds"`
}

// LockTTL 返回同步互斥锁的过期时间。
func (c SyncConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
// 环境变量（MAX_RECEIVE_COUNT 等）优先于配置文件中的同名项。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	setDefaults()
	bindEnvOverrides()

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}
}

// setDefaults 设置与原始部署一致的默认值。
func setDefaults() {
	viper.SetDefault("worker.max_receive_count", 3)
	viper.SetDefault("worker.max_wait_time", 60)
	viper.SetDefault("worker.max_retries", 3)
	viper.SetDefault("worker.retry_delay_base", 2.0)
	viper.SetDefault("worker.chunk_size", 512)
	viper.SetDefault("worker.chunk_overlap", 50)
	viper.SetDefault("worker.temp_dir", "/tmp/dropbox-worker")
	viper.SetDefault("sync.lock_ttl_seconds", 1800)
	viper.SetDefault("sync.supported_types", []string{
		"pdf", "docx", "doc", "pptx", "ppt",
		"txt", "md", "html", "htm", "rtf",
		"xlsx", "xls", "csv",
	})
	viper.SetDefault("kafka.group_id", "dropbox-rag-worker")
}

// bindEnvOverrides 将对外公开的环境变量名绑定到对应的配置键。
func bindEnvOverrides() {
	_ = viper.BindEnv("worker.max_receive_count", "MAX_RECEIVE_COUNT")
	_ = viper.BindEnv("worker.max_wait_time", "MAX_WAIT_TIME")
	_ = viper.BindEnv("worker.max_retries", "MAX_RETRIES")
	_ = viper.BindEnv("worker.retry_delay_base", "RETRY_DELAY_BASE")
	_ = viper.BindEnv("worker.chunk_size", "CHUNK_SIZE")
	_ = viper.BindEnv("worker.chunk_overlap", "CHUNK_OVERLAP")
	_ = viper.BindEnv("worker.temp_dir", "TEMP_DIR")
	_ = viper.BindEnv("dropbox.access_token", "DROPBOX_ACCESS_TOKEN")
	_ = viper.BindEnv("dropbox.app_secret", "DROPBOX_APP_SECRET")
	_ = viper.BindEnv("embedding.api_key", "OPENAI_API_KEY")
}
