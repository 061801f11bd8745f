package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LLMConfig 聊天模型配置(OpenAI兼容端点)
type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	// 任务专用模型，例如 {"screen": "gpt-4o"}
	TaskModels map[string]string `yaml:"task_models"`
}

// EmbeddingConfig 嵌入服务配置(OpenAI兼容端点)
type EmbeddingConfig struct {
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BaseURL    string `yaml:"base_url"`
}

// QdrantConfig Qdrant向量数据库配置
type QdrantConfig struct {
	Endpoint           string `yaml:"endpoint"`
	ResumeCollection   string `yaml:"resume_collection"`
	JobCollection      string `yaml:"job_collection"`
	Dimension          int    `yaml:"dimension"`
	APIKey             string `yaml:"api_key,omitempty"`
	DefaultSearchLimit int    `yaml:"default_search_limit"`
}

// MySQLConfig MySQL配置结构
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	// 连接池设置
	MaxIdleConns int `yaml:"max_idle_conns"`
	MaxOpenConns int `yaml:"max_open_conns"`
	// 连接生命周期
	ConnMaxLifetimeMinutes int `yaml:"conn_max_lifetime_minutes"`
	ConnMaxIdleTimeMinutes int `yaml:"conn_max_idle_time_minutes"`
	// 超时设置
	ConnectTimeoutSeconds int `yaml:"connect_timeout_seconds"`
	ReadTimeoutSeconds    int `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds   int `yaml:"write_timeout_seconds"`
	// 日志级别(1-4)
	LogLevel int `yaml:"log_level"`
}

// RedisConfig Redis配置，用于租户凭证缓存
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// 连接池设置
	PoolSize     int `yaml:"pool_size"`
	MinIdleConns int `yaml:"min_idle_conns"`
	// 超时设置
	DialTimeoutSeconds  int `yaml:"dial_timeout_seconds"`
	ReadTimeoutSeconds  int `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int `yaml:"write_timeout_seconds"`
	// 凭证缓存过期时间(分钟)
	CredentialTTLMinutes int `yaml:"credential_ttl_minutes"`
}

// MinIOConfig MinIO配置，用于简历原文归档
type MinIOConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyID"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	UseSSL          bool   `yaml:"useSSL"`
	RawTextBucket   string `yaml:"rawTextBucket"`
	Location        string `yaml:"location"`
}

// ServerConfig HTTP服务器配置
type ServerConfig struct {
	Address string `yaml:"address"` // 例如 ":8080"
	// ShutdownTimeout 优雅退出等待时长，如"5s"、"30s"，解析失败取默认值
	ShutdownTimeout string `yaml:"shutdown_timeout"`
	// API Key -> 租户ID 映射，keyauth中间件使用
	TenantKeys map[string]string `yaml:"tenant_keys"`
}

// ScreeningConfig 自动初筛配置
type ScreeningConfig struct {
	// 通过阈值(0-100)，fit_score >= threshold 即通过(含边界)
	DefaultThreshold int `yaml:"default_threshold"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level        string `yaml:"level"`         // debug, info, warn, error
	Format       string `yaml:"format"`        // json, pretty
	TimeFormat   string `yaml:"time_format"`   // 时间格式
	ReportCaller bool   `yaml:"report_caller"` // 是否报告调用位置
}

// TracingConfig OTLP导出配置
type TracingConfig struct {
	Endpoint string `yaml:"endpoint"` // OTLP gRPC端点，空则禁用导出
}

// Config 应用程序配置
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	MinIO     MinIOConfig     `yaml:"minio"`
	Server    ServerConfig    `yaml:"server"`
	Screening ScreeningConfig `yaml:"screening"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// LoadConfig 从文件加载配置
func LoadConfig(configPath string) (*Config, error) {
	// 如果未指定配置文件路径，则尝试在默认位置查找
	if configPath == "" {
		searchPaths := []string{
			"config.yaml",
			"./config.yaml",
			"../config.yaml",
			filepath.Join(os.Getenv("HOME"), ".resume-agent", "config.yaml"),
		}
		if execPath, err := os.Executable(); err == nil {
			execDir := filepath.Dir(execPath)
			searchPaths = append(searchPaths, filepath.Join(execDir, "config.yaml"))
		}

		for _, path := range searchPaths {
			if _, err := os.Stat(path); err == nil {
				configPath = path
				break
			}
		}

		// 测试环境下找不到配置文件时返回默认配置而不报错
		if configPath == "" {
			if inTestEnv() {
				return createDefaultConfig(), nil
			}
			configPath = "config.yaml"
		}
	}

	if _, err := os.Stat(configPath); err != nil {
		if inTestEnv() {
			return createDefaultConfig(), nil
		}
		return nil, fmt.Errorf("配置文件不存在: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 从环境变量覆盖敏感配置（如果存在）
	if envKey := os.Getenv("OPENROUTER_API_KEY"); envKey != "" {
		config.LLM.APIKey = envKey
	}
	if envURL := os.Getenv("LLM_BASE_URL"); envURL != "" {
		config.LLM.BaseURL = envURL
	}
	if envModel := os.Getenv("LLM_MODEL"); envModel != "" {
		config.LLM.Model = envModel
	}

	config.fillDefaults()
	return &config, nil
}

// inTestEnv 粗略判断当前是否运行在 go test 下
func inTestEnv() bool {
	for _, arg := range os.Args {
		if strings.Contains(arg, "test") {
			return true
		}
	}
	return false
}

// fillDefaults 为缺失的配置项填充默认值
func (c *Config) fillDefaults() {
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://openrouter.ai/api/v1/chat/completions"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = "https://openrouter.ai/api/v1/embeddings"
	}
	if c.Qdrant.ResumeCollection == "" {
		c.Qdrant.ResumeCollection = "resume_chunks"
	}
	if c.Qdrant.JobCollection == "" {
		c.Qdrant.JobCollection = "job_definitions"
	}
	if c.Qdrant.Dimension == 0 {
		c.Qdrant.Dimension = c.Embedding.Dimensions
	}
	if c.Qdrant.DefaultSearchLimit == 0 {
		c.Qdrant.DefaultSearchLimit = 10
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Screening.DefaultThreshold == 0 {
		c.Screening.DefaultThreshold = 75
	}
	if c.Redis.CredentialTTLMinutes == 0 {
		c.Redis.CredentialTTLMinutes = 30
	}
}

// GetModelForTask 根据任务名称获取合适的模型，
// 有任务专用模型则返回专用模型，否则返回默认模型
func (c *Config) GetModelForTask(taskName string) string {
	if c.LLM.TaskModels != nil {
		if model, ok := c.LLM.TaskModels[taskName]; ok && model != "" {
			return model
		}
	}
	return c.LLM.Model
}

// 创建一个默认配置，用于测试环境
func createDefaultConfig() *Config {
	config := &Config{}

	config.LLM.BaseURL = "https://openrouter.ai/api/v1/chat/completions"
	config.LLM.Model = "gpt-4o-mini"
	config.LLM.Temperature = 0.7

	config.Embedding.Model = "text-embedding-3-small"
	config.Embedding.Dimensions = 1536
	config.Embedding.BaseURL = "https://openrouter.ai/api/v1/embeddings"

	config.Qdrant.Endpoint = "http://localhost:6333"
	config.Qdrant.ResumeCollection = "resume_chunks"
	config.Qdrant.JobCollection = "job_definitions"
	config.Qdrant.Dimension = 1536
	config.Qdrant.DefaultSearchLimit = 10

	config.MySQL.Host = "localhost"
	config.MySQL.Port = 3306
	config.MySQL.Username = "root"
	config.MySQL.Password = "password"
	config.MySQL.Database = "resume_agent"
	config.MySQL.MaxIdleConns = 10
	config.MySQL.MaxOpenConns = 100
	config.MySQL.ConnMaxLifetimeMinutes = 60
	config.MySQL.ConnMaxIdleTimeMinutes = 30
	config.MySQL.ConnectTimeoutSeconds = 10
	config.MySQL.ReadTimeoutSeconds = 30
	config.MySQL.WriteTimeoutSeconds = 30
	config.MySQL.LogLevel = 4

	config.Redis.Address = "localhost:6379"
	config.Redis.PoolSize = 10
	config.Redis.MinIdleConns = 2
	config.Redis.DialTimeoutSeconds = 5
	config.Redis.ReadTimeoutSeconds = 3
	config.Redis.WriteTimeoutSeconds = 3
	config.Redis.CredentialTTLMinutes = 30

	config.MinIO.Endpoint = "localhost:9000"
	config.MinIO.AccessKeyID = "minioadmin"
	config.MinIO.SecretAccessKey = "minioadmin123"
	config.MinIO.UseSSL = false
	config.MinIO.RawTextBucket = "resume-raw-text"

	config.Server.Address = ":8080"
	config.Screening.DefaultThreshold = 75

	config.Logger.Level = "info"
	config.Logger.Format = "pretty"
	config.Logger.TimeFormat = "2006-01-02 15:04:05"
	config.Logger.ReportCaller = true

	if envKey := os.Getenv("OPENROUTER_API_KEY"); envKey != "" {
		config.LLM.APIKey = envKey
	} else {
		config.LLM.APIKey = "test_api_key"
	}

	return config
}

// GetDuration utility to parse duration strings from config
func GetDuration(durationStr string, defaultDuration time.Duration) time.Duration {
	if durationStr == "" {
		return defaultDuration
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return defaultDuration
	}
	return d
}
