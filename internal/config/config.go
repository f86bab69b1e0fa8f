// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix 是环境变量覆盖配置时使用的前缀，例如 PERSONA_CHAT_LLM_API_KEY。
const EnvPrefix = "PERSONA_CHAT"

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
// 它在启动时构建一次，之后以值的形式传递给各个组件，不再修改。
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Chat     ChatConfig     `mapstructure:"chat"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	// Location 为 SQLite 文件路径，或以 mysql:// 开头的 MySQL DSN。
	Location string      `mapstructure:"location"`
	Redis    RedisConfig `mapstructure:"redis"`
}

// RedisConfig 存储 Redis 的配置。Addr 为空时不启用会话窗口缓存。
type RedisConfig struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	WindowTTLH int    `mapstructure:"window_ttl_hours"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig 配置生成相关参数。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// ChatConfig 存储会话内存与人格相关的配置。
type ChatConfig struct {
	MaxHistory         int    `mapstructure:"max_history"`
	DefaultPersonality string `mapstructure:"default_personality"`
	DefaultListLimit   int    `mapstructure:"default_list_limit"`
}

// KafkaConfig 存储 Kafka 相关的配置。Brokers 为空时不发布对话事件。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// MinIOConfig 存储导出归档所用的对象存储配置。Endpoint 为空时不启用归档。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	URLExpiryMin    int    `mapstructure:"url_expiry_minutes"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8081")
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.location", "data/conversations.db")
	// 只有注册过的键才会被 AutomaticEnv 覆盖，因此空值也要登记
	v.SetDefault("database.redis.addr", "")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)
	v.SetDefault("database.redis.window_ttl_hours", 24*7)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-3.5-turbo")
	v.SetDefault("llm.generation.temperature", 0.7)
	v.SetDefault("llm.generation.top_p", 1.0)
	v.SetDefault("llm.generation.max_tokens", 150)

	v.SetDefault("chat.max_history", 50)
	v.SetDefault("chat.default_personality", "assistente_geral")
	v.SetDefault("chat.default_list_limit", 50)

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "conversation-events")

	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket_name", "conversation-exports")
	v.SetDefault("minio.url_expiry_minutes", 60)
}

// Load 从指定路径读取 YAML 配置，并合并默认值与环境变量覆盖。
// path 为空或文件不存在时只使用默认值和环境变量。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Validate 检查配置中不能由默认值修复的问题。
func (c *Config) Validate() error {
	if c.Chat.MaxHistory <= 0 {
		return fmt.Errorf("chat.max_history must be positive, got %d", c.Chat.MaxHistory)
	}
	if strings.TrimSpace(c.Database.Location) == "" {
		return errors.New("database.location must not be empty")
	}
	return nil
}
