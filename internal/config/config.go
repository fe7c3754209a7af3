// Package config 提供配置管理
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config 应用配置
type Config struct {
	App       AppConfig       `yaml:"app"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	API       APIConfig       `yaml:"api"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name     string `yaml:"name"`
	Env      string `yaml:"env"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	Version  string `yaml:"version"`
}

// DatabaseConfig 数据库配置，Host 为空时不启用持久化
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// Enabled 是否配置了数据库
func (c *DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig Redis配置，Host 为空时不启用结果缓存
type RedisConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"pool_size"`
	TTL      time.Duration `yaml:"ttl"`
}

// Enabled 是否配置了 Redis
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

// Addr 返回Redis地址
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// APIConfig API配置
type APIConfig struct {
	RateLimit    int           `yaml:"rate_limit"` // 每分钟每IP请求数
	Timeout      time.Duration `yaml:"timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	CORS         CORSConfig    `yaml:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
}

// SchedulerConfig 排课引擎默认参数，请求未指定时使用
type SchedulerConfig struct {
	DefaultAlgorithm string        `yaml:"default_algorithm"`
	DefaultTimeout   time.Duration `yaml:"default_timeout"`
	MaxTimeout       time.Duration `yaml:"max_timeout"`
	GreedyMode       string        `yaml:"greedy_mode"`
	PopulationSize   int           `yaml:"population_size"`
	Generations      int           `yaml:"generations"`
	MutationRate     float64       `yaml:"mutation_rate"`
	CrossoverRate    float64       `yaml:"crossover_rate"`
	ElitismRate      float64       `yaml:"elitism_rate"`
	Workers          int           `yaml:"workers"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load 加载配置，存在 .env 时先载入，环境变量优先
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("加载环境文件 %s 失败: %w", f, err)
		}
	}

	cfg := &Config{
		App: AppConfig{
			Name:     getEnv("APP_NAME", "kebiao"),
			Env:      getEnv("APP_ENV", "development"),
			Port:     getEnvInt("APP_PORT", 7012),
			LogLevel: getEnv("APP_LOG_LEVEL", "info"),
			Version:  getEnv("APP_VERSION", "1.0.0"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", ""),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "kebiao"),
			User:            getEnv("DB_USER", "kebiao"),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
			TTL:      getEnvDuration("REDIS_TTL", time.Hour),
		},
		API: APIConfig{
			RateLimit:    getEnvInt("API_RATE_LIMIT", 100),
			Timeout:      getEnvDuration("API_TIMEOUT", 60*time.Second),
			MaxBodyBytes: int64(getEnvInt("API_MAX_BODY_BYTES", 4<<20)),
			CORS: CORSConfig{
				Enabled: getEnvBool("API_CORS_ENABLED", true),
				Origins: getEnvList("API_CORS_ORIGINS", []string{"*"}),
			},
		},
		Scheduler: SchedulerConfig{
			DefaultAlgorithm: getEnv("SCHEDULER_ALGORITHM", "genetic"),
			DefaultTimeout:   getEnvDuration("SCHEDULER_TIMEOUT", 30*time.Second),
			MaxTimeout:       getEnvDuration("SCHEDULER_MAX_TIMEOUT", 2*time.Minute),
			GreedyMode:       getEnv("SCHEDULER_GREEDY_MODE", "first_fit"),
			PopulationSize:   getEnvInt("SCHEDULER_POPULATION_SIZE", 50),
			Generations:      getEnvInt("SCHEDULER_GENERATIONS", 100),
			MutationRate:     getEnvFloat("SCHEDULER_MUTATION_RATE", 0.1),
			CrossoverRate:    getEnvFloat("SCHEDULER_CROSSOVER_RATE", 0.8),
			ElitismRate:      getEnvFloat("SCHEDULER_ELITISM_RATE", 0.1),
			Workers:          getEnvInt("SCHEDULER_WORKERS", 4),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("APP_PORT 无效: %d", c.App.Port)
	}
	if c.Scheduler.MaxTimeout > 0 && c.Scheduler.DefaultTimeout > c.Scheduler.MaxTimeout {
		return fmt.Errorf("SCHEDULER_TIMEOUT (%s) 不能超过 SCHEDULER_MAX_TIMEOUT (%s)",
			c.Scheduler.DefaultTimeout, c.Scheduler.MaxTimeout)
	}
	for name, rate := range map[string]float64{
		"SCHEDULER_MUTATION_RATE":  c.Scheduler.MutationRate,
		"SCHEDULER_CROSSOVER_RATE": c.Scheduler.CrossoverRate,
		"SCHEDULER_ELITISM_RATE":   c.Scheduler.ElitismRate,
	} {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("%s 必须在 [0,1] 区间: %v", name, rate)
		}
	}
	return nil
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// IsTest 检查是否为测试环境
func (c *Config) IsTest() bool {
	return c.App.Env == "test"
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
