// Package config 加载服务配置
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// DefaultPath 默认配置文件路径
const DefaultPath = "config.yaml"

// Config 服务配置
type Config struct {
	// Path 实际读取的配置文件，已考虑 CONFIG_PATH
	Path string `yaml:"-"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Http    HTTPConfig    `yaml:"http"`
	Log     LogConfig     `yaml:"log"`
	Session SessionConfig `yaml:"session"`
	ML      MLConfig      `yaml:"ml"`
}

// HTTPConfig HTTP服务配置
type HTTPConfig struct {
	Port           int           `yaml:"port"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Production bool   `yaml:"production"`
}

// SessionConfig 会话配置
type SessionConfig struct {
	MaxSessions int `yaml:"max_sessions"`
}

// MLConfig 训练配置
type MLConfig struct {
	Seed      int64          `yaml:"seed"`
	TestRatio float64        `yaml:"test_ratio"`
	Limits    Limits         `yaml:"limits"`
	Logistic  LogisticConfig `yaml:"logistic"`
}

// Limits 软限制，可热更新
type Limits struct {
	MaxRows          int `yaml:"max_rows"`
	MaxNeighbors     int `yaml:"max_neighbors"`
	DefaultNeighbors int `yaml:"default_neighbors"`
}

// LogisticConfig 逻辑回归超参数
type LogisticConfig struct {
	C       float64 `yaml:"c"`
	MaxIter int     `yaml:"max_iter"`
	Tol     float64 `yaml:"tol"`
}

// Default 默认配置
func Default() *Config {
	cfg := &Config{}
	cfg.Database.Path = "data/bankruptcy.db"
	cfg.Http = HTTPConfig{
		Port:           8080,
		Timeout:        60 * time.Second,
		MaxUploadBytes: 16 << 20,
		AllowedOrigins: []string{"*"},
	}
	cfg.Log = LogConfig{
		Level:      "info",
		File:       "logs/bankruptcywatch.log",
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 30,
	}
	cfg.Session = SessionConfig{MaxSessions: 256}
	cfg.ML = MLConfig{
		Seed:      42,
		TestRatio: 0.2,
		Limits: Limits{
			MaxRows:          100000,
			MaxNeighbors:     20,
			DefaultNeighbors: 5,
		},
		Logistic: LogisticConfig{C: 1.0, MaxIter: 100, Tol: 1e-4},
	}
	return cfg
}

// Load 读取配置文件。文件不存在时使用默认值，环境变量优先级最高。
func Load(path string) (*Config, error) {
	// .env 是可选的
	_ = godotenv.Load()

	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		path = envPath
	}

	cfg := Default()
	if path != "" {
		if err := decodeFile(path, cfg); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	cfg.Path = path

	applyEnv(cfg)
	cfg.normalize()
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Http.Port = port
		}
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// normalize 修正非法取值
func (c *Config) normalize() {
	def := Default()
	if c.Http.Port <= 0 {
		c.Http.Port = def.Http.Port
	}
	if c.Http.Timeout <= 0 {
		c.Http.Timeout = def.Http.Timeout
	}
	if c.Http.MaxUploadBytes <= 0 {
		c.Http.MaxUploadBytes = def.Http.MaxUploadBytes
	}
	if c.Session.MaxSessions <= 0 {
		c.Session.MaxSessions = def.Session.MaxSessions
	}
	if c.ML.TestRatio <= 0 || c.ML.TestRatio >= 1 {
		c.ML.TestRatio = def.ML.TestRatio
	}
	if c.ML.Logistic.C <= 0 {
		c.ML.Logistic.C = def.ML.Logistic.C
	}
	if c.ML.Logistic.MaxIter <= 0 {
		c.ML.Logistic.MaxIter = def.ML.Logistic.MaxIter
	}
	if c.ML.Logistic.Tol <= 0 {
		c.ML.Logistic.Tol = def.ML.Logistic.Tol
	}
	c.ML.Limits = c.ML.Limits.Normalize()
}

// Normalize 返回修正后的限制
func (l Limits) Normalize() Limits {
	def := Default().ML.Limits
	if l.MaxRows <= 0 {
		l.MaxRows = def.MaxRows
	}
	if l.MaxNeighbors <= 0 {
		l.MaxNeighbors = def.MaxNeighbors
	}
	if l.DefaultNeighbors <= 0 || l.DefaultNeighbors > l.MaxNeighbors {
		l.DefaultNeighbors = min(def.DefaultNeighbors, l.MaxNeighbors)
	}
	return l
}
