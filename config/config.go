package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config 进程级配置，游戏参数（回合时长、Flag 存活期等）单独存放在
// 数据库的 adctf_game_config 表里，不在这里。
type Config struct {
	Listen string `yaml:"listen"`

	Database struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Checker struct {
		// Workers 管线工作协程数，Queue 待执行任务队列容量
		Workers int `yaml:"workers"`
		Queue   int `yaml:"queue"`
	} `yaml:"checker"`
}

// Load 读取 YAML 配置文件并套用环境变量覆盖；path 为空时仅使用
// 默认值与环境变量。
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Listen = ":8080"
	cfg.Database.DSN = "root:123456@tcp(localhost:3306)/adctf?charset=utf8mb4&parseTime=True&loc=Local"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Checker.Workers = 32
	cfg.Checker.Queue = 1024

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("ADCTF_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("ADCTF_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("ADCTF_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("ADCTF_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("ADCTF_CHECKER_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid ADCTF_CHECKER_WORKERS %q: %w", v, err)
		}
		cfg.Checker.Workers = n
	}

	if cfg.Checker.Workers <= 0 {
		return nil, fmt.Errorf("checker.workers must be positive, got %d", cfg.Checker.Workers)
	}
	return cfg, nil
}
