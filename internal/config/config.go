package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`

	// 悬浮层前端静态文件目录
	StaticDir string `mapstructure:"static_dir"`
	// 房间快照落盘目录
	DataDir string `mapstructure:"data_dir"`
	// 对外可达的基础地址，用于生成悬浮层加入链接
	PublicBaseURL string `mapstructure:"public_base_url"`

	// 房间闲置多少秒后淘汰
	InactivityWindowSec int `mapstructure:"inactivity_window_sec"`

	// 单连接限流：窗口秒数与窗口内消息上限
	RateLimitWindowSec int `mapstructure:"rate_limit_window_sec"`
	RateLimitCeiling   int `mapstructure:"rate_limit_ceiling"`

	// 外部玩家目录服务地址，留空则不对接
	PlayerDBBaseURL string `mapstructure:"player_db_base_url"`
}

var cfg *AppConfig

func GetConfig() *AppConfig {
	if cfg == nil {
		cfg = InitConfig()
	}

	return cfg
}

func InitConfig() *AppConfig {
	v := viper.New()

	v.SetConfigFile("app_config")
	v.SetConfigType("json")
	v.AddConfigPath(".")

	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("static_dir", "./overlay-fe")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("public_base_url", "http://localhost:8080")
	v.SetDefault("inactivity_window_sec", 1800)
	v.SetDefault("rate_limit_window_sec", 10)
	v.SetDefault("rate_limit_ceiling", 100)

	if err := v.ReadInConfig(); err != nil {
		panic(fmt.Errorf("加载配置失败: %w", err))
	}

	var config AppConfig

	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("解析配置失败: %w", err))
	}

	return &config
}
