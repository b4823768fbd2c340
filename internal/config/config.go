package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

// ErrMissingAPIToken 表示缺少抓取服务商凭证。
//
// 该错误在启动阶段是致命的：没有凭证，所有抓取路径都无法工作。
var ErrMissingAPIToken = errors.New("missing provider api token (set BRIGHTDATA_API_TOKEN)")

// Config 保存应用程序配置。
type Config struct {
	App      AppConfig      `json:"app"`
	MySQL    MySQLConfig    `json:"mysql"`
	Redis    RedisConfig    `json:"redis"`
	Provider ProviderConfig `json:"provider"`
	Email    EmailConfig    `json:"email"`
	Security SecurityConfig `json:"security"`
}

// AppConfig 应用程序基础配置。
type AppConfig struct {
	Env             string        `json:"env"`               // 运行环境: local / prod
	LogLevel        string        `json:"log_level"`         // 日志级别: debug / info / warn / error
	HTTPAddr        string        `json:"http_addr"`         // 调度器 HTTP 服务监听地址
	MetricsAddr     string        `json:"metrics_addr"`      // Prometheus metrics 监听地址
	RefreshInterval time.Duration `json:"refresh_interval"`  // 追踪商品刷新间隔（如 "1h"）
	RefreshTimeout  time.Duration `json:"refresh_timeout"`   // 单个商品刷新超时
	WorkerPoolSize  int           `json:"worker_pool_size"`  // Worker Pool 大小（并发刷新数）
	QueueCapacity   int           `json:"queue_capacity"`    // 刷新队列容量
	RateLimit       float64       `json:"rate_limit"`        // 服务商请求限流速率（token/s）
	RateBurst       float64       `json:"rate_burst"`        // 限流桶容量
	DedupWindow     int           `json:"dedup_window"`      // 刷新 URL 去重窗口（秒）
	MaxSearchResult int           `json:"max_search_result"` // 单平台搜索结果上限
}

// MySQLConfig MySQL 数据库配置。
type MySQLConfig struct {
	DSN string `json:"dsn"` // 数据库连接字符串
}

// RedisConfig Redis 缓存配置。
type RedisConfig struct {
	Addr     string `json:"addr"`     // Redis 地址 (host:port)
	Password string `json:"password"` // Redis 密码
}

// ProviderConfig 抓取服务商（Bright Data）配置。
type ProviderConfig struct {
	APIToken       string        `json:"api_token"`       // Bearer 凭证（必填）
	BaseURL        string        `json:"base_url"`        // API 根地址
	Zone           string        `json:"zone"`            // Web Unlocker zone 名称
	RequestTimeout time.Duration `json:"request_timeout"` // 单次 HTTP 请求超时
	PollInterval   time.Duration `json:"poll_interval"`   // 数据集任务轮询间隔
	PollAttempts   int           `json:"poll_attempts"`   // 数据集任务轮询次数上限
}

// EmailConfig 邮件通知配置。
type EmailConfig struct {
	SMTPHost  string `json:"smtp_host"`
	SMTPPort  int    `json:"smtp_port"`
	SMTPUser  string `json:"smtp_user"`
	SMTPPass  string `json:"smtp_pass"`
	FromEmail string `json:"from_email"`
}

// SecurityConfig 安全相关配置。
type SecurityConfig struct {
	JWTSecret string `json:"jwt_secret"` // HTTP API 的 JWT 签名密钥
}

// Load 从 JSON 文件加载配置。
//
// 它会尝试读取 configs/config.json 文件，如果不存在则使用默认值。
// 环境变量始终优先覆盖文件与默认值。
//
// 参数:
//
//	configPath: 配置文件路径（如果为空则使用默认路径 "configs/config.json"）
//
// 返回值:
//
//	*Config: 加载完成的配置对象
//	error: 加载失败返回错误
func Load(configPath ...string) (*Config, error) {
	path := "configs/config.json"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	// 如果配置文件不存在，使用默认配置
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := getDefaultConfig()
		// 即使没有配置文件，也允许环境变量覆盖默认值
		applyEnvOverrides(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	// 应用默认值（对于未设置的字段）
	applyDefaults(cfg)

	// 环境变量优先覆盖配置
	applyEnvOverrides(cfg)

	return cfg, nil
}

// Validate 校验必填字段。缺少服务商凭证是致命错误。
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Provider.APIToken) == "" {
		return ErrMissingAPIToken
	}
	return nil
}

// getDefaultConfig 返回默认配置。
func getDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:             "local",
			LogLevel:        "info",
			HTTPAddr:        ":8082",
			MetricsAddr:     ":2112",
			RefreshInterval: 1 * time.Hour,
			RefreshTimeout:  2 * time.Minute,
			WorkerPoolSize:  5,
			QueueCapacity:   500,
			RateLimit:       3,
			RateBurst:       5,
			DedupWindow:     600,
			MaxSearchResult: 10,
		},
		MySQL: MySQLConfig{
			DSN: "root:password@tcp(localhost:3306)/pricescout?parseTime=true&loc=Local",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			Password: "",
		},
		Provider: ProviderConfig{
			APIToken:       "",
			BaseURL:        "https://api.brightdata.com",
			Zone:           "ecommerce_unlocker",
			RequestTimeout: 60 * time.Second,
			PollInterval:   2 * time.Second,
			PollAttempts:   30,
		},
		Email: EmailConfig{
			SMTPHost:  "smtp.gmail.com",
			SMTPPort:  587,
			SMTPUser:  "",
			SMTPPass:  "",
			FromEmail: "",
		},
		Security: SecurityConfig{
			JWTSecret: "dev_secret_change_me",
		},
	}
}

// applyDefaults 对未设置的字段应用默认值。
func applyDefaults(cfg *Config) {
	defaults := getDefaultConfig()

	if cfg.App.Env == "" {
		cfg.App.Env = defaults.App.Env
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.HTTPAddr == "" {
		cfg.App.HTTPAddr = defaults.App.HTTPAddr
	}
	if cfg.App.MetricsAddr == "" {
		cfg.App.MetricsAddr = defaults.App.MetricsAddr
	}
	if cfg.App.RefreshInterval == 0 {
		cfg.App.RefreshInterval = defaults.App.RefreshInterval
	}
	if cfg.App.RefreshTimeout == 0 {
		cfg.App.RefreshTimeout = defaults.App.RefreshTimeout
	}
	if cfg.App.WorkerPoolSize == 0 {
		cfg.App.WorkerPoolSize = defaults.App.WorkerPoolSize
	}
	if cfg.App.QueueCapacity == 0 {
		cfg.App.QueueCapacity = defaults.App.QueueCapacity
	}
	if cfg.App.RateLimit == 0 {
		cfg.App.RateLimit = defaults.App.RateLimit
	}
	if cfg.App.RateBurst == 0 {
		cfg.App.RateBurst = defaults.App.RateBurst
	}
	if cfg.App.DedupWindow == 0 {
		cfg.App.DedupWindow = defaults.App.DedupWindow
	}
	if cfg.App.MaxSearchResult == 0 {
		cfg.App.MaxSearchResult = defaults.App.MaxSearchResult
	}
	if cfg.MySQL.DSN == "" {
		cfg.MySQL.DSN = defaults.MySQL.DSN
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = defaults.Redis.Addr
	}
	if cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = defaults.Provider.BaseURL
	}
	if cfg.Provider.Zone == "" {
		cfg.Provider.Zone = defaults.Provider.Zone
	}
	if cfg.Provider.RequestTimeout == 0 {
		cfg.Provider.RequestTimeout = defaults.Provider.RequestTimeout
	}
	if cfg.Provider.PollInterval == 0 {
		cfg.Provider.PollInterval = defaults.Provider.PollInterval
	}
	if cfg.Provider.PollAttempts == 0 {
		cfg.Provider.PollAttempts = defaults.Provider.PollAttempts
	}
	if cfg.Email.SMTPPort == 0 {
		cfg.Email.SMTPPort = defaults.Email.SMTPPort
	}
	if cfg.Security.JWTSecret == "" {
		cfg.Security.JWTSecret = defaults.Security.JWTSecret
	}
}

func applyEnvOverrides(cfg *Config) {
	viper.AutomaticEnv()

	_ = viper.BindEnv("api_token", "BRIGHTDATA_API_TOKEN")
	_ = viper.BindEnv("web_unlocker_zone", "WEB_UNLOCKER_ZONE")
	_ = viper.BindEnv("db_password", "DB_PASSWORD")
	_ = viper.BindEnv("redis_addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = viper.BindEnv("smtp_pass", "SMTP_PASS")
	_ = viper.BindEnv("jwt_secret", "JWT_SECRET")

	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("APP_LOG_LEVEL"); v != "" {
		cfg.App.LogLevel = v
	}
	if v := os.Getenv("APP_HTTP_ADDR"); v != "" {
		cfg.App.HTTPAddr = v
	}
	if v := os.Getenv("APP_METRICS_ADDR"); v != "" {
		cfg.App.MetricsAddr = v
	}
	if v := os.Getenv("APP_REFRESH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.RefreshInterval = d
		}
	}
	if v := os.Getenv("APP_REFRESH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.App.RefreshTimeout = d
		}
	}
	if v := os.Getenv("APP_WORKER_POOL_SIZE"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.WorkerPoolSize = i
		}
	}
	if v := os.Getenv("APP_QUEUE_CAPACITY"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.QueueCapacity = i
		}
	}
	if v := os.Getenv("APP_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.App.RateLimit = f
		}
	}
	if v := os.Getenv("APP_RATE_BURST"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.App.RateBurst = f
		}
	}
	if v := os.Getenv("APP_DEDUP_WINDOW"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.DedupWindow = i
		}
	}
	if v := os.Getenv("APP_MAX_SEARCH_RESULT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.App.MaxSearchResult = i
		}
	}

	if v := viper.GetString("api_token"); v != "" {
		cfg.Provider.APIToken = v
	}
	if v := viper.GetString("web_unlocker_zone"); v != "" {
		cfg.Provider.Zone = v
	}
	if v := os.Getenv("BRIGHTDATA_BASE_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("PROVIDER_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Provider.RequestTimeout = d
		}
	}
	if v := os.Getenv("PROVIDER_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Provider.PollInterval = d
		}
	}
	if v := os.Getenv("PROVIDER_POLL_ATTEMPTS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Provider.PollAttempts = i
		}
	}

	if v := os.Getenv("DB_DSN"); v != "" {
		cfg.MySQL.DSN = v
	} else if hasAnyEnv("DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME") || viper.GetString("db_password") != "" {
		parsed := parseMySQLDSN(cfg.MySQL.DSN)
		if v := os.Getenv("DB_HOST"); v != "" {
			port := "3306"
			if p := os.Getenv("DB_PORT"); p != "" {
				port = p
			} else if strings.Contains(parsed.Addr, ":") {
				port = strings.SplitN(parsed.Addr, ":", 2)[1]
			}
			parsed.Addr = v + ":" + port
		} else if v := os.Getenv("DB_PORT"); v != "" {
			host := parsed.Addr
			if strings.Contains(host, ":") {
				host = strings.SplitN(host, ":", 2)[0]
			}
			parsed.Addr = host + ":" + v
		}
		if v := os.Getenv("DB_USER"); v != "" {
			parsed.User = v
		}
		if v := viper.GetString("db_password"); v != "" {
			parsed.Passwd = v
		}
		if v := os.Getenv("DB_NAME"); v != "" {
			parsed.DBName = v
		}
		cfg.MySQL.DSN = parsed.FormatDSN()
	}

	if v := viper.GetString("redis_addr"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := viper.GetString("redis_password"); v != "" {
		cfg.Redis.Password = v
	}

	if v := viper.GetString("jwt_secret"); v != "" {
		cfg.Security.JWTSecret = v
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Email.SMTPHost = v
	}
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.Email.SMTPPort = i
		}
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		cfg.Email.SMTPUser = v
	}
	if v := viper.GetString("smtp_pass"); v != "" {
		cfg.Email.SMTPPass = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		cfg.Email.FromEmail = v
	}
}

func hasAnyEnv(keys ...string) bool {
	for _, key := range keys {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

func parseMySQLDSN(dsn string) *mysql.Config {
	fallback := &mysql.Config{
		User:   "root",
		Passwd: "",
		Net:    "tcp",
		Addr:   "localhost:3306",
		DBName: "pricescout",
		Params: map[string]string{
			"parseTime": "true",
			"loc":       "Local",
		},
	}
	if dsn == "" {
		return fallback
	}
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return fallback
	}
	return parsed
}

// UnmarshalJSON 自定义 JSON 解析，支持 Duration 字符串。
func (a *AppConfig) UnmarshalJSON(data []byte) error {
	type Alias AppConfig
	aux := &struct {
		RefreshInterval string `json:"refresh_interval"`
		RefreshTimeout  string `json:"refresh_timeout"`
		*Alias
	}{
		Alias: (*Alias)(a),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.RefreshInterval != "" {
		duration, err := time.ParseDuration(aux.RefreshInterval)
		if err != nil {
			return fmt.Errorf("invalid refresh_interval format: %w", err)
		}
		a.RefreshInterval = duration
	}
	if aux.RefreshTimeout != "" {
		duration, err := time.ParseDuration(aux.RefreshTimeout)
		if err != nil {
			return fmt.Errorf("invalid refresh_timeout format: %w", err)
		}
		a.RefreshTimeout = duration
	}

	return nil
}

// UnmarshalJSON 自定义 JSON 解析，支持 Duration 字符串。
func (p *ProviderConfig) UnmarshalJSON(data []byte) error {
	type Alias ProviderConfig
	aux := &struct {
		RequestTimeout string `json:"request_timeout"`
		PollInterval   string `json:"poll_interval"`
		*Alias
	}{
		Alias: (*Alias)(p),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.RequestTimeout != "" {
		duration, err := time.ParseDuration(aux.RequestTimeout)
		if err != nil {
			return fmt.Errorf("invalid request_timeout format: %w", err)
		}
		p.RequestTimeout = duration
	}
	if aux.PollInterval != "" {
		duration, err := time.ParseDuration(aux.PollInterval)
		if err != nil {
			return fmt.Errorf("invalid poll_interval format: %w", err)
		}
		p.PollInterval = duration
	}

	return nil
}
