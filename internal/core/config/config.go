package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host              string
	Port              int
	ReadTimeoutSec    int
	WriteTimeoutSec   int
	IdleTimeoutSec    int
	RequestTimeoutSec int
}

type AdminHTTP struct {
	Host string
	Port int
}

type App struct {
	Name        string
	Env         string
	FrontendURL string
	CORSOrigins []string
	HTTP        HTTP
	Admin       AdminHTTP
}

func (a App) IsProduction() bool { return strings.EqualFold(a.Env, "production") }

type LogFile struct {
	Enable     bool
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Log struct {
	Level string
	JSON  bool
	File  LogFile
}

type JWT struct {
	Secret            string
	Issuer            string
	Audience          string
	AccessTokenTTLMin int
}

type Redis struct {
	Enable   bool   `mapstructure:"enable"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTLSec   int    `mapstructure:"ttlsec"`
	// 搜索分面缓存更短
	FilterTTLSec int `mapstructure:"filterttlsec"`
}

type DB struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

// RateLimit 每 IP 令牌桶；Auth* 用于登录/注册
type RateLimit struct {
	RPS       float64
	Burst     int
	AuthRPS   float64
	AuthBurst int
}

type Storage struct {
	Bucket          string
	PublicBaseURL   string
	CredentialsFile string
	MaxUploadMB     int
}

type Telemetry struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	SampleRatio float64
}

type Config struct {
	App       App
	Log       Log
	JWT       JWT
	DB        DB
	Redis     Redis `mapstructure:"redis"`
	RateLimit RateLimit
	Storage   Storage
	Telemetry Telemetry
}

// 常见的部署环境变量，直接映射到配置键
var envAliases = map[string]string{
	"app.env":            "APP_ENV",
	"app.frontendurl":    "FRONTEND_URL",
	"app.http.port":      "PORT",
	"db.dsn":             "DATABASE_URL",
	"jwt.secret":         "JWT_SECRET",
	"redis.addr":         "REDIS_ADDR",
	"redis.password":     "REDIS_PASSWORD",
	"storage.bucket":     "GCS_BUCKET",
	"telemetry.endpoint": "OTEL_EXPORTER_OTLP_ENDPOINT",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "shelf-taught")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.frontendurl", "http://localhost:3000")
	v.SetDefault("app.corsorigins", []string{})
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 3001)
	v.SetDefault("app.http.readtimeoutsec", 10)
	v.SetDefault("app.http.writetimeoutsec", 15)
	v.SetDefault("app.http.idletimeoutsec", 60)
	v.SetDefault("app.http.requesttimeoutsec", 10)
	v.SetDefault("app.admin.host", "127.0.0.1")
	v.SetDefault("app.admin.port", 3002)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("log.file.enable", false)
	v.SetDefault("log.file.filename", "logs/app.log")
	v.SetDefault("log.file.maxsizemb", 100)
	v.SetDefault("log.file.maxbackups", 7)
	v.SetDefault("log.file.maxagedays", 30)
	v.SetDefault("log.file.compress", true)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "shelf-taught-api")
	v.SetDefault("jwt.audience", "shelf-taught-client")
	v.SetDefault("jwt.accesstokenttlmin", 7*24*60)

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.username", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.maxopenconns", 20)
	v.SetDefault("db.maxidleconns", 5)
	v.SetDefault("db.connmaxlifetimemin", 30)
	v.SetDefault("db.automigrate", true)
	v.SetDefault("db.loglevel", "warn")

	v.SetDefault("redis.enable", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttlsec", 300)
	v.SetDefault("redis.filterttlsec", 60)

	v.SetDefault("ratelimit.rps", 10)
	v.SetDefault("ratelimit.burst", 100)
	v.SetDefault("ratelimit.authrps", 0.1)
	v.SetDefault("ratelimit.authburst", 5)

	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.publicbaseurl", "https://storage.googleapis.com")
	v.SetDefault("storage.credentialsfile", "")
	v.SetDefault("storage.maxuploadmb", 5)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.insecure", false)
	v.SetDefault("telemetry.sampleratio", 0.1)
}

// Load 读取 yaml（可缺省）并叠加环境变量：APP_DB_DSN 之类的前缀变量，以及 DATABASE_URL 等别名
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		if err := v.BindEnv(key, "APP_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	if c.App.HTTP.Port <= 0 || c.App.HTTP.Port > 65535 {
		return fmt.Errorf("config: invalid http port %d", c.App.HTTP.Port)
	}
	if c.App.IsProduction() && len(c.JWT.Secret) < 32 {
		return errors.New("config: JWT_SECRET must be at least 32 characters in production")
	}
	if c.JWT.Secret == "" {
		c.JWT.Secret = "dev-only-secret-change-me"
	}
	switch c.DB.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("config: unsupported db driver %q", c.DB.Driver)
	}
	return nil
}
