package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
	Mode            string   // gin 模式：debug / release / test
	AllowOrigins    []string // CORS，空表示允许全部
}

// AdminHTTP 运维端口：/health /ready /metrics
type AdminHTTP struct {
	Host string
	Port int
}

type App struct {
	Name  string
	Env   string
	HTTP  HTTP
	Admin AdminHTTP
}

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
	Algorithm         string
	Issuer            string
	AccessTokenTTLMin int
	TokenType         string
}

func (j JWT) TTL() time.Duration { return time.Duration(j.AccessTokenTTLMin) * time.Minute }

type Auth struct {
	VerifyRequester bool // 解码后再查一次用户是否仍存在
	BcryptCost      int
	HashTimeoutSec  int
}

type Company struct {
	DefaultType     string
	DefaultMaxUsers int
}

type Limits struct {
	RPS             float64
	Burst           int
	AuthRPSPerIP    float64 // /auth/* 每 IP 限速，防暴力破解
	AuthBurstPerIP  int
	MaxConcurrent   int64
	MaxBodyBytes    int64
	RequestTimeoutS int
	ListDefault     int
	ListMax         int
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TTLSec   int    `mapstructure:"ttlsec"`
}

func (r Redis) Enabled() bool { return r.Addr != "" }

type DB struct {
	Driver             string // postgres | mysql | memory
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

type Config struct {
	App     App
	Log     Log
	JWT     JWT
	Auth    Auth
	Company Company
	Limits  Limits
	DB      DB
	Redis   Redis `mapstructure:"redis"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "tenant-user-api")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.http.host", "0.0.0.0")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.readtimeoutsec", 10)
	v.SetDefault("app.http.writetimeoutsec", 15)
	v.SetDefault("app.http.idletimeoutsec", 60)
	v.SetDefault("app.http.mode", "release")
	v.SetDefault("app.admin.host", "127.0.0.1")
	v.SetDefault("app.admin.port", 9090)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", true)
	v.SetDefault("log.file.filename", "logs/app.log")
	v.SetDefault("log.file.maxsizemb", 100)
	v.SetDefault("log.file.maxbackups", 7)
	v.SetDefault("log.file.maxagedays", 30)

	v.SetDefault("jwt.algorithm", "HS256")
	v.SetDefault("jwt.issuer", "tenant-user-api")
	v.SetDefault("jwt.accesstokenttlmin", 30)
	v.SetDefault("jwt.tokentype", "Bearer")

	v.SetDefault("auth.verifyrequester", true)
	v.SetDefault("auth.bcryptcost", 10)
	v.SetDefault("auth.hashtimeoutsec", 5)

	v.SetDefault("company.defaulttype", "BASIC")
	v.SetDefault("company.defaultmaxusers", 3)

	v.SetDefault("limits.rps", 200)
	v.SetDefault("limits.burst", 400)
	v.SetDefault("limits.authrpsperip", 5)
	v.SetDefault("limits.authburstperip", 10)
	v.SetDefault("limits.maxconcurrent", 300)
	v.SetDefault("limits.maxbodybytes", 1<<20)
	v.SetDefault("limits.requesttimeouts", 10)
	v.SetDefault("limits.listdefault", 10)
	v.SetDefault("limits.listmax", 100)

	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.maxopenconns", 20)
	v.SetDefault("db.maxidleconns", 10)
	v.SetDefault("db.connmaxlifetimemin", 30)
	v.SetDefault("db.loglevel", "warn")

	v.SetDefault("redis.ttlsec", 60)
}

// Load 读取 YAML + APP_ 前缀环境变量（app.http.port → APP_APP_HTTP_PORT，jwt.secret → APP_JWT_SECRET）。
// path 为空且默认文件不存在时只用默认值和环境变量。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = os.Getenv("CONFIG_PATH")
		explicit = path != ""
		if !explicit {
			path = "./configs/config.local.yaml"
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !(errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// AutomaticEnv 对 Unmarshal 只覆盖已知 key，secret 类无默认值的 key 需显式绑定
	for _, k := range []string{"jwt.secret", "db.dsn", "db.username", "db.password", "redis.addr", "redis.password"} {
		_ = v.BindEnv(k)
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
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	switch c.JWT.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("jwt.algorithm %q is not an HMAC algorithm", c.JWT.Algorithm))
	}
	if c.JWT.AccessTokenTTLMin <= 0 {
		errs = append(errs, errors.New("jwt.accesstokenttlmin must be positive"))
	}
	if c.JWT.TokenType == "" {
		errs = append(errs, errors.New("jwt.tokentype is required"))
	}
	switch c.DB.Driver {
	case "postgres", "mysql", "memory":
	default:
		errs = append(errs, fmt.Errorf("db.driver %q is not supported", c.DB.Driver))
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		errs = append(errs, errors.New("auth.bcryptcost must be within [4,31]"))
	}
	if c.Company.DefaultMaxUsers < 1 {
		errs = append(errs, errors.New("company.defaultmaxusers must be >= 1"))
	}
	if c.Limits.ListDefault < 1 || c.Limits.ListMax < c.Limits.ListDefault {
		errs = append(errs, errors.New("limits.listdefault must be within [1, limits.listmax]"))
	}
	return errors.Join(errs...)
}
