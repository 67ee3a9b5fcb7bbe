package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type HTTP struct {
	Host            string
	Port            int
	ReadTimeoutSec  int
	WriteTimeoutSec int
	IdleTimeoutSec  int
}

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

type Log struct {
	Level      string
	JSON       bool
	File       string // 为空则只写 stdout
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type JWT struct {
	Secret             string
	Issuer             string
	AccessTokenTTLHour int
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DB struct {
	Driver             string
	DSN                string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	AutoMigrate        bool
	LogLevel           string
}

type Config struct {
	App   App
	Log   Log
	JWT   JWT
	DB    DB
	Redis Redis `mapstructure:"redis"`
}

// Load reads the YAML config with APP_* env overrides and fails fast when a
// mandatory value is absent: the service must not come up without a signing
// secret or a storage DSN.
func Load(path string) *Config {
	v := viper.New()
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
		if path == "" {
			path = "./configs/config.local.yaml"
		}
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("read config: %v", err)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		log.Fatalf("unmarshal config: %v", err)
	}
	if err := c.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	return &c
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "gaht-identity")
	v.SetDefault("app.env", "local")
	v.SetDefault("app.http.port", 8080)
	v.SetDefault("app.http.readtimeoutsec", 5)
	v.SetDefault("app.http.writetimeoutsec", 10)
	v.SetDefault("app.http.idletimeoutsec", 60)
	v.SetDefault("app.admin.port", 8081)
	v.SetDefault("log.level", "info")
	v.SetDefault("jwt.issuer", "gaht-identity")
	v.SetDefault("jwt.accesstokenttlhour", 2)
	v.SetDefault("db.driver", "mysql")
	v.SetDefault("db.maxopenconns", 50)
	v.SetDefault("db.maxidleconns", 10)
	v.SetDefault("db.connmaxlifetimemin", 30)
	v.SetDefault("db.loglevel", "warn")
}

// Validate enforces the boot-time invariants. Kept separate from Load so the
// checks stay testable without a config file on disk.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return errors.New("jwt.secret is required")
	}
	if strings.TrimSpace(c.DB.DSN) == "" {
		return errors.New("db.dsn is required")
	}
	if c.JWT.AccessTokenTTLHour <= 0 {
		return fmt.Errorf("jwt.accesstokenttlhour must be positive, got %d", c.JWT.AccessTokenTTLHour)
	}
	switch c.DB.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported db.driver %q", c.DB.Driver)
	}
	return nil
}
