package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. QUIZ_AUTH_JWTSECRET for auth.jwtSecret.
const EnvPrefix = "QUIZ"

type Config struct {
	Server struct {
		Port         string `yaml:"port"`
		PublicURL    string `yaml:"publicURL"`
		SendBuffer   int    `yaml:"sendBuffer"`
		PingInterval string `yaml:"pingInterval"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Room struct {
		CodeLength    int    `yaml:"codeLength"`
		IdleTimeout   string `yaml:"idleTimeout"`
		SweepInterval string `yaml:"sweepInterval"`
	} `yaml:"room"`
	Auth struct {
		JWTSecret string `yaml:"jwtSecret"`
		Issuer    string `yaml:"issuer"`
	} `yaml:"auth"`
	Logging struct {
		Env       string `yaml:"env"`
		Service   string `yaml:"service"`
		Version   string `yaml:"version"`
		Backend   string `yaml:"backend"`
		Debug     bool   `yaml:"debug"`
		AddSource bool   `yaml:"addSource"`
	} `yaml:"logging"`
}

// Load reads YAML config from path and applies QUIZ_<SECTION>_<KEY> environment
// overrides on top. A missing file yields the zero config so the service can run on
// flags and environment alone.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	strs := map[string]*string{
		"server.port":         &c.Server.Port,
		"server.publicURL":    &c.Server.PublicURL,
		"server.pingInterval": &c.Server.PingInterval,
		"redis.addr":          &c.Redis.Addr,
		"redis.password":      &c.Redis.Password,
		"redis.ttl":           &c.Redis.TTL,
		"postgres.url":        &c.Postgres.URL,
		"sqlite.path":         &c.SQLite.Path,
		"quiz.ttl":            &c.Quiz.TTL,
		"room.idleTimeout":    &c.Room.IdleTimeout,
		"room.sweepInterval":  &c.Room.SweepInterval,
		"auth.jwtSecret":      &c.Auth.JWTSecret,
		"auth.issuer":         &c.Auth.Issuer,
		"logging.env":         &c.Logging.Env,
		"logging.service":     &c.Logging.Service,
		"logging.version":     &c.Logging.Version,
		"logging.backend":     &c.Logging.Backend,
	}
	for key, field := range strs {
		if v.IsSet(key) {
			*field = v.GetString(key)
		}
	}

	ints := map[string]*int{
		"server.sendBuffer": &c.Server.SendBuffer,
		"redis.db":          &c.Redis.DB,
		"room.codeLength":   &c.Room.CodeLength,
	}
	for key, field := range ints {
		if v.IsSet(key) {
			*field = v.GetInt(key)
		}
	}

	bools := map[string]*bool{
		"logging.debug":     &c.Logging.Debug,
		"logging.addSource": &c.Logging.AddSource,
	}
	for key, field := range bools {
		if v.IsSet(key) {
			*field = v.GetBool(key)
		}
	}
}

// Duration parses a duration string or returns the fallback if empty or invalid.
func Duration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
