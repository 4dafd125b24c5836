package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Env string

const (
	EnvDev   Env = "dev"
	EnvStage Env = "stage"
	EnvProd  Env = "prod"
)

type Backend string

const (
	BackendStd Backend = "std" // text in dev, JSON otherwise
	BackendZap Backend = "zap"
)

type Config struct {
	Service    string
	Version    string
	InstanceID string

	Env       Env
	Backend   Backend // default: std in dev, zap elsewhere
	Level     slog.Level
	Debug     bool
	AddSource bool

	// Output defaults to stdout.
	Output io.Writer
}

// DetectEnv reads APP_ENV; anything unknown is dev.
func DetectEnv() Env {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("APP_ENV"))) {
	case "prod", "production":
		return EnvProd
	case "stage", "staging", "preprod":
		return EnvStage
	default:
		return EnvDev
	}
}

// ParseEnv maps a configured name to an Env, falling back to DetectEnv.
func ParseEnv(raw string) Env {
	switch Env(strings.ToLower(strings.TrimSpace(raw))) {
	case EnvProd:
		return EnvProd
	case EnvStage:
		return EnvStage
	case EnvDev:
		return EnvDev
	}
	return DetectEnv()
}

// New builds the service logger, installs it as the slog default and returns it.
func New(cfg Config) *slog.Logger {
	if cfg.Env == "" {
		cfg.Env = DetectEnv()
	}
	if cfg.Service == "" {
		cfg.Service = "live-quiz-service"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.InstanceID == "" {
		host, _ := os.Hostname()
		cfg.InstanceID = host + "-" + uuid.NewString()[:8]
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendStd
		if cfg.Env != EnvDev {
			cfg.Backend = BackendZap
		}
	}
	if cfg.Debug && cfg.Level == 0 {
		cfg.Level = slog.LevelDebug
	}

	var h slog.Handler
	switch cfg.Backend {
	case BackendZap:
		h = newZapHandler(cfg)
	default:
		h = newStdHandler(cfg)
	}
	h = h.WithAttrs([]slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("version", cfg.Version),
		slog.String("instance_id", cfg.InstanceID),
		slog.Time("started_at", time.Now()),
	})

	log := slog.New(h)
	slog.SetDefault(log)
	return log
}

func newStdHandler(cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: cfg.Level, AddSource: cfg.AddSource}
	if cfg.Env == EnvDev {
		return slog.NewTextHandler(cfg.Output, opts)
	}
	return slog.NewJSONHandler(cfg.Output, opts)
}
