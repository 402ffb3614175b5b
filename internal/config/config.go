package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env      string `mapstructure:"env"` // "dev" | "prod"
	HTTPAddr string `mapstructure:"http_addr"`
	GRPCAddr string `mapstructure:"grpc_addr"` // health endpoint; empty disables

	// Storage
	DBPath     string `mapstructure:"db_path"`
	BadgeDir   string `mapstructure:"badge_dir"`
	MirrorPath string `mapstructure:"mirror_path"` // empty disables the text mirror

	MirrorQueueSize int `mapstructure:"mirror_queue_size"`

	// Capture session
	FramesDir     string        `mapstructure:"frames_dir"`
	FrameInterval time.Duration `mapstructure:"frame_interval"`

	// Event rules
	BadgeWindow   time.Duration `mapstructure:"badge_window"`
	FaceWindow    time.Duration `mapstructure:"face_window"`
	FaceThreshold float64       `mapstructure:"face_threshold"`
	ToastDuration time.Duration `mapstructure:"toast_duration"`
}

// Load reads defaults, then the optional YAML file at path (or
// ./portunus.yaml when path is empty and the file exists), then PORTUNUS_*
// environment variables.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PORTUNUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("portunus")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	if cfg.Env != "dev" && cfg.Env != "prod" {
		// fail-soft: treat unknown as dev
		cfg.Env = "dev"
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("grpc_addr", ":9090")

	v.SetDefault("db_path", "./data/portunus-monitor.db")
	v.SetDefault("badge_dir", "./qrcodes")
	v.SetDefault("mirror_path", "./data/access_log.txt")
	v.SetDefault("mirror_queue_size", 128)

	v.SetDefault("frames_dir", "./frames")
	v.SetDefault("frame_interval", "0s")

	v.SetDefault("badge_window", "60s")
	v.SetDefault("face_window", "60s")
	v.SetDefault("face_threshold", 70.0)
	v.SetDefault("toast_duration", "2500ms")
}

func (c Config) validate() error {
	switch {
	case strings.TrimSpace(c.DBPath) == "":
		return errors.New("config: db_path is required")
	case c.BadgeWindow <= 0 || c.FaceWindow <= 0:
		return fmt.Errorf("config: dedup windows must be positive (badge=%s face=%s)", c.BadgeWindow, c.FaceWindow)
	case c.FaceThreshold <= 0:
		return fmt.Errorf("config: face_threshold must be positive, got %v", c.FaceThreshold)
	case c.ToastDuration <= 0:
		return fmt.Errorf("config: toast_duration must be positive, got %s", c.ToastDuration)
	case c.MirrorQueueSize <= 0:
		return fmt.Errorf("config: mirror_queue_size must be positive, got %d", c.MirrorQueueSize)
	case c.FrameInterval < 0:
		return fmt.Errorf("config: frame_interval must not be negative, got %s", c.FrameInterval)
	}
	return nil
}
