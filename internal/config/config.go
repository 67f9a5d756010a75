package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

// DefaultFavoritesThreshold применяется, только если ключа нет в файле: 0 тоже допустимое значение.
const DefaultFavoritesThreshold = 2

type ServerConfig struct {
	Port       int           `yaml:"port"`
	BaseURL    string        `yaml:"base_url"`
	JWTSecret  string        `yaml:"jwt_secret"`
	AccessTTL  time.Duration `yaml:"access_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"` // пусто: in-memory store
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type EmailConfig struct {
	SMTPHost     string `yaml:"smtp_host"`
	SMTPPort     int    `yaml:"smtp_port"`
	SMTPUser     string `yaml:"smtp_user"`
	SMTPPassword string `yaml:"smtp_password"`
	FromEmail    string `yaml:"from_email"`
	DryRun       bool   `yaml:"dry_run"`
}

type FilesConfig struct {
	Driver  string `yaml:"driver"` // local | s3
	RootDir string `yaml:"root_dir"`

	S3Bucket    string `yaml:"s3_bucket"`
	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
}

type RegistrationConfig struct {
	CodeTTL           time.Duration `yaml:"code_ttl"`
	DataTTL           time.Duration `yaml:"data_ttl"`
	TempPurgeInterval time.Duration `yaml:"temp_purge_interval"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type NotificationsConfig struct {
	FavoritesThreshold int            `yaml:"favorites_threshold"`
	TopRatingThreshold float64        `yaml:"top_rating_threshold"`
	Workers            int            `yaml:"workers"`
	QueueSize          int            `yaml:"queue_size"`
	Telegram           TelegramConfig `yaml:"telegram"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type PDFConfig struct {
	FontPath string `yaml:"font_path"`
}

type Config struct {
	Server   ServerConfig `yaml:"server"`
	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Email         EmailConfig         `yaml:"email"`
	Files         FilesConfig         `yaml:"files"`
	Registration  RegistrationConfig  `yaml:"registration"`
	Notifications NotificationsConfig `yaml:"notifications"`
	PDF           PDFConfig           `yaml:"pdf"`
	Log           LogConfig           `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	cfg := Config{Notifications: NotificationsConfig{FavoritesThreshold: DefaultFavoritesThreshold}}
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.AccessTTL <= 0 {
		c.Server.AccessTTL = 15 * time.Minute
	}
	if c.Server.RefreshTTL <= 0 {
		c.Server.RefreshTTL = 30 * 24 * time.Hour
	}
	if c.Files.Driver == "" {
		c.Files.Driver = "local"
	}
	if c.Files.RootDir == "" {
		c.Files.RootDir = "./files"
	}
	if c.Registration.CodeTTL <= 0 {
		c.Registration.CodeTTL = 5 * time.Minute
	}
	if c.Registration.DataTTL <= 0 {
		c.Registration.DataTTL = 30 * time.Minute
	}
	if c.Registration.TempPurgeInterval <= 0 {
		c.Registration.TempPurgeInterval = time.Hour
	}
	if c.Notifications.TopRatingThreshold <= 0 {
		c.Notifications.TopRatingThreshold = 4.7
	}
	if c.Notifications.Workers <= 0 {
		c.Notifications.Workers = 2
	}
	if c.Notifications.QueueSize <= 0 {
		c.Notifications.QueueSize = 128
	}
}

// Validate проверяет обязательные поля после загрузки.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("database.url is required"))
	}
	if c.Server.JWTSecret == "" {
		errs = append(errs, errors.New("server.jwt_secret is required"))
	}
	if c.Registration.CodeTTL > c.Registration.DataTTL {
		errs = append(errs, errors.New("registration.code_ttl must not exceed registration.data_ttl"))
	}
	if c.Notifications.FavoritesThreshold < 0 {
		errs = append(errs, errors.New("notifications.favorites_threshold must not be negative"))
	}
	switch c.Files.Driver {
	case "local":
	case "s3":
		if c.Files.S3Bucket == "" {
			errs = append(errs, errors.New("files.s3_bucket is required for s3 driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("files.driver %q is not supported", c.Files.Driver))
	}
	return errors.Join(errs...)
}
