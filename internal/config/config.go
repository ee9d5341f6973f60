// internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the runtime settings shared by the server, notifier and migrate binaries.
type Config struct {
	Debug    bool
	LogLevel string

	Port string

	// DatabaseURL wins over the POSTGRES_* parts when set.
	DatabaseURL string

	RedisAddr string
	RedisDB   int

	// TokenExpire of 0 means tokens never expire.
	TokenExpire    time.Duration
	PrivateKeyPath string
	PublicKeyPath  string

	StorageDriver  string // "s3" or "disk"
	StorageDir     string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3UseSSL       bool
	S3Bucket       string
	S3PublicURL    string
	PublicBaseURL  string
	MaxPhotoBytes  int64
	MaxUploadBytes int64

	SendgridAPIKey string
	MailFrom       string
	ContactInbox   string

	NotifierQueue     string
	NotifierBatchSize int
	NotifierFlush     time.Duration
	NotifierInProcess bool

	MigrateOnStart bool
	AllowedOrigins []string
}

// New returns a viper instance with every default registered and environment lookup enabled.
func New() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("debug", true)
	v.SetDefault("log_level", "debug")
	v.SetDefault("port", "8080")

	v.SetDefault("database_url", "")
	v.SetDefault("postgres_user", "postgres")
	v.SetDefault("postgres_password", "")
	v.SetDefault("pg_host", "localhost")
	v.SetDefault("pg_port", "5432")
	v.SetDefault("pg_database", "campus")

	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)

	v.SetDefault("token_expire_time", "72h")
	v.SetDefault("jwt_private_key_path", "")
	v.SetDefault("jwt_public_key_path", "")

	v.SetDefault("storage_driver", "disk")
	v.SetDefault("storage_dir", "./data/storage")
	v.SetDefault("s3_endpoint", "localhost:9000")
	v.SetDefault("s3_access_key", "")
	v.SetDefault("s3_secret_key", "")
	v.SetDefault("s3_use_ssl", false)
	v.SetDefault("s3_bucket", "campus")
	v.SetDefault("s3_public_url", "")
	v.SetDefault("public_base_url", "http://localhost:8080")
	v.SetDefault("max_photo_bytes", int64(5*1024*1024))
	v.SetDefault("max_upload_bytes", int64(10*1024*1024))

	v.SetDefault("sendgrid_api_key", "")
	v.SetDefault("mail_from", "noreply@localhost")
	v.SetDefault("contact_inbox", "team@localhost")

	v.SetDefault("notifier_queue", "campus_notifications")
	v.SetDefault("notifier_batch_size", 20)
	v.SetDefault("notifier_flush_ms", 500)
	v.SetDefault("notifier_in_process", true)

	v.SetDefault("migrate_on_start", false)
	v.SetDefault("allowed_origins", "http://localhost:5173")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads an optional .env file from the working directory and builds a Config.
func Load() (*Config, error) {
	dotEnv := filepath.Join(workDir(), ".env")
	if _, err := os.Stat(dotEnv); err == nil {
		if err := godotenv.Load(dotEnv); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", dotEnv, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: stat %s: %w", dotEnv, err)
	}
	return FromViper(New())
}

// FromViper converts a populated viper instance into a Config.
func FromViper(v *viper.Viper) (*Config, error) {
	expire, err := parseTokenExpire(v.GetString("token_expire_time"))
	if err != nil {
		return nil, err
	}

	driver := strings.ToLower(v.GetString("storage_driver"))
	if driver != "s3" && driver != "disk" {
		return nil, fmt.Errorf("config: unknown storage driver %q", driver)
	}

	c := &Config{
		Debug:    v.GetBool("debug"),
		LogLevel: v.GetString("log_level"),
		Port:     v.GetString("port"),

		DatabaseURL: v.GetString("database_url"),

		RedisAddr: v.GetString("redis_addr"),
		RedisDB:   v.GetInt("redis_db"),

		TokenExpire:    expire,
		PrivateKeyPath: v.GetString("jwt_private_key_path"),
		PublicKeyPath:  v.GetString("jwt_public_key_path"),

		StorageDriver:  driver,
		StorageDir:     v.GetString("storage_dir"),
		S3Endpoint:     v.GetString("s3_endpoint"),
		S3AccessKey:    v.GetString("s3_access_key"),
		S3SecretKey:    v.GetString("s3_secret_key"),
		S3UseSSL:       v.GetBool("s3_use_ssl"),
		S3Bucket:       v.GetString("s3_bucket"),
		S3PublicURL:    v.GetString("s3_public_url"),
		PublicBaseURL:  strings.TrimRight(v.GetString("public_base_url"), "/"),
		MaxPhotoBytes:  v.GetInt64("max_photo_bytes"),
		MaxUploadBytes: v.GetInt64("max_upload_bytes"),

		SendgridAPIKey: v.GetString("sendgrid_api_key"),
		MailFrom:       v.GetString("mail_from"),
		ContactInbox:   v.GetString("contact_inbox"),

		NotifierQueue:     v.GetString("notifier_queue"),
		NotifierBatchSize: v.GetInt("notifier_batch_size"),
		NotifierFlush:     time.Duration(v.GetInt("notifier_flush_ms")) * time.Millisecond,
		NotifierInProcess: v.GetBool("notifier_in_process"),

		MigrateOnStart: v.GetBool("migrate_on_start"),
		AllowedOrigins: splitList(v.GetString("allowed_origins")),
	}

	if c.DatabaseURL == "" {
		c.DatabaseURL = (&url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(v.GetString("postgres_user"), v.GetString("postgres_password")),
			Host:   v.GetString("pg_host") + ":" + v.GetString("pg_port"),
			Path:   "/" + v.GetString("pg_database"),
		}).String()
	}
	if c.NotifierBatchSize <= 0 {
		c.NotifierBatchSize = 1
	}
	return c, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// parseTokenExpire accepts "never", "0", "" or any time.ParseDuration string.
func parseTokenExpire(s string) (time.Duration, error) {
	switch s {
	case "", "0", "never":
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("config: parse token expire time %q: %w", s, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func workDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
