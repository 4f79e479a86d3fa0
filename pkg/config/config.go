package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Content backends supported by the drive.
const (
	ContentBackendLocal = "local"
	ContentBackendMinio = "minio"
	ContentBackendS3    = "s3"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Drive     DriveConfig
	Content   ContentConfig
	Links     LinkConfig
	Bandwidth BandwidthConfig
	Events    EventsConfig
	Jobs      JobsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig carries the shared secret used to verify caller tokens issued by the auth service.
type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DriveConfig governs quota defaults, upload validation and auto-provisioning.
type DriveConfig struct {
	DefaultStorageLimit int64
	MaxUploadSize       int64
	DefaultFolders      []string
	SummaryCacheTTL     time.Duration
}

// ContentConfig selects and configures the backing content store.
type ContentConfig struct {
	Backend  string
	LocalDir string
	Minio    MinioConfig
	S3       S3Config
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type S3Config struct {
	Region          string
	Bucket          string
	KeyPrefix       string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// LinkConfig controls signed download links.
type LinkConfig struct {
	SigningSecret string
	TTL           time.Duration
	BaseURL       string
}

// BandwidthConfig bounds how many bytes non-owners may download per owner and window.
type BandwidthConfig struct {
	BytesPerWindow int64
	Window         time.Duration
}

// EventsConfig toggles the activity event stream.
type EventsConfig struct {
	Enabled       bool
	Brokers       []string
	ActivityTopic string
	MaxRetries    int
}

// JobsConfig sizes the background content cleanup queue.
type JobsConfig struct {
	ContentGCWorkers int
	ContentGCRetries int
	RetryDelay       time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	storageLimit := v.GetInt64("DRIVE_DEFAULT_STORAGE_LIMIT")
	if storageLimit <= 0 {
		storageLimit = 1 << 30
	}
	maxUpload := v.GetInt64("DRIVE_MAX_UPLOAD_SIZE")
	if maxUpload <= 0 {
		maxUpload = 100 * 1024 * 1024
	}
	cfg.Drive = DriveConfig{
		DefaultStorageLimit: storageLimit,
		MaxUploadSize:       maxUpload,
		DefaultFolders:      splitAndTrim(v.GetString("DRIVE_DEFAULT_FOLDERS")),
		SummaryCacheTTL:     parseDuration(v.GetString("DRIVE_SUMMARY_CACHE_TTL"), time.Minute),
	}

	cfg.Content = ContentConfig{
		Backend:  strings.ToLower(v.GetString("CONTENT_BACKEND")),
		LocalDir: v.GetString("CONTENT_LOCAL_DIR"),
		Minio: MinioConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			Bucket:    v.GetString("MINIO_BUCKET"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
		},
		S3: S3Config{
			Region:          v.GetString("S3_REGION"),
			Bucket:          v.GetString("S3_BUCKET"),
			KeyPrefix:       v.GetString("S3_KEY_PREFIX"),
			Endpoint:        v.GetString("S3_ENDPOINT"),
			AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
		},
	}

	cfg.Links = LinkConfig{
		SigningSecret: v.GetString("LINK_SIGNING_SECRET"),
		TTL:           parseDuration(v.GetString("LINK_TTL"), 15*time.Minute),
		BaseURL:       v.GetString("LINK_BASE_URL"),
	}

	cfg.Bandwidth = BandwidthConfig{
		BytesPerWindow: v.GetInt64("BANDWIDTH_BYTES_PER_WINDOW"),
		Window:         parseDuration(v.GetString("BANDWIDTH_WINDOW"), time.Hour),
	}

	cfg.Events = EventsConfig{
		Enabled:       v.GetBool("KAFKA_ENABLED"),
		Brokers:       splitAndTrim(v.GetString("KAFKA_BROKERS")),
		ActivityTopic: v.GetString("KAFKA_ACTIVITY_TOPIC"),
		MaxRetries:    v.GetInt("KAFKA_MAX_RETRIES"),
	}

	cfg.Jobs = JobsConfig{
		ContentGCWorkers: v.GetInt("CONTENT_GC_WORKERS"),
		ContentGCRetries: v.GetInt("CONTENT_GC_RETRIES"),
		RetryDelay:       parseDuration(v.GetString("CONTENT_GC_RETRY_DELAY"), 5*time.Second),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "drive")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DRIVE_DEFAULT_STORAGE_LIMIT", int64(1<<30))
	v.SetDefault("DRIVE_MAX_UPLOAD_SIZE", int64(100*1024*1024))
	v.SetDefault("DRIVE_DEFAULT_FOLDERS", "")
	v.SetDefault("DRIVE_SUMMARY_CACHE_TTL", "1m")

	v.SetDefault("CONTENT_BACKEND", ContentBackendLocal)
	v.SetDefault("CONTENT_LOCAL_DIR", "./content")
	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_BUCKET", "drive")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_BUCKET", "drive")
	v.SetDefault("S3_KEY_PREFIX", "content/")

	v.SetDefault("LINK_SIGNING_SECRET", "dev_link_secret")
	v.SetDefault("LINK_TTL", "15m")
	v.SetDefault("LINK_BASE_URL", "http://localhost:8080/api/v1/links/")

	v.SetDefault("BANDWIDTH_BYTES_PER_WINDOW", int64(5*1024*1024*1024))
	v.SetDefault("BANDWIDTH_WINDOW", "1h")

	v.SetDefault("KAFKA_ENABLED", false)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("KAFKA_ACTIVITY_TOPIC", "drive.activity")
	v.SetDefault("KAFKA_MAX_RETRIES", 3)

	v.SetDefault("CONTENT_GC_WORKERS", 2)
	v.SetDefault("CONTENT_GC_RETRIES", 3)
	v.SetDefault("CONTENT_GC_RETRY_DELAY", "5s")
}

func isMissingFile(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such file")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
