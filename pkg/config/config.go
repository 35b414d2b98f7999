package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	pkglog "github.com/anonto42/yatube/backend/pkg/log"
	"github.com/anonto42/yatube/backend/pkg/storage"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Media    MediaConfig    `mapstructure:"media"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Nats     NatsConfig     `mapstructure:"nats"`
	Log      pkglog.Config  `mapstructure:"log"`
}

type ServerConfig struct {
	Port           string `mapstructure:"port"`
	Env            string `mapstructure:"env"`
	PageSize       int    `mapstructure:"page_size"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres, sqlite
	DSN             string `mapstructure:"dsn"`    // overrides the discrete postgres settings
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	FilePath        string `mapstructure:"file_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // minutes
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type CacheConfig struct {
	Driver            string         `mapstructure:"driver"` // memory, redis
	RedisAddr         string         `mapstructure:"redis_addr"`
	RedisPassword     string         `mapstructure:"redis_password"`
	RedisDB           int            `mapstructure:"redis_db"`
	InvalidateOnWrite bool           `mapstructure:"invalidate_on_write"`
	TTL               CacheTTLConfig `mapstructure:"ttl"`
}

type CacheTTLConfig struct {
	Index       time.Duration `mapstructure:"index"`
	GroupList   time.Duration `mapstructure:"group_list"`
	GroupPosts  time.Duration `mapstructure:"group_posts"`
	Post        time.Duration `mapstructure:"post"`
	FollowIndex time.Duration `mapstructure:"follow_index"`
}

type MediaConfig struct {
	Driver       string           `mapstructure:"driver"` // local, gridfs, s3
	BasePath     string           `mapstructure:"base_path"`
	GridFSBucket string           `mapstructure:"gridfs_bucket"`
	S3           storage.S3Config `mapstructure:"s3"`
}

type AuthConfig struct {
	JWTSecret               string        `mapstructure:"jwt_secret"`
	TokenTTL                time.Duration `mapstructure:"token_ttl"`
	FirebaseCredentialsPath string        `mapstructure:"firebase_credentials_path"`
	LoginURL                string        `mapstructure:"login_url"`
}

type NatsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// Load reads .env (if any), then config.yaml from ./ or ./config, then the
// environment. Nested keys map to env vars with dots replaced by underscores
// (cache.invalidate_on_write -> CACHE_INVALIDATE_ON_WRITE).
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	bindLegacyEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.page_size", 10)
	v.SetDefault("server.max_upload_bytes", 5<<20)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "yatube")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/yatube.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", 60)

	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "yatube")

	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.invalidate_on_write", false)
	v.SetDefault("cache.ttl.index", "5s")
	v.SetDefault("cache.ttl.group_list", "5s")
	v.SetDefault("cache.ttl.group_posts", "5s")
	v.SetDefault("cache.ttl.post", "5s")
	v.SetDefault("cache.ttl.follow_index", "40s")

	v.SetDefault("media.driver", "local")
	v.SetDefault("media.base_path", "./media")
	v.SetDefault("media.gridfs_bucket", "media")
	v.SetDefault("media.s3.endpoint", "")
	v.SetDefault("media.s3.region", "us-east-1")
	v.SetDefault("media.s3.bucket", "yatube-media")
	v.SetDefault("media.s3.access_key_id", "")
	v.SetDefault("media.s3.secret_access_key", "")
	v.SetDefault("media.s3.use_path_style", false)

	v.SetDefault("auth.jwt_secret", "supersecretjwtkey")
	v.SetDefault("auth.token_ttl", "72h")
	v.SetDefault("auth.firebase_credentials_path", "")
	v.SetDefault("auth.login_url", "/auth/login/")

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "yatube")
}

// bindLegacyEnv keeps the flat variable names deployments already set.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("server.env", "ENV")
	_ = v.BindEnv("database.dsn", "POSTGRES_CONN_STR")
	_ = v.BindEnv("mongo.uri", "MONGO_URI")
	_ = v.BindEnv("cache.redis_addr", "REDIS_ADDR")
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("auth.firebase_credentials_path", "FIREBASE_CREDENTIALS_PATH")
	_ = v.BindEnv("nats.url", "NATS_URL")
	_ = v.BindEnv("log.level", "LOG_LEVEL")
}
