package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Storage       StorageConfig
	GCP           GCPConfig
	Minio         MinioConfig
	Local         LocalStorageConfig
	Wardrobe      WardrobeConfig
	PubSub        PubSubConfig
	Eventing      EventingConfig
	Outbox        OutboxConfig
	Metrics       MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.validate(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"WARDROBE_APP_ENV" required:"true"`
	Port         string `envconfig:"WARDROBE_APP_PORT" required:"true"`
	ServiceName  string `envconfig:"WARDROBE_SERVICE_NAME" default:"wardrobe-api"`
	LogLevel     string `envconfig:"WARDROBE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"WARDROBE_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"WARDROBE_LOG_FORMAT"`
	CORSOrigins  string `envconfig:"WARDROBE_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	return splitList(a.CORSOrigins)
}

type DBConfig struct {
	DSN    string `envconfig:"WARDROBE_DB_DSN"`
	Driver string `envconfig:"WARDROBE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"WARDROBE_DB_HOST"`
	LegacyPort     int    `envconfig:"WARDROBE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"WARDROBE_DB_USER"`
	LegacyPassword string `envconfig:"WARDROBE_DB_PASSWORD"`
	LegacyName     string `envconfig:"WARDROBE_DB_NAME"`
	LegacySSLMode  string `envconfig:"WARDROBE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"WARDROBE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WARDROBE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WARDROBE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WARDROBE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"WARDROBE_AUTO_MIGRATE" default:"false"`
}

// IsSQLite reports whether the sqlite driver is selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"WARDROBE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"WARDROBE_REDIS_ADDR"`
	Password     string        `envconfig:"WARDROBE_REDIS_PASSWORD"`
	DB           int           `envconfig:"WARDROBE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WARDROBE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WARDROBE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WARDROBE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WARDROBE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WARDROBE_REDIS_WRITE_TIMEOUT" default:"5s"`

	IdempotencyTTL time.Duration `envconfig:"WARDROBE_IDEMPOTENCY_TTL" default:"24h"`
	SaveLockTTL    time.Duration `envconfig:"WARDROBE_SAVE_LOCK_TTL" default:"2m"`
	APIRateLimit   int64         `envconfig:"WARDROBE_API_RATE_LIMIT" default:"120"`
	APIRateWindow  time.Duration `envconfig:"WARDROBE_API_RATE_WINDOW" default:"1m"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"WARDROBE_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"WARDROBE_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"WARDROBE_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"WARDROBE_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"WARDROBE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"WARDROBE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"WARDROBE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"WARDROBE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"WARDROBE_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"WARDROBE_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"WARDROBE_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"WARDROBE_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"WARDROBE_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"WARDROBE_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"WARDROBE_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

// StorageConfig selects the blob store driver shared by every binary.
type StorageConfig struct {
	Driver       string        `envconfig:"WARDROBE_STORAGE_DRIVER" default:"gcs"`
	Bucket       string        `envconfig:"WARDROBE_STORAGE_BUCKET" default:"wardrobe"`
	SignedURLTTL time.Duration `envconfig:"WARDROBE_STORAGE_SIGNED_URL_TTL" default:"1h"`
}

func (s StorageConfig) validate(cfg Config) error {
	if strings.TrimSpace(s.Bucket) == "" {
		return fmt.Errorf("%s is required", EnvStorageBucket)
	}
	if s.SignedURLTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvStorageSignedURLTTL)
	}
	switch strings.ToLower(s.Driver) {
	case StorageDriverGCS:
		if cfg.GCP.ProjectID == "" {
			return fmt.Errorf("%s is required for the gcs storage driver", EnvGCPProjectID)
		}
	case StorageDriverMinio:
		if cfg.Minio.Endpoint == "" || cfg.Minio.AccessKey == "" || cfg.Minio.SecretKey == "" {
			return fmt.Errorf("%s, %s and %s are required for the minio storage driver", EnvMinioEndpoint, EnvMinioAccessKey, EnvMinioSecretKey)
		}
	case StorageDriverLocal:
		if cfg.Local.Root == "" || cfg.Local.SigningKey == "" {
			return fmt.Errorf("%s and %s are required for the local storage driver", EnvLocalRoot, EnvLocalSigningKey)
		}
	default:
		return fmt.Errorf("unsupported %s %q", EnvStorageDriver, s.Driver)
	}
	return nil
}

type GCPConfig struct {
	ProjectID              string `envconfig:"WARDROBE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"WARDROBE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"WARDROBE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type MinioConfig struct {
	Endpoint  string `envconfig:"WARDROBE_MINIO_ENDPOINT"`
	AccessKey string `envconfig:"WARDROBE_MINIO_ACCESS_KEY"`
	SecretKey string `envconfig:"WARDROBE_MINIO_SECRET_KEY"`
	UseSSL    bool   `envconfig:"WARDROBE_MINIO_USE_SSL" default:"true"`
	Region    string `envconfig:"WARDROBE_MINIO_REGION"`
}

type LocalStorageConfig struct {
	Root       string `envconfig:"WARDROBE_LOCAL_STORAGE_ROOT"`
	BaseURL    string `envconfig:"WARDROBE_LOCAL_STORAGE_BASE_URL" default:"http://localhost:8080/blobs"`
	SigningKey string `envconfig:"WARDROBE_LOCAL_STORAGE_SIGNING_KEY"`
}

// WardrobeConfig carries the item workflow knobs.
type WardrobeConfig struct {
	MaxImagesPerSave int           `envconfig:"WARDROBE_MAX_IMAGES_PER_SAVE" default:"12"`
	MaxImageBytes    int64         `envconfig:"WARDROBE_MAX_IMAGE_BYTES" default:"15728640"`
	ImportDir        string        `envconfig:"WARDROBE_IMPORT_DIR"`
	SignedURLCache   bool          `envconfig:"WARDROBE_SIGNED_URL_CACHE" default:"true"`
	SignedURLMargin  time.Duration `envconfig:"WARDROBE_SIGNED_URL_CACHE_MARGIN" default:"5m"`
}

type PubSubConfig struct {
	ItemEventsTopic         string `envconfig:"WARDROBE_PUBSUB_ITEM_EVENTS_TOPIC" default:"wardrobe-item-events"`
	BlobJanitorSubscription string `envconfig:"WARDROBE_PUBSUB_BLOB_JANITOR_SUBSCRIPTION" default:"wardrobe-blob-janitor"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"WARDROBE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"WARDROBE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"WARDROBE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"WARDROBE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	PublishTimeout time.Duration `envconfig:"WARDROBE_OUTBOX_PUBLISH_TIMEOUT" default:"15s"`
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"WARDROBE_METRICS_ENABLED" default:"true"`
	Path    string `envconfig:"WARDROBE_METRICS_PATH" default:"/metrics"`
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		db.DSN = "file::memory:?cache=shared"
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
