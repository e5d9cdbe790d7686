package config

// EnvPrefix namespaces every variable read by Load.
const EnvPrefix = "WARDROBE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	StorageDriverGCS   = "gcs"
	StorageDriverMinio = "minio"
	StorageDriverLocal = "local"
)

const (
	EnvAppEnv                 = "WARDROBE_APP_ENV"
	EnvPort                   = "WARDROBE_APP_PORT"
	EnvDBDSN                  = "WARDROBE_DB_DSN"
	EnvDBDriver               = "WARDROBE_DB_DRIVER"
	EnvDBHost                 = "WARDROBE_DB_HOST"
	EnvDBUser                 = "WARDROBE_DB_USER"
	EnvDBName                 = "WARDROBE_DB_NAME"
	EnvRedisURL               = "WARDROBE_REDIS_URL"
	EnvJWTSecret              = "WARDROBE_JWT_SECRET"
	EnvJWTIssuer              = "WARDROBE_JWT_ISSUER"
	EnvJWTExpMins             = "WARDROBE_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "WARDROBE_REFRESH_TOKEN_TTL_MINUTES"
	EnvStorageDriver          = "WARDROBE_STORAGE_DRIVER"
	EnvStorageBucket          = "WARDROBE_STORAGE_BUCKET"
	EnvStorageSignedURLTTL    = "WARDROBE_STORAGE_SIGNED_URL_TTL"
	EnvGCPProjectID           = "WARDROBE_GCP_PROJECT_ID"
	EnvMinioEndpoint          = "WARDROBE_MINIO_ENDPOINT"
	EnvMinioAccessKey         = "WARDROBE_MINIO_ACCESS_KEY"
	EnvMinioSecretKey         = "WARDROBE_MINIO_SECRET_KEY"
	EnvLocalRoot              = "WARDROBE_LOCAL_STORAGE_ROOT"
	EnvLocalSigningKey        = "WARDROBE_LOCAL_STORAGE_SIGNING_KEY"
	EnvPubSubItemEventsTopic  = "WARDROBE_PUBSUB_ITEM_EVENTS_TOPIC"
	EnvPubSubBlobJanitorSub   = "WARDROBE_PUBSUB_BLOB_JANITOR_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
