package types

type Config struct {
	Environment     string `envconfig:"ENVIRONMENT" default:"development"`
	ServerPort      uint   `envconfig:"SERVER_PORT" default:"8080"`
	DatabaseURL     string `envconfig:"DATABASE_URL"`
	ReadTimeoutSec  uint   `envconfig:"READ_TIMEOUT_SEC" default:"10"`
	WriteTimeoutSec uint   `envconfig:"WRITE_TIMEOUT_SEC" default:"15"`

	// Object storage. Endpoint and path-style addressing are only needed for
	// S3-compatible services such as MinIO or Cloudflare R2.
	S3BucketName      string `envconfig:"S3_BUCKET_NAME" default:"account-statements"`
	S3Region          string `envconfig:"S3_REGION" default:"af-south-1"`
	S3Endpoint        string `envconfig:"S3_ENDPOINT"`
	S3AccessKeyID     string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	StorageTimeoutSec uint   `envconfig:"STORAGE_TIMEOUT_SEC" default:"10"`

	// Upload and download-link policy.
	MaxUploadBytes         int64 `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"` // 10 MiB
	DownloadLinkMinutes    int   `envconfig:"DOWNLOAD_LINK_EXPIRATION_MINUTES" default:"15"`
	MaxActiveDownloadLinks int   `envconfig:"MAX_ACTIVE_DOWNLOAD_LINKS" default:"5"`

	// Expired-token sweeping.
	SweepIntervalMinutes int `envconfig:"SWEEP_INTERVAL_MINUTES" default:"60"`
	TokenRetentionHours  int `envconfig:"TOKEN_RETENTION_HOURS" default:"24"`

	// Auth. JWTSecret signs locally issued HS256 tokens. When JWKSURL is set
	// the server verifies bearer tokens against a remote key set instead.
	JWTSecret string `envconfig:"JWT_SECRET"`
	JWKSURL   string `envconfig:"JWKS_URL"`

	// Cookie encryption keys (base64 encoded)
	// openssl rand -base64 32
	// to generate values
	CookieHashKey  string `envconfig:"COOKIE_HASH_KEY"`  // 32 or 64 bytes
	CookieBlockKey string `envconfig:"COOKIE_BLOCK_KEY"` // 16, 24, or 32 bytes
}
