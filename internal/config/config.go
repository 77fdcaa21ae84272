package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort       string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL    string `env:"DATABASE_URL,required,notEmpty"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"false"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	JWTSecret            string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"60"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"43200"`

	SignInLimit  int           `env:"SIGNIN_LIMIT" envDefault:"5"`
	SignInWindow time.Duration `env:"SIGNIN_WINDOW" envDefault:"10m"`

	PublicPaths []string `env:"PUBLIC_PATHS" envSeparator:"," envDefault:"/,/explore,/login,/signup"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"Art Market"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	Storage StorageConfig `envPrefix:"STORAGE_"`
}

// StorageConfig agrupa el acceso a MinIO para avatares e imágenes de obras.
type StorageConfig struct {
	Endpoint      string   `env:"ENDPOINT"`
	AccessKey     string   `env:"ACCESS_KEY"`
	SecretKey     string   `env:"SECRET_KEY"`
	UseSSL        bool     `env:"USE_SSL" envDefault:"false"`
	PublicBaseURL string   `env:"PUBLIC_BASE_URL"`
	Buckets       []string `env:"BUCKETS" envSeparator:"," envDefault:"avatars,artworks"`
	MaxUploadMB   int64    `env:"MAX_UPLOAD_MB" envDefault:"10"`
}

// ClientConfig es la configuración de artctl.
type ClientConfig struct {
	APIURL      string        `env:"ARTMARKET_API_URL" envDefault:"http://localhost:8080"`
	SessionFile string        `env:"ARTMARKET_SESSION_FILE"`
	SettleDelay time.Duration `env:"ARTMARKET_SIGNUP_SETTLE_DELAY" envDefault:"1s"`
	Timeout     time.Duration `env:"ARTMARKET_HTTP_TIMEOUT" envDefault:"15s"`

	ProfileRetryAttempts     int           `env:"ARTMARKET_PROFILE_RETRY_ATTEMPTS" envDefault:"3"`
	ProfileRetryInitialDelay time.Duration `env:"ARTMARKET_PROFILE_RETRY_INITIAL_DELAY" envDefault:"250ms"`
	ProfileRetryMaxDelay     time.Duration `env:"ARTMARKET_PROFILE_RETRY_MAX_DELAY" envDefault:"2s"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadClientConfig carga la configuración del cliente desde variables de entorno.
func LoadClientConfig() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
