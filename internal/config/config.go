package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config representa la configuración del servidor
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Visma      VismaConfig
	Session    SessionConfig
	Upload     UploadConfig
	Storage    StorageConfig
	Email      EmailConfig
	Inngest    InngestConfig
	Logging    LoggingConfig
	TokenStore string
}

// ServerConfig representa la configuración del servidor HTTP
type ServerConfig struct {
	Port       string
	Host       string
	Env        string
	BaseURL    string
	CORSOrigin string
}

// DatabaseConfig representa la configuración de la base de datos
type DatabaseConfig struct {
	URL          string
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	AutoMigrate  bool
}

// RedisConfig representa la configuración de Redis
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	TokenKey string
}

// VismaConfig agrupa las credenciales OAuth y las URLs del proveedor contable
type VismaConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	BaseURL      string
	APIBaseURL   string
	Scope        string
	HTTPTimeout  time.Duration

	BreakerMaxRequests  uint32
	BreakerInterval     time.Duration
	BreakerTimeout      time.Duration
	BreakerFailureRatio float64
	BreakerMinRequests  uint32
}

// SessionConfig representa la configuración de la sesión por contraseña
type SessionConfig struct {
	AppPassword       string
	Secret            string
	MaxAge            time.Duration
	TokenCookieMaxAge time.Duration
	LoginRateLimit    int
	LoginRateBurst    int
}

// UploadConfig representa los límites de subida de archivos
type UploadConfig struct {
	Dir          string
	MaxFileSize  int64
	AllowedTypes []string
	PDFMinSize   int64
}

// StorageConfig representa el almacenamiento S3 compatible para PDFs
type StorageConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

// EmailConfig representa la configuración de email
type EmailConfig struct {
	ResendAPIKey string
	From         string
	NotifyTo     string
}

// InngestConfig representa la configuración de Inngest
type InngestConfig struct {
	EventKey   string
	SigningKey string
	AppID      string
	Dev        bool
}

// LoggingConfig representa la configuración de logging
type LoggingConfig struct {
	Level  string
	Format string
}

// Load carga la configuración desde variables de entorno
func Load() (*Config, error) {
	// No es crítico si no existe el archivo .env
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port:       getEnv("SERVER_PORT", "3001"),
			Host:       getEnv("SERVER_HOST", "0.0.0.0"),
			Env:        getEnv("SERVER_ENV", "development"),
			BaseURL:    getEnv("SERVER_BASE_URL", "http://localhost:3001"),
			CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:5173"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("DATABASE_URL", ""),
			Host:         getEnv("PGHOST", "localhost"),
			Port:         getEnv("PGPORT", "5432"),
			User:         getEnv("PGUSER", "postgres"),
			Password:     getEnv("PGPASSWORD", "postgres"),
			Name:         getEnv("PGDATABASE", "genin"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			AutoMigrate:  getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TokenKey: getEnv("REDIS_TOKEN_KEY", "genin:visma:tokens"),
		},
		Visma: VismaConfig{
			ClientID:     getEnv("VISMA_CLIENT_ID", ""),
			ClientSecret: getEnv("VISMA_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("VISMA_REDIRECT_URI", "http://localhost:5173/auth/callback"),
			BaseURL:      strings.TrimRight(getEnv("VISMA_BASE_URL", "https://identity.vismaonline.com"), "/"),
			APIBaseURL:   strings.TrimRight(getEnv("VISMA_API_BASE_URL", "https://eaccountingapi.vismaonline.com"), "/"),
			Scope:        getEnv("VISMA_SCOPE", "ea:api ea:sales offline_access"),
			HTTPTimeout:  getEnvAsDuration("VISMA_HTTP_TIMEOUT", 30*time.Second),

			BreakerMaxRequests:  uint32(getEnvAsInt("VISMA_BREAKER_MAX_REQUESTS", 1)),
			BreakerInterval:     getEnvAsDuration("VISMA_BREAKER_INTERVAL", 60*time.Second),
			BreakerTimeout:      getEnvAsDuration("VISMA_BREAKER_TIMEOUT", 30*time.Second),
			BreakerFailureRatio: getEnvAsFloat("VISMA_BREAKER_FAILURE_RATIO", 0.6),
			BreakerMinRequests:  uint32(getEnvAsInt("VISMA_BREAKER_MIN_REQUESTS", 10)),
		},
		Session: SessionConfig{
			AppPassword:       getEnv("APP_PASSWORD", "123456"),
			Secret:            getEnv("APP_SESSION_SECRET", "change-me-secret"),
			MaxAge:            getEnvAsDuration("SESSION_MAX_AGE", 24*time.Hour),
			TokenCookieMaxAge: getEnvAsDuration("TOKEN_COOKIE_MAX_AGE", time.Hour),
			LoginRateLimit:    getEnvAsInt("LOGIN_RATE_LIMIT", 5),
			LoginRateBurst:    getEnvAsInt("LOGIN_RATE_BURST", 10),
		},
		Upload: UploadConfig{
			Dir:          getEnv("UPLOAD_DIR", "./uploads"),
			MaxFileSize:  getEnvAsInt64("MAX_FILE_SIZE", 10485760),
			AllowedTypes: getEnvAsList("ALLOWED_FILE_TYPES", []string{".xlsx", ".pdf"}),
			PDFMinSize:   getEnvAsInt64("PDF_MIN_SIZE", 1024),
		},
		Storage: StorageConfig{
			Endpoint:        getEnv("STORAGE_ENDPOINT", ""),
			Region:          getEnv("STORAGE_REGION", "eu-north-1"),
			AccessKeyID:     getEnv("STORAGE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("STORAGE_SECRET_ACCESS_KEY", ""),
			Bucket:          getEnv("STORAGE_BUCKET", "genin-uploads"),
		},
		Email: EmailConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			From:         getEnv("EMAIL_FROM", "onboarding@resend.dev"),
			NotifyTo:     getEnv("EMAIL_NOTIFY_TO", ""),
		},
		Inngest: InngestConfig{
			EventKey:   getEnv("INNGEST_EVENT_KEY", ""),
			SigningKey: getEnv("INNGEST_SIGNING_KEY", ""),
			AppID:      getEnv("INNGEST_APP_ID", "genin-api"),
			Dev:        getEnvAsBool("INNGEST_DEV", false),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		TokenStore: strings.ToLower(getEnv("TOKEN_STORE", "")),
	}

	switch config.TokenStore {
	case "", "postgres", "redis", "memory":
	default:
		return nil, fmt.Errorf("invalid TOKEN_STORE %q: must be postgres, redis or memory", config.TokenStore)
	}

	return config, nil
}

// Validate retorna advertencias sobre configuración incompleta
func (c *Config) Validate() []string {
	var warnings []string
	if c.Visma.ClientID == "" || c.Visma.ClientSecret == "" {
		warnings = append(warnings, "VISMA_CLIENT_ID/VISMA_CLIENT_SECRET not set, Visma connection requires per-request credentials")
	}
	if c.Session.Secret == "change-me-secret" {
		warnings = append(warnings, "APP_SESSION_SECRET uses the default value")
	}
	if c.Session.AppPassword == "123456" {
		warnings = append(warnings, "APP_PASSWORD uses the default value")
	}
	return warnings
}

// getEnv obtiene una variable de entorno o retorna un valor por defecto
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt obtiene una variable de entorno como entero
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvAsBool obtiene una variable de entorno como booleano
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration obtiene una variable de entorno como duración
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvAsList separa una variable de entorno por comas
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// IsDevelopment retorna true si el entorno es de desarrollo
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction retorna true si el entorno es de producción
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// GetDSN retorna la cadena de conexión a la base de datos
func (c *Config) GetDSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return "host=" + c.Database.Host +
		" port=" + c.Database.Port +
		" user=" + c.Database.User +
		" password=" + c.Database.Password +
		" dbname=" + c.Database.Name +
		" sslmode=" + c.Database.SSLMode
}

// GetRedisAddr retorna la dirección de Redis
func (c *Config) GetRedisAddr() string {
	return c.Redis.Host + ":" + c.Redis.Port
}

// HasEvents indica si se publican eventos en Inngest
func (c *Config) HasEvents() bool {
	return c.Inngest.EventKey != "" || c.Inngest.Dev
}

// HasStorage indica si hay un bucket S3 configurado
func (c *Config) HasStorage() bool {
	return c.Storage.Endpoint != "" && c.Storage.AccessKeyID != "" && c.Storage.SecretAccessKey != ""
}

// IdentityHost retorna el host del proveedor de identidad, usado en /auth/me
func (c *Config) IdentityHost() string {
	u, err := url.Parse(c.Visma.BaseURL)
	if err != nil || u.Host == "" {
		return c.Visma.BaseURL
	}
	return u.Scheme + "://" + u.Host
}
