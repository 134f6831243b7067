package domain

import "time"

// Config holds the complete Axle configuration.
type Config struct {
	// Environment is "development" or "production". Outside production,
	// unhandled errors include a stack trace in the response.
	Environment string `json:"environment"`

	// Server settings
	Server ServerConfig `json:"server"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`
	OCR        OCRConfig        `json:"ocr"`
	Upload     UploadConfig     `json:"upload"`
	Alerts     AlertsConfig     `json:"alerts"`

	// Observability
	Logging LoggingConfig `json:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// OCRConfig selects the text-detection provider used for plate extraction.
type OCRConfig struct {
	// Provider is "rekognition" or "none"
	Provider  string        `json:"provider"`
	AWSRegion string        `json:"awsRegion"`
	CacheTTL  time.Duration `json:"cacheTtl"`
}

// Enabled reports whether a provider is configured.
func (c OCRConfig) Enabled() bool {
	return c.Provider != "" && c.Provider != "none"
}

// UploadConfig bounds image uploads on /detect-plate.
type UploadConfig struct {
	MaxBytes     int64    `json:"maxBytes"`
	AllowedTypes []string `json:"allowedTypes"`
}

// AlertsConfig controls overload alert persistence.
type AlertsConfig struct {
	Enabled bool `json:"enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// EnvProduction is the Environment value for production deployments.
const EnvProduction = "production"

// DefaultConfig returns a single-node configuration: SQLite, in-memory cache,
// channel bus, OCR disabled.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         5000,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Repository: RepositoryConfig{
			Driver:          "sqlite",
			SQLitePath:      "./axle.db",
			PostgresHost:    "localhost",
			PostgresPort:    5432,
			PostgresUser:    "axle",
			PostgresDB:      "axle",
			PostgresSSLMode: "disable",
		},
		Cache: CacheConfig{
			Type:         "memory",
			RedisAddr:    "localhost:6379",
			LocalMaxSize: 1000,
			LocalTTL:     5 * time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			NATSUrl:           "nats://localhost:4222",
			ChannelBufferSize: 1000,
		},
		OCR: OCRConfig{
			Provider:  "none",
			AWSRegion: "us-east-1",
			CacheTTL:  10 * time.Minute,
		},
		Upload: UploadConfig{
			MaxBytes: 5 << 20,
			AllowedTypes: []string{
				"image/jpeg",
				"image/jpg",
				"image/png",
				"image/gif",
				"image/bmp",
				"image/webp",
			},
		},
		Alerts: AlertsConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
