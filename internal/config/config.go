package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env      string
	Port     string
	LogLevel string

	DatabaseURL string
	RedisURL    string // optional; enables request stats for /health

	S3Endpoint  string // S3-compatible endpoint, e.g. https://<account>.r2.cloudflarestorage.com
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3PublicURL string // public base URL objects are served from; keys are appended as /<key>
	S3Region    string

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string // optional override for OpenAI-compatible providers

	ClerkPublicKey string // PEM encoded RSA public key used to verify bearer tokens
	MapAPIKey      string // forwarded into the prompt for the embedded map
	BackendURL     string // externally reachable base URL used in preview links

	CORSAllowOrigins string
	HealthAdminKey   string
	MaxUploadMB      int
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("PORT", "3000")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("S3_REGION", "auto")
	viper.SetDefault("OPENAI_MODEL", "gpt-4")
	viper.SetDefault("CORS_ALLOW_ORIGINS", "*")
	viper.SetDefault("MAX_UPLOAD_MB", 32)

	port := viper.GetString("PORT")
	beURL := strings.TrimRight(viper.GetString("BE_URL"), "/")
	if beURL == "" {
		beURL = "http://localhost:" + port
	}

	return &Config{
		Env:              viper.GetString("APP_ENV"),
		Port:             port,
		LogLevel:         viper.GetString("LOG_LEVEL"),
		DatabaseURL:      viper.GetString("DATABASE_URL"),
		RedisURL:         viper.GetString("REDIS_URL"),
		S3Endpoint:       viper.GetString("S3_ENDPOINT"),
		S3AccessKey:      viper.GetString("S3_ACCESS_KEY"),
		S3SecretKey:      viper.GetString("S3_SECRET_KEY"),
		S3Bucket:         viper.GetString("S3_BUCKET"),
		S3PublicURL:      strings.TrimRight(viper.GetString("S3_PUBLIC_URL"), "/"),
		S3Region:         viper.GetString("S3_REGION"),
		OpenAIAPIKey:     viper.GetString("OPENAI_API_KEY"),
		OpenAIModel:      viper.GetString("OPENAI_MODEL"),
		OpenAIBaseURL:    viper.GetString("OPENAI_BASE_URL"),
		ClerkPublicKey:   pemFromEnv(viper.GetString("CLERK_PUBLIC_KEY")),
		MapAPIKey:        viper.GetString("MAP_API_KEY"),
		BackendURL:       beURL,
		CORSAllowOrigins: viper.GetString("CORS_ALLOW_ORIGINS"),
		HealthAdminKey:   viper.GetString("HEALTH_ADMIN_KEY"),
		MaxUploadMB:      viper.GetInt("MAX_UPLOAD_MB"),
	}, nil
}

// Validate reports every missing setting the generation path cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.S3Endpoint == "" || c.S3AccessKey == "" || c.S3SecretKey == "" || c.S3Bucket == "" || c.S3PublicURL == "" {
		errs = append(errs, errors.New("missing S3 credentials"))
	}
	if c.OpenAIAPIKey == "" {
		errs = append(errs, errors.New("missing OpenAI API key"))
	}
	if c.ClerkPublicKey == "" {
		errs = append(errs, errors.New("missing Clerk public key"))
	}
	if c.MapAPIKey == "" {
		errs = append(errs, errors.New("missing map API key"))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("missing DATABASE_URL"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// pemFromEnv restores newlines in keys stored on one line ("\n" escapes).
func pemFromEnv(s string) string {
	s = strings.TrimSpace(s)
	return strings.ReplaceAll(s, `\n`, "\n")
}
