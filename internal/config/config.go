package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Persistence drivers.
const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"
	DriverS3     = "s3"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Log struct {
		Level string
	}
	Persistence struct {
		Driver  string
		DataDir string
	}
	Database struct {
		Path string
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
	Auth struct {
		JWTSecret       string
		TokenTTLMinutes int
		PasswordScheme  string
		SeedUsername    string
		SeedPassword    string
	}
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("TAXCALC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("persistence.driver", DriverSQLite)
	v.SetDefault("persistence.datadir", "data")
	v.SetDefault("database.path", "data/taxcalc.db")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "income-tax")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttlminutes", 60)
	v.SetDefault("auth.passwordscheme", "plain")
	v.SetDefault("auth.seedusername", "admin")
	v.SetDefault("auth.seedpassword", "admin123")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Persistence.Driver {
	case DriverSQLite, DriverFile:
	case DriverS3:
		if strings.TrimSpace(c.Storage.Bucket) == "" {
			return fmt.Errorf("storage bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown persistence driver %q", c.Persistence.Driver)
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		return fmt.Errorf("auth token ttl must be positive")
	}
	return nil
}

// loadDotEnv exports variables from an optional dotenv file without
// overriding anything already set in the environment.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
