package config

import (
	"fmt"
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env      string `env:"APP_ENV" env-default:"production"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`

	Port       string `env:"PORT" env-default:"8080"`
	CORSOrigin string `env:"CORS_ORIGIN" env-default:"http://localhost:3000"`
	JWTSecret  string `env:"JWT_SECRET" env-required:"true"`
	DBURL      string `env:"DB_URL" env-required:"true"`

	Redis    Redis
	MinIO    MinIO
	DataCite DataCite
}

type Redis struct {
	Host     string `env:"REDIS_HOST" env-default:"localhost"`
	Port     string `env:"REDIS_PORT" env-default:"6379"`
	Password string `env:"REDIS_PASSWORD" env-default:""`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

func (r Redis) Addr() string {
	return r.Host + ":" + r.Port
}

type MinIO struct {
	Endpoint  string `env:"MINIO_ENDPOINT" env-default:"localhost:9000"`
	Bucket    string `env:"MINIO_BUCKET_NAME" env-default:"scholarsphere"`
	AccessKey string `env:"MINIO_ACCESS_KEY" env-default:""`
	SecretKey string `env:"MINIO_SECRET_KEY" env-default:""`
	UseSSL    bool   `env:"MINIO_USE_SSL" env-default:"false"`
}

// DataCite holds registrar credentials. PublicURL is the base used to build
// landing page URLs sent with DOI metadata.
type DataCite struct {
	URL       string        `env:"DATACITE_URL" env-default:"https://api.test.datacite.org"`
	Prefix    string        `env:"DATACITE_PREFIX" env-default:"10.80000"`
	Username  string        `env:"DATACITE_USERNAME" env-default:""`
	Password  string        `env:"DATACITE_PASSWORD" env-default:""`
	Timeout   time.Duration `env:"DATACITE_TIMEOUT" env-default:"15s"`
	PublicURL string        `env:"PUBLIC_URL" env-default:"http://localhost:8080"`
	Publisher string        `env:"PUBLISHER" env-default:"ScholarSphere"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Development() bool {
	return c.Env == "development"
}
