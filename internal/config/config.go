package config

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string     `yaml:"env" env:"ENV" env-default:"production"`
	HTTPServer HTTPServer `yaml:"http_server"`
	MinIO      MinIO      `yaml:"minio"`
	S3         S3         `yaml:"s3"`
	Mongo      Mongo      `yaml:"mongo"`
	Redis      Redis      `yaml:"redis"`
	ClamAV     ClamAV     `yaml:"clamav"`
	AI         AI         `yaml:"ai"`
	Workers    Workers    `yaml:"workers"`
	JWTSecret  string     `yaml:"jwt_secret" env:"JWT_SECRET" env-default:"super_secret_key"`
}

type HTTPServer struct {
	Address string `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
}

type MinIO struct {
	Endpoint        string `yaml:"endpoint" env:"MINIO_ENDPOINT" env-default:"localhost:9000"`
	AccessKeyID     string `yaml:"access_key_id" env:"MINIO_ACCESS_KEY" env-default:"minioadmin"`
	SecretAccessKey string `yaml:"secret_access_key" env:"MINIO_SECRET_KEY" env-default:"minioadmin"`
	Bucket          string `yaml:"bucket" env:"MINIO_BUCKET" env-default:"uploads"`
	UseSSL          bool   `yaml:"use_ssl" env:"MINIO_USE_SSL" env-default:"false"`
}

// S3 is the cold tier. Leaving Bucket or the credentials empty disables the
// cold tier, and with it the sync worker.
type S3 struct {
	Region    string `yaml:"region" env:"AWS_REGION" env-default:"us-east-1"`
	Bucket    string `yaml:"bucket" env:"AWS_BUCKET"`
	AccessKey string `yaml:"access_key" env:"AWS_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"AWS_SECRET_KEY"`
	Endpoint  string `yaml:"endpoint" env:"AWS_ENDPOINT"` // optional, for localstack-style targets
}

type Mongo struct {
	URI        string `yaml:"uri" env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	Database   string `yaml:"database" env:"MONGO_DB" env-default:"filevault"`
	Collection string `yaml:"collection" env:"MONGO_COLLECTION" env-default:"files"`
}

type Redis struct {
	Address  string `yaml:"address" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type ClamAV struct {
	Address string `yaml:"address" env:"CLAMAV_ADDRESS" env-default:"tcp://localhost:3310"`
	Enabled bool   `yaml:"enabled" env:"CLAMAV_ENABLED" env-default:"true"`
}

type AI struct {
	APIKey         string   `yaml:"api_key" env:"GROQ_API_KEY"`
	BaseURL        string   `yaml:"base_url" env:"AI_BASE_URL" env-default:"https://api.groq.com/openai/v1"`
	DefaultModel   string   `yaml:"default_model" env:"AI_DEFAULT_MODEL" env-default:"llama-3.1-8b-instant"`
	FallbackModels []string `yaml:"fallback_models" env:"AI_FALLBACK_MODELS" env-separator:"," env-default:"llama-3.1-70b-versatile,gemma2-9b-it"`
}

type Workers struct {
	SyncInterval     time.Duration `yaml:"sync_interval" env:"SYNC_INTERVAL" env-default:"30s"`
	AnalysisInterval time.Duration `yaml:"analysis_interval" env:"ANALYSIS_INTERVAL" env-default:"60s"`
	CallTimeout      time.Duration `yaml:"call_timeout" env:"WORKER_CALL_TIMEOUT" env-default:"2m"`
}

func MustLoad() *Config {
	var configPath string

	configPath = os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "Path to config file")
		flag.Parse()
		configPath = *flags

		if configPath == "" {
			log.Fatal("config path must be provided")
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist at path: %s", configPath)
	}

	var cfg Config

	err := cleanenv.ReadConfig(configPath, &cfg)

	if err != nil {
		log.Fatalf("failed to read config: %s", err)
	}

	return &cfg
}
