package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env               string `yaml:"env" env-required:"true"`
	ConnectionStrings `yaml:"connection_strings"`
	App               `yaml:"app"`
	HTTPServer        `yaml:"http_server"`
	Auth              `yaml:"auth"`
	Gateway           `yaml:"gateway"`
	Prometheus        `yaml:"prometheus"`
	Kafka             `yaml:"kafka"`
}

type ConnectionStrings struct {
	Postgres        `yaml:"postgres"`
	AuditClickHouse `yaml:"audit_clickhouse"`
}

type App struct {
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout" env-default:"15s"`
	AuditConfig             `yaml:"audit_config"`
}

// AuditConfig controls the audit worker's batching of ledger transitions.
type AuditConfig struct {
	RetrySaveBatchConfig `yaml:"retry_save_batch_config"`
	BatchSize            int           `yaml:"batch_size" env-required:"true"`
	FlushInterval        time.Duration `yaml:"flush_interval" env-required:"true"`
	WorkerCount          int           `yaml:"worker_count" env-required:"true"`
}

type RetrySaveBatchConfig struct {
	Attempts uint          `yaml:"attempts" env-default:"5"`
	Delay    time.Duration `yaml:"delay" env-default:"200ms"`
	MaxDelay time.Duration `yaml:"max_delay" env-default:"2s"`
}

type HTTPServer struct {
	Host              string        `yaml:"host" env-default:"0.0.0.0"`
	Port              uint          `yaml:"port" env-default:"8080"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env-default:"5s"`
	WriteTimeout      time.Duration `yaml:"write_timeout" env-default:"30s"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type Auth struct {
	JWTSecret string `yaml:"jwt_secret" env:"AUTH_JWT_SECRET" env-required:"true"`
}

// Gateway configures the hosted-checkout provider and webhook verification.
type Gateway struct {
	SecretKey      string        `yaml:"secret_key" env:"GATEWAY_SECRET_KEY" env-required:"true"`
	WebhookSecret  string        `yaml:"webhook_secret" env:"GATEWAY_WEBHOOK_SECRET" env-required:"true"`
	BaseURL        string        `yaml:"base_url" env-default:"https://api.stripe.com"`
	Currency       string        `yaml:"currency" env-default:"usd"`
	SessionTimeout time.Duration `yaml:"session_timeout" env-default:"10s"`
	ClockTolerance time.Duration `yaml:"clock_tolerance" env-default:"5m"`
	// ClientURL is the fallback redirect origin when the request carries none.
	ClientURL string `yaml:"client_url" env-default:"http://localhost:3000"`
}

type Postgres struct {
	URL          string        `yaml:"url" env:"POSTGRES_URL" env-required:"true"`
	ConnTimeout  time.Duration `yaml:"conn_timeout" env-default:"10s"`
	MaxOpenConns int32         `yaml:"max_open_conns" env-default:"10"`
}

type Prometheus struct {
	HOST string `yaml:"host" env-required:"true"`
	PORT uint   `yaml:"port" env-required:"true"`
}

type AuditClickHouse struct {
	Host              string        `yaml:"host" env-required:"true"`
	Port              int           `yaml:"port" env-required:"true"`
	Database          string        `yaml:"database" env-required:"true"`
	Username          string        `yaml:"username" env-required:"true"`
	Password          string        `yaml:"password" env-required:"true"`
	MaxExecutionTime  int           `yaml:"max_execution_time" env-required:"true"`
	CompressionMethod string        `yaml:"compression_method" env-required:"true"`
	DialTimeout       time.Duration `yaml:"dial_timeout" env-required:"true"`
	MaxOpenConns      int           `yaml:"max_open_conns" env-required:"true"`
	MaxIdleConns      int           `yaml:"max_idle_conns" env-required:"true"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime" env-required:"true"`
	BlockBufferSize   uint8         `yaml:"block_buffer_size" env-required:"true"`
}

type Kafka struct {
	Brokers      []string `yaml:"brokers" env-required:"true"`
	Version      string   `yaml:"version" env-required:"true"`
	GroupID      string   `yaml:"group_id" env-required:"true"`
	Topic        string   `yaml:"topic" env-required:"true"`
	DLQTopic     string   `yaml:"dlq_topic" env-required:"true"`
	ReturnErrors bool     `yaml:"return_errors" env-default:"true"`
}

func MustLoad() (cfg Config) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH environment variable not set")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatal("CONFIG_PATH does not exist")
	}

	err := cleanenv.ReadConfig(configPath, &cfg)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	return
}
