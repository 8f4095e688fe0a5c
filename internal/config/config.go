package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort        string        `yaml:"http_port" env:"HTTP_PORT" env-default:"8080"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"10s"`
	CORSOrigins     []string      `yaml:"cors_origins" env:"CORS_ORIGINS" env-separator:"," env-default:"*"`
	LogLevel        string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	MongoURI string `yaml:"mongo_uri" env:"MONGO_URI" env-default:"mongodb://localhost:27017/?replicaSet=rs0"`
	MongoDB  string `yaml:"mongo_db" env:"MONGO_DB" env-default:"deliverylab"`

	UseKafka      bool          `yaml:"use_kafka" env:"USE_KAFKA" env-default:"true"`
	KafkaBrokers  []string      `yaml:"kafka_brokers" env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
	KafkaClientID string        `yaml:"kafka_client_id" env:"KAFKA_CLIENT_ID" env-default:"ubereats-app"`
	KafkaDialWait time.Duration `yaml:"kafka_dial_timeout" env:"KAFKA_DIAL_TIMEOUT" env-default:"10s"`

	// RedisAddr vacío: caché LRU en proceso.
	RedisAddr string        `yaml:"redis_addr" env:"REDIS_ADDR"`
	CacheTTL  time.Duration `yaml:"cache_ttl" env:"CACHE_TTL" env-default:"5m"`
	CacheSize int           `yaml:"cache_size" env:"CACHE_SIZE" env-default:"1024"`

	// ClickHouseAddr vacío: sin analítica del flujo.
	ClickHouseAddr string `yaml:"clickhouse_addr" env:"CLICKHOUSE_ADDR"`
	ClickHouseDB   string `yaml:"clickhouse_db" env:"CLICKHOUSE_DB" env-default:"default"`
	FlowLogPath    string `yaml:"flow_log_path" env:"FLOW_LOG_PATH" env-default:"logs/kafka-messages.log"`

	DeliveryMode string        `yaml:"delivery_mode" env:"DELIVERY_MODE" env-default:"direct"`
	OutboxPeriod time.Duration `yaml:"outbox_period" env:"OUTBOX_PERIOD" env-default:"1s"`
	OutboxLimit  int           `yaml:"outbox_limit" env:"OUTBOX_LIMIT" env-default:"10"`

	AutoAdvanceEnabled bool          `yaml:"auto_advance_enabled" env:"AUTO_ADVANCE_ENABLED" env-default:"true"`
	AutoAdvanceDelay   time.Duration `yaml:"auto_advance_delay" env:"AUTO_ADVANCE_DELAY" env-default:"15s"`
	ConsumerTimeout    time.Duration `yaml:"consumer_timeout" env:"CONSUMER_TIMEOUT" env-default:"5s"`
}

// LoadConfig carga .env si existe y después el YAML de CONFIG_PATH o, en su
// defecto, las variables de entorno.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DeliveryMode {
	case "direct", "outbox":
	default:
		return fmt.Errorf("DELIVERY_MODE must be direct or outbox, got %q", c.DeliveryMode)
	}
	if c.UseKafka && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required when USE_KAFKA=true")
	}
	if c.OutboxLimit <= 0 {
		return fmt.Errorf("OUTBOX_LIMIT must be positive, got %d", c.OutboxLimit)
	}
	if c.AutoAdvanceDelay < 0 {
		return fmt.Errorf("AUTO_ADVANCE_DELAY must not be negative, got %s", c.AutoAdvanceDelay)
	}
	return nil
}
