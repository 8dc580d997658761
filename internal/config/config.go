package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Env       string `env:"ENV" envDefault:"development"`
	Port      string `env:"PORT" envDefault:"8080"`
	JWTSecret string `env:"JWT_SECRET,required"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	MySQL MySQLConfig
	Redis RedisConfig
	Kafka KafkaConfig

	Rooms     RoomConfig
	Presence  PresenceConfig
	Reactions ReactionConfig

	Search SearchConfig
}

type MySQLConfig struct {
	Host     string `env:"MYSQL_HOST" envDefault:"localhost"`
	Port     string `env:"MYSQL_PORT" envDefault:"3306"`
	User     string `env:"MYSQL_USER" envDefault:"root"`
	Password string `env:"MYSQL_PASSWORD"`
	Database string `env:"MYSQL_DATABASE" envDefault:"crowdqueue"`
}

func (m MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		m.User, m.Password, m.Host, m.Port, m.Database)
}

type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     string `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	Topic   string   `env:"KAFKA_TOPIC" envDefault:"crowdqueue-events"`
	GroupID string   `env:"KAFKA_GROUP_ID" envDefault:"crowdqueue-server"`
}

type RoomConfig struct {
	// CodeAttempts bounds random code allocation before giving up with a
	// conflict.
	CodeAttempts int `env:"ROOM_CODE_ATTEMPTS" envDefault:"5"`
}

type PresenceConfig struct {
	// Window must be a few multiples of the client heartbeat cadence so a
	// single missed beat does not flip a user to away.
	Window    time.Duration `env:"PRESENCE_WINDOW" envDefault:"45s"`
	Heartbeat time.Duration `env:"PRESENCE_HEARTBEAT" envDefault:"15s"`
}

type ReactionConfig struct {
	MinInterval time.Duration `env:"REACTION_MIN_INTERVAL" envDefault:"2s"`
	TTL         time.Duration `env:"REACTION_TTL" envDefault:"10s"`
}

type SearchConfig struct {
	BaseURL string `env:"SEARCH_BASE_URL" envDefault:"https://www.googleapis.com/youtube/v3"`
	APIKey  string `env:"SEARCH_API_KEY"`
}

// Load reads .env (if present) and parses the environment into a Config.
func Load() (*Config, error) {
	// Missing .env is fine in production; the environment is already set.
	_ = godotenv.Load()

	c, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &c, nil
}
