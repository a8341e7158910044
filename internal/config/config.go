package config

import "github.com/kelseyhightower/envconfig"

type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	Kafka     KafkaConfig
	Store     StoreConfig
	Websocket WebsocketConfig
	Security  SecurityConfig
}

type ServerConfig struct {
	Port string `envconfig:"PORT" default:"3001"`
}

type LoggingConfig struct {
	Directory string `envconfig:"LOG_DIR" default:"./logs"`
	Level     string `envconfig:"LOG_LEVEL" default:"info"`
	Format    string `envconfig:"LOG_FORMAT" default:"text"`
}

type KafkaConfig struct {
	// Brokers empty means the product lifecycle consumers stay disabled and
	// product events only flow through connected websocket clients.
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"product-relay"`
	Topics  []string `envconfig:"KAFKA_TOPICS" default:"products.created,products.updated,products.deleted"`
}

type StoreConfig struct {
	Path string `envconfig:"MESSAGES_FILE" default:"./data/messages.json"`
}

type WebsocketConfig struct {
	SendBuffer int `envconfig:"WS_SEND_BUFFER" default:"8"`
}

type SecurityConfig struct {
	// JWTSecret enables identity tokens on connect when set. Tokens label
	// connections; they never gate access.
	JWTSecret string `envconfig:"JWT_SECRET"`
}

func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
