package config

import (
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Env             string        `mapstructure:"env"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type S3Config struct {
	Region     string `mapstructure:"region"`
	Bucket     string `mapstructure:"bucket"`
	PublicRead bool   `mapstructure:"public_read"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type JWTConfig struct {
	Alg           string `mapstructure:"alg"`
	Secret        string `mapstructure:"secret"`
	PublicKeyPath string `mapstructure:"public_key_path"`
}

type Config struct {
	App   AppConfig   `mapstructure:"app"`
	Mongo MongoConfig `mapstructure:"mongodb"`
	Redis RedisConfig `mapstructure:"redis"`
	Kafka KafkaConfig `mapstructure:"kafka"`
	NATS  NATSConfig  `mapstructure:"nats"`
	S3    S3Config    `mapstructure:"s3"`
	JWT   JWTConfig   `mapstructure:"jwt"`
	Log   LogConfig   `mapstructure:"log"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	// sensible defaults
	if c.App.Port == 0 {
		c.App.Port = 8081
	}
	if c.App.ShutdownTimeout == 0 {
		c.App.ShutdownTimeout = 10 * time.Second
	}
	if c.Mongo.URI == "" {
		c.Mongo.URI = "mongodb://localhost:27017"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "chatdb"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "message.changed"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "dm-service-relay"
	}
	if c.JWT.Alg == "" {
		c.JWT.Alg = "HS256"
	}
	return &c, nil
}
