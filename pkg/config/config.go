package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	HTTP      HTTPConfig
	Vitals    VitalsConfig
	Session   SessionConfig
	Invite    InviteConfig
	SMTP      SMTPConfig
	Log       LogConfig
	Simulator SimulatorConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers          []string
	TopicUserEvents  string
	NotifierGroupID  string
	NumPartitions    int
	CreateTopicsOnUp bool
}

type HTTPConfig struct {
	Port        int
	CORSOrigins []string
}

// VitalsConfig controls the upstream vitals endpoint and the poll cadence.
type VitalsConfig struct {
	URL          string
	Timeout      time.Duration
	PollInterval time.Duration
}

type SessionConfig struct {
	TTL    time.Duration
	Secret string
}

type InviteConfig struct {
	BaseURL  string
	Secret   string
	TokenTTL time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type LogConfig struct {
	Level  string
	Format string
}

type SimulatorConfig struct {
	Port           int
	CSVPath        string
	UpdateInterval time.Duration
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "matricare"),
			Password: getEnv("DB_PASSWORD", "matricare"),
			DBName:   getEnv("DB_NAME", "matricare"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:          getEnvAsList("KAFKA_BROKERS", []string{"localhost:9092"}),
			TopicUserEvents:  getEnv("KAFKA_TOPIC_USER_EVENTS", "matricare.users.updated"),
			NotifierGroupID:  getEnv("KAFKA_NOTIFIER_GROUP", "family-invite-group"),
			NumPartitions:    getEnvAsInt("KAFKA_NUM_PARTITIONS", 3),
			CreateTopicsOnUp: getEnvAsBool("KAFKA_CREATE_TOPICS", true),
		},
		HTTP: HTTPConfig{
			Port:        getEnvAsInt("HTTP_PORT", 8080),
			CORSOrigins: getEnvAsList("CORS_ORIGINS", []string{"*"}),
		},
		Vitals: VitalsConfig{
			URL:          getEnv("VITALS_URL", "http://localhost:5000/api/data"),
			Timeout:      getEnvAsDuration("VITALS_TIMEOUT", 3*time.Second),
			PollInterval: getEnvAsDuration("POLL_INTERVAL", 5*time.Second),
		},
		Session: SessionConfig{
			TTL:    getEnvAsDuration("SESSION_TTL", 12*time.Hour),
			Secret: getEnv("SESSION_SECRET", "dev-session-secret"),
		},
		Invite: InviteConfig{
			BaseURL:  getEnv("INVITE_BASE_URL", "http://localhost:3000"),
			Secret:   getEnv("INVITE_SECRET", "dev-invite-secret"),
			TokenTTL: getEnvAsDuration("INVITE_TOKEN_TTL", 7*24*time.Hour),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "no-reply@matricare.com"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Simulator: SimulatorConfig{
			Port:           getEnvAsInt("SIM_PORT", 5000),
			CSVPath:        getEnv("SIM_CSV_PATH", "maternal_training_data.csv"),
			UpdateInterval: getEnvAsDuration("SIM_UPDATE_INTERVAL", 2*time.Minute),
		},
	}

	if config.Vitals.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL must be positive, got %s", config.Vitals.PollInterval)
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated value, dropping empty items.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
