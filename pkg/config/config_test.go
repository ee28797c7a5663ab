package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Vitals.PollInterval)
	assert.Equal(t, "http://localhost:5000/api/data", cfg.Vitals.URL)
	assert.Equal(t, "matricare.users.updated", cfg.Kafka.TopicUserEvents)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Minute, cfg.Simulator.UpdateInterval)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "10s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("KAFKA_CREATE_TOPICS", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Vitals.PollInterval)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 9999, cfg.HTTP.Port)
	assert.False(t, cfg.Kafka.CreateTopicsOnUp)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-a-number")
	t.Setenv("VITALS_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 3*time.Second, cfg.Vitals.Timeout)
}

func TestLoad_RejectsNonPositivePollInterval(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "0s")

	_, err := Load()
	assert.Error(t, err)
}

func TestDatabaseConfig_ConnectionString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "n", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=n sslmode=disable", d.ConnectionString())
}
