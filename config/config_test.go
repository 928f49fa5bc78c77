package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("WHATSAPP_BATCH_SIZE", "")
	t.Setenv("APP_BASE_URL", "https://workshops.example.com/")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://workshops.example.com", cfg.Server.BaseURL)
	require.Equal(t, 3, cfg.WhatsApp.BatchSize)
	require.Equal(t, 2*time.Second, cfg.WhatsApp.BatchDelay)
	require.Equal(t, "966", cfg.WhatsApp.CountryCode)
	require.Equal(t, 24*time.Hour, cfg.Certificate.SweepGrace)
}

func TestLoad_RejectsNonPositiveBatchSize(t *testing.T) {
	t.Setenv("WHATSAPP_BATCH_SIZE", "0")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_RejectsUnknownTimezone(t *testing.T) {
	t.Setenv("CERT_TIMEZONE", "Mars/Olympus_Mons")

	_, err := Load()
	require.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "w", SSLMode: "disable"}
	require.Equal(t, "postgres://u:p@db:5432/w?sslmode=disable", c.DSN())

	c.URL = "postgres://override"
	require.Equal(t, "postgres://override", c.DSN())
}
