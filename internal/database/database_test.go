package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appconfig "github.com/GTDGit/gtd_paygate/internal/config"
)

func TestDSN_EscapesCredentials(t *testing.T) {
	dsn := DSN(&appconfig.DatabaseConfig{
		Host: "db", Port: "5432", User: "pay gate", Password: "p@ss/word", Name: "paygate", SSLMode: "disable",
	})
	assert.Equal(t, "postgres://pay+gate:p%40ss%2Fword@db:5432/paygate?sslmode=disable", dsn)
}

func TestConnect_NilConfig(t *testing.T) {
	_, err := Connect(context.Background(), nil)
	assert.Error(t, err)
}

func TestSleepWithBackoff_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := sleepWithBackoff(ctx, 5, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
