package observability

import (
	"context"
	"testing"

	"genericstore/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("orders-test")
	require.NoError(t, err)
	require.NotNil(t, logger)
	logger.Info("hello")
}

func TestSetupTracingWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), config.AppConfig{ServiceName: "orders-test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
