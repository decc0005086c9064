package telemetry

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitJaeger_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := InitJaeger("applydesk", "", zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitJaeger_WithEndpoint(t *testing.T) {
	shutdown, err := InitJaeger("applydesk", "http://127.0.0.1:1/api/traces", zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, shutdown)
}
