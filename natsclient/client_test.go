package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/osdugate/errors"
)

func TestNewClientDefaults(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", client.URLs())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.False(t, client.IsHealthy())
	assert.Zero(t, client.Failures())
}

func TestNewClientOptions(t *testing.T) {
	client, err := NewClient("nats://localhost:4222",
		WithMaxReconnects(3),
		WithReconnectWait(time.Second),
		WithTimeout(2*time.Second),
		WithName("osdugate-test"),
		WithToken("tok"),
	)
	require.NoError(t, err)

	assert.Equal(t, 3, client.maxReconnects)
	assert.Equal(t, time.Second, client.reconnectWait)
	assert.Equal(t, 2*time.Second, client.timeout)
	assert.Equal(t, "osdugate-test", client.clientName)
	assert.Equal(t, "tok", client.token)
}

func TestConnectFailureIsTransient(t *testing.T) {
	// Port 1 is never a NATS server
	client, err := NewClient("nats://127.0.0.1:1",
		WithTimeout(200*time.Millisecond),
		WithMaxReconnects(0),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = client.Connect(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.Equal(t, int32(1), client.Failures())
}

func TestJetStreamBeforeConnect(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	_, err = client.JetStream()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestCloseIdempotent(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, client.Close(ctx))
	require.NoError(t, client.Close(ctx))
}

func TestConnectionStatusString(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "reconnecting", StatusReconnecting.String())
	assert.Equal(t, "unknown", ConnectionStatus(99).String())
}
