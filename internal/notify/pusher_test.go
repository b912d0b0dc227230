package notify

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"gym-booking-service/internal/config"

	"github.com/sideshow/apns2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func TestNewPusher_FallsBackToMock(t *testing.T) {
	tests := []config.APNSConfig{
		{},
		{AuthKeyPath: "#/keys/AuthKey.p8", KeyID: "ABC", TeamID: "TEAM"},
		{AuthKeyPath: "/keys/AuthKey.p8", TeamID: "TEAM"},
	}
	for _, cfg := range tests {
		p, err := NewPusher(cfg)
		require.NoError(t, err)
		assert.IsType(t, MockPusher{}, p)
		assert.NoError(t, p.Push(context.Background(), "token", []byte(`{}`)))
	}
}

func TestNewPusher_MissingKeyFile(t *testing.T) {
	_, err := NewPusher(config.APNSConfig{AuthKeyPath: "/does/not/exist.p8", KeyID: "ABC", TeamID: "TEAM"})
	assert.ErrorContains(t, err, "read APNs auth key")
}

func TestNewPusher_TracesAPNsRequests(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "AuthKey.p8")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), 0o600))

	p, err := NewPusher(config.APNSConfig{AuthKeyPath: path, KeyID: "ABC123", TeamID: "TEAM42", Topic: "com.gym.app"})
	require.NoError(t, err)

	ap, ok := p.(*apnsPusher)
	require.True(t, ok)
	assert.Equal(t, "com.gym.app", ap.topic)
	assert.Equal(t, apns2.HostDevelopment, ap.client.Host)
	assert.IsType(t, &otelhttp.Transport{}, ap.client.HTTPClient.Transport)
}
