package notify

import (
	"context"
	"fmt"
	"log/slog"

	"gym-booking-service/internal/config"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/token"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Pusher delivers one push payload to one device.
type Pusher interface {
	Push(ctx context.Context, deviceToken string, payload []byte) error
}

type apnsPusher struct {
	client *apns2.Client
	topic  string
}

func (p *apnsPusher) Push(ctx context.Context, deviceToken string, payload []byte) error {
	notification := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       p.topic,
		Payload:     payload,
	}

	res, err := p.client.PushWithContext(ctx, notification)
	if err != nil {
		return err
	}
	if !res.Sent() {
		return fmt.Errorf("apns rejected notification: %d %s", res.StatusCode, res.Reason)
	}
	slog.DebugContext(ctx, "push notification sent", "apns_id", res.ApnsID)
	return nil
}

// MockPusher logs instead of sending. Used when APNs credentials are absent.
type MockPusher struct{}

func (MockPusher) Push(ctx context.Context, deviceToken string, payload []byte) error {
	slog.InfoContext(ctx, "push notification sent (mock)", "device_token", deviceToken, "payload", string(payload))
	return nil
}

func NewPusher(cfg config.APNSConfig) (Pusher, error) {
	if cfg.AuthKeyPath == "" || cfg.AuthKeyPath[0] == '#' || cfg.KeyID == "" || cfg.TeamID == "" {
		slog.Warn("APNs credentials not found or invalid, notification worker will run in MOCK mode")
		return MockPusher{}, nil
	}

	authKey, err := token.AuthKeyFromFile(cfg.AuthKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read APNs auth key: %w", err)
	}

	authToken := &token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	}

	client := apns2.NewTokenClient(authToken)
	client.HTTPClient.Transport = otelhttp.NewTransport(client.HTTPClient.Transport)
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}
	return &apnsPusher{client: client, topic: cfg.Topic}, nil
}
