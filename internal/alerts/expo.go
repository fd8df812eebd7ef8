package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// ExpoConfig configures the Expo push sink.
type ExpoConfig struct {
	PushURL        string
	Token          string // device push token; empty disables delivery
	TimeoutSeconds int
}

// ExpoSink posts alerts to the Expo push gateway.
type ExpoSink struct {
	cfg    ExpoConfig
	client *resty.Client
}

type expoMessage struct {
	To    string            `json:"to"`
	Sound string            `json:"sound"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}

func NewExpoSink(cfg ExpoConfig) *ExpoSink {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)
	return &ExpoSink{cfg: cfg, client: client}
}

// Deliver implements Sink. A missing token is a quiet no-op so the engine
// runs unconfigured in development.
func (e *ExpoSink) Deliver(ctx context.Context, a Alert) error {
	if e.cfg.Token == "" {
		return nil
	}

	msg := expoMessage{
		To:    e.cfg.Token,
		Sound: "default",
		Title: a.Title,
		Body:  a.Body,
		Data:  map[string]string{"symbol": a.Symbol, "type": string(a.Type)},
	}

	resp, err := e.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(msg).
		Post(e.cfg.PushURL)
	if err != nil {
		return fmt.Errorf("expo push: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("expo push: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
