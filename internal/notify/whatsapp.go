package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// WhatsAppConfig holds the messaging gateway endpoint and instance credentials.
type WhatsAppConfig struct {
	APIURL      string
	InstanceID  string
	AccessToken string
	Timeout     time.Duration
}

type whatsAppPayload struct {
	Number      string `json:"number"`
	Type        string `json:"type"`
	Message     string `json:"message"`
	InstanceID  string `json:"instance_id"`
	AccessToken string `json:"access_token"`
}

// WhatsApp sends text messages through an HTTP WhatsApp gateway.
type WhatsApp struct {
	client *resty.Client
	cfg    WhatsAppConfig
	logger *zap.Logger
}

// NewWhatsApp creates a WhatsApp channel.
func NewWhatsApp(cfg WhatsAppConfig, logger *zap.Logger) *WhatsApp {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &WhatsApp{client: client, cfg: cfg, logger: logger}
}

// Name implements Channel.
func (w *WhatsApp) Name() string { return "whatsapp" }

// Send implements Channel. Any non-2xx gateway response is an error.
func (w *WhatsApp) Send(ctx context.Context, phone, message string) error {
	if w.cfg.APIURL == "" {
		return fmt.Errorf("WhatsApp API URL not configured")
	}
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(whatsAppPayload{
			Number:      phone,
			Type:        "text",
			Message:     message,
			InstanceID:  w.cfg.InstanceID,
			AccessToken: w.cfg.AccessToken,
		}).
		Post(w.cfg.APIURL)
	if err != nil {
		return fmt.Errorf("WhatsApp request: %w", err)
	}
	if !resp.IsSuccess() {
		w.logger.Debug("whatsapp gateway rejected message", zap.Int("status", resp.StatusCode()), zap.String("body", resp.String()))
		return fmt.Errorf("WhatsApp API error: %s", http.StatusText(resp.StatusCode()))
	}
	return nil
}
