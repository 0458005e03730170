package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Charli3-Official/charli3-push-oracle-node/pkg/config"
)

const channelTimeout = 10 * time.Second

// NewChannel constructs the notifier described by a channel config.
func NewChannel(cfg config.ChannelConfig) (Notifier, error) {
	switch cfg.Type {
	case "slack":
		if cfg.WebhookURL == "" {
			return nil, fmt.Errorf("slack channel: %w", ErrMissingWebhookURL)
		}
		return &webhookChannel{name: "slack", url: cfg.WebhookURL, field: "text", client: newChannelClient()}, nil
	case "discord":
		if cfg.WebhookURL == "" {
			return nil, fmt.Errorf("discord channel: %w", ErrMissingWebhookURL)
		}
		return &webhookChannel{name: "discord", url: cfg.WebhookURL, field: "content", client: newChannelClient()}, nil
	case "telegram":
		if cfg.BotToken == "" || cfg.ChatID == "" {
			return nil, fmt.Errorf("telegram channel: %w", ErrMissingTelegramConfig)
		}
		return &telegramChannel{botToken: cfg.BotToken, chatID: cfg.ChatID, client: newChannelClient()}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannelType, cfg.Type)
	}
}

func newChannelClient() *http.Client {
	return &http.Client{Timeout: channelTimeout}
}

// webhookChannel posts a JSON body with a single message field. Slack
// and Discord incoming webhooks only differ in the field name.
type webhookChannel struct {
	name   string
	url    string
	field  string
	client *http.Client
}

func (w *webhookChannel) Name() string { return w.name }

func (w *webhookChannel) Notify(ctx context.Context, event Event) error {
	payload := map[string]string{w.field: event.Text()}
	return postJSON(ctx, w.client, w.url, payload)
}

// telegramChannel uses the Bot API sendMessage endpoint.
type telegramChannel struct {
	botToken string
	chatID   string
	client   *http.Client
}

func (t *telegramChannel) Name() string { return "telegram" }

func (t *telegramChannel) Notify(ctx context.Context, event Event) error {
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", url.PathEscape(t.botToken))
	payload := map[string]string{
		"chat_id": t.chatID,
		"text":    event.Text(),
	}
	return postJSON(ctx, t.client, endpoint, payload)
}

func postJSON(ctx context.Context, client *http.Client, endpoint string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrDeliveryFailed, resp.StatusCode, string(detail))
	}
	return nil
}
