package alerts

import "errors"

var (
	// ErrUnknownChannelType indicates a notification channel type the
	// manager does not understand.
	ErrUnknownChannelType = errors.New("unknown notification channel type")

	// ErrMissingWebhookURL indicates a webhook channel without a URL.
	ErrMissingWebhookURL = errors.New("missing webhook url")

	// ErrMissingTelegramConfig indicates a telegram channel without a
	// bot token or chat id.
	ErrMissingTelegramConfig = errors.New("missing telegram bot token or chat id")

	// ErrDeliveryFailed indicates the channel endpoint refused the
	// notification.
	ErrDeliveryFailed = errors.New("notification delivery failed")
)
