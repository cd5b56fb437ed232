package webhook

import "errors"

// ErrInvalidWebhookURL is returned when an endpoint is not a webhook URL.
var ErrInvalidWebhookURL = errors.New("invalid webhook url")
