package webhook

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseURL extracts the webhook id and token from a URL of the form
// https://discord.com/api/webhooks/{id}/{token}.
func ParseURL(endpoint string) (id, token string, err error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidWebhookURL, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", "", fmt.Errorf("%w: scheme %q", ErrInvalidWebhookURL, u.Scheme)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, p := range parts {
		if p != "webhooks" {
			continue
		}
		if i+2 >= len(parts) {
			break
		}
		id, token = parts[i+1], parts[i+2]
		if id == "" || token == "" {
			break
		}
		return id, token, nil
	}
	return "", "", fmt.Errorf("%w: missing id or token", ErrInvalidWebhookURL)
}

// Redact returns endpoint with its token hidden, safe for logs.
func Redact(endpoint string) string {
	id, _, err := ParseURL(endpoint)
	if err != nil {
		return "<invalid webhook>"
	}
	u, _ := url.Parse(strings.TrimSpace(endpoint))
	return u.Scheme + "://" + u.Host + "/api/webhooks/" + id + "/***"
}
