// Package webhook delivers payloads to Discord webhooks.
package webhook

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/okian/eventwatch/internal/domain/format"
)

const defaultRatePerSec = 2

// Sender delivers one payload to one endpoint.
type Sender interface {
	Send(ctx context.Context, endpoint string, p format.Payload) error
}

// DiscordSender executes Discord webhooks. Each endpoint has its own rate
// limiter; a failed delivery is returned, never retried.
type DiscordSender struct {
	session    *discordgo.Session
	ratePerSec int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Option applies a configuration option to the DiscordSender.
type Option func(*DiscordSender)

// WithRatePerSec bounds deliveries per endpoint.
func WithRatePerSec(n int) Option {
	return func(s *DiscordSender) {
		if n > 0 {
			s.ratePerSec = n
		}
	}
}

// WithHTTPClient replaces the HTTP client used for webhook calls.
func WithHTTPClient(c *http.Client) Option {
	return func(s *DiscordSender) {
		if c != nil {
			s.session.Client = c
		}
	}
}

// NewDiscordSender creates a sender. Webhooks need no bot token.
func NewDiscordSender(timeout time.Duration, opts ...Option) (*DiscordSender, error) {
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Client = &http.Client{Timeout: timeout}
	session.UserAgent = "eventwatch (https://github.com/okian/eventwatch, 1.0)"
	session.ShouldRetryOnRateLimit = false
	session.MaxRestRetries = 0

	s := &DiscordSender{
		session:    session,
		ratePerSec: defaultRatePerSec,
		limiters:   make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Send executes the webhook at endpoint with p.
func (s *DiscordSender) Send(ctx context.Context, endpoint string, p format.Payload) error {
	id, token, err := ParseURL(endpoint)
	if err != nil {
		return err
	}
	if err := s.limiter(endpoint).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if _, err := s.session.WebhookExecute(id, token, false, Params(p), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("execute webhook %s: %w", Redact(endpoint), err)
	}
	return nil
}

func (s *DiscordSender) limiter(endpoint string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[endpoint]
	if !ok {
		l = rate.NewLimiter(rate.Limit(s.ratePerSec), s.ratePerSec)
		s.limiters[endpoint] = l
	}
	return l
}

// Params converts a payload to webhook parameters. Mentions are limited to
// the payload's role so feed text can never ping anyone else.
func Params(p format.Payload) *discordgo.WebhookParams {
	params := &discordgo.WebhookParams{
		Content:         p.Content,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}
	if p.Mention != "" {
		params.AllowedMentions.Roles = []string{p.Mention}
	}
	for _, e := range p.Embeds {
		params.Embeds = append(params.Embeds, embed(e))
	}
	return params
}

func embed(e format.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Type:        discordgo.EmbedTypeRich,
		Title:       e.Title,
		URL:         e.URL,
		Description: e.Description,
		Color:       e.Color,
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if e.ImageURL != "" {
		out.Image = &discordgo.MessageEmbedImage{URL: e.ImageURL}
	}
	if e.Author != nil {
		out.Author = &discordgo.MessageEmbedAuthor{Name: e.Author.Name, IconURL: e.Author.IconURL}
	}
	if e.Footer != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	return out
}
