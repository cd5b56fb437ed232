package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/okian/eventwatch/internal/domain/format"
	. "github.com/smartystreets/goconvey/convey"
)

// redirect sends every request to the test server regardless of host.
type redirect struct {
	target *url.URL
}

func (r redirect) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = r.target.Scheme
	req.URL.Host = r.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

type recorded struct {
	path string
	body map[string]any
}

func newDiscord(status int) (*httptest.Server, func() []recorded) {
	var (
		mu   sync.Mutex
		reqs []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(b, &body)
		mu.Lock()
		reqs = append(reqs, recorded{path: r.URL.Path, body: body})
		mu.Unlock()
		w.WriteHeader(status)
		if status >= 400 {
			_, _ = w.Write([]byte(`{"message":"Unknown Webhook","code":10015}`))
		}
	}))
	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), reqs...)
	}
}

func samplePayload() format.Payload {
	return format.Payload{
		Content: "<@&42>",
		Mention: "42",
		Embeds: []format.Embed{{
			Title:       "June Community Day",
			URL:         "https://leekduck.com/events/cd-june/",
			Description: "Catch them all",
			Fields:      []format.Field{{Name: "Type", Value: "Community Day"}},
			ImageURL:    "https://img/cd.jpg",
			Author:      &format.Author{Name: "Pokémon Go", IconURL: "https://img/icon.png"},
			Footer:      format.DefaultFooter,
			Color:       format.DefaultColor,
		}},
	}
}

func TestParseURL(t *testing.T) {
	Convey("Given webhook URLs", t, func() {
		id, token, err := ParseURL("https://discord.com/api/webhooks/123/abc-DEF")
		So(err, ShouldBeNil)
		So(id, ShouldEqual, "123")
		So(token, ShouldEqual, "abc-DEF")

		id, _, err = ParseURL(" https://discordapp.com/api/v10/webhooks/9/t/ ")
		So(err, ShouldBeNil)
		So(id, ShouldEqual, "9")

		for _, bad := range []string{"", "discord.com/api/webhooks/1/2", "https://discord.com/api/webhooks/1", "ftp://x/webhooks/1/2"} {
			_, _, err := ParseURL(bad)
			So(errors.Is(err, ErrInvalidWebhookURL), ShouldBeTrue)
		}
	})

	Convey("Given a webhook URL in a log line", t, func() {
		So(Redact("https://discord.com/api/webhooks/123/secret"), ShouldEqual, "https://discord.com/api/webhooks/123/***")
		So(Redact("nonsense"), ShouldEqual, "<invalid webhook>")
	})
}

func TestParams(t *testing.T) {
	Convey("Given a payload with a role mention", t, func() {
		p := Params(samplePayload())

		Convey("Then only that role may be pinged", func() {
			So(p.Content, ShouldEqual, "<@&42>")
			So(p.AllowedMentions.Roles, ShouldResemble, []string{"42"})
			So(p.AllowedMentions.Parse, ShouldBeEmpty)
		})

		Convey("Then the embed is fully mapped", func() {
			So(p.Embeds, ShouldHaveLength, 1)
			e := p.Embeds[0]
			So(e.Title, ShouldEqual, "June Community Day")
			So(e.Image.URL, ShouldEqual, "https://img/cd.jpg")
			So(e.Author.Name, ShouldEqual, "Pokémon Go")
			So(e.Footer.Text, ShouldEqual, format.DefaultFooter)
			So(e.Fields[0].Value, ShouldEqual, "Community Day")
			So(e.Color, ShouldEqual, format.DefaultColor)
		})
	})

	Convey("Given a payload without a mention", t, func() {
		p := Params(format.Payload{Embeds: []format.Embed{{Title: "New Raid Bosses"}}})
		So(p.AllowedMentions.Roles, ShouldBeEmpty)
		So(p.Embeds[0].Image, ShouldBeNil)
		So(p.Embeds[0].Author, ShouldBeNil)
	})
}

func TestDiscordSender(t *testing.T) {
	ctx := context.Background()

	Convey("Given a sender against a fake Discord", t, func() {
		srv, reqs := newDiscord(http.StatusNoContent)
		defer srv.Close()
		target, _ := url.Parse(srv.URL)

		s, err := NewDiscordSender(time.Second,
			WithHTTPClient(&http.Client{Timeout: time.Second, Transport: redirect{target: target}}),
			WithRatePerSec(50))
		So(err, ShouldBeNil)

		Convey("When sending a payload", func() {
			err := s.Send(ctx, "https://discord.com/api/webhooks/123/tok", samplePayload())

			Convey("Then the webhook is executed once", func() {
				So(err, ShouldBeNil)
				got := reqs()
				So(got, ShouldHaveLength, 1)
				So(got[0].path, ShouldEndWith, "/webhooks/123/tok")
				So(got[0].body["content"], ShouldEqual, "<@&42>")
			})
		})

		Convey("When the endpoint is malformed", func() {
			err := s.Send(ctx, "https://discord.com/nothing", samplePayload())
			So(errors.Is(err, ErrInvalidWebhookURL), ShouldBeTrue)
			So(reqs(), ShouldBeEmpty)
		})
	})

	Convey("Given a fake Discord that rejects the webhook", t, func() {
		srv, reqs := newDiscord(http.StatusNotFound)
		defer srv.Close()
		target, _ := url.Parse(srv.URL)
		s, err := NewDiscordSender(time.Second,
			WithHTTPClient(&http.Client{Timeout: time.Second, Transport: redirect{target: target}}))
		So(err, ShouldBeNil)

		err = s.Send(ctx, "https://discord.com/api/webhooks/123/secret", samplePayload())

		Convey("Then the error is returned without retry and without the token", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldNotContainSubstring, "secret")
			So(reqs(), ShouldHaveLength, 1)
		})
	})
}
