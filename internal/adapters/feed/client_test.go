package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

const eventsDoc = `[
  {"eventID":"cd-june","name":"June Community Day","eventType":"community-day","heading":"Community Day",
   "link":"LINK","image":"https://img/cd.jpg","start":"2024-06-01T14:00:00.000","end":"2024-06-01T17:00:00.000",
   "extraData":{"communityday":{"bonuses":[{"text":"Triple Stardust","image":"x"}]}}}
]`

const raidsDoc = `[{"name":"Rayquaza","tier":"Tier 5","canBeShiny":true,"types":[{"name":"dragon"}],
  "combatPower":{"normal":{"min":2083,"max":2191},"boosted":{"min":2604,"max":2739}},
  "boostedWeather":[{"name":"windy"}],"image":"https://img/ray.png"}]`

const mixedRaidsDoc = `[
  {"name":"Rayquaza","tier":"Tier 5","types":[{"name":"dragon"}]},
  {"name":"Dialga","tier":"Tier 5","types":"dragon"},
  {"name":"Klink","tier":"Tier 1"}
]`

const eggsDoc = `[{"name":"Larvitar","eggType":"10 km","isAdventureSync":false,"canBeShiny":true,
  "combatPower":{"min":434,"max":470},"isRegional":false,"isGiant":false}]`

const detailPage = `<html><body><div class="event-description">
  Catch Pokémon!
      Triple Stardust
</div></body></html>`

func newFeedServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/events.json", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(eventsDoc)) })
	mux.HandleFunc("/raids.json", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(raidsDoc)) })
	mux.HandleFunc("/eggs.json", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(eggsDoc)) })
	mux.HandleFunc("/events/cd-june/", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(detailPage)) })
	mux.HandleFunc("/events/empty/", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("<html></html>")) })
	mux.HandleFunc("/mixed-raids.json", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(mixedRaidsDoc)) })
	mux.HandleFunc("/broken.json", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("{")) })
	mux.HandleFunc("/down.json", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) })
	mux.HandleFunc("/slow.json", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte("[]"))
	})
	return httptest.NewServer(mux)
}

func TestClientFetch(t *testing.T) {
	ctx := context.Background()
	srv := newFeedServer()
	defer srv.Close()

	Convey("Given a client pointed at a test feed", t, func() {
		c := NewClient(WithURLs(srv.URL+"/events.json", srv.URL+"/raids.json", srv.URL+"/eggs.json"))

		Convey("When fetching events", func() {
			events, err := c.Events(ctx)

			Convey("Then records are decoded", func() {
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 1)
				So(events[0].EventID, ShouldEqual, "cd-june")
				So(events[0].Bonuses(), ShouldResemble, []string{"Triple Stardust"})
			})
		})

		Convey("When fetching raids and eggs", func() {
			raids, err := c.Raids(ctx)
			So(err, ShouldBeNil)
			eggs, err := c.Eggs(ctx)
			So(err, ShouldBeNil)

			Convey("Then records are decoded", func() {
				So(raids[0].CombatPower.Boosted.Max, ShouldEqual, 2739)
				So(raids[0].WeatherNames(), ShouldResemble, []string{"windy"})
				So(eggs[0].CombatPower.Min, ShouldEqual, 434)
			})
		})

		Convey("When fetching a detail page", func() {
			text, err := c.Description(ctx, srv.URL+"/events/cd-june/")
			empty, errEmpty := c.Description(ctx, srv.URL+"/events/empty/")

			Convey("Then the description block text is returned", func() {
				So(err, ShouldBeNil)
				So(text, ShouldStartWith, "Catch Pokémon!")
				So(text, ShouldContainSubstring, "      Triple Stardust")
				So(errEmpty, ShouldBeNil)
				So(empty, ShouldEqual, "")
			})
		})
	})

	Convey("Given failing endpoints", t, func() {
		c := NewClient(
			WithURLs(srv.URL+"/down.json", srv.URL+"/broken.json", srv.URL+"/slow.json"),
			WithTimeout(50*time.Millisecond),
		)

		Convey("When the server answers with an error status", func() {
			_, err := c.Events(ctx)

			Convey("Then ErrUnexpectedStatus is wrapped in ErrFetch", func() {
				So(errors.Is(err, ErrFetch), ShouldBeTrue)
				var status ErrUnexpectedStatus
				So(errors.As(err, &status), ShouldBeTrue)
				So(status.Status, ShouldEqual, http.StatusBadGateway)
			})
		})

		Convey("When the document is not valid JSON", func() {
			_, err := c.Raids(ctx)
			So(errors.Is(err, ErrFetch), ShouldBeTrue)
		})

		Convey("When the request exceeds the timeout", func() {
			_, err := c.Eggs(ctx)
			So(errors.Is(err, ErrFetch), ShouldBeTrue)
		})

		Convey("When the link is empty", func() {
			_, err := c.Description(ctx, " ")
			So(errors.Is(err, ErrFetch), ShouldBeTrue)
		})
	})
}

func TestClientSkipsBadRecords(t *testing.T) {
	srv := newFeedServer()
	defer srv.Close()

	Convey("Given a raids document with one mistyped record", t, func() {
		c := NewClient(WithURLs("", srv.URL+"/mixed-raids.json", ""))

		Convey("When fetching raids", func() {
			raids, err := c.Raids(context.Background())

			Convey("Then the other records are still returned in order", func() {
				So(err, ShouldBeNil)
				So(raids, ShouldHaveLength, 2)
				So(raids[0].Name, ShouldEqual, "Rayquaza")
				So(raids[1].Name, ShouldEqual, "Klink")
			})
		})
	})
}

func TestClientRawMirror(t *testing.T) {
	Convey("Given a client that mirrors the events document", t, func() {
		srv := newFeedServer()
		defer srv.Close()
		path := filepath.Join(t.TempDir(), "events.json")
		c := NewClient(WithURLs(srv.URL+"/events.json", "", ""), WithRawEventsPath(path))

		_, err := c.Events(context.Background())
		So(err, ShouldBeNil)

		b, err := os.ReadFile(path)
		So(err, ShouldBeNil)
		So(string(b), ShouldEqual, eventsDoc)
	})
}
