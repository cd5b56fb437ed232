package format_test

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/okian/eventwatch/internal/domain/format"
	"github.com/okian/eventwatch/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func raid(name, tier string, shiny bool) model.RaidRecord {
	return model.RaidRecord{
		Name:       name,
		Tier:       tier,
		CanBeShiny: shiny,
		Types:      []model.NamedAsset{{Name: "dragon"}, {Name: "flying"}},
		CombatPower: model.RaidCombatPower{
			Normal:  model.CPRange{Min: 2000, Max: 2100},
			Boosted: model.CPRange{Min: 2500, Max: 2625},
		},
		BoostedWeather: []model.NamedAsset{{Name: "windy"}},
		Image:          "https://img/" + name + ".png",
	}
}

func TestEventPayload(t *testing.T) {
	Convey("Given a formatter in UTC", t, func() {
		f := format.New(format.WithLocation(time.UTC))

		Convey("When formatting a community day with bonuses", func() {
			rec := model.EventRecord{
				EventID:     "cd-june",
				Name:        "June Community Day",
				Heading:     "Community Day",
				Link:        "https://leekduck.com/events/cd-june/",
				Image:       "https://img/cd.jpg",
				Start:       "2024-06-01T14:00:00.000",
				End:         "2024-06-01T17:00:00.000",
				Description: "Catch them all",
				ExtraData: &model.ExtraData{CommunityDay: &model.CommunityDay{Bonuses: []model.Bonus{
					{Text: "Triple Stardust"}, {Text: " "}, {Text: "3-hour Lure Modules"},
				}}},
			}
			p, err := f.Event(rec)

			Convey("Then the embed carries the event", func() {
				So(err, ShouldBeNil)
				So(p.Embeds, ShouldHaveLength, 1)
				e := p.Embeds[0]
				So(e.Title, ShouldEqual, "June Community Day")
				So(e.URL, ShouldEqual, rec.Link)
				So(e.Description, ShouldEqual, "Catch them all")
				So(e.ImageURL, ShouldEqual, rec.Image)
				So(e.Color, ShouldEqual, format.DefaultColor)
				So(e.Footer, ShouldEqual, format.DefaultFooter)
				So(e.Author, ShouldNotBeNil)
				So(e.Fields, ShouldHaveLength, 4)
				So(e.Fields[0], ShouldResemble, format.Field{Name: "Type", Value: "Community Day"})
				So(e.Fields[1].Value, ShouldEqual, "Sat 1 June 14:00")
				So(e.Fields[2].Value, ShouldEqual, "Sat 1 June 17:00")
				So(e.Fields[3].Value, ShouldEqual, "Triple Stardust\n3-hour Lure Modules")
				So(p.Content, ShouldBeEmpty)
			})
		})

		Convey("When the event has no bonuses", func() {
			p, err := f.Event(model.EventRecord{Name: "Raid Hour", Start: "2024-06-05T18:00:00Z", End: "2024-06-05T19:00:00Z"})

			Convey("Then only the three time fields are present", func() {
				So(err, ShouldBeNil)
				So(p.Embeds[0].Fields, ShouldHaveLength, 3)
				So(p.Embeds[0].Fields[0].Value, ShouldEqual, "-")
			})
		})

		Convey("When an offset timestamp is given", func() {
			p, err := f.Event(model.EventRecord{Name: "GO Fest", Start: "2024-06-05T18:00:00+02:00", End: "2024-06-05T19:00:00+02:00"})

			Convey("Then it renders in its own zone", func() {
				So(err, ShouldBeNil)
				So(p.Embeds[0].Fields[1].Value, ShouldEqual, "Wed 5 June 18:00")
			})
		})

		Convey("When required fields are missing", func() {
			_, errName := f.Event(model.EventRecord{Start: "2024-06-05T18:00:00Z", End: "2024-06-05T19:00:00Z"})
			_, errTime := f.Event(model.EventRecord{Name: "Broken", Start: "soon", End: "later"})

			Convey("Then a malformed record error is returned", func() {
				So(errors.Is(errName, format.ErrMalformedRecord), ShouldBeTrue)
				So(errors.Is(errTime, format.ErrMalformedRecord), ShouldBeTrue)
				So(errors.Is(errTime, model.ErrInvalidTime), ShouldBeTrue)
			})
		})

		Convey("When a bonus list exceeds the field limit", func() {
			bonuses := make([]model.Bonus, 0, 200)
			for i := 0; i < 200; i++ {
				bonuses = append(bonuses, model.Bonus{Text: "Double catch Stardust ✨"})
			}
			p, err := f.Event(model.EventRecord{
				Name: "Long", Start: "2024-06-05T18:00:00Z", End: "2024-06-05T19:00:00Z",
				ExtraData: &model.ExtraData{CommunityDay: &model.CommunityDay{Bonuses: bonuses}},
			})

			Convey("Then the field is cut to exactly the limit", func() {
				So(err, ShouldBeNil)
				So(utf8.RuneCountInString(p.Embeds[0].Fields[3].Value), ShouldEqual, format.DefaultFieldLimit)
			})
		})
	})

	Convey("Given a formatter with a role mention", t, func() {
		f := format.New(format.WithMention("1234"), format.WithFooter("custom"), format.WithColor(0x00FF00))
		p, err := f.Event(model.EventRecord{Name: "Raid Hour", Start: "2024-06-05T18:00:00Z", End: "2024-06-05T19:00:00Z"})

		So(err, ShouldBeNil)
		So(p.Mention, ShouldEqual, "1234")
		So(p.Content, ShouldEqual, "<@&1234>")
		So(p.Embeds[0].Footer, ShouldEqual, "custom")
		So(p.Embeds[0].Color, ShouldEqual, 0x00FF00)
	})
}

func TestRaidPayload(t *testing.T) {
	Convey("Given a formatter", t, func() {
		f := format.New()

		Convey("When formatting a roster with every tier", func() {
			p, skipped := f.Raids([]model.RaidRecord{
				raid("Shinx", "Tier 1", true),
				raid("Klink", "Tier 1", false),
				raid("Rayquaza", "Tier 5", true),
				raid("Mega Gyarados", "Mega", false),
				raid("Mega Aerodactyl", "Mega", true),
			})

			Convey("Then four fields are rendered in order", func() {
				So(skipped, ShouldBeEmpty)
				e := p.Embeds[0]
				So(e.Title, ShouldEqual, "New Raid Bosses")
				So(e.Fields, ShouldHaveLength, 4)
				So(e.Fields[0].Name, ShouldEqual, "**Tier 1**")
				So(e.Fields[0].Value, ShouldEqual, "Shinx ✨\nKlink")
				So(e.Fields[1].Name, ShouldEqual, "**Tier 3**")
				So(e.Fields[1].Value, ShouldEqual, "No Tier 3 raids")
				So(e.Fields[2].Name, ShouldEqual, "**Tier 5**")
				So(e.Fields[3].Name, ShouldEqual, "**Mega Raids**")
			})

			Convey("Then strong tiers render detailed blocks", func() {
				v := p.Embeds[0].Fields[2].Value
				So(v, ShouldStartWith, "**Rayquaza ✨**\n")
				So(v, ShouldContainSubstring, "Types: dragon, flying")
				So(v, ShouldContainSubstring, "CP (Normal): 2000 - 2100")
				So(v, ShouldContainSubstring, "CP (Boosted): 2500 - 2625")
				So(v, ShouldContainSubstring, "Boosted Weather: windy")
				So(strings.Count(p.Embeds[0].Fields[3].Value, "\n\n"), ShouldEqual, 1)
			})

			Convey("Then the image is the first mega raid", func() {
				So(p.Embeds[0].ImageURL, ShouldEqual, "https://img/Mega Gyarados.png")
			})
		})

		Convey("When the roster is empty", func() {
			p, _ := f.Raids(nil)

			Convey("Then placeholders fill every tier", func() {
				So(p.Embeds[0].Fields[0].Value, ShouldEqual, "No Tier 1 raids")
				So(p.Embeds[0].Fields[3].Value, ShouldEqual, "No Mega raids")
				So(p.Embeds[0].ImageURL, ShouldBeEmpty)
			})
		})

		Convey("When records are malformed", func() {
			p, skipped := f.Raids([]model.RaidRecord{
				raid("", "Tier 1", false),
				raid("Missingno", "Tier 7", false),
				raid("Shinx", "Tier 1", false),
			})

			Convey("Then they are skipped and the rest render", func() {
				So(skipped, ShouldHaveLength, 2)
				So(errors.Is(skipped[0].Err, format.ErrMalformedRecord), ShouldBeTrue)
				So(errors.Is(skipped[1].Err, format.ErrUnknownTier), ShouldBeTrue)
				So(skipped[1].Name, ShouldEqual, "Missingno")
				So(p.Embeds[0].Fields[0].Value, ShouldEqual, "Shinx")
			})
		})

		Convey("When a tier overflows the field limit", func() {
			var recs []model.RaidRecord
			for i := 0; i < 50; i++ {
				recs = append(recs, raid("Mega Charizard Y", "Mega", true))
			}
			p, _ := f.Raids(recs)

			Convey("Then the field is truncated to exactly the limit", func() {
				So(utf8.RuneCountInString(p.Embeds[0].Fields[3].Value), ShouldEqual, format.DefaultFieldLimit)
			})
		})
	})
}

func TestEggPayload(t *testing.T) {
	Convey("Given a formatter", t, func() {
		f := format.New()

		Convey("When formatting eggs from several pools", func() {
			p, skipped := f.Eggs([]model.EggRecord{
				{Name: "Larvitar", EggType: "10 km", CanBeShiny: true, CombatPower: model.CPRange{Min: 434, Max: 470}},
				{Name: "Pichu", EggType: "2 km"},
				{Name: "Bagon", EggType: "10 km", IsAdventureSync: true},
				{Name: "Pancham", EggType: "12 km"},
				{Name: "Heracross", EggType: "5 km", IsRegional: true},
				{EggType: "7 km"},
			})

			Convey("Then pools are ordered by distance", func() {
				So(skipped, ShouldHaveLength, 1)
				names := make([]string, 0)
				for _, fld := range p.Embeds[0].Fields {
					names = append(names, fld.Name)
				}
				So(names, ShouldResemble, []string{
					"**2 km**", "**5 km**", "**10 km**", "**10 km (Adventure Sync)**", "**12 km**",
				})
			})

			Convey("Then egg lines carry markers", func() {
				So(p.Embeds[0].Fields[2].Value, ShouldEqual, "Larvitar ✨ (CP 434 - 470)")
				So(p.Embeds[0].Fields[1].Value, ShouldEqual, "Heracross 🌍")
			})
		})

		Convey("When there are no eggs", func() {
			p, _ := f.Eggs(nil)
			So(p.Embeds[0].Fields, ShouldHaveLength, 1)
		})
	})
}

func TestTruncate(t *testing.T) {
	Convey("Given strings around the limit", t, func() {
		So(format.Truncate("short", 10), ShouldEqual, "short")
		So(format.Truncate("exact", 5), ShouldEqual, "exact")
		So(format.Truncate("✨✨✨✨", 2), ShouldEqual, "✨✨")
		So(format.Truncate("anything", 0), ShouldEqual, "")
	})
}
