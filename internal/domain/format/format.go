package format

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/okian/eventwatch/internal/domain/model"
)

// Cosmetic defaults.
const (
	DefaultFooter = "Fetched from Leek Duck using ScrapedDuck"
	DefaultColor  = 0xFF5733

	authorName    = "Pokémon Go"
	authorIconURL = "https://lh3.googleusercontent.com/Uzo_GQXZXc1Nsj7OY3dbfRDam0TjTzV4A1dhgSYLzkdrygVRDZgDMv7JME4kEAkS0UFa0MdJevzXynIlc7X6yXRSEV2-XkrRpX1QzJts9-a6=e365-s0"

	// TimeLayout renders weekday, day, month and hour:minute.
	TimeLayout = "Mon 2 January 15:04"

	shinyMarker    = " ✨"
	regionalMarker = " 🌍"
)

// Formatter renders records into payloads.
type Formatter struct {
	loc        *time.Location
	fieldLimit int
	footer     string
	color      int
	mention    string
}

// New creates a Formatter with the default presentation.
func New(opts ...Option) *Formatter {
	f := &Formatter{
		loc:        time.Local,
		fieldLimit: DefaultFieldLimit,
		footer:     DefaultFooter,
		color:      DefaultColor,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FormatTime renders t in its own zone.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// Event renders a single event announcement.
func (f *Formatter) Event(rec model.EventRecord) (Payload, error) {
	if strings.TrimSpace(rec.Name) == "" {
		return Payload{}, fmt.Errorf("%w: event %q has no name", ErrMalformedRecord, rec.EventID)
	}
	start, end, err := rec.Window(f.loc)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: event %q: %w", ErrMalformedRecord, rec.Name, err)
	}

	fields := []Field{
		{Name: "Type", Value: f.field(orDash(rec.Heading))},
		{Name: "Start Time", Value: FormatTime(start)},
		{Name: "End Time", Value: FormatTime(end)},
	}
	if bonuses := rec.Bonuses(); len(bonuses) > 0 {
		fields = append(fields, Field{Name: "Bonuses", Value: f.field(strings.Join(bonuses, "\n"))})
	}

	embed := Embed{
		Title:       Truncate(rec.Name, DefaultTitleLimit),
		URL:         rec.Link,
		Description: Truncate(rec.Description, DefaultDescriptionLimit),
		Fields:      fields,
		ImageURL:    rec.Image,
		Author:      &Author{Name: authorName, IconURL: authorIconURL},
		Footer:      f.footer,
		Color:       f.color,
	}
	return f.payload(embed), nil
}

// Raids renders the full raid roster, partitioned into the fixed tiers.
// Records that cannot be placed are returned as skipped; the rest render.
func (f *Formatter) Raids(recs []model.RaidRecord) (Payload, []Skipped) {
	byTier := make(map[model.RaidTier][]model.RaidRecord, len(model.RaidTiers))
	var skipped []Skipped
	for _, r := range recs {
		if strings.TrimSpace(r.Name) == "" {
			skipped = append(skipped, Skipped{Name: r.Tier, Err: fmt.Errorf("%w: raid without name", ErrMalformedRecord)})
			continue
		}
		tier := model.ParseRaidTier(r.Tier)
		if tier == model.TierUnknown {
			skipped = append(skipped, Skipped{Name: r.Name, Err: fmt.Errorf("%w: %q", ErrUnknownTier, r.Tier)})
			continue
		}
		byTier[tier] = append(byTier[tier], r)
	}

	fields := make([]Field, 0, len(model.RaidTiers))
	for _, tier := range model.RaidTiers {
		raids := byTier[tier]
		var value string
		if tier.Detailed() {
			value = detailedRaids(raids)
		} else {
			value = compactRaids(raids)
		}
		if value == "" {
			value = emptyTier(tier)
		}
		fields = append(fields, Field{Name: "**" + tierLabel(tier) + "**", Value: f.field(value)})
	}

	embed := Embed{
		Title:  "New Raid Bosses",
		Fields: fields,
		Footer: f.footer,
		Color:  f.color,
	}
	if megas := byTier[model.TierSpecial]; len(megas) > 0 {
		embed.ImageURL = megas[0].Image
	}
	return f.payload(embed), skipped
}

// Eggs renders the egg pools, one field per pool.
func (f *Formatter) Eggs(recs []model.EggRecord) (Payload, []Skipped) {
	pools := map[string][]model.EggRecord{}
	var skipped []Skipped
	for _, e := range recs {
		if strings.TrimSpace(e.Name) == "" {
			skipped = append(skipped, Skipped{Name: e.EggType, Err: fmt.Errorf("%w: egg without name", ErrMalformedRecord)})
			continue
		}
		pool := e.Pool()
		pools[pool] = append(pools[pool], e)
	}

	names := make([]string, 0, len(pools))
	for name := range pools {
		names = append(names, name)
	}
	slices.SortFunc(names, comparePools)

	fields := make([]Field, 0, len(names))
	for _, name := range names {
		lines := make([]string, 0, len(pools[name]))
		for _, e := range pools[name] {
			lines = append(lines, eggLine(e))
		}
		fields = append(fields, Field{Name: "**" + name + "**", Value: f.field(strings.Join(lines, "\n"))})
	}
	if len(fields) == 0 {
		fields = append(fields, Field{Name: "**Eggs**", Value: "No eggs available"})
	}

	embed := Embed{
		Title:  "Egg Pool Update",
		Fields: fields,
		Footer: f.footer,
		Color:  f.color,
	}
	return f.payload(embed), skipped
}

func (f *Formatter) field(value string) string {
	return Truncate(value, f.fieldLimit)
}

func (f *Formatter) payload(embed Embed) Payload {
	p := Payload{Embeds: []Embed{embed}}
	if f.mention != "" {
		p.Mention = f.mention
		p.Content = "<@&" + f.mention + ">"
	}
	return p
}

func compactRaids(raids []model.RaidRecord) string {
	lines := make([]string, 0, len(raids))
	for _, r := range raids {
		lines = append(lines, r.Name+shiny(r.CanBeShiny))
	}
	return strings.Join(lines, "\n")
}

func detailedRaids(raids []model.RaidRecord) string {
	blocks := make([]string, 0, len(raids))
	for _, r := range raids {
		var b strings.Builder
		fmt.Fprintf(&b, "**%s%s**\n", r.Name, shiny(r.CanBeShiny))
		fmt.Fprintf(&b, "Types: %s\n", strings.Join(r.TypeNames(), ", "))
		fmt.Fprintf(&b, "CP (Normal): %d - %d\n", r.CombatPower.Normal.Min, r.CombatPower.Normal.Max)
		fmt.Fprintf(&b, "CP (Boosted): %d - %d\n", r.CombatPower.Boosted.Min, r.CombatPower.Boosted.Max)
		fmt.Fprintf(&b, "Boosted Weather: %s", strings.Join(r.WeatherNames(), ", "))
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}

func eggLine(e model.EggRecord) string {
	line := e.Name + shiny(e.CanBeShiny)
	if e.IsRegional {
		line += regionalMarker
	}
	if e.CombatPower.Max > 0 {
		line += fmt.Sprintf(" (CP %d - %d)", e.CombatPower.Min, e.CombatPower.Max)
	}
	return line
}

// comparePools orders pools by distance, regular before Adventure Sync.
func comparePools(a, b string) int {
	if c := cmp.Compare(model.PoolDistance(a), model.PoolDistance(b)); c != 0 {
		return c
	}
	return cmp.Compare(a, b)
}

func tierLabel(t model.RaidTier) string {
	if t == model.TierSpecial {
		return "Mega Raids"
	}
	return t.String()
}

func emptyTier(t model.RaidTier) string {
	if t == model.TierSpecial {
		return "No Mega raids"
	}
	return "No " + t.String() + " raids"
}

func shiny(ok bool) string {
	if ok {
		return shinyMarker
	}
	return ""
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
