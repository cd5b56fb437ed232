package format

import "time"

// Option applies a configuration option to the Formatter.
type Option func(*Formatter)

// WithLocation sets the zone used for zone-less feed timestamps.
func WithLocation(loc *time.Location) Option {
	return func(f *Formatter) {
		if loc != nil {
			f.loc = loc
		}
	}
}

// WithFieldLimit overrides the per-field character cap.
func WithFieldLimit(n int) Option {
	return func(f *Formatter) {
		if n > 0 {
			f.fieldLimit = n
		}
	}
}

// WithFooter overrides the attribution footer.
func WithFooter(text string) Option {
	return func(f *Formatter) {
		if text != "" {
			f.footer = text
		}
	}
}

// WithColor overrides the accent color.
func WithColor(color int) Option {
	return func(f *Formatter) {
		f.color = color
	}
}

// WithMention pings the given role on every payload.
func WithMention(roleID string) Option {
	return func(f *Formatter) {
		f.mention = roleID
	}
}
