package dedupe

type options struct {
	capacity int
	seed     []string
}

// Option applies a configuration option to the in-memory deduper.
type Option func(*options)

// WithCapacity pre-sizes the backing map. Non-positive values are ignored.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// WithSeed pre-records identifiers, typically restored from durable storage.
// Duplicates in seed are recorded once.
func WithSeed(ids ...string) Option {
	return func(o *options) {
		o.seed = append(o.seed, ids...)
	}
}
