package dedupe

// Option configures a deduper.
type Option func(*ringDeduper)

// WithMaxSize bounds the number of remembered ids. A non-positive value keeps
// every id for the life of the process.
func WithMaxSize(maxSize int) Option {
	return func(d *ringDeduper) {
		d.maxSize = maxSize
	}
}
