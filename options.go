package ecss

// Option configures a SectorsArray at construction, in the functional
// options style, generalizing a single chunk-size constructor parameter
// to several independent knobs.
type Option func(*sectorsConfig)

type sectorsConfig struct {
	chunkCapacity   int
	initialCapacity int
	threadSafe      bool
}

func defaultConfig() sectorsConfig {
	return sectorsConfig{
		chunkCapacity:   DefaultChunkCapacity,
		initialCapacity: 0,
		threadSafe:      false,
	}
}

// WithChunkCapacity sets the number of sectors per arena chunk. <= 0
// falls back to DefaultChunkCapacity.
func WithChunkCapacity(n int) Option {
	return func(c *sectorsConfig) { c.chunkCapacity = n }
}

// WithInitialCapacity pre-reserves room for n sectors at construction,
// avoiding growth during an initial bulk-insert phase.
func WithInitialCapacity(n int) Option {
	return func(c *sectorsConfig) { c.initialCapacity = n }
}

// WithThreadSafe selects the concurrent build: pin gates, atomic
// snapshots, and retirement of old dense/sparse backing arrays into a
// RetireBin when they grow (single slots are still written in place).
func WithThreadSafe(enabled bool) Option {
	return func(c *sectorsConfig) { c.threadSafe = enabled }
}
