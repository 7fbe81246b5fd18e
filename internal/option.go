package internal

// Option is a functional option applied to the runtime assembled by Run
// and RunMCP.
type Option func(*application)

// application collects what the entry points need before wiring the
// vault, index, and linker together.
type application struct {
	config *Config
}

// WithConfig supplies the loaded configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}
