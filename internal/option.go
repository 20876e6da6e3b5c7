package internal

import "github.com/aldercy/wyrd/internal/generator"

// Option configures the engine process before Run wires it together.
type Option func(*application)

type application struct {
	config    *Config
	generator generator.Generator
}

// WithConfig supplies the loaded configuration. Run fails without one.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithGenerator replaces the text generator Run would otherwise build
// from the configuration, letting embedders supply their own backend.
func WithGenerator(gen generator.Generator) Option {
	return func(a *application) {
		a.generator = gen
	}
}
