package internal

import "log/slog"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	root    string
	logger  *slog.Logger
	version string
	watch   bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithRoot sets the repository root.
func WithRoot(root string) Option {
	return func(a *application) {
		a.root = root
	}
}

// WithLogger sets the logger; NewLogger's JSON logger is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(a *application) {
		a.logger = logger
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(version string) Option {
	return func(a *application) {
		a.version = version
	}
}

// WithWatch keeps the index current from filesystem events while serving.
func WithWatch(watch bool) Option {
	return func(a *application) {
		a.watch = watch
	}
}
