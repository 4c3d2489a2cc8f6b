package cmd

// Options holds the shared command-line options for the reva CLI.
type Options struct {
	Verbosity int

	// Review options
	Model   string   // Model override passed to the analysis tool
	Tool    string   // Analysis tool binary override
	Addons  []string // Prompt add-on names (security, performance, tests)
	Publish bool     // Post the finished review back to the pull request
	Format  string   // Output format (text, json)

	// Serve options
	Listen       string // API listen address override
	PollInterval string // Poll interval override (e.g. "2m")
	NoPoll       bool   // Disable the background poll loop
}

// Option is a functional option for configuring Options.
type Option func(*Options)

// NewOptions creates a new Options with defaults and applies any provided options.
func NewOptions(opts ...Option) *Options {
	o := &Options{
		Format: "text",
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithVerbosity sets the verbosity level.
func WithVerbosity(v int) Option {
	return func(o *Options) {
		o.Verbosity = v
	}
}

// WithModel sets the model override.
func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// WithTool sets the analysis tool binary.
func WithTool(tool string) Option {
	return func(o *Options) {
		o.Tool = tool
	}
}

// WithAddons sets the prompt add-ons.
func WithAddons(addons []string) Option {
	return func(o *Options) {
		o.Addons = addons
	}
}

// WithPublish enables publishing the review to the pull request.
func WithPublish(publish bool) Option {
	return func(o *Options) {
		o.Publish = publish
	}
}

// WithFormat sets the output format (text, json).
func WithFormat(format string) Option {
	return func(o *Options) {
		o.Format = format
	}
}
