package perplexity

// Config contains search API configuration.
type Config struct {
	APIKey  string `env:"PERPLEXITY_API_KEY"`
	BaseURL string `env:"PERPLEXITY_BASE_URL" envDefault:"https://api.perplexity.ai"`

	// Model names per tier. The reasoning model is used for analytical
	// roles and gets the longest timeout; the fast model is the retry
	// target after a timeout.
	ReasoningModel string `env:"PERPLEXITY_REASONING_MODEL" envDefault:"sonar-reasoning-pro"`
	DefaultModel   string `env:"PERPLEXITY_DEFAULT_MODEL"   envDefault:"sonar-pro"`
	FastModel      string `env:"PERPLEXITY_FAST_MODEL"      envDefault:"sonar"`

	ReasoningTimeout int `env:"PERPLEXITY_REASONING_TIMEOUT" envDefault:"90"`
	DefaultTimeout   int `env:"PERPLEXITY_DEFAULT_TIMEOUT"   envDefault:"45"`
	FastTimeout      int `env:"PERPLEXITY_FAST_TIMEOUT"      envDefault:"20"`
}
