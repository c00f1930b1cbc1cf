package anthropic

// Config contains Anthropic provider configuration.
type Config struct {
	APIKey    string `env:"ANTHROPIC_API_KEY"`
	BaseURL   string `env:"ANTHROPIC_BASE_URL"    envDefault:"https://api.anthropic.com"`
	Model     string `env:"ANTHROPIC_MODEL"       envDefault:"claude-3-5-haiku-latest"`
	Timeout   int    `env:"ANTHROPIC_TIMEOUT"     envDefault:"60"`
	MaxTokens int    `env:"ANTHROPIC_MAX_TOKENS"  envDefault:"4096"`
}
