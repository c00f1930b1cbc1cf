package openai

// Config contains OpenAI provider configuration.
// APIKey, BaseURL, Timeout and MaxRetries map to the corresponding SDK
// request options; Model is the chat model used for all completions.
type Config struct {
	APIKey     string `env:"OPENAI_API_KEY"`
	BaseURL    string `env:"OPENAI_BASE_URL"     envDefault:"https://api.openai.com/v1"`
	Model      string `env:"OPENAI_MODEL"        envDefault:"gpt-4o-mini"`
	Timeout    int    `env:"OPENAI_TIMEOUT"      envDefault:"60"`
	MaxRetries int    `env:"OPENAI_MAX_RETRIES"  envDefault:"2"`
	MaxTokens  int    `env:"OPENAI_MAX_TOKENS"   envDefault:"4096"`
}
