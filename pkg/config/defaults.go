package config

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultModel       = "gpt-4o-mini"
	defaultIdleTimeout = "60s"

	defaultAPIListen       = ":8081"
	defaultClientAPITarget = "http://localhost:8081"
	defaultClientUserID    = "local"

	defaultEventProvider = "none"
	defaultEventTopic    = "koinonia.turns"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Upstream: UpstreamConfig{
			BaseURL:     defaultBaseURL,
			Model:       defaultModel,
			IdleTimeout: defaultIdleTimeout,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			UserID:    defaultClientUserID,
			APITarget: defaultClientAPITarget,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventProvider,
			Topic:    defaultEventTopic,
		},
	}
}
