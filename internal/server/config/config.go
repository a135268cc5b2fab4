// Package config handles configuration for the server component,
// including defaults, JSON overlay, environment variables, and
// command-line flags.
package config

import "time"

// Config holds runtime settings for the chat backend server.
//
// Fields:
//   - EndpointAddrHTTP: bind address for the public HTTP endpoint.
//   - RedisAddr / RedisPassword / RedisDB: redis connection settings. An
//     empty RedisAddr selects the in-memory store.
//   - GroqAPIKey / GroqBaseURL: chat-completion upstream.
//   - OpenAIAPIKey / OpenAIBaseURL: embeddings upstream for long-term memory.
//   - PineconeAPIKey / PineconeHost: vector index for long-term memory.
//     Memory is disabled unless both the embeddings key and the index host
//     are configured.
//   - JWTSecret: HMAC secret for verifying bearer tokens (HS256). Do not use
//     test defaults in prod.
//   - AccessTokenValidityDuration: token lifetime for locally issued tokens.
//   - LimitsEnabled: turns the per-tier monthly message quota on.
//   - SystemPrompt: optional system turn prepended to every completion call.
type Config struct {
	EndpointAddrHTTP            string
	RedisAddr                   string
	RedisPassword               string
	RedisDB                     int
	GroqAPIKey                  string
	GroqBaseURL                 string
	OpenAIAPIKey                string
	OpenAIBaseURL               string
	PineconeAPIKey              string
	PineconeHost                string
	JWTSecret                   string
	AccessTokenValidityDuration time.Duration
	LimitsEnabled               bool
	SystemPrompt                string
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8080"
	c.RedisAddr = ""
	c.RedisPassword = ""
	c.RedisDB = 0
	c.GroqBaseURL = "https://api.groq.com/openai"
	c.OpenAIBaseURL = "https://api.openai.com"
	c.JWTSecret = "secretKey"
	c.AccessTokenValidityDuration = 24 * time.Hour
	c.LimitsEnabled = false
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, environment variables, and finally
// command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
