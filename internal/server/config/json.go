package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/bloomweaver/backend/internal/flagx"
)

// JsonConfig is the intermediate DTO for reading JSON configuration files.
// After unmarshalling, its fields are copied into the runtime Config.
// Fields left out of the file keep their current values.
type JsonConfig struct {
	EndpointAddrHTTP           *string `json:"endpoint_addr_http"`
	RedisAddr                  *string `json:"redis_addr"`
	RedisPassword              *string `json:"redis_password"`
	RedisDB                    *int    `json:"redis_db"`
	GroqAPIKey                 *string `json:"groq_api_key"`
	GroqBaseURL                *string `json:"groq_base_url"`
	OpenAIAPIKey               *string `json:"openai_api_key"`
	OpenAIBaseURL              *string `json:"openai_base_url"`
	PineconeAPIKey             *string `json:"pinecone_api_key"`
	PineconeHost               *string `json:"pinecone_host"`
	JWTSecret                  *string `json:"jwt_secret"`
	AccessTokenValidityMinutes *int    `json:"access_token_validity_minutes"`
	LimitsEnabled              *bool   `json:"limits_enabled"`
	SystemPrompt               *string `json:"system_prompt"`
}

// parseJson overlays configuration values from the JSON file named by the
// -c or -config command-line flags. When neither flag is set, nothing is
// loaded. An unreadable or invalid file panics: a named config file that
// cannot be applied is a startup error, not a condition to run past.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	if c.RedisDB != nil {
		config.RedisDB = *c.RedisDB
	}
	setString(&config.GroqAPIKey, c.GroqAPIKey)
	setString(&config.GroqBaseURL, c.GroqBaseURL)
	setString(&config.OpenAIAPIKey, c.OpenAIAPIKey)
	setString(&config.OpenAIBaseURL, c.OpenAIBaseURL)
	setString(&config.PineconeAPIKey, c.PineconeAPIKey)
	setString(&config.PineconeHost, c.PineconeHost)
	setString(&config.JWTSecret, c.JWTSecret)
	if c.AccessTokenValidityMinutes != nil {
		config.AccessTokenValidityDuration = time.Duration(*c.AccessTokenValidityMinutes) * time.Minute
	}
	if c.LimitsEnabled != nil {
		config.LimitsEnabled = *c.LimitsEnabled
	}
	setString(&config.SystemPrompt, c.SystemPrompt)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
