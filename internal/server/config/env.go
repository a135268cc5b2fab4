package config

import (
	"os"
	"strconv"
)

// parseEnv overlays configuration from environment variables. Secrets are
// normally supplied this way in deployment, keeping them out of config
// files and process listings.
//
// Recognized variables:
//
//	SERVER_ADDRESS   HTTP bind address
//	REDIS_ADDR       redis host:port (empty keeps the in-memory store)
//	REDIS_PASSWORD   redis password
//	REDIS_DB         redis logical database number
//	GROQ_API_KEY     chat-completion API key
//	GROQ_BASE_URL    chat-completion base URL
//	OPENAI_API_KEY   embeddings API key
//	OPENAI_BASE_URL  embeddings base URL
//	PINECONE_API_KEY vector index API key
//	PINECONE_HOST    vector index host URL
//	JWT_SECRET       bearer token HMAC secret
//	LIMITS_ENABLED   "true" enables the message quota
//	SYSTEM_PROMPT    system turn for every completion
//
// The record encryption key (ENCRYPTION_KEY) is deliberately not part of
// Config: it is read from the environment at each use so a key change takes
// effect without a restart.
func parseEnv(config *Config) {
	setEnvString(&config.EndpointAddrHTTP, "SERVER_ADDRESS")
	setEnvString(&config.RedisAddr, "REDIS_ADDR")
	setEnvString(&config.RedisPassword, "REDIS_PASSWORD")
	if v, ok := os.LookupEnv("REDIS_DB"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			config.RedisDB = n
		}
	}
	setEnvString(&config.GroqAPIKey, "GROQ_API_KEY")
	setEnvString(&config.GroqBaseURL, "GROQ_BASE_URL")
	setEnvString(&config.OpenAIAPIKey, "OPENAI_API_KEY")
	setEnvString(&config.OpenAIBaseURL, "OPENAI_BASE_URL")
	setEnvString(&config.PineconeAPIKey, "PINECONE_API_KEY")
	setEnvString(&config.PineconeHost, "PINECONE_HOST")
	setEnvString(&config.JWTSecret, "JWT_SECRET")
	if v, ok := os.LookupEnv("LIMITS_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			config.LimitsEnabled = b
		}
	}
	setEnvString(&config.SystemPrompt, "SYSTEM_PROMPT")
}

func setEnvString(dst *string, name string) {
	if v, ok := os.LookupEnv(name); ok {
		*dst = v
	}
}
