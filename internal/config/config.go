package config

import (
	"log"
	"os"
	"strconv"
)

// Config collects every tunable the server reads from the environment.
// Database settings stay in the database package since they never leave
// it.
type Config struct {
	Port      string
	JWTSecret string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	AnthropicAPIKey string
	AnthropicModel  string

	LLMTemperature float64
	LLMMaxTokens   int

	RouterEnabled     bool
	PreferredBackend  string
	FallbackToOffline bool

	// AttemptsOverride replaces the persona policy's max attempts when
	// positive.
	AttemptsOverride  int
	RequiredQuestions int
	GrantTTLSec       int
	SessionTTLSec     int
	SweepIntervalSec  int
}

func Load() Config {
	return Config{
		Port:      getEnv("PORT", "8080"),
		JWTSecret: getEnv("JWT_SECRET", ""),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),

		LLMTemperature: getFloat("LLM_TEMPERATURE", 0.7),
		LLMMaxTokens:   getInt("LLM_MAX_TOKENS", 1024),

		RouterEnabled:     getBool("ROUTER_ENABLED", true),
		PreferredBackend:  getEnv("ROUTER_PREFER_BACKEND", ""),
		FallbackToOffline: getBool("ROUTER_FALLBACK_TO_OFFLINE", true),

		AttemptsOverride:  getInt("CHALLENGE_ATTEMPTS", 0),
		RequiredQuestions: getInt("CHALLENGE_REQUIRED_QUESTIONS", 1),
		GrantTTLSec:       getInt("SESSION_TTL_SEC", 900),
		SessionTTLSec:     getInt("CHALLENGE_TTL_SEC", 1800),
		SweepIntervalSec:  getInt("SWEEP_INTERVAL_SEC", 60),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	s, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		log.Printf("WARN: invalid %s=%q, using %d", key, s, fallback)
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	s, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		log.Printf("WARN: invalid %s=%q, using %g", key, s, fallback)
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	s, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		log.Printf("WARN: invalid %s=%q, using %t", key, s, fallback)
		return fallback
	}
	return v
}
