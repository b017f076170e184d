package cmd

import (
	"os"

	"github.com/spf13/viper"

	"github.com/trkhq/trk/internal/feedback"
)

// newAIClient creates a feedback converter client from config/env, or
// returns nil if no API key is configured.
func newAIClient() *feedback.Client {
	apiKey := viper.GetString("anthropic.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil
	}
	return feedback.NewClient(apiKey, viper.GetString("anthropic.model"))
}
