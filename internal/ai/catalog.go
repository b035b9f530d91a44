package ai

import "github.com/joescharf/marie/internal/models"

// Catalog returns the models offered for each provider.
func Catalog() []models.AIModel {
	return []models.AIModel{
		{ID: "gpt-4", Name: "GPT-4", Description: "Most capable model", Provider: models.ProviderOpenAI},
		{ID: "gpt-4-turbo", Name: "GPT-4 Turbo", Description: "Faster GPT-4", Provider: models.ProviderOpenAI},
		{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", Description: "Fast and efficient", Provider: models.ProviderOpenAI},
		{ID: "claude-3-opus", Name: "Claude 3 Opus", Description: "Most powerful", Provider: models.ProviderAnthropic},
		{ID: "claude-3-sonnet", Name: "Claude 3 Sonnet", Description: "Balanced performance", Provider: models.ProviderAnthropic},
		{ID: "claude-3-haiku", Name: "Claude 3 Haiku", Description: "Fast and lightweight", Provider: models.ProviderAnthropic},
		{ID: "codellama", Name: "Code Llama", Description: "Local code model", Provider: models.ProviderLocal},
		{ID: "starcoder", Name: "StarCoder", Description: "Code generation model", Provider: models.ProviderLocal},
		{ID: "mock", Name: "Mock", Description: "Echoes the prompt, no network", Provider: models.ProviderMock},
	}
}
