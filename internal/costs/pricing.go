package costs

import "strings"

// Gemini File Search pricing, per token. Indexing is billed once per
// uploaded token; storage and query embeddings are currently free.
const (
	IndexingPricePerToken = 0.15 / 1_000_000
	InputPricePerToken    = 0.075 / 1_000_000
	OutputPricePerToken   = 0.30 / 1_000_000
)

// EstimateTokens estimates the token count of a transcript before upload,
// using the usual ~0.75 words per token rule.
func EstimateTokens(text string) int {
	return len(strings.Fields(text)) * 4 / 3
}

// IndexingCost returns the one-time indexing cost for a token count.
func IndexingCost(tokens int) float64 {
	return float64(tokens) * IndexingPricePerToken
}

// QueryCost returns the generation cost for one query.
func QueryCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*InputPricePerToken + float64(outputTokens)*OutputPricePerToken
}
