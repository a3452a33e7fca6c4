package openai

// buildSummaryPrompt wraps a conversation transcript in the summarization
// instruction. The summary feeds recall-tier similarity search, so it asks
// for dense, factual prose rather than narrative.
func buildSummaryPrompt(transcript string) string {
	return "Summarize the following conversation concisely. " +
		"Focus on key decisions, facts, technical details, and action items. " +
		"Write in third person. Keep it under 500 words.\n\n" +
		"CONVERSATION:\n" + transcript + "\n\n" +
		"SUMMARY:"
}
