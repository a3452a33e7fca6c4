// Package ai defines the AI service interfaces the orchestrator depends on:
// text embedding for similarity search and conversation summarization for
// tier promotion.
//
// Implementations live in subpackages: openai provides clients for
// OpenAI-compatible APIs (Ollama, vLLM, LocalAI), mock provides
// deterministic test doubles.
package ai
