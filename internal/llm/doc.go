// Package llm provides the text-generation clients used by the ledger for
// transaction parsing, spending insights and affordability advice. It supports
// Anthropic, OpenAI and a local Ollama server, with rate limiting and response
// caching layered on top of the provider clients.
package llm
