// Package providers implements the built-in terminal capability providers:
// shell autocompletion, git status for the prompt, host system information,
// and AI command generation backed by a local Ollama instance. Each provider
// satisfies service.Provider and is registered at server startup.
package providers
