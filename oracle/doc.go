// Package oracle abstracts the external natural-language completion service
// behind a provider-neutral interface. The orchestration core depends only
// on Oracle; concrete adapters live in the openai and anthropic subpackages.
// A circuit-breaker wrapper and a counting mock round out the package.
package oracle
