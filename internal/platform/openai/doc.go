// Package openai provides an implementation of the generation.Generator
// interface backed by the OpenAI chat completions API.
package openai
