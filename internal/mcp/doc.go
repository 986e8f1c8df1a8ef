// Package mcp exposes the prompt pipeline as MCP tools over stdio, using the
// MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp).
//
// Tools: process_prompt, classify_prompt, check_conflicts and item_history.
// Prompts are scrubbed for secrets before they reach the pipeline's logs and
// text responses.
package mcp
