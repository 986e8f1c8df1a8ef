// Package secrets redacts credentials from prompts before they leave the
// process.
//
// Prompts are free text pasted by people, and they regularly carry tokens
// copied from a terminal or a ticket. Every prompt is scrubbed before it is
// sent to an AI provider and before the interaction is persisted. Two engines
// are available: a small regex rule set tuned for the credentials this tool
// handles, and the full gitleaks rule set with TOML allowlists.
package secrets
