// Package file provides file-backed configuration adapters.
//
// Adapters:
//   - ConfigStore: TOML settings in ~/.stackqa/config.toml
//   - PromptStore: editable prompt templates in ~/.stackqa/prompts
//   - PromptWatcher: reloads prompts when their files change
package file
