// Package configs embeds the configuration template written by
// `workbench config init`.
//
// The template documents every setting with its default value. Editing
// user-config.example.yaml changes what the next build writes.
package configs

import _ "embed"

// UserConfigTemplate is written to ~/.config/iclaude-workbench/config.yaml.
// Loading it unchanged yields the built-in defaults.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string
