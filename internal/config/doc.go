// Package config loads revoice settings.
//
// Values are layered: built-in defaults, then an optional TOML file, then
// environment variables (a .env file in the working directory is loaded
// first when present). Command-line flags are applied last by the CLI.
package config
