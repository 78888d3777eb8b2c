// Package config loads the process-wide settings of ppbridge through viper.
//
// Precedence, lowest first: built-in defaults, ppbridge.yaml or ppbridge.json,
// PPBRIDGE_* environment variables, command-line flags. The resulting
// Settings value is passed explicitly to the builder, registry, driver and
// indexer.
package config
