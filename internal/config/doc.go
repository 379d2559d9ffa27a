// Package config loads, normalizes, and validates the TOML configuration for
// the resolver. A sample configuration is embedded so `folio config init` can
// write a starting point, and secrets may be overlaid from the environment.
package config
