// Package config loads piecebuf settings.
//
// Settings are resolved in three layers, later layers overriding earlier
// ones:
//
//  1. Built-in defaults (Default)
//  2. A TOML or YAML file, chosen by extension
//  3. PIECEBUF_* environment variables
//
// Example file:
//
//	[buffer]
//	chunk_size = 65535
//	normalize_eol = true
//
//	[watch]
//	enabled = true
//	debounce = "100ms"
//	reload = "if-clean"
//
// The same setting from the environment is PIECEBUF_WATCH_DEBOUNCE=100ms.
//
// Load decodes the merged map into a typed Config and validates it.
// Unknown settings and values of the wrong type are reported together
// rather than one at a time.
package config
