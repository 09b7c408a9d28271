// Package config loads the actionroute configuration.
//
// Configuration is layered, with later sources overriding earlier ones:
//
//  1. Built-in defaults (Default)
//  2. The TOML file, including any files it pulls in with "@include"
//  3. ACTIONROUTE_* environment variables
//  4. Command line flags, applied by the caller
//
// The file is decoded into a generic map by the loader package and converted
// leniently: a value of the wrong type is skipped and reported as a Warning,
// so a typo in one setting never prevents startup. Validate rejects values
// that are well typed but unusable.
//
// Example file:
//
//	[dispatcher]
//	dimensions = ["role", "environment"]
//	metrics = true
//
//	[dispatcher.cache]
//	enabled = true
//	capacity = 256
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[routes]
//	scripts = ["routes/*.lua"]
//	manifests = ["routes/*.yaml"]
//	watch = false
//	debounce = "200ms"
//
//	[telemetry]
//	metrics_addr = ""
package config
