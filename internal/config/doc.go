// Package config provides configuration loading, merging, and path management for Sidecar.
//
// This package handles the complex configuration system that supports multiple sources
// and formats, with a hierarchical loading strategy that ensures proper precedence
// and compatibility with editor-side configuration.
//
// # Configuration Loading
//
// Load reads configuration from these sources, in this order:
//
//  1. Global config: sidecar.json, sidecar.jsonc and sidecar.yaml in the
//     XDG config directory (~/.config/sidecar/)
//  2. Project config: the same three files in <directory>/.sidecar/
//  3. Environment variables
//
// Later sources override earlier ones. A file that is missing or fails to
// parse is skipped. Load looks only in the directory it is given; it does
// not walk up to parent directories, does not read ~/.sidecar/, and does
// not read the OPENCODE_CONFIG or OPENCODE_CONFIG_CONTENT variables.
//
// # Supported Formats
//
//   - sidecar.json - Standard JSON configuration
//   - sidecar.jsonc - JSON with // and /* */ comments, stripped with
//     regular expressions before decoding
//   - sidecar.yaml - YAML configuration
//
// # Variable Interpolation
//
// Values are used exactly as written: placeholders such as {env:VAR_NAME}
// or {file:path} are not expanded.
//
// # Configuration Merging
//
// When multiple configuration sources are found, they are merged using a deep merge
// strategy that:
//   - Overwrites scalar values (strings, booleans, numbers)
//   - Merges maps/objects by combining keys
//   - Appends to arrays/slices
//   - Preserves the last-loaded value for conflicts
//
// # Path Management
//
// The package provides XDG Base Directory Specification compliant path management
// through the Paths type:
//   - Data: ~/.local/share/sidecar (XDG_DATA_HOME)
//   - Config: ~/.config/sidecar (XDG_CONFIG_HOME)
//   - Cache: ~/.cache/sidecar (XDG_CACHE_HOME)
//   - State: ~/.local/state/sidecar (XDG_STATE_HOME)
//
// On Windows, these paths are adapted to use APPDATA as appropriate.
//
// # Environment Variable Overrides
//
// These environment variables override loaded configuration:
//   - OPENCODE_MODEL - Override the default model
//   - OPENCODE_SMALL_MODEL - Override the small model
//   - ANTHROPIC_API_KEY, OPENAI_API_KEY, GOOGLE_API_KEY, AWS_ACCESS_KEY_ID -
//     fill a provider's apiKey when the config leaves it empty
//
// # Editor Compatibility
//
// The configuration types accept editor-style provider configuration
// with Options objects.
//
// # Usage Example
//
//	// Load configuration from the current directory
//	config, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Get standard paths
//	paths := config.GetPaths()
//	err = paths.EnsurePaths() // Create directories if they don't exist
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Save configuration
//	err = config.Save(config, config.GlobalConfigPath())
//	if err != nil {
//	    log.Fatal(err)
//	}
package config