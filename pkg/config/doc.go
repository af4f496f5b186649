// Package config loads and validates Lantern's configuration.
//
// # Loading sequence
//
//  1. Start from DefaultConfig
//  2. Unmarshal the YAML file over the defaults
//  3. Apply LANTERN_* environment variable overrides
//  4. Validate the final configuration
//
// Environment variables always win over the file, which wins over the
// defaults. Booleans keep their defaults when the file omits them because
// unmarshalling happens over a pre-filled struct.
//
// # Hot reload
//
// Watcher monitors the config file with fsnotify and invokes a reload
// callback with the re-loaded, re-validated configuration after a debounce
// interval. Only safely reloadable settings (currently the log level) are
// re-applied by the caller; structural settings like the store backend
// require a restart.
package config
