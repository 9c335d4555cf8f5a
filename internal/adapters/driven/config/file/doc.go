// Package file provides file-based configuration adapters.
//
// Configuration lives in a TOML file under the ansa config directory
// (default ~/.ansa/config.toml). Prompt templates live alongside it in
// user-editable text files with embedded defaults as fallback.
package file
