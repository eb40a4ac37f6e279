// Package cli defines the process-level flags of the catfacts binary, each
// with an environment variable fallback.
package cli
