// Package cmd contains the catfacts cobra command tree.
package cmd
