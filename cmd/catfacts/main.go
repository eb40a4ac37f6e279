package main

import (
	"fmt"
	"os"

	catfactscmd "github.com/telekom/catfact-mailer/pkg/cmd"
)

func main() {
	root := catfactscmd.NewRootCommand(catfactscmd.DefaultConfig())
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
