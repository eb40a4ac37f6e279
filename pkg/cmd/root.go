package cmd

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telekom/catfact-mailer/pkg/cli"
)

type Config struct {
	OutputWriter io.Writer
	// Logger replaces the logger built from --debug when set.
	Logger *zap.Logger
}

type runtimeState struct {
	flags  *cli.Config
	writer io.Writer
	logger *zap.Logger
	root   *cobra.Command
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{OutputWriter: os.Stdout}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{writer: cfg.OutputWriter, logger: cfg.Logger}

	root := &cobra.Command{
		Use:           "catfacts",
		Short:         "Cat facts API and daily mailer",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			cmd.SetContext(context.WithValue(cmd.Context(), runtimeKey{}, rt))
			return nil
		},
	}
	rt.flags = cli.BindFlags(root.PersistentFlags())
	rt.root = root

	root.AddCommand(
		NewServeCommand(),
		NewDispatchCommand(),
		NewMigrateCommand(),
		NewNextCommand(),
		NewVersionCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer == nil {
		return os.Stdout
	}
	return rt.writer
}

// flagChanged reports whether a persistent flag was set on the command line or
// through its environment fallback.
func (rt *runtimeState) flagChanged(name, envKey string) bool {
	if f := rt.root.PersistentFlags().Lookup(name); f != nil && f.Changed {
		return true
	}
	_, ok := os.LookupEnv(envKey)
	return ok
}
