package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// NewDispatchCommand runs a single cycle right away and prints its report.
func NewDispatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch",
		Short: "Send today's cat fact to every subscriber now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.sync()

			st, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			// Audit events from a one-shot run only go to the log.
			dispatcher, err := a.newDispatcher(st, nil)
			if err != nil {
				return err
			}
			report, err := dispatcher.RunCycle(cmd.Context())
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(a.rt.Writer())
			encoder.SetIndent("", "  ")
			return encoder.Encode(report)
		},
	}
}
