package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and print the schema version",
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

			v, err := st.SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.rt.Writer(), "%s: schema version %d\n", a.cfg.Store.Path, v)
			return nil
		},
	}
}
