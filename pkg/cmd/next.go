package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/telekom/catfact-mailer/pkg/scheduler"
)

func NewNextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Print when the next dispatch cycle will run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.sync()

			opts, err := scheduler.OptionsFromConfig(a.cfg)
			if err != nil {
				return err
			}
			sched, err := scheduler.New(nil, opts, a.log)
			if err != nil {
				return err
			}

			now := time.Now()
			next, err := sched.NextTrigger(now)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(a.rt.Writer(), "next dispatch: %s (in %s)\n",
				next.Format(time.RFC3339), next.Sub(now).Round(time.Second))
			return nil
		},
	}
}
