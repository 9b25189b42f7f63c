package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mallocator/domain-mon/pkg/notify"
	"github.com/mallocator/domain-mon/pkg/report"
)

type reportFlags struct {
	full    bool
	headers bool
	send    bool
}

func (a *App) reportCommand() *cobra.Command {
	var flags reportFlags

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the domain name expiry report",
		Long: `Print an HTML report of expired domains, domains due for renewal within
7, 28 and 90 days, and domains whose expiry date could not be found.
Domains no longer in the list are dropped from the store first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig(cmd)
			if err != nil {
				return err
			}

			return a.withBudget(cmd.Context(), cfg, func(ctx context.Context) error {
				s, err := a.open(ctx, cfg)
				if err != nil {
					return err
				}
				defer a.close(s)

				now := a.now()
				generator := report.New(cfg, a.log, s.backend)
				out, err := generator.Generate(ctx, s.store, s.list, now, report.Options{
					Full:    flags.full,
					Headers: flags.headers,
				})
				if err != nil {
					return ExitWithCode(ExitFatal, err)
				}
				if _, err := fmt.Fprintln(a.stdout, out); err != nil {
					return ExitWithCode(ExitFatal, err)
				}

				if !flags.send {
					return nil
				}
				body := out
				if flags.headers {
					// headers are added by the notifier
					body, err = generator.Generate(ctx, s.store, s.list, now, report.Options{Full: flags.full})
					if err != nil {
						return ExitWithCode(ExitFatal, err)
					}
				}
				notifier := notify.New(cfg, a.log)
				if a.sendMail != nil {
					notifier.SetSendMail(a.sendMail)
				}
				return ExitWithCode(ExitFatal, notifier.Send(generator.Subject(now), body))
			})
		},
	}

	cmd.Flags().BoolVarP(&flags.full, "full", "f", false, "Include domains not due for renewal within 90 days")
	cmd.Flags().BoolVarP(&flags.headers, "smtp-headers", "s", false, "Prepend email headers to the report")
	cmd.Flags().BoolVar(&flags.send, "send", false, "Email the report using the SMTP settings")
	return cmd
}
