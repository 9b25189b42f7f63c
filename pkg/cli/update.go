package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mallocator/domain-mon/pkg/domain"
)

func (a *App) updateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update <n|all>",
		Short: "Refresh the expiry dates of the next n domains",
		Long: `Look up the expiry dates of the next n domains in the list, continuing
where the previous update stopped and wrapping around at the end. Use 'all'
to refresh every domain.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count, all, err := parseCount(args[0])
			if err != nil {
				return err
			}

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
				if all {
					count = len(s.list)
				}

				processor := domain.New(cfg, a.log, a.newChecker(cfg, a.log), s.backend)
				next, err := processor.Update(ctx, count, s.list, s.store)
				if err != nil {
					return ExitWithCode(ExitFatal, err)
				}
				a.log.Infof("Updated %d domain(s), next update starts at %s", min(count, len(s.list)), next)
				return nil
			})
		},
	}
}

// parseCount reads the update argument: a positive number or "all"
func parseCount(arg string) (count int, all bool, err error) {
	if arg == "all" {
		return 0, true, nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, false, &UsageError{fmt.Errorf("invalid argument for 'update': '%s'", arg)}
	}
	return n, false, nil
}
