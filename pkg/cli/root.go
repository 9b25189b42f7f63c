// Package cli wires the domain-mon commands together with cobra
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mallocator/domain-mon/pkg/config"
	"github.com/mallocator/domain-mon/pkg/domain"
	"github.com/mallocator/domain-mon/pkg/logger"
	"github.com/mallocator/domain-mon/pkg/notify"
	"github.com/mallocator/domain-mon/pkg/state"
	"github.com/mallocator/domain-mon/pkg/whois"
)

// configFileName is looked up in the working directory unless --config is given
const configFileName = "config.yaml"

// exitGrace is how long a command may overrun its budget before the process
// is terminated
const exitGrace = 10 * time.Second

// globalFlags holds flags shared by every command
type globalFlags struct {
	directory   string
	configFile  string
	wait        int
	maxExecTime int
	debug       bool
}

// App builds the command tree and holds the collaborators commands use
type App struct {
	log    *logger.Logger
	stdout io.Writer
	now    func() time.Time

	newChecker func(cfg *config.Config, log *logger.Logger) domain.ExpiryChecker
	newBackend func(cfg *config.Config, log *logger.Logger) (state.Backend, error)
	sendMail   notify.SendMailFunc

	flags globalFlags
}

// New creates an App writing reports to stdout
func New(log *logger.Logger) *App {
	return &App{
		log:    log,
		stdout: os.Stdout,
		now:    time.Now,
		newChecker: func(cfg *config.Config, log *logger.Logger) domain.ExpiryChecker {
			return whois.New(cfg, log)
		},
		newBackend: state.New,
	}
}

// Command returns the root command
func (a *App) Command() *cobra.Command {
	root := &cobra.Command{
		Use:   "domain-mon",
		Short: "Domain-mon monitors domain name expiry dates",
		Long: `Domain-mon looks up domain name expiry dates over WHOIS a few domains at a
time and produces an HTML report of the domains due for renewal.`,
		Example: `  domain-mon update 5
  domain-mon update all --wait 0
  domain-mon report --smtp-headers
  domain-mon report --full --directory /home/user/domain-mon/`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.checkFlags,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.flags.directory, "directory", "d", ".", "Working directory holding config.yaml, domains.txt and the file store")
	flags.StringVarP(&a.flags.configFile, "config", "c", "", "Path to a YAML config file (default: config.yaml in the working directory)")
	flags.IntVarP(&a.flags.wait, "wait", "w", 1, "Delay, in seconds, between WHOIS requests")
	flags.IntVarP(&a.flags.maxExecTime, "max-exec-time", "m", 570, "Maximum execution time, in seconds, 0 for unlimited")
	flags.BoolVar(&a.flags.debug, "debug", false, "Enable debug logging")

	root.AddCommand(a.updateCommand())
	root.AddCommand(a.reportCommand())
	return root
}

func (a *App) checkFlags(cmd *cobra.Command, _ []string) error {
	if a.flags.debug {
		a.log.SetDebug(true)
	}
	if a.flags.wait < 0 {
		return &UsageError{fmt.Errorf("invalid argument for '--wait': %d", a.flags.wait)}
	}
	if a.flags.maxExecTime < 0 {
		return &UsageError{fmt.Errorf("invalid argument for '--max-exec-time': %d", a.flags.maxExecTime)}
	}
	info, err := os.Stat(a.flags.directory)
	if err != nil || !info.IsDir() {
		return &UsageError{fmt.Errorf("unable to set directory to '%s': no such directory", a.flags.directory)}
	}
	return nil
}

// loadConfig applies defaults, the config file, environment variables and
// finally explicit flags, then validates the result.
func (a *App) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.New(a.log)
	cfg.Directory = a.flags.directory

	path, required := cfg.Path(configFileName), false
	if a.flags.configFile != "" {
		path, required = a.flags.configFile, true
	}
	if err := cfg.LoadFromFile(path, required); err != nil {
		return nil, ExitWithCode(ExitFatal, err)
	}
	cfg.LoadFromEnv()

	if cmd.Flags().Changed("wait") {
		cfg.Wait = time.Duration(a.flags.wait) * time.Second
	}
	if cmd.Flags().Changed("max-exec-time") {
		cfg.MaxExecTime = time.Duration(a.flags.maxExecTime) * time.Second
	}

	if err := cfg.Validate(); err != nil {
		return nil, ExitWithCode(ExitFatal, err)
	}
	return cfg, nil
}

// session is the state a command works on
type session struct {
	list    domain.List
	backend state.Backend
	store   *state.Store
}

// open loads the domain list and the expiry store
func (a *App) open(ctx context.Context, cfg *config.Config) (*session, error) {
	list, err := domain.LoadFile(cfg.Path(cfg.DomainsFile))
	if err != nil {
		return nil, ExitWithCode(ExitFatal, err)
	}
	a.log.Debugf("Monitoring %d domain(s) from %s", len(list), cfg.DomainsFile)

	backend, err := a.newBackend(cfg, a.log)
	if err != nil {
		return nil, ExitWithCode(ExitFatal, err)
	}
	store, err := backend.LoadStore(ctx)
	if err != nil {
		_ = backend.Close()
		return nil, ExitWithCode(ExitFatal, err)
	}

	return &session{list: list, backend: backend, store: store}, nil
}

// close releases the session's backend
func (a *App) close(s *session) {
	if err := s.backend.Close(); err != nil {
		a.log.Warnf("Closing store: %v", err)
	}
}

// withBudget runs fn under the configured execution budget. The context
// deadline stops work between lookups; a lookup that ignores it is cut off
// by terminating the process once the grace period has passed.
func (a *App) withBudget(parent context.Context, cfg *config.Config, fn func(ctx context.Context) error) error {
	if cfg.MaxExecTime == 0 {
		return fn(parent)
	}

	ctx, cancel := context.WithTimeout(parent, cfg.MaxExecTime)
	defer cancel()

	hard := time.AfterFunc(cfg.MaxExecTime+exitGrace, func() {
		a.log.Fatalf("Maximum execution time of %s exceeded", cfg.MaxExecTime)
	})
	defer hard.Stop()

	return fn(ctx)
}
