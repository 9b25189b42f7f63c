// Package main provides domain-mon, a tool that tracks domain name expiry
// dates over WHOIS and reports the domains due for renewal.
package main

import (
	"os"

	"github.com/mallocator/domain-mon/pkg/cli"
	"github.com/mallocator/domain-mon/pkg/logger"
)

func main() {
	log := logger.New()
	if err := cli.New(log).Command().Execute(); err != nil {
		log.Errorf("%v", err)
		if cli.ExitCode(err) == cli.ExitUsage {
			log.Infof("Use the --help argument for help.")
		}
		os.Exit(cli.ExitCode(err))
	}
}
