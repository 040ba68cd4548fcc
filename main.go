package main

import (
	"os"

	"github.com/localroute/localroute/internal/adapters/in/cli"
)

var (
	version string
	commit  string
	date    string
)

func main() {
	if version != "" {
		cli.SetVersionInfo(version, commit, date)
	}
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
