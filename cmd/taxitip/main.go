// Command taxitip trains and compares tip prediction models on taxi trip data.
//
//	taxitip run -config job.yaml
//	taxitip schema -config job.yaml
//	taxitip version
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/google/subcommands"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&runCmd{}, "")
	subcommands.Register(&schemaCmd{}, "")
	subcommands.Register(&versionCmd{}, "")

	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	os.Exit(int(subcommands.Execute(ctx)))
}
