package main

import (
	"context"

	"github.com/scott-cotton/cli"
)

func main() {
	cli.MainContext(context.Background(), RootCommand())
}

// RootCommand returns the sensorgate command tree.
func RootCommand() *cli.Command {
	return cli.NewCommand("sensorgate").
		WithSynopsis("sensorgate <subcommand>").
		WithDescription("sensor control gateway: replies to sensor readings and records threshold crossings").
		WithSubs(ServeCommand())
}
