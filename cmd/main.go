package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "pulse:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "pulse",
		Usage: "periodic scoring rounds with a funded prize pool",
		Commands: []*cli.Command{
			serveCommand(),
			roundsCommand(),
			verifyCommand(),
			loadCommand(),
		},
	}
}
