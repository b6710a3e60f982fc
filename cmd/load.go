package main

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"

	"github.com/okian/pulse/internal/loadtest"
	"github.com/okian/pulse/pkg/logger"
)

func loadCommand() *cli.Command {
	return &cli.Command{
		Name:  "load",
		Usage: "drive a running server with concurrent players and verify the standings",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:9080", Usage: "base URL of the server"},
			&cli.StringFlag{Name: "owner", EnvVars: []string{"PULSE_OWNER"}, Usage: "owner address, used to start a round if none is active"},
			&cli.StringFlag{Name: "fund", Usage: "decimal amount to add to the prize pool"},
			&cli.IntFlag{Name: "players", Value: loadtest.DefaultPlayers},
			&cli.IntFlag{Name: "workers", Value: loadtest.DefaultWorkers},
			&cli.DurationFlag{Name: "timeout", Value: loadtest.DefaultTimeout},
		},
		Action: func(c *cli.Context) error {
			if err := logger.Init(); err != nil {
				return err
			}
			owner := c.String("owner")
			if owner != "" && !common.IsHexAddress(owner) {
				return fmt.Errorf("invalid owner address %q", owner)
			}
			stats, err := loadtest.Run(c.Context, &loadtest.Config{
				BaseURL: c.String("url"),
				Owner:   common.HexToAddress(owner),
				Fund:    c.String("fund"),
				Players: c.Int("players"),
				Workers: c.Int("workers"),
				Timeout: c.Duration("timeout"),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "round %d: %d/%d work calls ok, %d rejected, %d failed, %d verified in %s\n",
				stats.RoundID, stats.WorkOK, stats.WorkSubmitted, stats.WorkRejected, stats.WorkFailed,
				stats.Verified, stats.Duration.Round(time.Millisecond))
			return nil
		},
	}
}
