package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/okian/pulse/internal/adapters/repository"
	service "github.com/okian/pulse/internal/app"
	"github.com/okian/pulse/internal/config"
	"github.com/okian/pulse/internal/domain/types"
)

const defaultReportRounds = 10

var errNoJournal = errors.New("no journal file configured")

func dbFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "db",
		Usage:   "SQLite journal file (defaults to db_path from config)",
		EnvVars: []string{"PULSE_DB_PATH"},
	}
}

// journalPath resolves the journal file from the flag or the config.
func journalPath(c *cli.Context) (string, error) {
	path := c.String("db")
	if path == "" {
		cfg, err := config.Load(c.Context)
		if err != nil {
			return "", err
		}
		path = cfg.DBPath
	}
	if path == "" {
		return "", errNoJournal
	}
	return path, nil
}

// replayFile replays the journal at path without starting the engine.
func replayFile(c *cli.Context) (*service.Replayed, error) {
	path, err := journalPath(c)
	if err != nil {
		return nil, err
	}
	j, err := repository.OpenSQLite(c.Context, path)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	defer j.Close()
	return service.Replay(c.Context, j, nil)
}

func roundsCommand() *cli.Command {
	return &cli.Command{
		Name:  "rounds",
		Usage: "print the most recent rounds of a journal",
		Flags: []cli.Flag{
			dbFlag(),
			&cli.IntFlag{Name: "last", Aliases: []string{"n"}, Value: defaultReportRounds, Usage: "number of rounds to show"},
		},
		Action: func(c *cli.Context) error {
			res, err := replayFile(c)
			if err != nil {
				return err
			}
			rounds := make([]types.Round, 0, res.State.CurrentRoundID())
			for id := uint64(1); id <= res.State.CurrentRoundID(); id++ {
				r, err := res.State.Round(id)
				if err != nil {
					return err
				}
				rounds = append(rounds, types.NewRound(r, res.Timestamp))
			}
			printRounds(c.App.Writer, rounds, c.Int("last"))
			return nil
		},
	}
}

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "check a journal's hash chain and re-execute every transaction",
		Flags: []cli.Flag{dbFlag()},
		Action: func(c *cli.Context) error {
			res, err := replayFile(c)
			if err != nil {
				return fmt.Errorf("journal invalid: %w", err)
			}
			fmt.Fprintf(c.App.Writer, "journal ok: height %d, %d transactions (%d rejected), owner %s, %d rounds\n",
				res.Height, res.Txs, res.Rejected, res.Genesis.Owner.Hex(), res.State.CurrentRoundID())
			return nil
		},
	}
}

// printRounds renders the last n rounds, newest first.
func printRounds(w io.Writer, rounds []types.Round, n int) {
	if len(rounds) == 0 {
		fmt.Fprintln(w, "no rounds")
		return
	}
	if n > 0 && n < len(rounds) {
		rounds = rounds[len(rounds)-n:]
	}

	table := tablewriter.NewWriter(w)
	table.Header("Round", "Status", "Start", "End", "Players", "Pool", "Top 3")
	for i := len(rounds) - 1; i >= 0; i-- {
		r := rounds[i]
		table.Append(
			fmt.Sprintf("%d", r.ID),
			roundStatus(r),
			fmt.Sprintf("%d", r.StartTime),
			fmt.Sprintf("%d", r.EndTime),
			fmt.Sprintf("%d", r.TotalPlayers),
			r.PrizePool,
			podium(r.Top3),
		)
	}
	table.Render()
}

func roundStatus(r types.Round) string {
	switch {
	case r.Settled:
		return "settled"
	case r.Active:
		return "active"
	default:
		return "ended"
	}
}

func podium(top []types.Entry) string {
	if len(top) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(top))
	for _, e := range top {
		parts = append(parts, fmt.Sprintf("%d. %s (%d)", e.Rank, e.Player, e.Score))
	}
	return strings.Join(parts, " ")
}
