package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/pulse/internal/adapters/repository"
	service "github.com/okian/pulse/internal/app"
	"github.com/okian/pulse/internal/config"
	"github.com/okian/pulse/internal/domain/types"
	"github.com/okian/pulse/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var (
	owner = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice = common.HexToAddress("0x0000000000000000000000000000000000000a11")
)

// seedJournal writes a journal with one funded round that alice worked in.
func seedJournal(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pulse.db")

	j, err := repository.OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.New()
	cfg.Owner = owner.Hex()
	svc := service.New(
		service.WithGenesis(cfg.Genesis()),
		service.WithJournal(j),
		service.WithClock(func() time.Time { return time.Unix(1_700_000_000, 0) }),
	)
	if err := svc.Start(ctx); err != nil {
		t.Fatal(err)
	}
	for _, step := range []func() error{
		func() error { _, err := svc.StartRound(ctx, owner); return err },
		func() error { _, err := svc.Work(ctx, alice); return err },
		func() error { _, err := svc.Fund(ctx, alice, uint256.NewInt(500)); return err },
	} {
		if err := step(); err != nil {
			t.Fatal(err)
		}
	}
	if err := svc.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(args ...string) (string, error) {
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	err := app.Run(append([]string{"pulse"}, args...))
	return out.String(), err
}

func TestCommands(t *testing.T) {
	convey.Convey("Given the pulse CLI", t, func() {
		convey.Convey("Then it offers its subcommands", func() {
			names := []string{}
			for _, c := range newApp().Commands {
				names = append(names, c.Name)
			}
			convey.So(names, convey.ShouldResemble, []string{"serve", "rounds", "verify", "load"})
		})

		convey.Convey("When a journal exists", func() {
			path := seedJournal(t)

			convey.Convey("Then verify replays it", func() {
				out, err := run("verify", "--db", path)
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "journal ok: height 3, 3 transactions (0 rejected)")
				convey.So(out, convey.ShouldContainSubstring, owner.Hex())
			})

			convey.Convey("Then rounds prints the round table", func() {
				out, err := run("rounds", "--db", path)
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "500")
				convey.So(out, convey.ShouldContainSubstring, alice.Hex())
				convey.So(out, convey.ShouldContainSubstring, "active")
			})
		})

		convey.Convey("When the journal file is missing its genesis", func() {
			path := filepath.Join(t.TempDir(), "empty.db")

			_, err := run("verify", "--db", path)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestPrintRounds(t *testing.T) {
	convey.Convey("Given several rounds", t, func() {
		rounds := []types.Round{
			{ID: 1, Settled: true, PrizePool: "10", Top3: []types.Entry{{Rank: 1, Player: "p1", Score: 7}}},
			{ID: 2, PrizePool: "20"},
			{ID: 3, Active: true, PrizePool: "30"},
		}

		convey.Convey("When only the last two are requested", func() {
			var out bytes.Buffer
			printRounds(&out, rounds, 2)

			convey.Convey("Then older rounds are left out", func() {
				convey.So(out.String(), convey.ShouldContainSubstring, "active")
				convey.So(out.String(), convey.ShouldContainSubstring, "ended")
				convey.So(out.String(), convey.ShouldNotContainSubstring, "settled")
			})
		})

		convey.Convey("Then an empty journal says so", func() {
			var out bytes.Buffer
			printRounds(&out, nil, 5)
			convey.So(out.String(), convey.ShouldEqual, "no rounds\n")
		})

		convey.Convey("Then the podium lists ranks", func() {
			convey.So(podium(rounds[0].Top3), convey.ShouldEqual, "1. p1 (7)")
			convey.So(podium(nil), convey.ShouldEqual, "-")
		})
	})
}
