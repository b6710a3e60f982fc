package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pulse/internal/adapters/bank"
	"github.com/okian/pulse/internal/adapters/repository"
	service "github.com/okian/pulse/internal/app"
	"github.com/okian/pulse/internal/domain/game"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

const t0 = int64(1_700_000_000)

var (
	owner = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	alice = common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	dave  = common.HexToAddress("0x00000000000000000000000000000000000000da")
)

var oneToken = func() *uint256.Int {
	v, _ := uint256.FromDecimal("1000000000000000000")
	return v
}()

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock { return &fakeClock{now: time.Unix(t0, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(offset int64) {
	c.mu.Lock()
	c.now = time.Unix(t0+offset, 0)
	c.mu.Unlock()
}

type failingJournal struct {
	repository.Journal
	fail atomic.Bool
}

func (f *failingJournal) Append(ctx context.Context, rec *repository.Record) error {
	if f.fail.Load() {
		return errors.New("disk full")
	}
	return f.Journal.Append(ctx, rec)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func genesis() model.Genesis {
	return model.Genesis{
		Owner:                owner,
		RoundDurationSeconds: game.DefaultRoundDuration,
		DecayMaxPoints:       game.DefaultMaxPoints,
		DecayMinPoints:       game.DefaultMinPoints,
	}
}

func newService(clock *fakeClock, opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithGenesis(genesis()),
		service.WithClock(clock.Now),
		service.WithPayoutWorkers(2),
		service.WithPayoutRetries(0),
	}
	return service.New(append(base, opts...)...)
}

func TestServiceLifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		ctx := context.Background()
		clock := newClock()
		svc := newService(clock)

		Convey("Submitting before Start fails", func() {
			_, err := svc.Work(ctx, alice)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("When it starts on an empty journal", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then the genesis record is written", func() {
				So(svc.Height(), ShouldEqual, 0)
				So(svc.Owner(), ShouldEqual, owner)
				So(svc.CurrentRoundID(), ShouldEqual, 0)
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["halted"], ShouldEqual, false)
			})

			Convey("Then stopping refuses new transactions", func() {
				So(svc.Stop(ctx), ShouldBeNil)
				So(svc.Stop(ctx), ShouldBeNil)
				_, err := svc.Work(ctx, alice)
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			})
		})

		Convey("Starting without an owner fails", func() {
			bad := service.New(service.WithClock(clock.Now))
			So(errors.Is(bad.Start(ctx), game.ErrInvalidParams), ShouldBeTrue)
		})
	})
}

func TestServiceScenario(t *testing.T) {
	Convey("Given a running service with one round", t, func() {
		ctx := context.Background()
		clock := newClock()
		b := bank.NewInMemoryBank()
		svc := newService(clock, service.WithBank(b))
		So(svc.Start(ctx), ShouldBeNil)

		rcpt, err := svc.StartRound(ctx, owner)
		So(err, ShouldBeNil)
		So(rcpt.Height, ShouldEqual, 1)
		So(rcpt.Timestamp, ShouldEqual, uint64(t0))

		clock.Set(10)
		ra, err := svc.Work(ctx, alice)
		So(err, ShouldBeNil)
		clock.Set(1800)
		rb, err := svc.Work(ctx, bob)
		So(err, ShouldBeNil)
		_, err = svc.Fund(ctx, dave, oneToken)
		So(err, ShouldBeNil)

		Convey("Then work is scored by how early it landed", func() {
			So(ra.Logs[0].Points, ShouldEqual, 998)
			So(rb.Logs[0].Points, ShouldEqual, 550)

			top, err := svc.Top3(ctx, 1)
			So(err, ShouldBeNil)
			So(top, ShouldHaveLength, 2)
			So(top[0].Player, ShouldEqual, alice.Hex())
			So(top[1].Player, ShouldEqual, bob.Hex())
		})

		Convey("Then a second work in the same hour is rejected and journaled", func() {
			clock.Set(3599)
			r, err := svc.Work(ctx, alice)
			So(errors.Is(err, game.ErrAlreadyScoredThisHour), ShouldBeTrue)
			So(r.Status, ShouldEqual, model.StatusRejected)
			So(r.Height, ShouldEqual, svc.Height())
		})

		Convey("Then only the owner can start rounds", func() {
			_, err := svc.StartRound(ctx, alice)
			So(errors.Is(err, game.ErrNotOwner), ShouldBeTrue)
		})

		Convey("Then settling early is rejected", func() {
			_, err := svc.Settle(ctx, carol, 1)
			So(errors.Is(err, game.ErrRoundNotEnded), ShouldBeTrue)
		})

		Convey("Then the round view reflects the pool", func() {
			r, err := svc.CurrentRound(ctx)
			So(err, ShouldBeNil)
			So(r.Active, ShouldBeTrue)
			So(r.PrizePool, ShouldEqual, "1000000000000000000")
			So(r.TotalPlayers, ShouldEqual, 2)
		})

		Convey("Then player views show totals and last hour", func() {
			p, err := svc.Player(ctx, 1, alice)
			So(err, ShouldBeNil)
			So(p.TotalScore, ShouldEqual, 998)
			So(*p.LastWorkedHour, ShouldEqual, 0)

			p, err = svc.Player(ctx, 1, carol)
			So(err, ShouldBeNil)
			So(p.LastWorkedHour, ShouldBeNil)
		})

		Convey("Then logs can be filtered by player", func() {
			all, err := svc.Logs(ctx, 1, nil)
			So(err, ShouldBeNil)
			So(all, ShouldHaveLength, 2)

			mine, err := svc.Logs(ctx, 1, &bob)
			So(err, ShouldBeNil)
			So(mine, ShouldHaveLength, 1)
			So(mine[0].Points, ShouldEqual, 550)

			_, err = svc.Logs(ctx, 9, nil)
			So(errors.Is(err, game.ErrInvalidRoundID), ShouldBeTrue)
		})

		Convey("When the round ends and anyone settles", func() {
			clock.Set(int64(game.DefaultRoundDuration))
			r, err := svc.Settle(ctx, carol, 1)
			So(err, ShouldBeNil)
			So(r.Transfers, ShouldHaveLength, 2)

			_, err = svc.Settle(ctx, carol, 1)
			So(errors.Is(err, game.ErrAlreadySettled), ShouldBeTrue)
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then the winners are paid 50 and 30 percent", func() {
				a, bb := b.BalanceOf(alice), b.BalanceOf(bob)
				So(a.Dec(), ShouldEqual, "500000000000000000")
				So(bb.Dec(), ShouldEqual, "300000000000000000")
				res := b.Reserve()
				So(res.Dec(), ShouldEqual, "200000000000000000")
			})

			Convey("Then the third share is held as unclaimed", func() {
				round, err := svc.Round(ctx, 1)
				So(err, ShouldBeNil)
				So(round.Settled, ShouldBeTrue)
				So(round.Unclaimed, ShouldEqual, "200000000000000000")
				So(round.Payouts, ShouldResemble, []string{"500000000000000000", "300000000000000000"})
			})
		})

		Reset(func() { _ = svc.Stop(ctx) })
	})
}

func TestServiceIdempotency(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx := context.Background()
		svc := newService(newClock())
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(ctx) })

		Convey("When a transaction id is reused", func() {
			tx := model.Tx{ID: "start-1", Kind: model.TxStartRound, Caller: owner}
			_, err := svc.Submit(ctx, tx)
			So(err, ShouldBeNil)
			h := svc.Height()

			_, err = svc.Submit(ctx, tx)

			Convey("Then it is refused without a new record", func() {
				So(errors.Is(err, service.ErrDuplicateTx), ShouldBeTrue)
				So(svc.Height(), ShouldEqual, h)
				So(svc.CurrentRoundID(), ShouldEqual, 1)
			})
		})

		Convey("When a caller submits a system transaction", func() {
			_, err := svc.Submit(ctx, model.Tx{Kind: model.TxCreditOwed, To: alice, Value: oneToken})
			So(errors.Is(err, service.ErrReservedTx), ShouldBeTrue)
		})
	})
}

func TestServiceLedgerTime(t *testing.T) {
	Convey("Given a wall clock that steps backwards", t, func() {
		ctx := context.Background()
		clock := newClock()
		svc := newService(clock)
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(ctx) })

		clock.Set(100)
		r1, err := svc.StartRound(ctx, owner)
		So(err, ShouldBeNil)
		clock.Set(50)
		r2, err := svc.Work(ctx, alice)
		So(err, ShouldBeNil)

		Convey("Then ledger time never decreases", func() {
			So(r2.Timestamp, ShouldEqual, r1.Timestamp)
			So(r2.Logs[0].Points, ShouldEqual, game.DefaultMaxPoints)
		})
	})
}

func TestServiceReentrancy(t *testing.T) {
	Convey("Given a bank whose recipients call back into the engine", t, func() {
		ctx := context.Background()
		clock := newClock()
		var svc *service.Service
		var mu sync.Mutex
		var callbackErrs []error
		b := bank.NewInMemoryBank(bank.WithHook(func(ctx context.Context, to common.Address, _ *uint256.Int) error {
			_, err := svc.Settle(ctx, to, 1)
			mu.Lock()
			callbackErrs = append(callbackErrs, err)
			mu.Unlock()
			return nil
		}))
		svc = newService(clock, service.WithBank(b))
		So(svc.Start(ctx), ShouldBeNil)

		_, _ = svc.StartRound(ctx, owner)
		_, _ = svc.Work(ctx, alice)
		_, _ = svc.Work(ctx, bob)
		_, _ = svc.Fund(ctx, dave, uint256.NewInt(1000))
		clock.Set(int64(game.DefaultRoundDuration))

		Convey("When the round is settled", func() {
			_, err := svc.Settle(ctx, carol, 1)
			So(err, ShouldBeNil)
			So(waitFor(func() bool {
				mu.Lock()
				defer mu.Unlock()
				return len(callbackErrs) == 2
			}), ShouldBeTrue)
			So(svc.Stop(ctx), ShouldBeNil)

			Convey("Then every callback sees a settled round and nobody is paid twice", func() {
				So(callbackErrs, ShouldHaveLength, 2)
				for _, e := range callbackErrs {
					So(errors.Is(e, game.ErrAlreadySettled), ShouldBeTrue)
				}
				a, bb := b.BalanceOf(alice), b.BalanceOf(bob)
				So(a.Uint64(), ShouldEqual, 500)
				So(bb.Uint64(), ShouldEqual, 300)
			})
		})
	})
}

func TestServiceFailedPayout(t *testing.T) {
	Convey("Given a winner whose transfer is rejected", t, func() {
		ctx := context.Background()
		clock := newClock()
		b := bank.NewInMemoryBank()
		b.Reject(bob, true)
		svc := newService(clock, service.WithBank(b))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(ctx) })

		_, _ = svc.StartRound(ctx, owner)
		_, _ = svc.Work(ctx, alice)
		_, _ = svc.Work(ctx, bob)
		_, _ = svc.Fund(ctx, dave, uint256.NewInt(1000))
		clock.Set(int64(game.DefaultRoundDuration))
		_, err := svc.Settle(ctx, carol, 1)
		So(err, ShouldBeNil)

		Convey("Then the settlement stands and the share is owed", func() {
			So(waitFor(func() bool {
				p, _ := svc.Player(ctx, 1, bob)
				return p.Owed == "300"
			}), ShouldBeTrue)
			a := b.BalanceOf(alice)
			So(waitFor(func() bool { a = b.BalanceOf(alice); return a.Uint64() == 500 }), ShouldBeTrue)

			r, _ := svc.Round(ctx, 1)
			So(r.Settled, ShouldBeTrue)

			Convey("And the winner can withdraw it once the transfer goes through", func() {
				b.Reject(bob, false)
				_, err := svc.Withdraw(ctx, bob)
				So(err, ShouldBeNil)
				So(waitFor(func() bool { bal := b.BalanceOf(bob); return bal.Uint64() == 300 }), ShouldBeTrue)

				_, err = svc.Withdraw(ctx, bob)
				So(errors.Is(err, game.ErrNothingOwed), ShouldBeTrue)
			})
		})

		Convey("Then the owner can sweep the empty third share", func() {
			_, err := svc.SweepUnclaimed(ctx, alice)
			So(errors.Is(err, game.ErrNotOwner), ShouldBeTrue)
			_, err = svc.SweepUnclaimed(ctx, owner)
			So(err, ShouldBeNil)
			So(waitFor(func() bool { bal := b.BalanceOf(owner); return bal.Uint64() == 200 }), ShouldBeTrue)
		})
	})
}

func TestServiceOwedCreditID(t *testing.T) {
	Convey("Given a caller that takes the id of a future owed credit", t, func() {
		ctx := context.Background()
		clock := newClock()
		b := bank.NewInMemoryBank()
		b.Reject(bob, true)
		svc := newService(clock, service.WithBank(b))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(ctx) })

		_, _ = svc.StartRound(ctx, owner)
		_, _ = svc.Work(ctx, alice)
		_, _ = svc.Work(ctx, bob)
		_, _ = svc.Fund(ctx, dave, uint256.NewInt(1000))
		h := svc.Height()

		_, err := svc.Submit(ctx, model.Tx{ID: "k/owed/" + bob.Hex(), Kind: model.TxWithdraw, Caller: carol})

		Convey("Then the id is refused without a record", func() {
			So(errors.Is(err, service.ErrReservedTxID), ShouldBeTrue)
			So(svc.Height(), ShouldEqual, h)
		})

		Convey("When the round settles under the matching id and bob's transfer fails", func() {
			clock.Set(int64(game.DefaultRoundDuration))
			_, err := svc.Submit(ctx, model.Tx{ID: "k", Kind: model.TxSettle, Caller: carol, RoundID: 1})
			So(err, ShouldBeNil)

			Convey("Then bob's share is still credited as owed", func() {
				So(waitFor(func() bool {
					p, _ := svc.Player(ctx, 1, bob)
					return p.Owed == "300"
				}), ShouldBeTrue)
				So(svc.GetStats()["held"], ShouldEqual, "500")
			})
		})
	})
}

func TestServiceConcurrentSettle(t *testing.T) {
	Convey("Given an ended round with two winners", t, func() {
		ctx := context.Background()
		clock := newClock()
		b := bank.NewInMemoryBank()
		svc := newService(clock, service.WithBank(b))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(ctx) })

		_, _ = svc.StartRound(ctx, owner)
		_, _ = svc.Work(ctx, alice)
		_, _ = svc.Work(ctx, bob)
		_, _ = svc.Fund(ctx, dave, uint256.NewInt(1000))
		clock.Set(int64(game.DefaultRoundDuration))

		Convey("When many callers settle it at the same time", func() {
			const callers = 16
			var (
				wg      sync.WaitGroup
				ready   sync.WaitGroup
				gate    = make(chan struct{})
				ok      atomic.Int64
				settled atomic.Int64
				other   atomic.Int64
			)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				ready.Add(1)
				go func() {
					defer wg.Done()
					ready.Done()
					<-gate
					_, err := svc.Settle(ctx, carol, 1)
					switch {
					case err == nil:
						ok.Add(1)
					case errors.Is(err, game.ErrAlreadySettled):
						settled.Add(1)
					default:
						other.Add(1)
					}
				}()
			}
			ready.Wait()
			close(gate)
			wg.Wait()

			Convey("Then exactly one succeeds and the winners are paid once", func() {
				So(ok.Load(), ShouldEqual, 1)
				So(settled.Load(), ShouldEqual, callers-1)
				So(other.Load(), ShouldEqual, 0)

				So(waitFor(func() bool {
					a, bb := b.BalanceOf(alice), b.BalanceOf(bob)
					return a.Uint64() == 500 && bb.Uint64() == 300
				}), ShouldBeTrue)
				time.Sleep(50 * time.Millisecond)

				a, bb := b.BalanceOf(alice), b.BalanceOf(bob)
				So(a.Uint64(), ShouldEqual, 500)
				So(bb.Uint64(), ShouldEqual, 300)
				reserve := b.Reserve()
				So(reserve.Uint64(), ShouldEqual, 200)
				pa, _ := svc.Player(ctx, 1, alice)
				pb, _ := svc.Player(ctx, 1, bob)
				So(pa.Owed, ShouldEqual, "0")
				So(pb.Owed, ShouldEqual, "0")
			})
		})
	})
}

func TestServiceReplay(t *testing.T) {
	Convey("Given a service backed by a SQLite journal", t, func() {
		ctx := context.Background()
		path := filepath.Join(t.TempDir(), "pulse.db")
		clock := newClock()

		open := func() repository.Journal {
			j, err := repository.OpenSQLite(ctx, path)
			So(err, ShouldBeNil)
			return j
		}

		first := newService(clock, service.WithJournal(open()))
		So(first.Start(ctx), ShouldBeNil)
		_, _ = first.StartRound(ctx, owner)
		clock.Set(10)
		_, _ = first.Work(ctx, alice)
		_, _ = first.Submit(ctx, model.Tx{ID: "fund-1", Kind: model.TxFund, Caller: dave, Value: uint256.NewInt(77)})
		_, _ = first.Work(ctx, alice)
		want, err := first.Round(ctx, 1)
		So(err, ShouldBeNil)
		height := first.Height()
		So(first.Stop(ctx), ShouldBeNil)

		Convey("When a new service starts on the same journal", func() {
			second := newService(clock, service.WithJournal(open()))
			So(second.Start(ctx), ShouldBeNil)
			Reset(func() { _ = second.Stop(ctx) })

			Convey("Then it rebuilds the same state", func() {
				got, err := second.Round(ctx, 1)
				So(err, ShouldBeNil)
				So(got, ShouldResemble, want)
				So(second.Height(), ShouldEqual, height)
				stats := second.GetStats()
				So(stats["held"], ShouldEqual, "77")
			})

			Convey("Then committed ids are still known", func() {
				_, err := second.Submit(ctx, model.Tx{ID: "fund-1", Kind: model.TxFund, Caller: dave, Value: uint256.NewInt(77)})
				So(errors.Is(err, service.ErrDuplicateTx), ShouldBeTrue)
			})

			Convey("Then the hour gate survives the restart", func() {
				_, err := second.Work(ctx, alice)
				So(errors.Is(err, game.ErrAlreadyScoredThisHour), ShouldBeTrue)
			})
		})

		Convey("When the configured owner differs from the journal", func() {
			g := genesis()
			g.Owner = dave
			other := service.New(service.WithGenesis(g), service.WithClock(clock.Now), service.WithJournal(open()))
			err := other.Start(ctx)
			So(errors.Is(err, service.ErrGenesisMismatch), ShouldBeTrue)
		})

		Convey("When the journal is verified offline", func() {
			j := open()
			defer j.Close()
			res, err := service.Replay(ctx, j, nil)
			So(err, ShouldBeNil)
			So(res.Height, ShouldEqual, height)
			So(res.Txs, ShouldEqual, 4)
			So(res.Rejected, ShouldEqual, 1)
			So(res.Genesis.Owner, ShouldEqual, owner)
		})
	})
}

func TestServiceHalt(t *testing.T) {
	Convey("Given a journal that starts failing", t, func() {
		ctx := context.Background()
		j := &failingJournal{Journal: repository.NewMemoryJournal()}
		svc := newService(newClock(), service.WithJournal(j))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(ctx) })

		_, err := svc.StartRound(ctx, owner)
		So(err, ShouldBeNil)
		j.fail.Store(true)

		Convey("Then the failing transaction halts the service", func() {
			_, err := svc.Work(ctx, alice)
			So(errors.Is(err, service.ErrHalted), ShouldBeTrue)
			So(svc.GetStats()["halted"], ShouldEqual, true)

			Convey("And later transactions are refused even after recovery", func() {
				j.fail.Store(false)
				_, err := svc.Work(ctx, bob)
				So(errors.Is(err, service.ErrHalted), ShouldBeTrue)
				So(svc.Height(), ShouldEqual, 1)
			})
		})
	})
}

func TestServiceConcurrency(t *testing.T) {
	Convey("Given many players working at once", t, func() {
		ctx := context.Background()
		clock := newClock()
		svc := newService(clock)
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(ctx) })
		_, err := svc.StartRound(ctx, owner)
		So(err, ShouldBeNil)

		const players = 50
		var wg sync.WaitGroup
		var ok atomic.Int64
		for i := 1; i <= players; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				var addr common.Address
				addr[0], addr[19] = 0x10, byte(i)
				if _, err := svc.Work(ctx, addr); err == nil {
					ok.Add(1)
				}
			}(i)
		}

		Convey("And one player racing against itself", func() {
			var same atomic.Int64
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := svc.Work(ctx, alice); err == nil {
						same.Add(1)
					}
				}()
			}
			wg.Wait()

			Convey("Then every distinct player scores once and the racer once", func() {
				So(ok.Load(), ShouldEqual, players)
				So(same.Load(), ShouldEqual, 1)
				r, _ := svc.CurrentRound(ctx)
				So(r.TotalPlayers, ShouldEqual, players+1)
				So(r.Top3, ShouldHaveLength, 3)
				So(svc.Height(), ShouldEqual, 1+players+20)
			})
		})
	})
}
