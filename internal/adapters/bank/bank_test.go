package bank_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pulse/internal/adapters/bank"
)

func TestInMemoryBank(t *testing.T) {
	ctx := context.Background()
	alice := common.HexToAddress("0xa11ce")

	Convey("Given a bank with a reserve", t, func() {
		b := bank.NewInMemoryBank(bank.WithReserve(uint256.NewInt(100)))

		Convey("When a transfer is made", func() {
			So(b.Transfer(ctx, alice, uint256.NewInt(60)), ShouldBeNil)

			Convey("Then the balance moves from the reserve", func() {
				bal := b.BalanceOf(alice)
				res := b.Reserve()
				So(bal.Uint64(), ShouldEqual, 60)
				So(res.Uint64(), ShouldEqual, 40)
			})

			Convey("Then overdrawing fails without effect", func() {
				So(errors.Is(b.Transfer(ctx, alice, uint256.NewInt(41)), bank.ErrInsufficientFunds), ShouldBeTrue)
				res := b.Reserve()
				So(res.Uint64(), ShouldEqual, 40)
			})
		})

		Convey("When a deposit is made", func() {
			b.Deposit(uint256.NewInt(5))
			res := b.Reserve()
			So(res.Uint64(), ShouldEqual, 105)
		})

		Convey("When the recipient rejects", func() {
			b.Reject(alice, true)
			err := b.Transfer(ctx, alice, uint256.NewInt(1))
			So(errors.Is(err, bank.ErrRejected), ShouldBeTrue)

			b.Reject(alice, false)
			So(b.Transfer(ctx, alice, uint256.NewInt(1)), ShouldBeNil)
		})

		Convey("Invalid transfers are refused", func() {
			So(errors.Is(b.Transfer(ctx, common.Address{}, uint256.NewInt(1)), bank.ErrInvalidTransfer), ShouldBeTrue)
			So(errors.Is(b.Transfer(ctx, alice, uint256.NewInt(0)), bank.ErrInvalidTransfer), ShouldBeTrue)
			So(errors.Is(b.Transfer(ctx, alice, nil), bank.ErrInvalidTransfer), ShouldBeTrue)
		})
	})

	Convey("Given a bank with a hook", t, func() {
		calls := 0
		hookErr := errors.New("hook")
		b := bank.NewInMemoryBank(
			bank.WithReserve(uint256.NewInt(10)),
			bank.WithHook(func(ctx context.Context, to common.Address, amount *uint256.Int) error {
				calls++
				if amount.Uint64() == 7 {
					return hookErr
				}
				return nil
			}),
		)

		Convey("Then the hook sees every transfer and can veto it", func() {
			So(b.Transfer(ctx, alice, uint256.NewInt(1)), ShouldBeNil)
			So(errors.Is(b.Transfer(ctx, alice, uint256.NewInt(7)), hookErr), ShouldBeTrue)
			So(calls, ShouldEqual, 2)
			bal := b.BalanceOf(alice)
			So(bal.Uint64(), ShouldEqual, 1)
		})
	})
}
