package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestInit(t *testing.T) {
	Convey("Given logger initialization", t, func() {
		Convey("When initialized with defaults", func() {
			So(Init(), ShouldBeNil)

			Convey("Then the global logger is available", func() {
				So(Get(), ShouldNotBeNil)
				So(Named("engine"), ShouldNotBeNil)
				So(Sync(), ShouldBeNil)
			})
		})

		Convey("When an unknown format is requested", func() {
			err := Init(WithFormat("xml"))
			So(errors.Is(err, ErrUnknownFormat), ShouldBeTrue)
		})

		Convey("When an unknown level is requested", func() {
			err := Init(WithLevel("loud"))
			So(errors.Is(err, ErrUnknownLevel), ShouldBeTrue)
		})
	})
}

func TestJSONOutput(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		l, err := New(WithFormat(FormatJSON), WithOutput(&buf), WithLevel("info"))
		So(err, ShouldBeNil)

		Convey("When logging with fields", func() {
			l.Named("payout").Info(context.Background(), "transfer sent",
				String("to", "0xabc"), Uint64("round", 3), Bool("ok", true))

			Convey("Then the record carries the fields, component and source", func() {
				var rec map[string]any
				So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)
				So(rec["msg"], ShouldEqual, "transfer sent")
				So(rec["to"], ShouldEqual, "0xabc")
				So(rec["round"], ShouldEqual, 3)
				So(rec["ok"], ShouldEqual, true)
				So(rec["component"], ShouldEqual, "payout")
				So(rec["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When a named logger is named again", func() {
			l.Named("engine").Named("payout").Warn(context.Background(), "retrying")

			Convey("Then the component is written once with both names", func() {
				So(strings.Count(buf.String(), `"component"`), ShouldEqual, 1)
				var rec map[string]any
				So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)
				So(rec["component"], ShouldEqual, "engine.payout")
			})
		})

		Convey("When logging below the level", func() {
			l.Debug(context.Background(), "hidden")

			Convey("Then nothing is written", func() {
				So(buf.Len(), ShouldEqual, 0)
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		var buf bytes.Buffer
		l, err := New(WithOutput(&buf))
		So(err, ShouldBeNil)

		for _, lvl := range []string{"debug", "INFO", " warn ", "warning", "error", ""} {
			So(SetLevelString(lvl), ShouldBeNil)
		}

		Convey("When the level is debug", func() {
			So(SetLevelString("debug"), ShouldBeNil)
			l.Debug(context.Background(), "visible", Error(errors.New("boom")))

			Convey("Then debug records are written", func() {
				So(strings.Contains(buf.String(), "visible"), ShouldBeTrue)
				So(strings.Contains(buf.String(), "boom"), ShouldBeTrue)
			})
		})

		Reset(func() {
			_ = SetLevelString("info")
		})
	})
}
