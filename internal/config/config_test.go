// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/multierr"

	"github.com/Thermoquad/rotostat/internal/motor"
	"github.com/Thermoquad/rotostat/pkg/lvfv"
)

const testYaml = `
parameters:
  frequency:
    min: 5
    max: 120
    default: 60
  direction:
    values: [2, 3]
    default: 3
controller:
  mailboxSize: 4
  dispatchTimeout: 500ms
emergency:
  stopRecovers: false
transport:
  mode: poll
  pollDelay: 50ms
nvs:
  path: /var/lib/rotostat/params.cbor
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rotostat.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	Convey("built-in defaults", t, func() {
		cfg, err := Load("")
		So(err, ShouldBeNil)

		Convey("match the stock drive settings", func() {
			So(cfg.Defaults(), ShouldResemble, motor.Parameters{Frequency: 50, Acceleration: 5, Deceleration: 3, Direction: 1})
			So(cfg.Limits().Frequency, ShouldResemble, motor.Bounds{Min: 1, Max: 150})
			So(cfg.Limits().Directions, ShouldResemble, [2]uint16{0, 1})
		})

		Convey("use duplex transport with stop recovery", func() {
			So(cfg.Transport.Mode, ShouldEqual, ModeDuplex)
			So(cfg.Emergency.StopRecovers, ShouldBeTrue)
			So(cfg.Controller.DispatchTimeout, ShouldEqual, 2*time.Second)
		})
	})
}

func TestFileParsing(t *testing.T) {
	Convey("loading a YAML file", t, func() {
		cfg, err := Load(writeConfig(t, testYaml))
		So(err, ShouldBeNil)

		Convey("overrides only the keys it names", func() {
			So(cfg.Parameters.Frequency, ShouldResemble, RangeConfig{Min: 5, Max: 120, Default: 60})
			So(cfg.Parameters.Acceleration, ShouldResemble, RangeConfig{Min: 1, Max: 50, Default: 5})
		})

		Convey("parses durations and nested sections", func() {
			So(cfg.Controller.DispatchTimeout, ShouldEqual, 500*time.Millisecond)
			So(cfg.Transport.PollDelay, ShouldEqual, 50*time.Millisecond)
			So(cfg.Transport.Mode, ShouldEqual, ModePoll)
			So(cfg.Emergency.StopRecovers, ShouldBeFalse)
			So(cfg.NVS.Path, ShouldEqual, "/var/lib/rotostat/params.cbor")
			So(cfg.Limits().Directions, ShouldResemble, [2]uint16{2, 3})
		})
	})

	Convey("the shipped example file", t, func() {
		cfg, err := Load(filepath.Join("..", "..", "rotostat.example.yaml"))
		So(err, ShouldBeNil)
		So(cfg.Defaults(), ShouldResemble, Default().Defaults())
		So(cfg.Log.StatsInterval, ShouldEqual, time.Minute)
		So(cfg.Log.Compress, ShouldBeTrue)
	})

	Convey("a missing file is an error", t, func() {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		So(err, ShouldNotBeNil)
	})

	Convey("malformed YAML is an error", t, func() {
		_, err := Load(writeConfig(t, "parameters: [unclosed"))
		So(err, ShouldNotBeNil)
	})
}

func TestEnvironmentOverrides(t *testing.T) {
	Convey("environment variables win over the file", t, func() {
		t.Setenv("ROTOSTAT_PARAM_FREQUENCY_MAX", "100")
		t.Setenv("ROTOSTAT_TRANSPORT_MODE", "duplex")
		t.Setenv("ROTOSTAT_DISPATCH_TIMEOUT", "3s")
		t.Setenv("ROTOSTAT_PARAM_DIRECTION_VALUES", "0,1")
		t.Setenv("ROTOSTAT_PARAM_DIRECTION_DEFAULT", "0")

		cfg, err := Load(writeConfig(t, testYaml))
		So(err, ShouldBeNil)
		So(cfg.Parameters.Frequency.Max, ShouldEqual, 100)
		So(cfg.Transport.Mode, ShouldEqual, ModeDuplex)
		So(cfg.Controller.DispatchTimeout, ShouldEqual, 3*time.Second)
		So(cfg.Parameters.Direction.Values, ShouldResemble, []uint16{0, 1})
	})
}

func TestValidation(t *testing.T) {
	Convey("validation", t, func() {
		cfg := Default()

		Convey("accepts the defaults", func() {
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("rejects a default outside its range", func() {
			cfg.Parameters.Acceleration.Default = 60
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("rejects inverted bounds", func() {
			cfg.Parameters.Deceleration = RangeConfig{Min: 10, Max: 5, Default: 7}
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("rejects bounds the link cannot carry", func() {
			cfg.Parameters.Frequency = RangeConfig{Min: 1, Max: 40000, Default: 50}
			err := cfg.Validate()
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "frequency: max 40000")

			cfg.Parameters.Frequency.Max = lvfv.MaxValue
			So(cfg.Validate(), ShouldBeNil)

			cfg.Parameters.Direction = DirectionConfig{Values: []uint16{0, 0x8000}, Default: 0}
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("rejects bad direction values", func() {
			cfg.Parameters.Direction = DirectionConfig{Values: []uint16{1, 1}, Default: 1}
			So(cfg.Validate(), ShouldNotBeNil)
			cfg.Parameters.Direction = DirectionConfig{Values: []uint16{0}, Default: 0}
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("reports every problem at once", func() {
			cfg.Transport.Mode = "spi"
			cfg.Controller.MailboxSize = 0
			cfg.Controller.DispatchTimeout = 0
			So(len(multierr.Errors(cfg.Validate())), ShouldEqual, 3)
		})
	})
}
