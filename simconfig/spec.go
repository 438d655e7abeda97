// Package simconfig loads the TOML run configuration that drives
// cmd/actsim: the circuit's process entry points and channel widths,
// plus the run-wide initial random seed, delay policy, and warning
// policy. Spec/parseSpec/LoadSpecFromFile mirror the teacher's own
// active `model/spec.go` TOML loader, not the dead root-level
// `spec.go`.
package simconfig

import (
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/asyncvlsi/actsim/event"
	"github.com/asyncvlsi/actsim/simerr"
)

// Spec is the top-level shape of a run's TOML configuration file.
type Spec struct {
	Run       RunSpec                `toml:"run"`
	Processes map[string]ProcessSpec `toml:"processes,omitempty"`
	Channels  map[string]ChannelSpec `toml:"channels,omitempty"`
}

// RunSpec is the `[run]` table: everything that configures the kernel
// itself rather than the circuit it simulates.
type RunSpec struct {
	File       string  `toml:"file,omitempty"`
	Seed       int64   `toml:"seed,omitempty"`
	Timescale  float64 `toml:"timescale,omitempty"`
	DelayMode  string  `toml:"delay_mode,omitempty"`
	DelayMin   int64   `toml:"delay_min,omitempty"`
	DelayMax   int64   `toml:"delay_max,omitempty"`
	WarnPolicy string  `toml:"warn_policy,omitempty"`
}

// ProcessSpec declares one top-level CHP/HSE/PRS process instance to
// build and run.
type ProcessSpec struct {
	Entrypoint string `toml:"entrypoint,omitempty"`
}

// ChannelSpec declares one top-level channel's data width.
type ChannelSpec struct {
	Width uint `toml:"width,omitempty"`
}

func parseSpec(r io.Reader) (*Spec, error) {
	var out Spec
	if _, err := toml.NewDecoder(r).Decode(&out); err != nil {
		return nil, simerr.Wrap(simerr.Usage, err, "parsing run configuration")
	}
	return &out, nil
}

// LoadSpecFromFile opens and parses path as a run configuration.
func LoadSpecFromFile(path string) (*Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, simerr.Wrap(simerr.Usage, err, "opening run configuration %q", path)
	}
	defer f.Close()
	return parseSpec(f)
}

// DelayPolicy translates the configured delay_mode/delay_min/delay_max
// into an event.DelayPolicy, defaulting to DelayDeterministic when
// delay_mode is unset or unrecognized.
func (s *Spec) DelayPolicy() event.DelayPolicy {
	mode := event.DelayDeterministic
	switch s.Run.DelayMode {
	case "random_bounded":
		mode = event.DelayRandomBounded
	case "random_unspecified_only":
		mode = event.DelayRandomUnspecifiedOnly
	}
	return event.DelayPolicy{Mode: mode, Min: s.Run.DelayMin, Max: s.Run.DelayMax}
}

// WarningPolicy translates warn_policy into a simerr.Policy, defaulting
// to PolicyIgnore to match BreakOnWarn/ExitOnWarn/ResumeOnWarn's own
// "ignore unless told otherwise" default.
func (s *Spec) WarningPolicy() simerr.Policy {
	switch s.Run.WarnPolicy {
	case "break":
		return simerr.PolicyBreak
	case "exit":
		return simerr.PolicyExit
	default:
		return simerr.PolicyIgnore
	}
}
