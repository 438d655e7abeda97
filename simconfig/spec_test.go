package simconfig

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/asyncvlsi/actsim/event"
	"github.com/asyncvlsi/actsim/simerr"
)

func TestParseSpecFullExample(t *testing.T) {
	src := `
[run]
seed = 42
timescale = 1e-9
delay_mode = "random_bounded"
delay_min = 1
delay_max = 5
warn_policy = "break"

[channels.req]
width = 8

[processes.sender]
entrypoint = "handshake.sender"

[processes.receiver]
entrypoint = "handshake.receiver"
`
	spec, err := parseSpec(strings.NewReader(src))
	require.NoError(t, err)

	require.Equal(t, int64(42), spec.Run.Seed)
	require.InDelta(t, 1e-9, spec.Run.Timescale, 1e-15)
	require.Equal(t, uint(8), spec.Channels["req"].Width)
	require.Equal(t, "handshake.sender", spec.Processes["sender"].Entrypoint)
	require.Equal(t, "handshake.receiver", spec.Processes["receiver"].Entrypoint)

	dp := spec.DelayPolicy()
	require.Equal(t, event.DelayRandomBounded, dp.Mode)
	require.Equal(t, int64(1), dp.Min)
	require.Equal(t, int64(5), dp.Max)

	require.Equal(t, simerr.PolicyBreak, spec.WarningPolicy())
}

func TestDelayPolicyDefaultsToDeterministic(t *testing.T) {
	spec, err := parseSpec(strings.NewReader("[run]\nseed = 1\n"))
	require.NoError(t, err)
	require.Equal(t, event.DelayDeterministic, spec.DelayPolicy().Mode)
}

func TestWarningPolicyDefaultsToIgnore(t *testing.T) {
	spec, err := parseSpec(strings.NewReader("[run]\nseed = 1\n"))
	require.NoError(t, err)
	require.Equal(t, simerr.PolicyIgnore, spec.WarningPolicy())
}

func TestParseSpecRejectsMalformedToml(t *testing.T) {
	_, err := parseSpec(strings.NewReader("[run\nseed = 1"))
	require.Error(t, err)
}
