package channel

import (
	"testing"

	"github.com/asyncvlsi/actsim/bigint"
	"github.com/stretchr/testify/require"
)

func TestRendezvousSenderFirst(t *testing.T) {
	f := New(4)
	res, err := f.Send(bigint.FromUint64(4, 5), "sender")
	require.NoError(t, err)
	require.False(t, res.Completed)
	require.Equal(t, WaitingSender, f.Phase())

	res, err = f.Recv("receiver")
	require.NoError(t, err)
	require.True(t, res.Completed)
	require.Equal(t, "sender", res.PeerResume)
	require.Equal(t, uint64(5), res.Delivered.Uint64())
	require.Equal(t, Idle, f.Phase())
	require.EqualValues(t, 1, f.CompletedCount())
}

func TestRendezvousReceiverFirst(t *testing.T) {
	f := New(1)
	res, err := f.Recv("receiver")
	require.NoError(t, err)
	require.False(t, res.Completed)
	require.Equal(t, WaitingReceiver, f.Phase())

	res, err = f.Send(bigint.FromUint64(1, 1), "sender")
	require.NoError(t, err)
	require.True(t, res.Completed)
	require.Equal(t, "receiver", res.PeerResume)
	require.Equal(t, Idle, f.Phase())
}

func TestExclusiveWaiting(t *testing.T) {
	f := New(1)
	_, err := f.Send(bigint.FromUint64(1, 0), "s")
	require.NoError(t, err)
	_, err = f.Send(bigint.FromUint64(1, 0), "s2")
	require.Error(t, err)
}

func TestSkipSend(t *testing.T) {
	f := New(4)
	_, err := f.Send(bigint.FromUint64(4, 5), "sender")
	require.NoError(t, err)
	r, err := f.SkipSend()
	require.NoError(t, err)
	require.Equal(t, "sender", r)
	require.Equal(t, Idle, f.Phase())
	require.EqualValues(t, 0, f.CompletedCount())
}

func TestSkipSendWrongPhase(t *testing.T) {
	f := New(4)
	_, err := f.SkipSend()
	require.Error(t, err)
}

func TestProbe(t *testing.T) {
	f := New(1)
	require.False(t, f.Probe(true))
	_, err := f.Recv("r")
	require.NoError(t, err)
	require.True(t, f.Probe(true))
	require.False(t, f.Probe(false))
}
