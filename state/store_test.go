package state

import (
	"testing"

	"github.com/asyncvlsi/actsim/bigint"
	"github.com/stretchr/testify/require"
)

func TestBoolSuppressUnchanged(t *testing.T) {
	s := New()
	ref := s.AllocBool()
	count := 0
	_, err := s.Subscribe(ref, WatcherFunc(func(Ref) { count++ }))
	require.NoError(t, err)

	require.NoError(t, s.SetBool(ref, One))
	require.Equal(t, 1, count)
	require.NoError(t, s.SetBool(ref, One))
	require.Equal(t, 1, count, "setting the same value again must not notify watchers")
	require.NoError(t, s.SetBool(ref, Zero))
	require.Equal(t, 2, count)
}

func TestIntWidthOverflow(t *testing.T) {
	s := New()
	ref := s.AllocInt(4)
	err := s.SetInt(ref, bigint.FromUint64(4, 16))
	require.Error(t, err)
	v, _ := s.GetInt(ref)
	require.True(t, v.IsZero())
}

func TestIntRoundTrip(t *testing.T) {
	s := New()
	ref := s.AllocInt(8)
	require.NoError(t, s.SetInt(ref, bigint.FromUint64(8, 200)))
	v, err := s.GetInt(ref)
	require.NoError(t, err)
	require.Equal(t, uint64(200), v.Uint64())
}

func TestUnsubscribe(t *testing.T) {
	s := New()
	ref := s.AllocBool()
	count := 0
	w := WatcherFunc(func(Ref) { count++ })
	h, err := s.Subscribe(ref, w)
	require.NoError(t, err)
	require.NoError(t, s.Unsubscribe(ref, h))
	require.NoError(t, s.SetBool(ref, One))
	require.Equal(t, 0, count)
}
