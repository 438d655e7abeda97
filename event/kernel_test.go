package event

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/asyncvlsi/actsim/simtime"
)

// recordingDispatcher appends every Event it receives to Owner.Tag, in
// dispatch order, so a test can check exactly what fired and when.
type recordingDispatcher struct {
	tags []OwnerTag
}

func (d *recordingDispatcher) Dispatch(ev *Event) error {
	d.tags = append(d.tags, ev.Owner.Tag)
	return nil
}

func at(t int64) simtime.Time { return simtime.FromInt64(t) }

func TestRunSkipsPastNonDispatchableEventInResetMode(t *testing.T) {
	d := &recordingDispatcher{}
	k := NewKernel(d, 1)
	k.SetResetMode(true)

	k.Push(&Event{Deadline: at(5), Owner: Owner{Tag: OwnerChp}})
	k.Push(&Event{Deadline: at(10), Owner: Owner{Tag: OwnerPrs}})

	require.NoError(t, k.Run())

	require.Equal(t, []OwnerTag{OwnerPrs}, d.tags, "the PRS event at t=10 must fire even though a CHP event sits ahead of it in the queue")
	require.Equal(t, at(10), k.Now())
	require.True(t, k.Pending(), "the held-back CHP event must still be queued once reset mode lifts")
}

func TestStepSkipsPastNonDispatchableEventInResetMode(t *testing.T) {
	d := &recordingDispatcher{}
	k := NewKernel(d, 1)
	k.SetResetMode(true)

	k.Push(&Event{Deadline: at(5), Owner: Owner{Tag: OwnerChp}})
	k.Push(&Event{Deadline: at(10), Owner: Owner{Tag: OwnerPrs}})

	more, err := k.Step(1)
	require.NoError(t, err)
	require.Equal(t, []OwnerTag{OwnerPrs}, d.tags)
	require.True(t, more, "the held-back CHP event still counts as queued work")
}

func TestAdvanceRespectsTargetWhileSkippingHeldEvents(t *testing.T) {
	d := &recordingDispatcher{}
	k := NewKernel(d, 1)
	k.SetResetMode(true)

	k.Push(&Event{Deadline: at(5), Owner: Owner{Tag: OwnerChp}})
	k.Push(&Event{Deadline: at(10), Owner: Owner{Tag: OwnerPrs}})
	k.Push(&Event{Deadline: at(20), Owner: Owner{Tag: OwnerPrs}})

	require.NoError(t, k.Advance(simtime.FromInt64(12)))

	require.Equal(t, []OwnerTag{OwnerPrs}, d.tags, "only the t=10 PRS event lies within the advance window")
	require.Equal(t, at(12), k.Now(), "now lands on the target even though the last dispatch happened earlier")
}

func TestResetModeStillOrdersMultiplePrsEventsByDeadline(t *testing.T) {
	d := &recordingDispatcher{}
	k := NewKernel(d, 1)
	k.SetResetMode(true)

	k.Push(&Event{Deadline: at(10), Owner: Owner{Tag: OwnerPrs}})
	k.Push(&Event{Deadline: at(3), Owner: Owner{Tag: OwnerChp}})
	k.Push(&Event{Deadline: at(1), Owner: Owner{Tag: OwnerPrs}})

	require.NoError(t, k.Run())

	require.Equal(t, []OwnerTag{OwnerPrs, OwnerPrs}, d.tags)
	require.Equal(t, at(10), k.Now())
}

func TestRunDispatchesEverythingOnceResetModeIsOff(t *testing.T) {
	d := &recordingDispatcher{}
	k := NewKernel(d, 1)
	k.SetResetMode(true)

	k.Push(&Event{Deadline: at(5), Owner: Owner{Tag: OwnerChp}})
	k.Push(&Event{Deadline: at(10), Owner: Owner{Tag: OwnerPrs}})

	require.NoError(t, k.Run())
	require.Equal(t, []OwnerTag{OwnerPrs}, d.tags)

	k.SetResetMode(false)
	require.NoError(t, k.Run())

	require.Equal(t, []OwnerTag{OwnerPrs, OwnerChp}, d.tags)
	require.False(t, k.Pending())
}
