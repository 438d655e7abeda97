package watch

import (
	"github.com/asyncvlsi/actsim/simerr"
	"github.com/asyncvlsi/actsim/state"
)

// renderValue stringifies ref's current value the way the `get`/`mget`
// command surface does: Tern for a Bool, decimal for an Int, FSM phase
// name for a Channel.
func renderValue(store *state.Store, ref state.Ref) (string, error) {
	switch ref.Kind {
	case state.KindBool:
		v, err := store.GetBool(ref)
		if err != nil {
			return "", err
		}
		return v.String(), nil
	case state.KindInt:
		v, err := store.GetInt(ref)
		if err != nil {
			return "", err
		}
		return v.String(), nil
	case state.KindChannel:
		fsm, err := store.Channel(ref)
		if err != nil {
			return "", err
		}
		return fsm.Phase().String(), nil
	default:
		return "", simerr.New(simerr.Resolution, "watch: unknown slot kind %v", ref.Kind)
	}
}
