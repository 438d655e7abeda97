package trace

import (
	"github.com/asyncvlsi/actsim/simerr"
	"github.com/asyncvlsi/actsim/state"
)

// channelPhaseBits is wide enough to hold every channel.Phase ordinal
// (five phases, so three bits) without needing to know a channel's data
// width -- a traced channel records its rendezvous phase, not its
// payload.
const channelPhaseBits = 3

// RenderBits renders ref's current value as a VCD-style binary digit
// string: "0"/"1"/"x" for a Bool, the two's-complement-free unsigned bit
// pattern for an Int (most significant bit first), and the rendezvous
// phase ordinal in binary for a Channel.
func RenderBits(store *state.Store, ref state.Ref) (string, error) {
	switch ref.Kind {
	case state.KindBool:
		v, err := store.GetBool(ref)
		if err != nil {
			return "", err
		}
		switch v {
		case state.Zero:
			return "0", nil
		case state.One:
			return "1", nil
		default:
			return "x", nil
		}
	case state.KindInt:
		v, err := store.GetInt(ref)
		if err != nil {
			return "", err
		}
		w := v.Width()
		if w == 0 {
			return "0", nil
		}
		bits := make([]byte, w)
		for i := uint(0); i < w; i++ {
			if v.Bit(w-1-i) == 1 {
				bits[i] = '1'
			} else {
				bits[i] = '0'
			}
		}
		return string(bits), nil
	case state.KindChannel:
		fsm, err := store.Channel(ref)
		if err != nil {
			return "", err
		}
		return intBits(uint64(fsm.Phase()), channelPhaseBits), nil
	default:
		return "", simerr.New(simerr.Resolution, "trace: unknown slot kind %v", ref.Kind)
	}
}

func intBits(v uint64, width int) string {
	bits := make([]byte, width)
	for i := 0; i < width; i++ {
		shift := uint(width - 1 - i)
		if (v>>shift)&1 == 1 {
			bits[i] = '1'
		} else {
			bits[i] = '0'
		}
	}
	return string(bits)
}
