package kernel

import (
	"github.com/dsp-station/blockvm/engine/context"
	"github.com/dsp-station/blockvm/engine/opcode"
	"github.com/dsp-station/blockvm/engine/statepool"
)

// Sampler kernels drive a fixed 16-voice round-robin pool per instance
// (§4.6 Samplers): a rising edge on the trigger input steals the next
// voice in sequence and starts it from the beginning of the referenced
// sample. Inputs: 0=trigger, 1=sample ID (constant per block), 2=playback
// rate multiplier, 3=gain.

func samplerVoicePool(ctx *context.Context, ins *opcode.Instruction) *statepool.DSPState {
	st, _ := ctx.States.GetOrCreate(ins.StateID, statepool.KindSamplerVoices, nil)
	return st
}

func triggerVoice(st *statepool.DSPState, sampleID int32, rate float64, gain float32, looping bool) {
	v := &st.Voices[st.NextVoir]
	v.Active = true
	v.SampleID = sampleID
	v.Cursor = 0
	v.Rate = rate
	v.Gain = gain
	v.LoopCursor = looping
	st.NextVoir = (st.NextVoir + 1) % len(st.Voices)
}

func mixVoices(ctx *context.Context, st *statepool.DSPState, o []float32) {
	if ctx.SampleBank == nil {
		zeroOut(o)
		return
	}
	zeroOut(o)
	for vi := range st.Voices {
		v := &st.Voices[vi]
		if !v.Active {
			continue
		}
		frames, channels, srcRate, ok := ctx.SampleBank.Frames(v.SampleID)
		if !ok || channels <= 0 || len(frames) == 0 {
			v.Active = false
			continue
		}
		stepPerSample := v.Rate * (srcRate / ctx.SampleRate)
		frameCount := len(frames) / channels
		for i := range o {
			if !v.Active {
				break
			}
			idx := int(v.Cursor)
			if idx >= frameCount {
				if v.LoopCursor && frameCount > 0 {
					v.Cursor -= float64(frameCount)
					idx = int(v.Cursor)
				} else {
					v.Active = false
					break
				}
			}
			var sample float32
			for c := 0; c < channels; c++ {
				sample += frames[idx*channels+c]
			}
			sample /= float32(channels)
			o[i] += sample * v.Gain
			v.Cursor += stepPerSample
		}
	}
}

// kSamplePlay plays each triggered voice once and stops at end-of-sample.
func kSamplePlay(ctx *context.Context, ins *opcode.Instruction) {
	trig, idBuf, rateBuf, gainBuf := in(ctx, ins, 0), in(ctx, ins, 1), in(ctx, ins, 2), in(ctx, ins, 3)
	o := out(ctx, ins)
	st := samplerVoicePool(ctx, ins)

	for i := range o {
		t := trig[i]
		if t > 0 && st.PrevGate <= 0 {
			triggerVoice(st, int32(idBuf[i]), float64(rateBuf[i]), gainBuf[i], false)
		}
		st.PrevGate = t
	}
	mixVoices(ctx, st, o)
}

// kSamplePlayLoop is identical to SAMPLE_PLAY except triggered voices
// wrap to the start of the sample at end-of-data instead of stopping.
func kSamplePlayLoop(ctx *context.Context, ins *opcode.Instruction) {
	trig, idBuf, rateBuf, gainBuf := in(ctx, ins, 0), in(ctx, ins, 1), in(ctx, ins, 2), in(ctx, ins, 3)
	o := out(ctx, ins)
	st := samplerVoicePool(ctx, ins)

	for i := range o {
		t := trig[i]
		if t > 0 && st.PrevGate <= 0 {
			triggerVoice(st, int32(idBuf[i]), float64(rateBuf[i]), gainBuf[i], true)
		}
		st.PrevGate = t
	}
	mixVoices(ctx, st, o)
}
