package kernel

import (
	"math"

	"github.com/dsp-station/blockvm/engine/context"
	"github.com/dsp-station/blockvm/engine/opcode"
	"github.com/dsp-station/blockvm/engine/statepool"
)

// Envelope kernels: gate input (0) crossing <=0 -> >0 triggers attack;
// for ADSR, crossing >0 -> <=0 triggers release. AR ignores the falling
// edge and enters release as soon as its attack completes. Stage times
// are audio-rate inputs in seconds (§4.6 Envelopes).

func envRateCoeff(seconds, sampleRate float64) float64 {
	if seconds <= 0 {
		return 1.0
	}
	samples := seconds * sampleRate
	if samples < 1 {
		samples = 1
	}
	return 1.0 - math.Exp(-1.0/samples)
}

// kEnvADSR implements a four-stage attack/decay/sustain/release envelope.
// Inputs: 0=gate, 1=attack(s), 2=decay(s), 3=sustain(0..1), 4=release(s).
func kEnvADSR(ctx *context.Context, ins *opcode.Instruction) {
	gate, atk, dec, sus, rel := in(ctx, ins, 0), in(ctx, ins, 1), in(ctx, ins, 2), in(ctx, ins, 3), in(ctx, ins, 4)
	o := out(ctx, ins)
	st, _ := ctx.States.GetOrCreate(ins.StateID, statepool.KindADSR, nil)

	for i := range o {
		g := gate[i]
		if g > 0 && st.PrevGate <= 0 {
			st.EnvPhase = statepool.EnvAttack
		} else if g <= 0 && st.PrevGate > 0 {
			st.EnvPhase = statepool.EnvRelease
		}
		st.PrevGate = g

		switch st.EnvPhase {
		case statepool.EnvAttack:
			coeff := envRateCoeff(float64(atk[i]), ctx.SampleRate)
			st.EnvValue += (1.0 - st.EnvValue) * coeff
			if st.EnvValue >= 0.9995 {
				st.EnvValue = 1.0
				st.EnvPhase = statepool.EnvDecay
			}
		case statepool.EnvDecay:
			target := clampf(float64(sus[i]), 0, 1)
			coeff := envRateCoeff(float64(dec[i]), ctx.SampleRate)
			st.EnvValue += (target - st.EnvValue) * coeff
			if math.Abs(st.EnvValue-target) < 1e-4 {
				st.EnvValue = target
				st.EnvPhase = statepool.EnvSustain
			}
		case statepool.EnvSustain:
			st.EnvValue = clampf(float64(sus[i]), 0, 1)
		case statepool.EnvRelease:
			coeff := envRateCoeff(float64(rel[i]), ctx.SampleRate)
			st.EnvValue += (0 - st.EnvValue) * coeff
			if st.EnvValue < 1e-4 {
				st.EnvValue = 0
				st.EnvPhase = statepool.EnvIdle
			}
		default:
			st.EnvValue = 0
		}
		o[i] = float32(st.EnvValue)
	}
}

// kEnvAR implements a two-stage attack/release envelope (no sustain
// plateau; decays to zero immediately after attack completes).
// Inputs: 0=gate, 1=attack(s), 2=release(s).
func kEnvAR(ctx *context.Context, ins *opcode.Instruction) {
	gate, atk, rel := in(ctx, ins, 0), in(ctx, ins, 1), in(ctx, ins, 2)
	o := out(ctx, ins)
	st, _ := ctx.States.GetOrCreate(ins.StateID, statepool.KindAR, nil)

	for i := range o {
		g := gate[i]
		if g > 0 && st.PrevGate <= 0 {
			st.EnvPhase = statepool.EnvAttack
		}
		st.PrevGate = g

		switch st.EnvPhase {
		case statepool.EnvAttack:
			coeff := envRateCoeff(float64(atk[i]), ctx.SampleRate)
			st.EnvValue += (1.0 - st.EnvValue) * coeff
			if st.EnvValue >= 0.9995 {
				st.EnvValue = 1.0
				st.EnvPhase = statepool.EnvRelease
			}
		case statepool.EnvRelease:
			coeff := envRateCoeff(float64(rel[i]), ctx.SampleRate)
			st.EnvValue += (0 - st.EnvValue) * coeff
			if st.EnvValue < 1e-4 {
				st.EnvValue = 0
				st.EnvPhase = statepool.EnvIdle
			}
		default:
			st.EnvValue = 0
		}
		o[i] = float32(st.EnvValue)
	}
}

// kEnvFollower is a one-pole peak follower with independent attack and
// release time constants (0=signal, 1=attack(s), 2=release(s)).
func kEnvFollower(ctx *context.Context, ins *opcode.Instruction) {
	sig, atk, rel := in(ctx, ins, 0), in(ctx, ins, 1), in(ctx, ins, 2)
	o := out(ctx, ins)
	st, _ := ctx.States.GetOrCreate(ins.StateID, statepool.KindEnvFollower, nil)

	for i := range o {
		rect := math.Abs(float64(sig[i]))
		var coeff float64
		if rect > st.EnvValue {
			coeff = envRateCoeff(float64(atk[i]), ctx.SampleRate)
		} else {
			coeff = envRateCoeff(float64(rel[i]), ctx.SampleRate)
		}
		st.EnvValue += (rect - st.EnvValue) * coeff
		o[i] = float32(st.EnvValue)
	}
}
