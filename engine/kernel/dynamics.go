package kernel

import (
	"math"

	"github.com/dsp-station/blockvm/engine/context"
	"github.com/dsp-station/blockvm/engine/opcode"
	"github.com/dsp-station/blockvm/engine/statepool"
)

func dbToLinear(db float64) float64 { return math.Pow(10, db/20.0) }
func linearToDb(lin float64) float64 {
	if lin < 1e-9 {
		lin = 1e-9
	}
	return 20.0 * math.Log10(lin)
}

// kCompressor is a feed-forward RMS-free peak compressor with
// independent attack/release smoothing of the gain-reduction envelope.
// Inputs: 0=signal, 1=threshold(dB), 2=ratio(>=1), 3=attack(s), 4=release(s).
func kCompressor(ctx *context.Context, ins *opcode.Instruction) {
	sig, thresh, ratio, atk, rel := in(ctx, ins, 0), in(ctx, ins, 1), in(ctx, ins, 2), in(ctx, ins, 3), in(ctx, ins, 4)
	o := out(ctx, ins)
	st, _ := ctx.States.GetOrCreate(ins.StateID, statepool.KindCompressor, nil)

	for i := range o {
		level := math.Abs(float64(sig[i]))
		levelDb := linearToDb(level)
		th := float64(thresh[i])
		r := float64(ratio[i])
		if r < 1 {
			r = 1
		}

		var targetReductionDb float64
		if levelDb > th {
			targetReductionDb = (levelDb - th) * (1 - 1/r)
		}

		var coeff float64
		if targetReductionDb > st.GainReduction {
			coeff = envRateCoeff(float64(atk[i]), ctx.SampleRate)
		} else {
			coeff = envRateCoeff(float64(rel[i]), ctx.SampleRate)
		}
		st.GainReduction += (targetReductionDb - st.GainReduction) * coeff

		gain := dbToLinear(-st.GainReduction)
		o[i] = float32(float64(sig[i]) * gain)
	}
}

// kLimiter is a compressor with an implicit infinite ratio above
// threshold and a fast fixed attack, for brickwall-style peak control.
// Inputs: 0=signal, 1=ceiling(dB), 2=release(s).
func kLimiter(ctx *context.Context, ins *opcode.Instruction) {
	sig, ceilBuf, rel := in(ctx, ins, 0), in(ctx, ins, 1), in(ctx, ins, 2)
	o := out(ctx, ins)
	st, _ := ctx.States.GetOrCreate(ins.StateID, statepool.KindCompressor, nil)

	const fastAttackSeconds = 0.001
	for i := range o {
		level := math.Abs(float64(sig[i]))
		levelDb := linearToDb(level)
		ceiling := float64(ceilBuf[i])

		var targetReductionDb float64
		if levelDb > ceiling {
			targetReductionDb = levelDb - ceiling
		}

		var coeff float64
		if targetReductionDb > st.GainReduction {
			coeff = envRateCoeff(fastAttackSeconds, ctx.SampleRate)
		} else {
			coeff = envRateCoeff(float64(rel[i]), ctx.SampleRate)
		}
		st.GainReduction += (targetReductionDb - st.GainReduction) * coeff

		gain := dbToLinear(-st.GainReduction)
		o[i] = float32(float64(sig[i]) * gain)
	}
}

// kGate is a noise gate with hysteresis between its open and close
// thresholds to avoid chattering near the boundary. Inputs: 0=signal,
// 1=threshold(dB), 2=attack(s), 3=release(s).
func kGate(ctx *context.Context, ins *opcode.Instruction) {
	sig, thresh, atk, rel := in(ctx, ins, 0), in(ctx, ins, 1), in(ctx, ins, 2), in(ctx, ins, 3)
	o := out(ctx, ins)
	st, _ := ctx.States.GetOrCreate(ins.StateID, statepool.KindGate, nil)

	const hysteresisDb = 3.0
	for i := range o {
		level := math.Abs(float64(sig[i]))
		levelDb := linearToDb(level)
		th := float64(thresh[i])

		if st.GateOpen {
			if levelDb < th-hysteresisDb {
				st.GateOpen = false
			}
		} else {
			if levelDb > th {
				st.GateOpen = true
			}
		}

		target := 0.0
		if st.GateOpen {
			target = 1.0
		}
		var coeff float64
		if target > st.EnvValue {
			coeff = envRateCoeff(float64(atk[i]), ctx.SampleRate)
		} else {
			coeff = envRateCoeff(float64(rel[i]), ctx.SampleRate)
		}
		st.EnvValue += (target - st.EnvValue) * coeff

		o[i] = float32(float64(sig[i]) * st.EnvValue)
	}
}
