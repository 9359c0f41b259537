// Command enginectl is a host harness for the block-rate synthesis VM
// (SPEC_FULL.md §C). It loads a raw bytecode file produced by any
// external assembler (the source-language front-end is out of scope,
// spec.md §1), drives process_block in a tight loop rendering to a WAV
// file, and reports swap/crossfade statistics — the same
// role cmd/direwolf plays for the teacher's full modem stack, offered
// here with the same flag-per-concern pflag style as
// cmd/direwolf/main.go.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/dsp-station/blockvm/engine"
	"github.com/dsp-station/blockvm/internal/swaplog"
	"github.com/dsp-station/blockvm/internal/wav"
)

func main() {
	var (
		configFile      = pflag.StringP("config", "c", "", "YAML config file (sample_rate, bpm, crossfade_blocks, params).")
		sampleRateFlag  = pflag.Float64P("sample-rate", "r", 0, "Override sample rate from config/default.")
		crossfadeBlocks = pflag.IntP("crossfade-blocks", "x", 0, "Override crossfade window length in blocks.")
		bytecodeFile    = pflag.StringP("bytecode", "p", "", "Raw bytecode file to load as the initial program (required).")
		swapBytecode    = pflag.String("swap-bytecode", "", "Optional second bytecode file to hot-swap in mid-render, demonstrating a crossfade.")
		swapAtBlock     = pflag.Int("swap-at", -1, "Block index at which to call LoadProgram with --swap-bytecode.")
		numBlocks       = pflag.IntP("blocks", "n", 100, "Number of blocks to render.")
		seekBeats       = pflag.Float64P("seek", "s", 0, "Seek to this beat position before rendering (resets history-dependent state).")
		outFile         = pflag.StringP("out", "o", "out.wav", "WAV output path.")
		logDir          = pflag.StringP("log-dir", "l", "", "Directory for the swap/crossfade CSV event trail. Empty disables it.")
	)

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "enginectl - offline host harness for the block-rate synthesis VM.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: enginectl -p program.bin [options]\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "enginectl"})

	if *bytecodeFile == "" {
		logger.Error("missing required -p/--bytecode")
		pflag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		logger.Fatal("loading config", "err", err)
	}

	vmCfg := engine.Config{}
	if cfg.SampleRate > 0 {
		vmCfg.SampleRate = cfg.SampleRate
	}
	if cfg.BPM > 0 {
		vmCfg.BPM = cfg.BPM
	}
	if cfg.CrossfadeBlocks > 0 {
		vmCfg.CrossfadeBlocks = cfg.CrossfadeBlocks
	}
	if *sampleRateFlag > 0 {
		vmCfg.SampleRate = *sampleRateFlag
	}
	if *crossfadeBlocks > 0 {
		vmCfg.CrossfadeBlocks = *crossfadeBlocks
	}

	vm := engine.New(vmCfg)
	if cfg.PreRollBlocks > 0 {
		vm.SetPreRollBlocks(cfg.PreRollBlocks)
	}
	for name, p := range cfg.Params {
		if err := vm.SetParam(name, p.Value, p.SlewMs); err != nil {
			logger.Warn("setting config param", "name", name, "err", err)
		}
	}

	var trail *swaplog.Log
	if *logDir != "" {
		trail, err = swaplog.Open(*logDir, "")
		if err != nil {
			logger.Fatal("opening swap log", "err", err)
		}
		defer trail.Close()
	}

	bytecode, err := os.ReadFile(*bytecodeFile)
	if err != nil {
		logger.Fatal("reading bytecode", "path", *bytecodeFile, "err", err)
	}
	if !vm.LoadProgramImmediate(bytecode) {
		logger.Fatal("rejected initial program", "path", *bytecodeFile)
	}
	if trail != nil {
		trail.ProgramLoaded("immediate", len(bytecode)/20)
	}

	if *seekBeats > 0 {
		vm.Seek(*seekBeats, true)
	}

	var swapBytes []byte
	if *swapBytecode != "" {
		swapBytes, err = os.ReadFile(*swapBytecode)
		if err != nil {
			logger.Fatal("reading swap bytecode", "path", *swapBytecode, "err", err)
		}
	}

	out, err := os.Create(*outFile)
	if err != nil {
		logger.Fatal("creating output", "path", *outFile, "err", err)
	}
	defer out.Close()

	sink, err := wav.New(out, int(vm.SampleRate()))
	if err != nil {
		logger.Fatal("writing wav header", "err", err)
	}

	blockSize := vm.BlockSize()
	left := make([]float32, blockSize)
	right := make([]float32, blockSize)

	lastSwapCount := vm.SwapCount()
	for i := 0; i < *numBlocks; i++ {
		if swapBytes != nil && i == *swapAtBlock {
			result := vm.LoadProgram(swapBytes)
			logger.Info("hot-swap requested", "block", i, "result", result.String())
			if trail != nil {
				trail.ProgramLoaded(result.String(), len(swapBytes)/20)
			}
		}

		vm.ProcessBlock(left, right)
		if err := sink.WriteBlock(left, right); err != nil {
			logger.Fatal("writing block", "err", err)
		}

		if sc := vm.SwapCount(); sc != lastSwapCount {
			lastSwapCount = sc
			if trail != nil {
				trail.SwapCompleted(sc, vm.IsCrossfading())
			}
		}
	}

	if err := sink.Close(); err != nil {
		logger.Fatal("finalizing wav", "err", err)
	}

	logger.Info("render complete",
		"blocks", *numBlocks,
		"swap_count", vm.SwapCount(),
		"beat_position", vm.CurrentBeatPosition(),
		"sample_position", vm.CurrentSamplePosition(),
		"out", *outFile,
	)
}
