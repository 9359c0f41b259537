// Command enginedemo opens a real PortAudio output stream and drives the
// VM live, one process_block call per audio callback (SPEC_FULL.md §A
// "gordonklaus/portaudio ... demonstrates the host integration the core
// deliberately excludes, without pulling PortAudio into the core's
// import graph"). It is the live counterpart to cmd/enginectl's offline
// WAV render, playing the role the teacher's audio.go device layer plays
// for the soundmodem.
package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"
	"github.com/spf13/pflag"

	"github.com/dsp-station/blockvm/engine"
)

func main() {
	var (
		bytecodeFile = pflag.StringP("bytecode", "p", "", "Raw bytecode file to load as the initial program (required).")
		sampleRate   = pflag.Float64P("sample-rate", "r", engine.DefaultSampleRate, "Output sample rate.")
		bpm          = pflag.Float64P("bpm", "t", engine.DefaultBPM, "Tempo for beat/bar-driven opcodes.")
	)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "enginedemo - live PortAudio playback of the block-rate synthesis VM.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: enginedemo -p program.bin [options]\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "enginedemo"})

	if *bytecodeFile == "" {
		logger.Error("missing required -p/--bytecode")
		pflag.Usage()
		os.Exit(2)
	}

	bytecode, err := os.ReadFile(*bytecodeFile)
	if err != nil {
		logger.Fatal("reading bytecode", "path", *bytecodeFile, "err", err)
	}

	vm := engine.New(engine.Config{
		SampleRate: *sampleRate,
		BPM:        *bpm,
	})
	if !vm.LoadProgramImmediate(bytecode) {
		logger.Fatal("rejected initial program", "path", *bytecodeFile)
	}

	if err := portaudio.Initialize(); err != nil {
		logger.Fatal("initializing PortAudio", "err", err)
	}
	defer portaudio.Terminate()

	blockSize := vm.BlockSize()

	// callback receives non-interleaved per-channel buffers
	// (out[0]=left, out[1]=right), matching the VM's own stereo output
	// pointer convention (spec.md §4.5.1) exactly, so no interleave step
	// is needed between process_block and the audio device.
	callback := func(out [][]float32) {
		vm.ProcessBlock(out[0], out[1])
	}

	stream, err := portaudio.OpenDefaultStream(0, 2, *sampleRate, blockSize, callback)
	if err != nil {
		logger.Fatal("opening output stream", "err", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		logger.Fatal("starting stream", "err", err)
	}
	defer stream.Stop()

	logger.Info("playing", "bytecode", *bytecodeFile, "sample_rate", *sampleRate, "block_size", blockSize)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	<-sigc

	logger.Info("stopping", "swap_count", vm.SwapCount())
}
