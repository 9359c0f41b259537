package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML-loaded startup configuration. Sample rate, BPM
// and crossfade length feed engine.Config at construction; pre-roll and
// params are applied afterwards through SetPreRollBlocks and SetParam.
// It deliberately
// covers a much smaller surface than the teacher's direwolf.conf (audio
// device tables, modem profiles, digipeater rules, ...) since this
// module's host-facing config surface is just engine tuning plus initial
// parameter values (SPEC_FULL.md §A "Configuration").
type fileConfig struct {
	SampleRate      float64            `yaml:"sample_rate"`
	BPM             float64            `yaml:"bpm"`
	CrossfadeBlocks int                `yaml:"crossfade_blocks"`
	PreRollBlocks   int                `yaml:"preroll_blocks"`
	Params          map[string]paramCfg `yaml:"params"`
}

type paramCfg struct {
	Value  float64 `yaml:"value"`
	SlewMs float64 `yaml:"slew_ms"`
}

func loadConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
