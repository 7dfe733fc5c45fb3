// Package config provides configuration and CLI argument parsing for the
// equalizer engine demo binary.
package config

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jurkovic-nikola/OpenLinkHub/internal/engine"
)

// FileConfig is the subset of engine.Config a YAML config file can
// override; flags take precedence over file values, file values take
// precedence over engine.DefaultConfig.
type FileConfig struct {
	Rate              uint32  `yaml:"rate"`
	PollMS            uint32  `yaml:"poll_ms"`
	RingFrames        uint32  `yaml:"ring_frames"`
	Latency           string  `yaml:"latency"`
	MaxLatency        string  `yaml:"max_latency"`
	SelfName          string  `yaml:"self_name"`
	PreferredSinkName string  `yaml:"preferred_sink_name"`
	PreferredSinkDesc string  `yaml:"preferred_sink_desc"`
	MasterGainDB      float64 `yaml:"master_gain_db"`
	BandGainsDB       []float64 `yaml:"band_gains_db"`
}

// Flags holds the parsed CLI flags plus the derived engine configuration.
type Flags struct {
	ConfigFile string
	Verbose    bool
	Engine     engine.Config
	MasterGain float64
	BandGains  []float64
}

// ParseFlags parses os.Args, optionally layering a YAML config file
// underneath, and returns the resulting engine configuration.
func ParseFlags() (*Flags, error) {
	def := engine.DefaultConfig()

	configFile := flag.String("config", "", "path to an optional YAML config file")
	rate := flag.Uint("rate", uint(def.Rate), "sample rate in Hz (8000-192000)")
	pollMS := flag.Uint("poll-ms", uint(def.PollMS), "event loop poll budget in ms (1-50)")
	ringFrames := flag.Uint("ring-frames", uint(def.RingFrames), "ring buffer capacity in frames (clamped 128-8192)")
	latency := flag.String("latency", def.Latency, "latency hint passed to the audio graph runtime")
	maxLatency := flag.String("max-latency", def.MaxLatency, "max-latency hint passed to the audio graph runtime")
	selfName := flag.String("self-name", "", "advertised capture-node name")
	preferredSinkName := flag.String("preferred-sink-name", "", "sink name to target at startup")
	preferredSinkDesc := flag.String("preferred-sink-desc", "", "sink description to target at startup")
	masterGain := flag.Float64("master-gain-db", 0, "initial master gain in dB")
	verbose := flag.Bool("verbose", false, "enable verbose logging")
	flag.Parse()

	cfg := def
	var bandGains []float64

	if *configFile != "" {
		fc, err := loadFile(*configFile)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if fc.Rate != 0 {
			cfg.Rate = fc.Rate
		}
		if fc.PollMS != 0 {
			cfg.PollMS = fc.PollMS
		}
		if fc.RingFrames != 0 {
			cfg.RingFrames = fc.RingFrames
		}
		if fc.Latency != "" {
			cfg.Latency = fc.Latency
		}
		if fc.MaxLatency != "" {
			cfg.MaxLatency = fc.MaxLatency
		}
		if fc.SelfName != "" {
			cfg.SelfName = fc.SelfName
		}
		if fc.PreferredSinkName != "" {
			cfg.PreferredSinkName = fc.PreferredSinkName
		}
		if fc.PreferredSinkDesc != "" {
			cfg.PreferredSinkDesc = fc.PreferredSinkDesc
		}
		if *masterGain == 0 {
			*masterGain = fc.MasterGainDB
		}
		bandGains = fc.BandGainsDB
	}

	if *rate != uint(def.Rate) {
		cfg.Rate = uint32(*rate)
	}
	if *pollMS != uint(def.PollMS) {
		cfg.PollMS = uint32(*pollMS)
	}
	if *ringFrames != uint(def.RingFrames) {
		cfg.RingFrames = uint32(*ringFrames)
	}
	if *latency != def.Latency {
		cfg.Latency = *latency
	}
	if *maxLatency != def.MaxLatency {
		cfg.MaxLatency = *maxLatency
	}
	if *selfName != "" {
		cfg.SelfName = *selfName
	}
	if *preferredSinkName != "" {
		cfg.PreferredSinkName = *preferredSinkName
	}
	if *preferredSinkDesc != "" {
		cfg.PreferredSinkDesc = *preferredSinkDesc
	}
	cfg.Channels = def.Channels

	return &Flags{
		ConfigFile: *configFile,
		Verbose:    *verbose,
		Engine:     cfg,
		MasterGain: *masterGain,
		BandGains:  bandGains,
	}, nil
}

func loadFile(path string) (FileConfig, error) {
	var fc FileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parsing %s: %w", path, err)
	}
	return fc, nil
}
