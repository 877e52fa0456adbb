// Package audio builds FFmpeg filter chains for audio mastering and runs
// them against uploaded files.
package audio

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Preset is a named EQ curve.
type Preset struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Filters     []string `json:"filters"`
}

// Presets are the built-in EQ presets keyed by name.
var Presets = map[string]Preset{
	"voice-enhancement": {
		Name:        "voice-enhancement",
		Description: "Cuts rumble and hiss, lifts presence for speech",
		Filters: []string{
			"highpass=f=80",
			"lowpass=f=12000",
			"equalizer=f=2000:width_type=h:width=500:g=3",
			"equalizer=f=5000:width_type=h:width=1000:g=2",
		},
	},
	"music-boost": {
		Name:        "music-boost",
		Description: "Fuller lows and brighter mids for music beds",
		Filters: []string{
			"equalizer=f=60:width_type=h:width=100:g=5",
			"equalizer=f=250:width_type=h:width=200:g=3",
			"equalizer=f=4000:width_type=h:width=1000:g=4",
		},
	},
	"podcast-mode": {
		Name:        "podcast-mode",
		Description: "Band-limited voice with gentle compression",
		Filters: []string{
			"highpass=f=80",
			"lowpass=f=8000",
			"equalizer=f=2000:width_type=h:width=500:g=4",
			"acompressor=threshold=-18dB:ratio=3:attack=10:release=100",
		},
	},
	"bass-boost": {
		Name:        "bass-boost",
		Description: "Strong low-end lift",
		Filters: []string{
			"equalizer=f=60:width_type=h:width=100:g=8",
			"equalizer=f=120:width_type=h:width=150:g=4",
		},
	},
	"treble-boost": {
		Name:        "treble-boost",
		Description: "Adds air and sparkle",
		Filters: []string{
			"equalizer=f=8000:width_type=h:width=2000:g=6",
			"equalizer=f=12000:width_type=h:width=3000:g=4",
		},
	},
}

// PresetList returns all presets sorted by name.
func PresetList() []Preset {
	list := make([]Preset, 0, len(Presets))
	for _, p := range Presets {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// EQ returns the filter chain for a named preset.
func EQ(name string) (string, error) {
	p, ok := Presets[name]
	if !ok {
		return "", fmt.Errorf("audio: unknown EQ preset %q", name)
	}
	return strings.Join(p.Filters, ","), nil
}

// DefaultLoudnessTarget is the integrated loudness target in LUFS.
const DefaultLoudnessTarget = -16.0

// Loudnorm returns an EBU R128 loudness normalisation filter.
func Loudnorm(target float64) string {
	return "loudnorm=I=" + num(target) + ":TP=-1.5:LRA=11"
}

// PeakNormalize returns the peak normalisation filter.
func PeakNormalize() string {
	return "volume=0dB"
}

// NoiseReduction returns an FFT denoise filter. afftdn accepts 0.01 to 97 dB.
func NoiseReduction(strength float64) string {
	if strength < 0.01 {
		strength = 0.01
	}
	if strength > 97 {
		strength = 97
	}
	return "afftdn=nr=" + num(strength)
}

// FadeIn returns a fade-in over the first seconds of audio.
func FadeIn(seconds float64) string {
	return "afade=t=in:st=0:d=" + num(seconds)
}

// FadeOut returns a fade-out ending at duration.
func FadeOut(duration, seconds float64) string {
	start := duration - seconds
	if start < 0 {
		start = 0
	}
	return "afade=t=out:st=" + num(start) + ":d=" + num(seconds)
}

// Compressor configures a ducking compressor. Threshold is in dBFS;
// Attack and Release are in milliseconds.
type Compressor struct {
	Threshold float64 `json:"threshold"`
	Ratio     float64 `json:"ratio"`
	Attack    float64 `json:"attack"`
	Release   float64 `json:"release"`
}

// DefaultDucking pulls a music bed down hard and recovers slowly.
var DefaultDucking = Compressor{Threshold: -30, Ratio: 4, Attack: 50, Release: 500}

// Filter returns the acompressor filter. Zero fields take DefaultDucking's
// values; ratio is clamped to the 1 to 20 range acompressor accepts.
func (c Compressor) Filter() string {
	if c.Threshold == 0 {
		c.Threshold = DefaultDucking.Threshold
	}
	if c.Ratio == 0 {
		c.Ratio = DefaultDucking.Ratio
	}
	if c.Ratio < 1 {
		c.Ratio = 1
	}
	if c.Ratio > 20 {
		c.Ratio = 20
	}
	if c.Attack <= 0 {
		c.Attack = DefaultDucking.Attack
	}
	if c.Release <= 0 {
		c.Release = DefaultDucking.Release
	}
	return fmt.Sprintf("acompressor=threshold=%sdB:ratio=%s:attack=%s:release=%s",
		num(c.Threshold), num(c.Ratio), num(c.Attack), num(c.Release))
}

// Normalization modes.
const (
	NormalizeLUFS = "lufs"
	NormalizePeak = "peak"
	NormalizeNone = "none"
)

// MasterOptions selects the stages of a master chain.
type MasterOptions struct {
	Preset         string      `json:"preset"`
	NoiseReduction float64     `json:"noise_reduction"` // dB; 0 disables
	Ducking        *Compressor `json:"ducking"`
	FadeIn         float64     `json:"fade_in"`  // seconds
	FadeOut        float64     `json:"fade_out"` // seconds
	Normalize      string      `json:"normalize"`
	LoudnessTarget float64     `json:"loudness_target"` // LUFS
}

// Validate checks option ranges.
func (o MasterOptions) Validate() error {
	if o.Preset != "" {
		if _, ok := Presets[o.Preset]; !ok {
			return fmt.Errorf("audio: unknown EQ preset %q", o.Preset)
		}
	}
	if o.NoiseReduction < 0 {
		return fmt.Errorf("audio: noise_reduction must not be negative")
	}
	if o.FadeIn < 0 || o.FadeOut < 0 {
		return fmt.Errorf("audio: fades must not be negative")
	}
	switch o.Normalize {
	case "", NormalizeLUFS, NormalizePeak, NormalizeNone:
	default:
		return fmt.Errorf("audio: normalize must be lufs, peak or none")
	}
	if o.LoudnessTarget != 0 && (o.LoudnessTarget < -70 || o.LoudnessTarget > -5) {
		return fmt.Errorf("audio: loudness_target must be between -70 and -5 LUFS")
	}
	return nil
}

// MasterChain joins the selected stages in processing order: denoise, EQ,
// compression, fades, then normalisation. duration is the input length in
// seconds and is only needed for a fade-out.
func MasterChain(o MasterOptions, duration float64) (string, error) {
	if err := o.Validate(); err != nil {
		return "", err
	}
	var chain []string
	if o.NoiseReduction > 0 {
		chain = append(chain, NoiseReduction(o.NoiseReduction))
	}
	if o.Preset != "" {
		eq, _ := EQ(o.Preset)
		chain = append(chain, eq)
	}
	if o.Ducking != nil {
		chain = append(chain, o.Ducking.Filter())
	}
	if o.FadeIn > 0 {
		chain = append(chain, FadeIn(o.FadeIn))
	}
	if o.FadeOut > 0 {
		if duration <= 0 {
			return "", fmt.Errorf("audio: fade-out needs the input duration")
		}
		chain = append(chain, FadeOut(duration, o.FadeOut))
	}
	switch o.Normalize {
	case "", NormalizeLUFS:
		target := o.LoudnessTarget
		if target == 0 {
			target = DefaultLoudnessTarget
		}
		chain = append(chain, Loudnorm(target))
	case NormalizePeak:
		chain = append(chain, PeakNormalize())
	}
	if len(chain) == 0 {
		return "anull", nil
	}
	return strings.Join(chain, ","), nil
}
