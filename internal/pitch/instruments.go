package pitch

import (
	"fmt"
	"strings"
)

// Instrument is a named detection range.
type Instrument struct {
	Name    string
	Label   string
	MinFreq float64
	MaxFreq float64
}

// DefaultInstrument is used when no instrument is configured.
const DefaultInstrument = "chromatic"

var instruments = []Instrument{
	{Name: "chromatic", Label: "Chromatic", MinFreq: 50, MaxFreq: 2000},
	{Name: "guitar", Label: "Guitar", MinFreq: 70, MaxFreq: 1500},
	{Name: "bass", Label: "Bass", MinFreq: 40, MaxFreq: 400},
	{Name: "ukulele", Label: "Ukulele", MinFreq: 250, MaxFreq: 1000},
	{Name: "violin", Label: "Violin", MinFreq: 180, MaxFreq: 3500},
	{Name: "viola", Label: "Viola", MinFreq: 120, MaxFreq: 1500},
	{Name: "cello", Label: "Cello", MinFreq: 60, MaxFreq: 1000},
	{Name: "voice", Label: "Voice", MinFreq: 80, MaxFreq: 1100},
	{Name: "flute", Label: "Flute", MinFreq: 240, MaxFreq: 2500},
	{Name: "clarinet", Label: "Clarinet", MinFreq: 140, MaxFreq: 1600},
	{Name: "saxophone", Label: "Saxophone", MinFreq: 100, MaxFreq: 1000},
	{Name: "trumpet", Label: "Trumpet", MinFreq: 160, MaxFreq: 1000},
	{Name: "trombone", Label: "Trombone", MinFreq: 70, MaxFreq: 600},
}

// Instruments returns the presets in display order.
func Instruments() []Instrument {
	out := make([]Instrument, len(instruments))
	copy(out, instruments)
	return out
}

// LookupInstrument finds a preset by name, ignoring case.
func LookupInstrument(name string) (Instrument, error) {
	if name == "" {
		name = DefaultInstrument
	}
	for _, in := range instruments {
		if strings.EqualFold(in.Name, name) {
			return in, nil
		}
	}
	return Instrument{}, fmt.Errorf("%w: %q", ErrUnknownInstrument, name)
}
