//go:build !noportaudio

package main

import (
	"github.com/0xlemi/tunesuite/internal/audio"
	"github.com/0xlemi/tunesuite/internal/audio/portaudio"
)

func newMicrophone(sampleRate int, gain float32, framer *audio.Framer) (audio.Capturer, error) {
	return portaudio.New(portaudio.Config{
		SampleRate: sampleRate,
		Channels:   1,
		Gain:       gain,
	}, framer)
}
