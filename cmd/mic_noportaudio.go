//go:build noportaudio

package main

import (
	"errors"

	"github.com/0xlemi/tunesuite/internal/audio"
)

var errNoMicrophone = errors.New("live input not available: built with the noportaudio tag")

func newMicrophone(int, float32, *audio.Framer) (audio.Capturer, error) {
	return nil, errNoMicrophone
}
