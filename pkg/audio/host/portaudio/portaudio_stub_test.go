//go:build !portaudio

package portaudio_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/netsend/pkg/audio"
	"github.com/MrWong99/netsend/pkg/audio/host/portaudio"
)

func TestHost_Unavailable(t *testing.T) {
	h := portaudio.New()
	if h.Name() != "portaudio" {
		t.Errorf("Name = %q, want portaudio", h.Name())
	}
	err := h.Run(context.Background(), audio.Format{SampleRate: 48000, VectorSize: 64, Channels: 1},
		func(audio.Format) error { return nil },
		func(_, _ [][]float64) {})
	if !errors.Is(err, portaudio.ErrUnavailable) {
		t.Errorf("Run = %v, want ErrUnavailable", err)
	}
}
