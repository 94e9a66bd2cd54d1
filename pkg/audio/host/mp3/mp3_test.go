package mp3_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrWong99/netsend/pkg/audio"
	"github.com/MrWong99/netsend/pkg/audio/host/mp3"
)

func TestHost_MissingFile(t *testing.T) {
	h := mp3.New(filepath.Join(t.TempDir(), "missing.mp3"))
	if h.Name() != "mp3" {
		t.Errorf("Name = %q, want mp3", h.Name())
	}

	err := h.Run(context.Background(), audio.Format{SampleRate: 48000, VectorSize: 64, Channels: 1},
		func(audio.Format) error { t.Error("prepare called for a missing file"); return nil },
		func(_, _ [][]float64) { t.Error("render called for a missing file") })
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Run = %v, want not-exist error", err)
	}
}

func TestHost_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.mp3")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	err := mp3.New(path).Run(context.Background(), audio.Format{SampleRate: 48000, VectorSize: 64, Channels: 1},
		func(audio.Format) error { return nil },
		func(_, _ [][]float64) { t.Error("render called for an empty file") })
	if err == nil {
		t.Fatal("Run accepted an empty file")
	}
}
