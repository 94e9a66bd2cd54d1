// Package host holds the pieces shared by the [audio.Host] implementations in
// its sub-packages.
package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrWong99/netsend/pkg/audio"
)

// ErrExhausted is returned by a [FillFunc] when its source has no more blocks.
var ErrExhausted = errors.New("host: source exhausted")

// FillFunc writes the next input block into in. Returning [ErrExhausted]
// ends the run cleanly.
type FillFunc func(in [][]float64) error

// RunClock drives render at the wall-clock cadence of f until ctx is
// cancelled, fill reports exhaustion, or maxBlocks blocks were rendered
// (maxBlocks <= 0 means unlimited). The input and output matrices are
// allocated once and reused for every block.
//
// Cancellation is not an error: RunClock returns nil when ctx is done.
func RunClock(ctx context.Context, f audio.Format, maxBlocks int, fill FillFunc, render audio.RenderFunc) error {
	period := f.BlockDuration()
	if period <= 0 {
		return fmt.Errorf("host: invalid format %s", audio.FormatString(f))
	}

	in, out := f.NewBlocks(), f.NewBlocks()
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for n := 0; maxBlocks <= 0 || n < maxBlocks; n++ {
		if ctx.Err() != nil {
			return nil
		}
		if err := fill(in); err != nil {
			if errors.Is(err, ErrExhausted) {
				return nil
			}
			return err
		}
		render(in, out)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}
