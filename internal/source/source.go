// Package source provides upstream scores adapters that fetch one game's
// normalized snapshot on demand. Adapters are constructed per sport and
// injected explicitly into the pipeline; there is no global adapter
// registry.
package source

import (
	"context"
	"errors"

	"github.com/ankur-ag/sports-notifications/internal/game"
)

// ErrUnavailable means the upstream fetch failed this cycle. The caller
// skips detection and retains the stored baseline; nothing is lost since
// the next cycle compares against the same previous snapshot.
var ErrUnavailable = errors.New("scores source unavailable")

// Adapter fetches the current snapshot for a game. Terminal lifecycle
// states (final, postponed, cancelled) come back as ordinary snapshots,
// not errors.
type Adapter interface {
	Sport() string
	FetchSnapshot(ctx context.Context, externalID string) (*game.Snapshot, error)
}
