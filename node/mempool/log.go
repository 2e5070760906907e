package mempool

import (
	"os"

	"github.com/decred/slog"
)

var logBackend = slog.NewBackend(os.Stdout)

// log is the pool's structured logger, in the same
// Backend-per-process/Logger-per-subsystem shape the rest of the decred
// toolchain uses.
var log = logBackend.Logger("MPOL")

func init() {
	log.SetLevel(slog.LevelInfo)
}
