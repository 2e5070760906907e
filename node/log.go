package node

import (
	"os"

	"github.com/decred/slog"
)

var logBackend = slog.NewBackend(os.Stdout)

// log is the supervisor's structured logger, in the same
// Backend-per-process/Logger-per-subsystem shape the rest of the decred
// toolchain uses.
var log = logBackend.Logger("NODE")

func init() {
	log.SetLevel(slog.LevelInfo)
}
