package commands

import (
	"github.com/SpatiumPortae/trickle/internal/logger"
	"go.uber.org/zap"
)

// clientLogFile is where the client writes its logs when verbose.
const clientLogFile = ".trickle-client.log"

// clientLogger logs to a file in the current directory when verbose and discards
// everything otherwise, keeping the terminal for the progress bar and the exit line.
func clientLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	return logger.New(logger.Options{Verbose: true, OutputPaths: []string{clientLogFile}})
}
