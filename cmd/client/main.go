package main

import (
	"fmt"
	"os"

	"github.com/SpatiumPortae/trickle/cmd/commands"
	"github.com/SpatiumPortae/trickle/internal/exitcode"
	"github.com/SpatiumPortae/trickle/internal/semver"
)

func main() {
	if err := commands.Client(semver.Current(), os.Args[1:]).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, exitcode.Message(err))
		os.Exit(exitcode.Of(err))
	}
}
