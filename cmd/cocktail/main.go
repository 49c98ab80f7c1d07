// Command cocktail runs the auditory attention pipeline over recorded
// audio and manages the persisted voiceprint profiles.
//
// Usage:
//
//	cocktail [flags] <command> [args]
//
// Commands:
//
//	run       - Process a PCM16 or WAV recording frame by frame
//	profiles  - List, inspect, designate or clear stored profiles
//	config    - Print or initialize the pipeline configuration
//
// Configuration:
//
//	The CLI reads ~/.cocktail/config.yaml when present and stores
//	profiles in ~/.cocktail/profiles (BadgerDB).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/haivivi/cocktail/cmd/cocktail/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := commands.Execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
