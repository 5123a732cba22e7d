// Command melody transcribes monophonic melodies from frame-level features
// into MIDI notes and serves the transcriber over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ieee0824/melody-go/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}
