package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/facemotion/internal/cli"
	"github.com/banshee-data/facemotion/internal/fsutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, fsutil.OSFileSystem{}, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		stop()
		os.Exit(1)
	}
}
