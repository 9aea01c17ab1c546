// Command fmthost is the host process: it speaks the Content-Length framed
// JSON protocol on stdin/stdout and formats whatever source text it is
// asked to via the wired formatter.Formatter.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/codeformat/fmtbridge/internal/config"
	"github.com/codeformat/fmtbridge/internal/formatter"
	"github.com/codeformat/fmtbridge/internal/host"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	versionFlag := flag.Bool("version", false, "print the host version")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("fmthost -- version %s\n", version)
		return 0
	}

	cfg := config.LoadHost()
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()

	rt := host.New(os.Stdin, os.Stdout, formatter.PassThrough{}, log, cfg)
	return rt.Run(ctx)
}
