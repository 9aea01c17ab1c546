// Command fmtsmoketest is the postinstall acceptance gate (spec.md §6): it
// spawns a host binary, drives it through the real protocol — initialize,
// then shutdown — with the timeouts a production client would use, and
// fails loudly if anything, including a recoverable (not just fatal) error
// notification, goes wrong before shutdown completes.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/tidwall/pretty"
	"golang.org/x/term"

	"github.com/codeformat/fmtbridge/internal/config"
	"github.com/codeformat/fmtbridge/internal/manifest"
	"github.com/codeformat/fmtbridge/internal/wire"
	"github.com/codeformat/fmtbridge/internal/worker"
)

const (
	initializeTimeout = 8 * time.Second
	shutdownTimeout   = 4 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	hostFlag := flag.String("host", "", "path to the host binary to test (defaults to HOST_PATH)")
	flag.Parse()

	cfg := config.LoadClient()
	path := *hostFlag
	if path == "" {
		path = cfg.HostPath
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "fmtsmoketest: no host binary given: pass -host or set HOST_PATH")
		return 2
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	// Any error notification — fatal or recoverable — before shutdown
	// completes fails the smoke test: a host that is going to misbehave
	// should say so loudly during a one-shot acceptance check, not just
	// when a real client happens to have a request in flight to fail.
	var sawError atomic.Bool
	onErrorNotification := func(n wire.ErrorNotification) {
		sawError.Store(true)
		fmt.Fprintf(os.Stderr, "fmtsmoketest: host reported %s error %s: %s\n", n.Severity, n.ErrorCode, n.Message)
	}

	// MaxRestarts is 0: this is a single strict pass/fail attempt against
	// one binary, not a client session that should recover from a crash.
	w := worker.New(worker.Config{
		HostPath:            path,
		ClientVersion:       "fmtsmoketest/1",
		Platform:            manifest.CurrentPlatformKey(),
		HandshakeTimeout:    initializeTimeout,
		RequestTimeout:      initializeTimeout,
		MaxRestarts:         0,
		Log:                 log,
		OnErrorNotification: onErrorNotification,
	})
	defer w.Close()

	initCtx, cancel := context.WithTimeout(context.Background(), initializeTimeout)
	defer cancel()

	// Ping is enough to force the initialize handshake (Worker.ensureReady
	// runs it lazily before any request) without depending on a formatter
	// being wired into the host under test.
	pingResp, err := w.Ping(initCtx, wire.PingRequest{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fmtsmoketest: initialize failed: %v\n", err)
		return 1
	}
	printJSON("ping", pingResp)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := w.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "fmtsmoketest: shutdown failed: %v\n", err)
		return 1
	}

	if sawError.Load() {
		fmt.Fprintln(os.Stderr, "fmtsmoketest: host reported an error notification before shutdown completed")
		return 1
	}

	fmt.Println("fmtsmoketest: PASS")
	return 0
}

func printJSON(label string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		data = pretty.Color(pretty.Pretty(data), nil)
	}
	fmt.Printf("%s: %s\n", label, data)
}
