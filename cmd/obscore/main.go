// Package main implements obscore, the long-lived capture subprocess
// that drives a native audio/video capture and encoding engine on behalf
// of a controlling parent process (spec.md §1).
//
// Usage:
//
//	obscore [options]
//
// Options:
//
//	--channel=ID          Named-pipe channel name; absent means stdio transport
//	--secondary           Load auxSources marked secondaryFile=true
//	--debugger-attach     Block at startup until a debugger attaches
//	--config=PATH         Path to the engine-tunables config file
//	--log-level=LEVEL     Log level: debug, info, warn, error (default: info)
//	--help                Show this help message
//
// No stdout/stderr contract exists beyond the chosen transport
// (spec.md §6 CLI surface).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/overwolf-labs/obscore/internal/channel"
	"github.com/overwolf-labs/obscore/internal/config"
	"github.com/overwolf-labs/obscore/internal/dispatcher"
	"github.com/overwolf-labs/obscore/internal/engine/enginetest"
	"github.com/overwolf-labs/obscore/internal/orchestrator"
	"github.com/overwolf-labs/obscore/internal/supervisor"
)

var (
	channelName    = flag.String("channel", "", "Named-pipe channel name (absent means stdio transport)")
	secondary      = flag.Bool("secondary", false, "Load auxSources marked secondaryFile=true")
	debuggerAttach = flag.Bool("debugger-attach", false, "Block at startup until a debugger attaches")
	configPath     = flag.String("config", config.ConfigFilePath, "Path to the engine-tunables config file")
	logLevel       = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	showHelp       = flag.Bool("help", false, "Show this help message")
)

func main() {
	flag.Parse()

	if *showHelp {
		printUsage()
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))

	if *debuggerAttach {
		waitForDebugger(logger)
	}

	tunables, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load configuration, using defaults", "path", *configPath, "error", err)
		defaults := config.DefaultEngineTunables()
		tunables = &defaults
	}

	// No native engine adapter (cgo or RPC binding over the real
	// audio/video library) ships in this module — the Engine interface
	// is the black-box boundary spec.md §1 describes, and a production
	// build links a real adapter in behind it. enginetest.Fake stands in
	// here so the subprocess is runnable end-to-end for integration
	// testing against the wire protocol.
	eng := enginetest.New()

	disp := dispatcher.New(logger)
	defer disp.Close()

	orch := orchestrator.New(eng, disp, *tunables, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := openChannel(*channelName, tunables.HandshakeTimeout, disp, logger)
	if err != nil {
		logger.Error("failed to open channel", "error", err)
		os.Exit(1)
	}

	if err := orch.Startup(ctx, ch); err != nil {
		logger.Error("orchestrator startup failed", "error", err)
		os.Exit(1)
	}

	sup := supervisor.New(supervisor.DefaultConfig())
	for _, svc := range orch.StatsServices() {
		sup.Add(svc)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig.String())
		orch.Shutdown(ctx)
		cancel()
	}()

	logger.Info("obscore started", "channel", *channelName, "secondary", *secondary)
	if err := sup.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("supervisor stopped with error", "error", err)
	}

	logger.Info("shutdown complete")
}

// openChannel picks the stdio or named-pipe transport per spec.md §4.1,
// wiring the dispatcher's OnData as the inbound delegate.
func openChannel(name string, handshakeTimeout time.Duration, disp *dispatcher.Dispatcher, logger *slog.Logger) (channel.Channel, error) {
	delegate := channel.Delegate{
		OnData: disp.OnData,
		OnDisconnected: func(err error) {
			logger.Warn("channel disconnected", "error", err)
		},
	}

	if name == "" {
		return channel.NewStdioChannel(os.Stdin, os.Stdout, delegate, logger), nil
	}
	return channel.ListenNamedPipe(name, handshakeTimeout, delegate, logger)
}

// waitForDebugger stands in for the native "modal message box at
// startup" (spec.md §6): blocks on a line from stdin so an operator
// attaching a debugger has a window before the subprocess proceeds.
func waitForDebugger(logger *slog.Logger) {
	logger.Info("--debugger-attach: waiting for a debugger; press enter to continue")
	_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func printUsage() {
	fmt.Println("obscore - capture/encode subprocess")
	fmt.Println()
	fmt.Println("Usage: obscore [options]")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("The subprocess speaks a JSON command/event protocol over the channel")
	fmt.Println("named-pipe transport (--channel) or stdio (no --channel).")
	fmt.Println()
	fmt.Println("Signals:")
	fmt.Println("  SIGINT, SIGTERM  Graceful shutdown")
}
