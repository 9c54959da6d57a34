// drop - offer files to an X11 window by drag and drop
//
// drop captures the pointer, follows it across windows that speak the
// XDND protocol, and hands the named files to the window under the
// pointer when the drop button is pressed:
//
//	drop report.pdf notes.txt     Point at a target and click to drop
//	drop -mode press *.png        Hold the button, move, release to drop
//	drop -stats file.txt          Dump session metrics on exit
//
// Escape (or SIGINT/SIGTERM) cancels the drag.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"xdrop/internal/config"
	"xdrop/internal/content"
	"xdrop/internal/logging"
	"xdrop/internal/metrics"
	"xdrop/internal/payload"
	"xdrop/internal/session"
	"xdrop/internal/x11"
	"xdrop/internal/xdnd"
)

// Exit codes.
const (
	exitOK        = 0
	exitFailure   = 1
	exitCancelled = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func usage(fs *flag.FlagSet) func() {
	return func() {
		fmt.Fprintf(fs.Output(), `drop - Drag files into an X11 window

USAGE:
    drop [options] <path> [<path> ...]

Move the pointer over a window that accepts drops and press the drop
button. Escape cancels.

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(fs.Output(), `
EXIT STATUS:
    0  the target finished the drop
    1  usage, path, display or protocol error
    2  the drag was cancelled
`)
	}
}

func run(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("drop", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = usage(fs)

	configPath := fs.String("config", "", "Configuration file (default: "+config.ConfigPath()+")")
	display := fs.String("display", "", "X display to connect to (default: $DISPLAY)")
	mode := fs.String("mode", "", "Tracking mode: grab or press")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn or error")
	stats := fs.Bool("stats", false, "Write session metrics to stderr on exit")
	watch := fs.Bool("watch", false, "Warn when an offered file disappears during the drag")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitFailure
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitFailure
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "drop: %v\n", err)
		return exitFailure
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "display":
			cfg.Display = *display
		case "mode":
			cfg.Tracking.Mode = *mode
		case "log-level":
			cfg.Logging.Level = *logLevel
		case "stats":
			cfg.Metrics.Dump = *stats
		case "watch":
			cfg.Payload.Watch = *watch
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "drop: %v\n", err)
		return exitFailure
	}

	logCfg, err := cfg.LoggerConfig()
	if err != nil {
		fmt.Fprintf(stderr, "drop: %v\n", err)
		return exitFailure
	}
	logCfg.Writer = stderr
	logger, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(stderr, "drop: %v\n", err)
		return exitFailure
	}
	defer logger.Close()
	logging.SetDefault(logger)

	paths, err := payload.Resolve(fs.Args(), logger.WithComponent("payload"))
	if err != nil {
		fmt.Fprintf(stderr, "drop: %v\n", err)
		return exitFailure
	}
	set, err := payload.New(paths)
	if err != nil {
		fmt.Fprintf(stderr, "drop: %v\n", err)
		return exitFailure
	}

	m := metrics.NewDropMetrics(nil)

	if cfg.Payload.Watch {
		w, err := payload.NewWatcher(set, logger.WithComponent("watch"))
		if err != nil {
			logger.Warn("file watcher unavailable", "error", err)
		} else {
			defer w.Close()
			go func() {
				for range w.Events() {
					m.PathsVanished.Inc()
				}
			}()
		}
	}

	err = drag(cfg, set, m, logger)

	if cfg.Metrics.Dump {
		if werr := dumpMetrics(stderr, m.Registry(), cfg.Metrics.Format); werr != nil {
			logger.Warn("write metrics", "error", werr)
		}
	}

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, session.ErrCancelled):
		logger.Info("drag cancelled")
		return exitCancelled
	default:
		logger.Debug("drop failed", "error", err)
		fmt.Fprintf(stderr, "drop: %v\n", err)
		return exitFailure
	}
}

// drag runs one session against the display.
func drag(cfg *config.Config, set *payload.PathSet, m *metrics.DropMetrics, logger *logging.Logger) error {
	res, err := x11.Acquire(x11.Options{
		Display:    cfg.Display,
		Mode:       cfg.Tracking.Mode,
		DropButton: cfg.Tracking.DropButton,
		CancelKey:  cfg.Tracking.CancelKey,
	}, m, logger.WithComponent("x11"))
	if err != nil {
		return err
	}
	defer res.Release()

	neg := session.NewNegotiator(res, xdnd.Window(res.Window), res.Atoms, logger.WithComponent("session"))
	srv := content.NewServer(set, res.Atoms, res, m, logger.WithComponent("content"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("drag started", "paths", set.Count(), "mode", cfg.Tracking.Mode)
	return x11.NewLoop(res, neg, srv, logger.WithComponent("loop")).Run(ctx)
}

func dumpMetrics(w io.Writer, r *metrics.Registry, format string) error {
	if format == "json" {
		return r.WriteJSON(w)
	}
	return r.WritePrometheus(w)
}
