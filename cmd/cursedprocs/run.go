package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"cursedprocs/internal/catalog"
	"cursedprocs/internal/config"
	"cursedprocs/internal/keys"
	"cursedprocs/internal/log"
	"cursedprocs/internal/process"
	"cursedprocs/internal/realtime"
	"cursedprocs/internal/supervisor"
	"cursedprocs/internal/view"
	"cursedprocs/internal/watcher"
)

const (
	catalogChangedNotice = "catalog changed on disk; restart to reload"
	shutdownTimeout      = 5 * time.Second
)

func doRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags(), flagConfigFilePath)
	if err != nil {
		return err
	}

	logger, logCloser, err := log.Open(cfg.LogFile, cfg.Verbose)
	if err != nil {
		return err
	}
	defer func() {
		_ = logCloser.Close()
	}()
	slog.SetDefault(logger)

	ctx := log.ContextAttrs(cmd.Context(), slog.Group("cursedprocs",
		slog.String("catalog", args[0]),
		slog.Int("pid", os.Getpid()),
	))
	if cfg.File != "" {
		slog.DebugContext(ctx, "loaded config", "path", cfg.File)
	}

	// A malformed catalog stops us before anything is launched.
	entries, err := catalog.Load(args[0])
	if err != nil {
		return err
	}

	var listener net.Listener
	if cfg.Listen != "" {
		listener, err = net.Listen("tcp", cfg.Listen)
		if err != nil {
			return fmt.Errorf("remote dashboard: %w", err)
		}
	}

	tty, err := view.MakeRaw(os.Stdin)
	if err != nil {
		if listener != nil {
			_ = listener.Close()
		}
		return err
	}
	screen := view.NewScreen(os.Stdout, nil)
	screen.Open()

	var restoreOnce sync.Once
	restore := func() {
		restoreOnce.Do(func() {
			screen.Close()
			if err := tty.Restore(); err != nil {
				slog.ErrorContext(ctx, "restoring terminal", "error", err)
			}
		})
	}
	defer restore()

	handles := supervisor.NewHandles(entries, process.ExecSpawner{})
	slot := keys.NewSlot()
	sup := supervisor.New(cfg.Supervisor(), handles, slot)

	go func() {
		if err := keys.Read(os.Stdin, slot); err != nil {
			slog.WarnContext(ctx, "keyboard input stopped", "error", err)
		}
	}()

	if cfg.Watch {
		w, err := watcher.New(args[0], func(string) {
			screen.SetNotice(catalogChangedNotice)
		})
		if err != nil {
			slog.WarnContext(ctx, "not watching catalog", "error", err)
		} else {
			defer func() {
				_ = w.Close()
			}()
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, unix.SIGTERM, unix.SIGHUP)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	sink := screen.Draw
	if listener != nil {
		rt := realtime.New(logger)
		sup.WithRemote(rt.Commands())
		sink = func(snap supervisor.Snapshot) {
			screen.Draw(snap)
			rt.Publish(snap)
		}

		srv := &http.Server{
			Handler:           rt.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			slog.InfoContext(ctx, "remote dashboard listening", "addr", listener.Addr().String())
			if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("remote dashboard: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			rt.Close()
			shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		// the loop ending, by quit or signal, stops everything else
		defer cancel()
		return sup.Run(ctx, sink)
	})

	err = g.Wait()

	restore()
	stopped := sup.Shutdown(os.Stdout)
	slog.InfoContext(ctx, "finished", "stopped", stopped)
	return err
}
