// Command cachecored is a minimal HTTP reverse-proxy cache daemon built
// directly on top of the lookup/stevedore/object packages: a thin adapter
// exercising the engine's external interface (spec §6), not a production
// transport. Flag parsing follows the teacher's urfave/cli/v2 convention
// (cmd/maliciousvote-submit/main.go's App/Flags/Action shape).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/rcache/engine/config"
	enginelog "github.com/rcache/engine/log"
	"github.com/rcache/engine/lookup"
	"github.com/rcache/engine/metrics"
	"github.com/rcache/engine/stevedore"
	"github.com/rcache/engine/stevedore/diskstore"
	"github.com/rcache/engine/stevedore/memstore"
)

var (
	listenFlag = &cli.StringFlag{
		Name:  "listen",
		Value: ":8080",
		Usage: "address to listen on",
	}
	originFlag = &cli.StringFlag{
		Name:     "origin",
		Required: true,
		Usage:    "origin base URL to fetch uncached responses from",
	}
	hashAlgoFlag = &cli.StringFlag{
		Name:  "hash-algorithm",
		Value: string(config.HashSimple),
		Usage: "object index strategy: simple, classic or critbit",
	}
	memBudgetFlag = &cli.IntFlag{
		Name:  "memstore-mb",
		Value: 256,
		Usage: "memstore backend budget, in megabytes",
	}
	diskShelfFlag = &cli.IntFlag{
		Name:  "diskstore-shelf-kb",
		Value: 512,
		Usage: "diskstore shelf slot size, in kilobytes (0 disables diskstore)",
	}
	ttlFlag = &cli.DurationFlag{
		Name:  "default-ttl",
		Value: config.Default().DefaultTTL,
		Usage: "default freshness lifetime for newly fetched objects",
	}
	graceFlag = &cli.DurationFlag{
		Name:  "default-grace",
		Value: config.Default().DefaultGrace,
		Usage: "default grace window served after expiry",
	}
	waitTimeoutFlag = &cli.DurationFlag{
		Name:  "wait-timeout",
		Value: config.Default().WaitTimeout,
		Usage: "how long a coalesced request waits on a busy fetch",
	}
	logFileFlag = &cli.StringFlag{
		Name:  "log-file",
		Usage: "rotating log file path (stderr only if unset)",
	}
)

func main() {
	app := &cli.App{
		Name:  "cachecored",
		Usage: "digest-keyed HTTP object cache core",
		Flags: []cli.Flag{
			listenFlag, originFlag, hashAlgoFlag, memBudgetFlag, diskShelfFlag,
			ttlFlag, graceFlag, waitTimeoutFlag, logFileFlag,
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	origin, err := url.Parse(c.String(originFlag.Name))
	if err != nil {
		return fmt.Errorf("invalid --origin: %w", err)
	}

	var asyncWriter *enginelog.AsyncFileWriter
	if path := c.String(logFileFlag.Name); path != "" {
		asyncWriter = enginelog.NewAsyncFileWriter(path, 64, 5, 28)
		asyncWriter.Start()
		defer asyncWriter.Stop()
	}
	logger := enginelog.New(asyncWriter, slog.LevelInfo)

	cfg := config.Default()
	cfg.HashAlgorithm = config.HashAlgorithm(c.String(hashAlgoFlag.Name))
	cfg.DefaultTTL = c.Duration(ttlFlag.Name)
	cfg.DefaultGrace = c.Duration(graceFlag.Name)
	cfg.WaitTimeout = c.Duration(waitTimeoutFlag.Name)

	reg := stevedore.NewRegistry(stevedore.NewTransient())
	reg.Register(memstore.New("mem0", c.Int(memBudgetFlag.Name)*1024*1024))
	if shelfKB := c.Int(diskShelfFlag.Name); shelfKB > 0 {
		reg.Register(diskstore.New("disk0", uint32(shelfKB*1024)))
	}
	if err := reg.OpenAll(); err != nil {
		return fmt.Errorf("opening stevedores: %w", err)
	}
	defer func() {
		if err := reg.CloseAll(); err != nil {
			logger.Error("closing stevedores", "error", err)
		}
	}()

	metricsReg := metrics.New()
	alloc := bodyAllocator(cfg)

	fetcher := &originFetcher{
		client:   &http.Client{Timeout: 30 * time.Second},
		origin:   origin,
		alloc:    alloc,
		cfg:      cfg,
		log:      logger,
		requests: newRequestLog(),
		stv:      reg,
	}
	engine := lookup.New(cfg, reg, fetcher, metricsReg)
	fetcher.engine = engine

	srv := &Server{
		engine:      engine,
		stv:         reg,
		fetcher:     fetcher,
		metrics:     metricsReg,
		log:         logger,
		waitTimeout: cfg.WaitTimeout,
	}

	httpSrv := &http.Server{
		Addr:    c.String(listenFlag.Name),
		Handler: srv,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpSrv.Addr, "origin", origin.String())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
