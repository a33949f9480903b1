// Matestub is a development conversation service answering the same
// contract as the real backend with canned replies.
//
// Usage:
//
//	matestub [-verbose] [-config armate.yaml] [-addr :8000] [-reply-audio clip.mp3]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hammamikhairi/armate/internal/config"
	"github.com/hammamikhairi/armate/internal/domain"
	"github.com/hammamikhairi/armate/internal/history"
	"github.com/hammamikhairi/armate/internal/logger"
	"github.com/hammamikhairi/armate/internal/stub"
)

func main() {
	_ = godotenv.Load()

	verbose := flag.Bool("verbose", false, "enable verbose/debug logging")
	configPath := flag.String("config", "", "path to a config file (default: armate.yaml in . or ~/.armate)")
	addr := flag.String("addr", "", "listen address (default from config stub.addr)")
	replyAudio := flag.String("reply-audio", "", "mp3 or WAV file returned as every reply's audio (default: short silent WAV)")
	flag.Parse()

	logLevel := logger.LevelNormal
	if *verbose {
		logLevel = logger.LevelVerbose
	}
	log := logger.New(logLevel, os.Stderr)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *addr == "" {
		*addr = cfg.Stub.Addr
	}

	var opts []stub.Option
	if *replyAudio != "" {
		clip, err := os.ReadFile(*replyAudio)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		opts = append(opts, stub.WithAudio(clip))
	}

	if err := run(cfg, *addr, log, opts...); err != nil {
		log.Error("matestub: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, addr string, log *logger.Logger, opts ...stub.Option) error {
	var recorder domain.HistoryRecorder
	if cfg.Redis.Addr != "" {
		feed, err := history.NewRedisFeed(history.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, log)
		if err != nil {
			return err
		}
		defer feed.Close()
		recorder = feed
		log.Info("matestub: recording history to redis %s", cfg.Redis.Addr)
	} else {
		recorder = history.NewMemoryFeed(log)
		log.Info("matestub: recording history in memory")
	}

	srv := stub.New(log, append([]stub.Option{stub.WithRecorder(recorder)}, opts...)...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(addr) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("matestub: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	log.Info("matestub: exited")
	return nil
}
