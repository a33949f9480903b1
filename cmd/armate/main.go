// Armate is a voice-driven companion avatar client.
//
// Usage:
//
//	armate [-verbose] [-quiet] [-config armate.yaml] [-no-audio]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/hammamikhairi/armate/internal/audio"
	"github.com/hammamikhairi/armate/internal/bridge"
	"github.com/hammamikhairi/armate/internal/config"
	"github.com/hammamikhairi/armate/internal/conversation"
	"github.com/hammamikhairi/armate/internal/display"
	"github.com/hammamikhairi/armate/internal/domain"
	"github.com/hammamikhairi/armate/internal/history"
	"github.com/hammamikhairi/armate/internal/logger"
	"github.com/hammamikhairi/armate/internal/metrics"
	"github.com/hammamikhairi/armate/internal/session"
	"github.com/hammamikhairi/armate/internal/spatial"
)

func main() {
	_ = godotenv.Load()

	verbose := flag.Bool("verbose", false, "enable verbose/debug logging")
	quiet := flag.Bool("quiet", false, "disable all logging")
	logFile := flag.String("log-file", "", "file to write logs to (use \"stderr\" to log to console; default from config)")
	configPath := flag.String("config", "", "path to a config file (default: armate.yaml in . or ~/.armate)")
	noAudio := flag.Bool("no-audio", false, "use a silent player and a null microphone")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *logFile == "" {
		*logFile = cfg.Log.File
	}

	logLevel := logger.LevelNormal
	if *verbose {
		logLevel = logger.LevelVerbose
	}
	if *quiet {
		logLevel = logger.LevelOff
	}

	// Direct logs to a file by default so the terminal UI stays clean.
	var logOut io.Writer = os.Stderr
	if *logFile != "" && *logFile != "stderr" {
		dir := filepath.Dir(*logFile)
		if dir != "" && dir != "." {
			os.MkdirAll(dir, 0o755)
		}
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not open log file %s: %v (falling back to stderr)\n", *logFile, err)
		} else {
			logOut = f
			defer f.Close()
		}
	}

	// Audio backends log through the standard library; keep that off the
	// terminal too.
	stdlog.SetOutput(logOut)
	stdlog.SetFlags(stdlog.Ltime)

	log := logger.New(logLevel, logOut)

	if err := run(cfg, log, *noAudio); err != nil {
		log.Error("armate: %v", err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger, noAudio bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Devices ──

	var (
		mic    domain.Microphone
		player domain.Player
	)
	if noAudio {
		mic = audio.SilentMicrophone{}
		player = audio.NewSilentPlayer(audio.SilentPlaybackDuration)
		log.Info("audio disabled: silent player, null microphone")
	} else {
		mic = audio.NewMicrophone(log)
		player = audio.NewPlayer(log)
	}

	// ── Conversation transport ──

	var conv domain.Conversation
	switch cfg.Transport {
	case config.TransportWS:
		ws, err := conversation.NewWSClient(cfg.BackendURL, cfg.UserID, log,
			conversation.WithWSTimeout(cfg.RequestTimeout),
		)
		if err != nil {
			return err
		}
		defer ws.Close()
		conv = ws
		log.Info("conversation: websocket transport %s", ws.URL())
	default:
		c := conversation.NewClient(cfg.BackendURL, log,
			conversation.WithHTTPTimeout(cfg.RequestTimeout),
		)
		conv = c
		log.Info("conversation: http transport %s", c.Endpoint())
	}

	// ── Placement and renderer bridge ──

	var br *bridge.Bridge
	placement := spatial.New(log, spatial.WithAnchorListener(func(v mgl32.Vec3) {
		metrics.PlacementUpdates.Inc()
		if br != nil {
			br.PublishAnchor(v)
		}
	}))

	sessionOpts := []session.Option{session.WithSubmitTimeout(cfg.RequestTimeout)}
	if cfg.MQTT.Broker != "" {
		b, err := bridge.New(bridge.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, placement, log)
		if err != nil {
			log.Error("renderer bridge disabled: %v", err)
		} else {
			br = b
			defer br.Close()
			if err := br.Start(); err != nil {
				return err
			}
			br.PublishAnchor(placement.Anchor())
			sessionOpts = append(sessionOpts, session.WithAvatarListener(br.PublishAvatar))
		}
	} else {
		log.Info("renderer bridge disabled: set mqtt.broker to enable")
	}

	ctrl := session.New(mic, player, conv, log, sessionOpts...)

	// ── History ──

	uiOpts := []display.Option{display.WithPlacement(placement)}
	if cfg.Redis.Addr != "" {
		feed, err := history.NewRedisFeed(history.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, log)
		if err != nil {
			log.Error("history disabled: %v", err)
		} else {
			defer feed.Close()
			uiOpts = append(uiOpts, display.WithHistory(feed, cfg.History.Limit))
		}
	}

	ui := display.NewUI(ctrl, ctrl.Subscribe(), log, uiOpts...)

	fmt.Println(display.RenderBanner())
	fmt.Println(display.BannerStyle.Render("  space: talk   t: type   h: history   q: quit"))
	fmt.Println()

	// ── Run ──

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ctrl.Run(gctx) })
	if cfg.Metrics.Addr != "" {
		g.Go(func() error { return metrics.Serve(gctx, cfg.Metrics.Addr, log) })
	}
	g.Go(func() error {
		// Bubble Tea owns the terminal; quitting it ends everything.
		defer stop()
		return ui.Run(gctx)
	})
	return g.Wait()
}
