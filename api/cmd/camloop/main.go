package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"waste-bot/api/internal/app"
	"waste-bot/api/internal/capture"
	"waste-bot/api/internal/classify"
	"waste-bot/api/internal/config"
	"waste-bot/api/internal/guide"
	"waste-bot/api/internal/logger"
	"waste-bot/api/internal/present"
	"waste-bot/api/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	repeat := flag.Bool("repeat", false, "start a new session after each guide instead of exiting")
	pause := flag.Duration("pause", 5*time.Second, "pause between sessions with -repeat")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate("camloop"); err != nil {
		return err
	}
	log, err := logger.NewLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infra, err := app.Setup(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	table, err := guide.LoadTable(cfg.Model.GuideTablePath)
	if err != nil {
		return err
	}
	_, engine, err := app.BuildEngines(ctx, cfg, infra.Cache, log)
	if err != nil {
		return err
	}

	src, err := newSource(cfg)
	if err != nil {
		return err
	}

	loop := &session.Loop{
		Source: src,
		Engine: engine,
		Presenter: present.Multi{
			&present.Console{Logger: log, Out: os.Stdout},
			&present.Page{Dir: cfg.Camera.GuideDir, Browse: cfg.Camera.OpenBrowser, VideoDir: cfg.Server.VideoDir},
		},
		Table:     table,
		Threshold: cfg.Model.Threshold,
		Interval:  cfg.Camera.Interval,
		Logger:    log,
		OnResult: func(res classify.Result, took time.Duration) {
			infra.Metrics.ObserveResult(engine.Name(), res, took)
		},
		OnGuide: func(ctx context.Context, s *session.Session, v guide.View) error {
			infra.Record(ctx, session.NewEvent(s, v, "camera", engine.Name()))
			return nil
		},
	}

	s := session.New()
	for {
		facing, err := capture.Open(ctx, src, log)
		if err != nil {
			return fmt.Errorf("open camera: %w", err)
		}
		log.Info("camera opened", zap.String("facing", string(facing)))

		if _, err := loop.Run(ctx, s); err != nil {
			_ = src.Stop()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if !*repeat {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(*pause):
		}
		s.Reset()
	}
}

func newSource(cfg *config.Config) (capture.Source, error) {
	switch cfg.Camera.Source {
	case "snapshot":
		return capture.NewSnapshotSource(map[capture.Facing]string{
			capture.Environment: cfg.Camera.SnapshotURL["environment"],
			capture.User:        cfg.Camera.SnapshotURL["user"],
		}, 5*time.Second), nil
	case "webcam":
		return capture.NewWebcamSource(map[capture.Facing]int{
			capture.Environment: cfg.Camera.Devices["environment"],
			capture.User:        cfg.Camera.Devices["user"],
		})
	default:
		return capture.NewDirSource(map[capture.Facing]string{
			capture.Environment: cfg.Camera.Dirs["environment"],
			capture.User:        cfg.Camera.Dirs["user"],
		}, true), nil
	}
}
