package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sort"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/sirupsen/logrus"

	"github.com/Halffd/VoxelIsle/internal/config"
	"github.com/Halffd/VoxelIsle/internal/logging"
	"github.com/Halffd/VoxelIsle/internal/world"
)

func main() {
	var (
		cfgPath    string
		previewDir string
		duration   time.Duration
		speed      float64
	)
	flag.StringVar(&cfgPath, "config", "", "path to world configuration file")
	flag.StringVar(&previewDir, "preview", "", "write chunk previews into this directory on exit")
	flag.DurationVar(&duration, "duration", 10*time.Second, "how long to stream before exiting (0 runs until interrupted)")
	flag.Float64Var(&speed, "speed", 8, "walk speed of the scripted observer in blocks per second")
	flag.Parse()

	log := logging.Named("main")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	applied, err := config.ApplyEnv(cfg, os.Getenv)
	if err != nil {
		log.WithError(err).Fatal("apply environment overrides")
	}
	logging.Configure(cfg.Log.Level, cfg.Log.Format)
	log = logging.Named("main")
	if len(applied) > 0 {
		log.WithField("vars", applied).Info("configuration overridden from environment")
	}

	w, err := world.New(cfg)
	if err != nil {
		log.WithError(err).Fatal("initialise world")
	}

	ctx, cancel := signalContext(log)
	defer cancel()
	if duration > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, duration)
		defer stop()
	}

	if err := run(ctx, w, cfg, speed, log); err != nil {
		log.WithError(err).Error("streaming stopped")
	}

	if previewDir != "" {
		writePreviews(w, previewDir, log)
	}
	stats := w.Stats()
	if err := w.Close(); err != nil {
		log.WithError(err).Error("close world")
		os.Exit(1)
	}
	log.WithFields(logrus.Fields{
		"generated": stats.Generated,
		"restored":  stats.Restored,
		"rebuilt":   stats.Rebuilt,
		"evicted":   stats.Evicted,
		"discarded": stats.Discarded,
		"failed":    stats.Failed,
	}).Info("world closed")
}

func run(ctx context.Context, w *world.World, cfg *config.Config, speed float64, log logrus.FieldLogger) error {
	start := time.Now()
	if r := cfg.Streaming.PregenerateRadius; r > 0 {
		n, err := w.Pregenerate(ctx, walkPosition(0, speed), r)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"chunks": n, "took": time.Since(start)}).Info("pregenerated spawn area")
	}

	var ticks atomic.Int64
	ref := func() mgl64.Vec3 {
		ticks.Add(1)
		return walkPosition(time.Since(start).Seconds(), speed)
	}
	err := w.Run(ctx, ref)
	log.WithField("ticks", ticks.Load()).Info("streaming finished")
	return err
}

// walkPosition is the scripted observer: a straight walk along +X above the
// terrain.
func walkPosition(seconds, speed float64) mgl64.Vec3 {
	return mgl64.Vec3{seconds * speed, world.ChunkHeight, 8}
}

func writePreviews(w *world.World, dir string, log logrus.FieldLogger) {
	loaded := w.Loaded()
	coords := make([]world.ChunkCoord, 0, len(loaded))
	for c := range loaded {
		coords = append(coords, c)
	}
	sort.Slice(coords, func(i, j int) bool {
		if coords[i].X != coords[j].X {
			return coords[i].X < coords[j].X
		}
		return coords[i].Z < coords[j].Z
	})
	written := 0
	for _, c := range coords {
		if _, err := world.SaveChunkPreview(loaded[c], dir); err != nil {
			log.WithError(err).WithField("chunk", c.String()).Warn("skip preview")
			continue
		}
		written++
	}
	log.WithFields(logrus.Fields{"dir": dir, "written": written}).Info("wrote chunk previews")
}

func signalContext(log logrus.FieldLogger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(signals)
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
			return
		}

		// Ensure the process terminates if shutdown stalls.
		time.AfterFunc(10*time.Second, func() {
			log.Error("forced shutdown after timeout")
			os.Exit(1)
		})
	}()

	return ctx, cancel
}
