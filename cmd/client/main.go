package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/astromechza/cwse/internal/client"
	"github.com/astromechza/cwse/internal/clientcache"
	"github.com/astromechza/cwse/internal/config"
	"github.com/astromechza/cwse/internal/envelope"
	"github.com/astromechza/cwse/internal/facade"
	"github.com/astromechza/cwse/internal/shape"
	"github.com/astromechza/cwse/internal/transport"
	"github.com/astromechza/cwse/internal/transport/wsbus"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	cfg, err := config.LoadClient()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverURL := cfg.ServerURL
	if cfg.MDNSDiscover {
		addr, err := transport.DiscoverServer("_cwse._tcp", 5*time.Second)
		if err != nil {
			return fmt.Errorf("discovery: %w", err)
		}
		serverURL = "ws://" + addr + "/ws"
		slog.Info("discovered server", "url", serverURL)
	}

	cache, err := clientcache.Open(cfg.CacheDBPath)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cache.Close()

	bus, err := wsbus.Dial(ctx, serverURL)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer bus.Close()

	comm := transport.NewCommunicator(bus)
	userLevel := shape.LevelLow
	if cfg.UserLevel == 1 {
		userLevel = shape.LevelHigh
	}
	sm := client.New(comm, cfg.UserID, userLevel)
	comm.Subscribe("state-manager", func(env envelope.Update) {
		if err := sm.OnMessageReceived(env); err != nil {
			slog.Error("client: failed to handle message", "op", env.Operation, "err", err)
		}
	})

	f := facade.New(sm)

	if shapes, gen, checkpointsNumber, found, err := cache.Load(); err != nil {
		slog.Error("client: failed to load resume cache", "err", err)
	} else if found {
		slog.Info("client: resuming from cache", "shapes", len(shapes), "gen", gen, "checkpoints", checkpointsNumber)
	}

	var cacheMu sync.Mutex
	listenerID := uuid.NewString()
	if err := sm.Subscribe(ctx, listenerID, func(ux []envelope.UXShape) {
		for _, u := range ux {
			slog.Info("ux delta", "op", u.Op, "shapeId", u.ShapeID, "originatingOp", u.OriginatingOp)
		}
		// Listeners run while sm holds its state lock, so the cache copy is
		// taken on another goroutine once that lock is released.
		go func() {
			cacheMu.Lock()
			defer cacheMu.Unlock()
			shapes, _ := sm.Snapshot()
			flat := make([]shape.BoardShape, 0, len(shapes))
			for _, bs := range shapes {
				flat = append(flat, bs)
			}
			if err := cache.Save(flat, sm.Generation(), sm.CheckpointsNumber()); err != nil {
				slog.Error("client: failed to persist resume cache", "err", err)
			}
		}()
	}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	f.Activate()

	wg := new(sync.WaitGroup)
	wg.Add(1)
	go func() {
		defer wg.Done()
		demoLoop(ctx, f, cfg.UserID)
	}()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-exit
	slog.Info("signal caught", "sig", sig)
	cancel()
	sm.Unsubscribe(listenerID)
	wg.Wait()
	return nil
}

// demoLoop periodically creates a random rectangle, matching the
// teacher's own incrementRandomlyContinuously pattern for exercising a
// live connection without requiring interactive input.
func demoLoop(ctx context.Context, f *facade.Facade, userID string) {
	t := time.NewTicker(time.Second + time.Second*time.Duration(rand.Intn(5)))
	defer t.Stop()
	for {
		select {
		case <-t.C:
			bs := shape.BoardShape{
				ID:             uuid.NewString(),
				CreatorUserID:  userID,
				LastModifiedAt: time.Now().UTC(),
				CreatedAt:      time.Now().UTC(),
				Shape: shape.Shape{
					Kind:        shape.KindRectangle,
					Params:      []float64{rand.Float64() * 100, rand.Float64() * 100, 40, 40},
					StrokeWidth: 1,
					StrokeColor: "#000000",
					FillColor:   "#3366ff",
				},
			}
			if outcome, err := f.Dispatch(ctx, facade.OpCreate, bs); err != nil {
				slog.Error("client: demo create failed", "err", err)
			} else {
				slog.Info("client: demo create", "applied", outcome.Applied, "id", bs.ID)
			}
		case <-ctx.Done():
			return
		}
	}
}
