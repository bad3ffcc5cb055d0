package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/astromechza/cwse/internal/config"
	"github.com/astromechza/cwse/internal/envelope"
	"github.com/astromechza/cwse/internal/server"
	"github.com/astromechza/cwse/internal/transport"
	"github.com/astromechza/cwse/internal/transport/redisbus"
	"github.com/astromechza/cwse/internal/transport/wsbus"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	cfg, err := config.LoadServer()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	checkpoints, closeCheckpoints, err := openCheckpointStore(cfg)
	if err != nil {
		return fmt.Errorf("checkpoint store: %w", err)
	}
	defer closeCheckpoints()

	state := server.New(checkpoints)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus, closeBus, err := openBus(ctx, cfg)
	if err != nil {
		return fmt.Errorf("bus: %w", err)
	}
	defer closeBus()

	router := server.NewRouter(state, server.BusBroadcaster{Bus: bus})
	if err := bus.Subscribe(transport.ModuleWhiteboard, 0, func(payload []byte) {
		env, err := envelope.Unmarshal(payload)
		if err != nil {
			slog.Error("server: failed to decode envelope", "err", err)
			return
		}
		if err := router.HandleUpdate(ctx, env); err != nil {
			slog.Error("server: failed to handle update", "op", env.Operation, "err", err)
		}
	}); err != nil {
		return fmt.Errorf("bus: subscribe: %w", err)
	}

	wg := new(sync.WaitGroup)

	if cfg.MDNSAdvertise {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := transport.AdvertiseServer(ctx, cfg.MDNSServiceName, addrPort(cfg.Addr)); err != nil {
				slog.Error("server: mDNS advertise failed", "err", err)
			}
		}()
	}

	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, w, req)
			slog.Info("handled", "method", req.Method, "url", req.URL, "duration", m.Duration, "status", m.Code)
		})
	})

	hub, isWS := bus.(*wsbus.Hub)
	if isWS {
		r.Methods(http.MethodGet).Path("/ws").HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			clientID := req.URL.Query().Get("client")
			if clientID == "" {
				clientID = uuid.NewString()
			}
			if err := hub.OnClientJoined(w, req, clientID); err != nil {
				slog.Error("server: failed to accept client", "err", err)
			}
		})
	}

	httpServer := &http.Server{Addr: cfg.Addr, Handler: r}

	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("server listening", "addr", cfg.Addr, "bus", cfg.BusDriver, "checkpoints", cfg.CheckpointDriver)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server: listen failed", "err", err)
		}
	}()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-exit
	slog.Info("signal caught", "sig", sig)
	cancel()
	_ = httpServer.Close()
	wg.Wait()
	return nil
}

func openCheckpointStore(cfg *config.ServerConfig) (server.CheckpointStore, func(), error) {
	switch cfg.CheckpointDriver {
	case "postgres":
		store, err := server.OpenPostgresCheckpointStore(context.Background(), cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		store, err := server.OpenSQLiteCheckpointStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
}

func openBus(ctx context.Context, cfg *config.ServerConfig) (transport.Bus, func(), error) {
	switch cfg.BusDriver {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("redis: ping: %w", err)
		}
		return redisbus.New(rdb), func() { _ = rdb.Close() }, nil
	default:
		hub := wsbus.NewHub()
		return hub, func() {}, nil
	}
}

// addrPort extracts the numeric port from an "host:port" address for mDNS
// advertisement; defaults to 8080 if it cannot be parsed.
func addrPort(addr string) int {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			var port int
			if _, err := fmt.Sscanf(addr[i+1:], "%d", &port); err == nil {
				return port
			}
			break
		}
	}
	return 8080
}
