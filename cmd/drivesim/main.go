// Package main runs the drive simulator server.
//
// Architecture Overview:
// - One session owns the vehicle, its chase camera and the physics world
// - The session steps physics at a fixed rate (60Hz by default)
// - Frames are broadcast to websocket viewers at 20Hz
// - Any viewer may drive; all viewers see the same frame
//
// Connection Flow:
// 1. Client connects via WebSocket to /ws
// 2. Server replies with SessionInfo (session id, rates, wheel count)
// 3. Client sends Input and Gesture messages, server broadcasts Frame messages
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/race/drive/config"
	"github.com/race/drive/internal/logging"
	"github.com/race/drive/internal/physics"
	"github.com/race/drive/internal/sim"
	"github.com/race/drive/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("DRIVESIM_CONFIG"), "path to a JSON/YAML/TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "drivesim: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(logging.Options{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	metrics, err := telemetry.New(nil)
	if err != nil {
		return fmt.Errorf("creating metrics: %w", err)
	}

	world, vehicle := buildWorld(cfg)

	session := sim.NewSession(uuid.New().String(), cfg, world, logging.Component(log, "sim"), metrics)
	if err := session.Spawn(vehicle); err != nil {
		return fmt.Errorf("spawning vehicle: %w", err)
	}

	server := NewServer(cfg, session, logging.Component(log, "server"))
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().
		Str("addr", httpServer.Addr).
		Int("physicsRate", cfg.Loop.TickRate).
		Int("broadcastRate", cfg.Loop.BroadcastRate).
		Int("maxViewers", config.MaxViewersPerSession).
		Str("session", session.ID).
		Msg("drive simulator starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session.Start()
	defer session.Stop()

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	server.CloseAll()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// buildWorld creates the reference physics world: a ground plane, the
// configured obstacles and the vehicle at its spawn pose.
func buildWorld(cfg *config.Config) (*physics.World, *physics.Vehicle) {
	w := cfg.World
	world := physics.NewWorld(mgl64.Vec3{w.Gravity.X, w.Gravity.Y, w.Gravity.Z})
	world.AddCollider(physics.Plane{Height: w.GroundHeight})
	for _, o := range w.Obstacles {
		world.AddCollider(physics.Box{
			Center:      mgl64.Vec3{o.Center.X, o.Center.Y, o.Center.Z},
			HalfExtents: mgl64.Vec3{o.HalfExtents.X, o.HalfExtents.Y, o.HalfExtents.Z},
		})
	}

	pose := physics.Transform{
		Position:    mgl64.Vec3{w.SpawnPosition.X, w.SpawnPosition.Y, w.SpawnPosition.Z},
		Orientation: mgl64.QuatRotate(w.SpawnYaw, physics.Up),
	}
	vehicle := physics.NewVehicle(cfg.Vehicle, pose)
	world.AddVehicle(vehicle)
	return world, vehicle
}
