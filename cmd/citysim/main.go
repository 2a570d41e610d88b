// Command citysim runs the mini city: NPCs with needs, memories and
// relationships deciding and walking through a generated grid city.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/talgya/mini-city/internal/api"
	"github.com/talgya/mini-city/internal/engine"
	"github.com/talgya/mini-city/internal/persistence"
	"github.com/talgya/mini-city/internal/phi"
	"github.com/talgya/mini-city/internal/tuning"
)

func main() {
	if err := godotenv.Load(); err == nil {
		fmt.Println("loaded .env")
	}

	level := slog.LevelInfo
	if strings.EqualFold(os.Getenv("CITYSIM_LOG_LEVEL"), "debug") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	slog.Info("Mini City / NPC simulation")
	slog.Info("default coefficients",
		"phi", phi.Phi,
		"agnosis", fmt.Sprintf("%.5f", phi.Agnosis),
		"matter", fmt.Sprintf("%.5f", phi.Matter),
	)

	if err := run(); err != nil {
		slog.Error("citysim failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	dbPath := envOr("CITYSIM_DB", "data/citysim.db")
	eventsDir := envOr("CITYSIM_EVENTS_DIR", filepath.Join(filepath.Dir(dbPath), "events"))
	apiPort, err := strconv.Atoi(envOr("CITYSIM_PORT", "8080"))
	if err != nil {
		return fmt.Errorf("CITYSIM_PORT: %w", err)
	}
	runTicks, err := strconv.Atoi(envOr("CITYSIM_TICKS", "0"))
	if err != nil {
		return fmt.Errorf("CITYSIM_TICKS: %w", err)
	}

	// ── Configuration ────────────────────────────────────────────────
	cfg, err := tuning.Load(os.Getenv("CITYSIM_TUNING"))
	if err != nil {
		return err
	}

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return err
	}
	db, err := persistence.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	slog.Info("database opened", "path", dbPath)

	snap, resumed, err := db.LoadSnapshot()
	if err != nil {
		return fmt.Errorf("load world state: %w", err)
	}
	if resumed && snap.Seed != cfg.Seed {
		slog.Warn("saved world uses a different seed, keeping the saved one", "saved", snap.Seed, "configured", cfg.Seed)
		cfg.Seed = snap.Seed
	}

	runID := uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("citysim/%d", cfg.Seed))).String()
	if resumed {
		if saved, ok, err := db.GetMeta(persistence.MetaRunID); err == nil && ok && saved != "" {
			runID = saved
		}
	}

	// ── Event sinks ───────────────────────────────────────────────────
	recorder := engine.NewRecorder(cfg.Events.Buffer)
	eventLog := persistence.NewEventLog(eventsDir, runID)
	defer func() {
		if err := eventLog.Close(); err != nil {
			slog.Error("event log close failed", "error", err)
		}
	}()
	sink := engine.FanOut{recorder, db, eventLog}

	// ── Simulation ────────────────────────────────────────────────────
	var sim *engine.Simulation
	if resumed {
		slog.Info("found saved world state, loading...", "tick", snap.Tick, "agents", len(snap.Agents))
		m, pois := engine.GenerateCity(cfg)
		if sim, err = engine.NewSimulation(cfg, m, pois, sink); err != nil {
			return err
		}
		if err := sim.Restore(snap); err != nil {
			return err
		}
	} else {
		slog.Info("no saved state found, generating new city...", "seed", cfg.Seed)
		if sim, err = engine.NewCity(cfg, sink); err != nil {
			return err
		}
		if err := db.SaveSnapshot(sim.Snapshot(), runID); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}
	slog.Info("city ready",
		"run", runID,
		"size", fmt.Sprintf("%dx%d", sim.Map.Width, sim.Map.Height),
		"walkable", humanize.Comma(int64(sim.Map.WalkableCount())),
		"pois", len(sim.POIs),
		"agents", humanize.Comma(int64(sim.Stats().Population)),
	)

	save := func(reason string) {
		if err := db.SaveSnapshot(sim.Snapshot(), runID); err != nil {
			slog.Error("save failed", "reason", reason, "error", err)
		}
	}

	eng := engine.NewEngine()
	eng.Interval = time.Duration(cfg.TickIntervalMs) * time.Millisecond
	eng.SetTick(sim.CurrentTick())

	apiServer := &api.Server{
		Sim:      sim,
		Eng:      eng,
		Events:   recorder,
		DB:       db,
		RunID:    runID,
		Port:     apiPort,
		AdminKey: os.Getenv("CITYSIM_ADMIN_KEY"),
	}

	// Wire tick callbacks; auto-save every few sim-days.
	eng.OnTick = func(tick uint64) {
		sim.Step(tick)
		apiServer.Publish(tick)
	}
	eng.OnHour = sim.TickHour
	eng.OnDay = func(tick uint64) {
		sim.TickDay(tick)
		if n := uint64(cfg.Events.AutosaveDays); n > 0 && engine.SimDay(tick)%n == 0 {
			save("daily")
		}
	}

	// ── Headless run ──────────────────────────────────────────────────
	if runTicks > 0 {
		start := time.Now()
		eng.Advance(runTicks)
		sim.TickHour(eng.Tick())
		save("final")
		slog.Info("headless run complete",
			"ticks", humanize.Comma(int64(runTicks)),
			"sim_time", engine.SimTime(eng.Tick()),
			"elapsed", time.Since(start).Round(time.Millisecond),
		)
		return nil
	}

	// ── HTTP API + loop ───────────────────────────────────────────────
	if apiServer.AdminKey == "" {
		slog.Warn("CITYSIM_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := apiServer.Start(ctx); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	fmt.Printf("\nMini City is alive: %d people on a %dx%d grid.\n", sim.Stats().Population, sim.Map.Width, sim.Map.Height)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", apiPort)
	if t := eng.Tick(); t > 0 {
		fmt.Printf("Resuming from tick %d (%s)\n", t, engine.SimTime(t))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)

	slog.Info("final save...")
	sim.TickHour(eng.Tick())
	save("shutdown")
	fmt.Println("Simulation stopped. City state saved.")
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
