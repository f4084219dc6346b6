// Command worldsim generates a tile world, places a traveller on its coast
// and serves the journey over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/tileworld/internal/api"
	"github.com/talgya/tileworld/internal/autotile"
	"github.com/talgya/tileworld/internal/config"
	"github.com/talgya/tileworld/internal/engine"
	"github.com/talgya/tileworld/internal/pathfind"
	"github.com/talgya/tileworld/internal/persistence"
	"github.com/talgya/tileworld/internal/persistence/snapshot"
	"github.com/talgya/tileworld/internal/world"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults built in)")
	seed := flag.Int64("seed", 0, "world seed override, 0 keeps the config value")
	addr := flag.String("addr", "", "HTTP listen address override")
	dbPath := flag.String("db", "", "SQLite archive path override")
	resume := flag.String("resume", "", "world id to reload from the archive instead of generating")
	verify := flag.String("verify", "", "snapshot to regenerate from its config and compare, then exit")
	logLevel := flag.String("log-level", "info", "debug, info, warn or error")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(*logLevel),
	})))

	if *verify != "" {
		os.Exit(verifySnapshot(*verify))
	}

	// ── Configuration ─────────────────────────────────────────────────
	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			slog.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
	} else {
		cfg.ApplyEnv()
	}
	if *seed != 0 {
		cfg.World.Seed = *seed
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.Storage.DBPath = *dbPath
	}

	// ── Database ──────────────────────────────────────────────────────
	if dir := filepath.Dir(cfg.Storage.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Warn("could not create database directory", "dir", dir, "error", err)
		}
	}
	db, err := persistence.Open(cfg.Storage.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.Storage.DBPath)

	// ── World ─────────────────────────────────────────────────────────
	worldID := *resume
	var grid *world.Grid
	if worldID != "" {
		grid, err = db.LoadWorld(worldID)
		if err != nil {
			slog.Error("failed to load world", "id", worldID, "error", err)
			os.Exit(1)
		}
		slog.Info("world reloaded", "id", worldID, "seed", grid.Seed(), "seen", grid.SeenCount())
	} else {
		worldID = uuid.NewString()
		start := time.Now()
		grid, err = world.Generate(cfg.World)
		if err != nil {
			slog.Error("world generation failed", "error", err)
			os.Exit(1)
		}
		slog.Info("world generated", "id", worldID, "seed", grid.Seed(),
			"cells", humanize.Comma(int64(grid.CellCount())), "took", time.Since(start))
		for _, w := range grid.Warnings() {
			slog.Warn("generation warning", "detail", w)
		}
	}
	logTerrain(grid)

	// ── Autotile ──────────────────────────────────────────────────────
	var layer *autotile.Layer
	if cfg.Autotile.RulesPath != "" {
		rules, err := autotile.LoadRulesFile(cfg.Autotile.RulesPath)
		if err != nil {
			slog.Error("failed to load tile rules", "path", cfg.Autotile.RulesPath, "error", err)
			os.Exit(1)
		}
		tiles := autotile.NewEngine(rules)
		tiles.Disabled = cfg.Autotile.Disabled
		layer = tiles.Annotate(grid)
		slog.Info("tile variants assigned", "rules", tiles.RuleCount(), "matched", layer.Matched())
	}

	// ── Archive ───────────────────────────────────────────────────────
	if *resume == "" {
		if err := archiveWorld(db, worldID, grid, cfg.World, layer, cfg.Storage.SnapshotDir); err != nil {
			slog.Warn("world archive incomplete", "error", err)
		}
	}

	// ── Session ───────────────────────────────────────────────────────
	paths, err := pathfind.New(grid, cfg.Pathing)
	if err != nil {
		slog.Error("pathfinder setup failed", "error", err)
		os.Exit(1)
	}
	sess, err := engine.NewSession(grid, paths, layer, cfg.Session)
	if err != nil {
		slog.Error("session setup failed", "error", err)
		os.Exit(1)
	}
	startAt, err := sess.PlaceAtStart(rand.New(rand.NewSource(grid.Seed() + 7)))
	if err != nil {
		slog.Error("could not place traveller", "error", err)
		os.Exit(1)
	}

	eng := engine.NewEngine(cfg.Session.TickInterval)
	eng.FlushEvery = uint64(cfg.Session.StepsInADay) * 10
	eng.OnTick = func(delta time.Duration) { sess.Tick(delta) }

	var savedSeq uint64
	save := func() {
		seq, err := db.SaveSession(worldID, sess, savedSeq)
		if err != nil {
			slog.Error("session save failed", "error", err)
			return
		}
		savedSeq = seq
	}
	eng.OnFlush = func(uint64) { save() }

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.Server.AdminKey == "" {
		slog.Warn(config.AdminKeyEnv + " not set, admin POST endpoints will be disabled")
	}
	apiServer := &api.Server{
		Session:       sess,
		Eng:           eng,
		DB:            db,
		WorldID:       worldID,
		Seed:          grid.Seed(),
		AdminKey:      cfg.Server.AdminKey,
		PathPerMinute: cfg.Server.PathPerMinute,
	}
	srv := apiServer.Start(cfg.Server.Addr)

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\nWorld %s (seed %d): %s cells, traveller on the %s at %s.\n",
		worldID, grid.Seed(), humanize.Comma(int64(grid.CellCount())),
		strings.ToLower(grid.At(startAt).Biome.String()), startAt)
	fmt.Printf("API: http://localhost%s/api/v1/status\n", cfg.Server.Addr)
	fmt.Println("Running... (Ctrl+C to stop)")

	if err := eng.Run(ctx); err != nil && err != context.Canceled {
		slog.Error("engine stopped", "error", err)
	}

	if err := api.Shutdown(srv, 5*time.Second); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}
	slog.Info("final save...")
	save()
	fmt.Printf("Stopped on %s. World %s archived.\n", engine.DayClock(sess.Day()), worldID)
}

// archiveWorld stores a freshly generated world in the database and writes
// its snapshot. Every step is attempted; failures are joined.
func archiveWorld(db *persistence.DB, worldID string, grid *world.Grid, gen world.GenConfig,
	layer *autotile.Layer, snapshotDir string) error {
	var errs []error
	if err := db.SaveWorld(worldID, grid); err != nil {
		errs = append(errs, fmt.Errorf("save world: %w", err))
	}
	if err := db.SaveMeta(worldID, "seed", fmt.Sprintf("%d", grid.Seed())); err != nil {
		errs = append(errs, fmt.Errorf("save seed meta: %w", err))
	}

	gen.Seed = grid.Seed()
	path := filepath.Join(snapshotDir, worldID+".snap.zst")
	if err := snapshot.WriteSnapshot(path, snapshot.FromGrid(worldID, gen, grid, layer)); err != nil {
		errs = append(errs, fmt.Errorf("snapshot %s: %w", path, err))
	} else if fi, err := os.Stat(path); err == nil {
		slog.Info("snapshot written", "path", path, "size", humanize.Bytes(uint64(fi.Size())))
	}
	return errors.Join(errs...)
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func logTerrain(g *world.Grid) {
	counts := world.TerrainCounts(g)
	kinds := make([]world.BiomeKind, 0, len(counts))
	for b := range counts {
		kinds = append(kinds, b)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, b := range kinds {
		slog.Info("terrain", "biome", b, "count", counts[b],
			"share", fmt.Sprintf("%.1f%%", 100*float64(counts[b])/float64(g.CellCount())))
	}
	for name, n := range world.POICounts(g) {
		slog.Info("points of interest", "name", name, "count", n)
	}
}

// verifySnapshot regenerates a world from the archived config and reports
// whether the terrain matches. Returns the process exit code.
func verifySnapshot(path string) int {
	snap, err := snapshot.ReadSnapshot(path)
	if err != nil {
		slog.Error("read snapshot", "path", path, "error", err)
		return 1
	}
	regen, err := world.Generate(snap.Config)
	if err != nil {
		slog.Error("regenerate", "error", err)
		return 1
	}
	if c, diff := snap.Diff(regen); diff {
		slog.Error("regenerated world differs", "world", snap.Header.WorldID, "first_diff", c)
		return 2
	}
	slog.Info("snapshot verified", "world", snap.Header.WorldID, "seed", snap.Header.Seed,
		"cells", humanize.Comma(int64(len(snap.Cells))))
	return 0
}
