package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/talgya/tileworld/internal/noise"
	"github.com/talgya/tileworld/internal/pathfind"
	"github.com/talgya/tileworld/internal/world"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "world.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
world:
  width: 32
  seed: 7
  waves:
    - {octaves: 3, persistence: 0.5, lacunarity: 2, scale: 0.08, amplitude: 0.7, noise: perlin}
  biomes:
    - {biome: beach, traversal_rate: 1.2, resource: 0.1}
pathing:
  open_set: heap
session:
  tick_interval: 250ms
  halt_on_divergence: true
`)
	t.Setenv(AdminKeyEnv, "secret")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.World.Width != 32 || cfg.World.Height != 64 || cfg.World.Seed != 7 {
		t.Errorf("world size/seed = %dx%d/%d", cfg.World.Width, cfg.World.Height, cfg.World.Seed)
	}
	if len(cfg.World.Waves) != 1 || cfg.World.Waves[0].Noise != noise.KindPerlin {
		t.Errorf("waves = %+v", cfg.World.Waves)
	}
	if len(cfg.World.Biomes) != 1 || cfg.World.Biomes[0].Biome != world.BiomeBeach {
		t.Errorf("biomes = %+v", cfg.World.Biomes)
	}
	if cfg.Pathing.OpenSet != pathfind.OpenSetHeap || !cfg.Pathing.Diagonals {
		t.Errorf("pathing = %+v", cfg.Pathing)
	}
	if cfg.Session.TickInterval != 250*time.Millisecond || !cfg.Session.HaltOnDivergence || cfg.Session.StepsInADay != 10 {
		t.Errorf("session = %+v", cfg.Session)
	}
	if cfg.Server.AdminKey != "secret" {
		t.Errorf("AdminKey = %q, want from environment", cfg.Server.AdminKey)
	}
}

func TestLoadRejectsBadLevels(t *testing.T) {
	path := writeFile(t, `
world:
  levels: {deep_water: 0.5, water: 0.4, beach: 0.6, grassland: 0.7, forest: 0.8, mountain: 1.2}
`)
	_, err := Load(path)
	if !errors.Is(err, world.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
	if _, err := Load(writeFile(t, "world: [")); err == nil {
		t.Error("bad yaml accepted")
	}
	if _, err := Load(writeFile(t, "world:\n  biomes:\n    - {biome: lava}\n")); err == nil {
		t.Error("unknown biome accepted")
	}
}

func TestSampleConfig(t *testing.T) {
	cfg, err := Load("../../config/world.yaml")
	if err != nil {
		t.Fatalf("sample config: %v", err)
	}
	if _, err := world.Generate(cfg.World); err != nil {
		t.Errorf("sample config does not generate: %v", err)
	}
}
