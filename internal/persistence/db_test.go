package persistence

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/talgya/tileworld/internal/engine"
	"github.com/talgya/tileworld/internal/pathfind"
	"github.com/talgya/tileworld/internal/world"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "world.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func generate(t *testing.T) *world.Grid {
	t.Helper()
	g, err := world.Generate(world.SmallTestConfig())
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestWorldRoundTrip(t *testing.T) {
	db := openTestDB(t)
	g := generate(t)
	world.NewVisibilityWriter(g).RevealSquare(g.Center(), 2)

	if err := db.SaveWorld("w1", g); err != nil {
		t.Fatalf("SaveWorld: %v", err)
	}
	got, err := db.LoadWorld("w1")
	if err != nil {
		t.Fatalf("LoadWorld: %v", err)
	}

	if got.Seed() != g.Seed() || got.Width() != g.Width() || got.Height() != g.Height() {
		t.Fatalf("loaded %v, want %v", got, g)
	}
	if got.SeenCount() != g.SeenCount() {
		t.Errorf("SeenCount = %d, want %d", got.SeenCount(), g.SeenCount())
	}
	g.Each(func(c world.Coord, want world.Cell) {
		have := got.At(c)
		if have.Biome != want.Biome || have.Elevation != want.Elevation ||
			have.TraversalRate != want.TraversalRate || have.POI != want.POI || have.Seen() != want.Seen() {
			t.Fatalf("cell %s = %+v, want %+v", c, have, want)
		}
	})

	// Saving again replaces rather than duplicates.
	if err := db.SaveWorld("w1", g); err != nil {
		t.Fatal(err)
	}
	worlds, err := db.Worlds()
	if err != nil || len(worlds) != 1 || worlds[0].ID != "w1" {
		t.Errorf("Worlds = %+v, %v", worlds, err)
	}
}

func TestSaveWorldKeepsCreatedAt(t *testing.T) {
	db := openTestDB(t)
	g := generate(t)
	if err := db.SaveWorld("w1", g); err != nil {
		t.Fatal(err)
	}
	if _, err := db.conn.Exec("UPDATE worlds SET created_at = 1000 WHERE id = ?", "w1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveWorld("w1", g); err != nil {
		t.Fatal(err)
	}
	worlds, err := db.Worlds()
	if err != nil || len(worlds) != 1 {
		t.Fatalf("Worlds = %+v, %v", worlds, err)
	}
	if worlds[0].CreatedAt != 1000 {
		t.Errorf("CreatedAt = %d after resave, want 1000", worlds[0].CreatedAt)
	}
	if worlds[0].Seed != g.Seed() {
		t.Errorf("Seed = %d, want %d", worlds[0].Seed, g.Seed())
	}
}

func TestLoadMissingWorld(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.LoadWorld("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestEventsAndMeta(t *testing.T) {
	db := openTestDB(t)
	events := []engine.Event{
		{Seq: 1, Day: 0, Kind: engine.EventPlaced, At: world.Coord{X: 1, Y: 2}, Description: "placed"},
		{Seq: 2, Day: 1.5, Kind: engine.EventDivergence, At: world.Coord{X: 2, Y: 2}, TrueCost: 3, DisplayCost: 1, Description: "slow"},
	}
	if err := db.SaveEvents("w1", events); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveEvents("w2", events[:1]); err != nil {
		t.Fatal(err)
	}

	got, err := db.RecentEvents("w1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != events[1] || got[1] != events[0] {
		t.Errorf("RecentEvents = %+v", got)
	}

	if err := db.SaveMeta("w1", "day", "1.5"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveMeta("w1", "day", "2.0"); err != nil {
		t.Fatal(err)
	}
	if v, err := db.GetMeta("w1", "day"); err != nil || v != "2.0" {
		t.Errorf("GetMeta = %q, %v", v, err)
	}
	if _, err := db.GetMeta("w2", "day"); err == nil {
		t.Error("GetMeta for unset key succeeded")
	}
}

func TestSaveSession(t *testing.T) {
	db := openTestDB(t)
	g := generate(t)
	pf, err := pathfind.New(g, pathfind.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	s, err := engine.NewSession(g, pf, nil, engine.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Place(g.Center()); err != nil {
		t.Fatal(err)
	}

	seq, err := db.SaveSession("w1", s, 0)
	if err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if seq != 1 {
		t.Errorf("seq = %d, want 1", seq)
	}
	if seq, err = db.SaveSession("w1", s, seq); err != nil || seq != 1 {
		t.Errorf("second SaveSession = %d, %v", seq, err)
	}
	evs, err := db.RecentEvents("w1", 10)
	if err != nil || len(evs) != 1 {
		t.Errorf("events = %+v, %v, want one placed event", evs, err)
	}
	loaded, err := db.LoadWorld("w1")
	if err != nil {
		t.Fatal(err)
	}
	if loaded.SeenCount() != 9 {
		t.Errorf("archived SeenCount = %d, want 9", loaded.SeenCount())
	}
}
