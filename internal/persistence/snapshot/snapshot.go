// Package snapshot writes and reads zstd-compressed world archives: a JSON
// header line followed by a JSON body.
package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/tileworld/internal/autotile"
	"github.com/talgya/tileworld/internal/world"
)

// Version is the current archive layout.
const Version = 1

// Header is readable without decoding the body.
type Header struct {
	Version   int    `json:"version"`
	WorldID   string `json:"world_id"`
	Seed      int64  `json:"seed"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	CreatedAt int64  `json:"created_at"`
}

// CellV1 is one archived cell.
type CellV1 struct {
	Elevation     float64         `json:"e"`
	Biome         world.BiomeKind `json:"b"`
	TraversalRate float64         `json:"t"`
	Resource      float64         `json:"r"`
	POI           string          `json:"p,omitempty"`
	Seen          bool            `json:"s,omitempty"`
}

// SnapshotV1 is a full world archive, cells in row-major order.
type SnapshotV1 struct {
	Header   Header            `json:"header"`
	Config   world.GenConfig   `json:"config"`
	Cells    []CellV1          `json:"cells"`
	Variants []autotile.Result `json:"variants,omitempty"`
}

// FromGrid captures g and its variant layer. layer may be nil.
func FromGrid(id string, cfg world.GenConfig, g *world.Grid, layer *autotile.Layer) SnapshotV1 {
	snap := SnapshotV1{
		Header: Header{
			Version:   Version,
			WorldID:   id,
			Seed:      g.Seed(),
			Width:     g.Width(),
			Height:    g.Height(),
			CreatedAt: time.Now().Unix(),
		},
		Config: cfg,
		Cells:  make([]CellV1, 0, g.CellCount()),
	}
	if layer != nil {
		snap.Variants = make([]autotile.Result, 0, g.CellCount())
	}
	g.Each(func(c world.Coord, cell world.Cell) {
		snap.Cells = append(snap.Cells, CellV1{
			Elevation:     cell.Elevation,
			Biome:         cell.Biome,
			TraversalRate: cell.TraversalRate,
			Resource:      cell.Resource,
			POI:           cell.POI,
			Seen:          cell.Seen(),
		})
		if layer != nil {
			snap.Variants = append(snap.Variants, layer.At(c))
		}
	})
	return snap
}

// Grid rebuilds the archived grid with its seen bits.
func (s SnapshotV1) Grid() (*world.Grid, error) {
	h := s.Header
	if len(s.Cells) != h.Width*h.Height {
		return nil, fmt.Errorf("snapshot %s: %d cells, want %d", h.WorldID, len(s.Cells), h.Width*h.Height)
	}
	g, err := world.NewGrid(h.Width, h.Height, func(c world.Coord) world.Cell {
		rec := s.Cells[c.Y*h.Width+c.X]
		return world.Cell{
			Elevation:     rec.Elevation,
			Biome:         rec.Biome,
			TraversalRate: rec.TraversalRate,
			Resource:      rec.Resource,
			POI:           rec.POI,
		}
	})
	if err != nil {
		return nil, err
	}
	g.SetSeed(h.Seed)
	vis := world.NewVisibilityWriter(g)
	for i, rec := range s.Cells {
		if rec.Seen {
			vis.Reveal(world.Coord{X: i % h.Width, Y: i / h.Width})
		}
	}
	return g, nil
}

// Diff compares archived terrain with g and returns the first mismatching
// coordinate, if any. Seen bits are ignored.
func (s SnapshotV1) Diff(g *world.Grid) (world.Coord, bool) {
	w := s.Header.Width
	if g.Width() != w || g.Height() != s.Header.Height {
		return world.Coord{}, true
	}
	for i, rec := range s.Cells {
		c := world.Coord{X: i % w, Y: i / w}
		cell := g.At(c)
		if cell.Elevation != rec.Elevation || cell.Biome != rec.Biome ||
			cell.TraversalRate != rec.TraversalRate || cell.POI != rec.POI {
			return c, true
		}
	}
	return world.Coord{}, false
}

// WriteSnapshot writes snap to path, creating parent directories.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := Encode(f, snap); err != nil {
		return err
	}
	return f.Close()
}

// Encode writes the compressed archive to w.
func Encode(w io.Writer, snap SnapshotV1) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(snap.Header)
	if err != nil {
		enc.Close()
		return fmt.Errorf("encode header: %w", err)
	}
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		enc.Close()
		return err
	}
	if err := json.NewEncoder(bw).Encode(&snap); err != nil {
		enc.Close()
		return fmt.Errorf("encode body: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// ReadSnapshot reads a full archive from path.
func ReadSnapshot(path string) (SnapshotV1, error) {
	f, err := os.Open(path)
	if err != nil {
		return SnapshotV1{}, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a compressed archive from r.
func Decode(r io.Reader) (SnapshotV1, error) {
	var snap SnapshotV1
	dec, err := zstd.NewReader(r)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	// The body repeats the header.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := json.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode body: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader reads only the header line from path.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}
