package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"buildgen.ai/internal/persistence/codec"
	"buildgen.ai/internal/sim/building"
	"buildgen.ai/internal/sim/generator"
	"buildgen.ai/internal/sim/templates"
)

const Version = 1

type Header struct {
	Version    int    `json:"version"`
	BuildingID string `json:"building_id"`
	TemplateID string `json:"template_id"`
	SavedUnix  int64  `json:"saved_unix"`
	Floors     int    `json:"floors"`
	HasRoof    bool   `json:"has_roof"`
}

// SnapshotV1 carries the serialized building and template plus the seeds
// needed to regenerate the building into an empty scene.
type SnapshotV1 struct {
	Header Header `json:"header"`

	Building []byte `json:"building"`
	Template []byte `json:"template"`

	Floors []PartV1 `json:"floors"`
	Roof   *PartV1  `json:"roof,omitempty"`
}

type PartV1 struct {
	Level      int    `json:"level"`
	TemplateID string `json:"template_id"`
	Seed       int64  `json:"seed"`
}

// New captures b and bt at now.
func New(b *building.Building, bt *templates.BuildingTemplate, now time.Time) (SnapshotV1, error) {
	bb, err := codec.MarshalBuilding(b)
	if err != nil {
		return SnapshotV1{}, err
	}
	tb, err := codec.MarshalTemplate(bt)
	if err != nil {
		return SnapshotV1{}, err
	}
	snap := SnapshotV1{
		Header: Header{
			Version:    Version,
			BuildingID: b.ID(),
			TemplateID: bt.ID,
			SavedUnix:  now.Unix(),
			Floors:     b.FloorCount(),
			HasRoof:    b.HasRoof(),
		},
		Building: bb,
		Template: tb,
	}
	for _, f := range b.Floors() {
		snap.Floors = append(snap.Floors, PartV1{Level: f.Level, TemplateID: f.TemplateID, Seed: f.Seed})
	}
	if r := b.Roof(); r != nil {
		snap.Roof = &PartV1{TemplateID: r.TemplateID, Seed: r.Seed}
	}
	return snap, nil
}

// Plan converts the stored seeds into a generator plan.
func (s SnapshotV1) Plan() generator.Plan {
	p := generator.Plan{BuildingID: s.Header.BuildingID}
	for _, f := range s.Floors {
		sd := f.Seed
		p.Floors = append(p.Floors, generator.PlannedPart{Level: f.Level, TemplateID: f.TemplateID, Seed: &sd})
	}
	if s.Roof != nil {
		sd := s.Roof.Seed
		p.Roof = &generator.PlannedPart{TemplateID: s.Roof.TemplateID, Seed: &sd}
	}
	return p
}

// Decode unpacks the stored building and template.
func (s SnapshotV1) Decode() (*building.Building, *templates.BuildingTemplate, error) {
	b, err := codec.UnmarshalBuilding(s.Building)
	if err != nil {
		return nil, nil, err
	}
	bt, err := codec.UnmarshalTemplate(s.Template)
	if err != nil {
		return nil, nil, err
	}
	return b, bt, nil
}

// Replay regenerates the snapshot's building through g, which is expected
// to wrap a scene holding the template's blueprints.
func Replay(g *generator.Generator, s SnapshotV1) (*building.Building, error) {
	bt, err := codec.UnmarshalTemplate(s.Template)
	if err != nil {
		return nil, err
	}
	return g.Rebuild(bt, s.Plan())
}

// FileName is the snapshot name used for a building saved at t.
func FileName(buildingID string, t time.Time) string {
	return fmt.Sprintf("%s-%s.snap.zst", buildingID, t.UTC().Format(stampLayout))
}

const stampLayout = "20060102T150405"

// ParseFileName splits a FileName result back into the building id and the
// save time. Building ids may contain '-'; the stamp never does.
func ParseFileName(name string) (buildingID string, saved time.Time, ok bool) {
	base, found := strings.CutSuffix(filepath.Base(name), ".snap.zst")
	if !found {
		return "", time.Time{}, false
	}
	i := strings.LastIndexByte(base, '-')
	if i <= 0 {
		return "", time.Time{}, false
	}
	saved, err := time.Parse(stampLayout, base[i+1:])
	if err != nil {
		return "", time.Time{}, false
	}
	return base[:i], saved, true
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func open(path string) (*os.File, *zstd.Decoder, *bufio.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, nil, err
	}
	return f, dec, bufio.NewReaderSize(dec, 64*1024), nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, dec, br, err := open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()
	defer dec.Close()

	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, dec, br, err := open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()
	defer dec.Close()

	// The header line is repeated inside the gob body.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}
