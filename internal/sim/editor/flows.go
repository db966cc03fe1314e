package editor

import (
	"fmt"
	"path/filepath"

	"buildgen.ai/internal/persistence/archive"
	"buildgen.ai/internal/persistence/codec"
	"buildgen.ai/internal/persistence/snapshot"
	"buildgen.ai/internal/sim/building"
	"buildgen.ai/internal/sim/generator"
	"buildgen.ai/internal/sim/templates"
)

// SetTemplate makes id the current building template.
func (s *Session) SetTemplate(id string) error {
	if err := s.prof.SetCurrentTemplate(id); err != nil {
		return &building.LookupError{What: "building template", Key: id}
	}
	return s.saveProfile()
}

// CreateBuilding replaces any building called id with floors floors and a
// roof. An empty floorTemplate or roofTemplate picks a random valid template
// per part.
func (s *Session) CreateBuilding(id string, floors int, floorTemplate, roofTemplate string) error {
	bt, err := s.template()
	if err != nil {
		return err
	}
	if id == "" {
		id = s.tune.DefaultBuildingID
	}
	if floors == 0 {
		floors = s.tune.DefaultFloors
	}
	if floors < 1 || floors > s.tune.MaxFloors {
		return badRequest("floor count %d outside 1..%d", floors, s.tune.MaxFloors)
	}

	scene := s.gen.Scene()
	validFloors := bt.ValidFloorTemplates(scene)
	if len(validFloors) == 0 {
		return &templates.ValidationError{Template: bt.ID, Code: templates.NoValidFloorBlueprints}
	}
	validRoofs := bt.ValidRoofTemplates(scene)
	if len(validRoofs) == 0 {
		return &templates.ValidationError{Template: bt.ID, Code: templates.NoValidRoofBlueprints}
	}
	var ft *templates.FloorTemplate
	if floorTemplate != "" {
		if ft = bt.FloorTemplate(floorTemplate); ft == nil {
			return &building.LookupError{What: "floor template", Key: floorTemplate}
		}
		if err := bt.CheckFloor(ft, scene); err != nil {
			return err
		}
	}
	var rt *templates.RoofTemplate
	if roofTemplate != "" {
		if rt = bt.RoofTemplate(roofTemplate); rt == nil {
			return &building.LookupError{What: "roof template", Key: roofTemplate}
		}
		if err := bt.CheckRoof(rt, scene); err != nil {
			return err
		}
	} else {
		rt = validRoofs[s.pick.Index(len(validRoofs))]
	}

	b, err := s.gen.CreateEmptyBuilding(id, bt)
	if err != nil {
		return err
	}
	s.cur = b
	s.selected = nil
	s.prof.CurBuilding = b.ID()
	if err := s.saveProfile(); err != nil {
		return err
	}

	for level := 0; level < floors; level++ {
		t := ft
		if t == nil {
			t = validFloors[s.pick.Index(len(validFloors))]
		}
		if _, err := s.gen.CreateFloor(b, bt, t, level, nil); err != nil {
			return err
		}
	}
	if _, err := s.gen.CreateRoof(b, bt, rt, nil); err != nil {
		return err
	}
	s.log.Info("building created", "building", b.ID(), "template", bt.ID, "floors", floors)
	return s.save()
}

// OpenBuilding makes id the current building, read from its root node's
// metadata or, failing that, from the store.
func (s *Session) OpenBuilding(id string) error {
	b, err := s.readSceneMetadata(id)
	if err != nil {
		return err
	}
	if b == nil {
		raw, err := s.store.LoadBuilding(id)
		if err != nil {
			return err
		}
		if raw == nil {
			return &building.LookupError{What: "building", Key: id}
		}
		if b, err = codec.UnmarshalBuilding(raw); err != nil {
			return err
		}
	}
	s.cur = b
	s.selected = nil
	s.prof.CurBuilding = b.ID()
	return s.saveProfile()
}

// DestroyBuilding removes id from the scene and the store.
func (s *Session) DestroyBuilding(id string) error {
	if err := s.gen.DestroyBuilding(id); err != nil {
		return err
	}
	if err := s.store.DeleteBuilding(id); err != nil {
		return err
	}
	if s.snapDir != "" && s.archiveDir != "" {
		if dir, ok, err := archive.ArchiveBuilding(s.snapDir, s.archiveDir, id, s.now()); err != nil {
			s.log.Error("archive snapshots", "building", id, "err", err)
		} else if ok {
			s.log.Info("snapshots archived", "building", id, "dir", dir)
		}
	}
	if s.cur != nil && s.cur.ID() == id {
		s.cur = nil
		s.selected = nil
	}
	if s.prof.CurBuilding == id {
		s.prof.CurBuilding = ""
		return s.saveProfile()
	}
	return nil
}

// Refresh regenerates every part with its stored template and seed.
func (s *Session) Refresh() error {
	if s.cur == nil {
		return ErrNoBuilding
	}
	return s.rebuild(generator.PlanOf(s.cur))
}

// Randomize regenerates every part with its template and a fresh seed.
func (s *Session) Randomize() error {
	if s.cur == nil {
		return ErrNoBuilding
	}
	return s.rebuild(generator.PlanOf(s.cur).Reseeded())
}

func (s *Session) rebuild(p generator.Plan) error {
	_, bt, err := s.open()
	if err != nil {
		return err
	}
	b, err := s.gen.Rebuild(bt, p)
	if err != nil {
		return err
	}
	s.cur = b
	return s.save()
}

// MoveFloorUp swaps level with the floor above it. The selection follows
// the floor it was on.
func (s *Session) MoveFloorUp(level int) error {
	return s.swap(level, level+1)
}

func (s *Session) MoveFloorDown(level int) error {
	return s.swap(level, level-1)
}

func (s *Session) swap(level, other int) error {
	b, bt, err := s.open()
	if err != nil {
		return err
	}
	if err := s.gen.SwapFloors(b, bt, level, other); err != nil {
		return err
	}
	if sel, ok := s.Selected(); ok {
		switch sel {
		case level:
			s.setSelected(other)
		case other:
			s.setSelected(level)
		}
	}
	return s.save()
}

// AddFloor inserts a floor at level using the template of the floor below,
// lifting everything from level up.
func (s *Session) AddFloor(level int) error {
	b, bt, err := s.open()
	if err != nil {
		return err
	}
	below, err := b.FloorAt(level - 1)
	if err != nil {
		return err
	}
	if b.FloorCount() >= s.tune.MaxFloors {
		return badRequest("building already has %d floors", b.FloorCount())
	}
	ft := bt.FloorTemplate(below.TemplateID)
	if ft == nil {
		return &building.LookupError{What: "floor template", Key: below.TemplateID}
	}
	if _, err := s.gen.InsertFloor(b, bt, ft, level, nil); err != nil {
		return err
	}
	if sel, ok := s.Selected(); ok && level <= sel {
		s.setSelected(sel + 1)
	}
	return s.save()
}

// DeleteFloor removes the floor at level; floors above drop one level.
func (s *Session) DeleteFloor(level int) error {
	b, bt, err := s.open()
	if err != nil {
		return err
	}
	if err := s.gen.DestroyFloor(b, bt, level); err != nil {
		return err
	}
	if sel, ok := s.Selected(); ok {
		switch {
		case sel == level:
			s.selected = nil
		case level < sel:
			s.setSelected(sel - 1)
		}
	}
	return s.save()
}

// RecreateFloor regenerates the floor at level. An empty templateID keeps
// the floor's template; a nil seed draws a fresh one.
func (s *Session) RecreateFloor(level int, templateID string, seed *int64) error {
	b, bt, err := s.open()
	if err != nil {
		return err
	}
	f, err := b.FloorAt(level)
	if err != nil {
		return err
	}
	if templateID == "" {
		templateID = f.TemplateID
	}
	ft := bt.FloorTemplate(templateID)
	if ft == nil {
		return &building.LookupError{What: "floor template", Key: templateID}
	}
	if _, err := s.gen.CreateFloor(b, bt, ft, level, seed); err != nil {
		return err
	}
	return s.save()
}

// RecreateRoof regenerates the roof. An empty templateID keeps the roof's
// template.
func (s *Session) RecreateRoof(templateID string, seed *int64) error {
	b, bt, err := s.open()
	if err != nil {
		return err
	}
	if templateID == "" {
		if !b.HasRoof() {
			return badRequest("building %s has no roof; name a roof template", b.ID())
		}
		templateID = b.Roof().TemplateID
	}
	rt := bt.RoofTemplate(templateID)
	if rt == nil {
		return &building.LookupError{What: "roof template", Key: templateID}
	}
	if _, err := s.gen.CreateRoof(b, bt, rt, seed); err != nil {
		return err
	}
	return s.save()
}

// SelectFloor toggles the selection of level. Level FloorCount() selects the
// roof.
func (s *Session) SelectFloor(level int) error {
	if s.cur == nil {
		return ErrNoBuilding
	}
	if sel, ok := s.Selected(); ok && sel == level {
		s.selected = nil
		return nil
	}
	n := s.cur.FloorCount()
	switch {
	case level == n && s.cur.HasRoof():
	case s.cur.HasFloorAt(level):
	default:
		return &building.LookupError{What: "floor", Key: fmt.Sprint(level)}
	}
	s.setSelected(level)
	return nil
}

// SaveSnapshot writes the open building to the snapshot directory and
// returns the file path.
func (s *Session) SaveSnapshot() (string, error) {
	b, bt, err := s.open()
	if err != nil {
		return "", err
	}
	if s.snapDir == "" {
		return "", badRequest("snapshots are disabled")
	}
	now := s.now()
	snap, err := snapshot.New(b, bt, now)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.snapDir, snapshot.FileName(b.ID(), now))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if s.index != nil {
		s.index.RecordSnapshot(path, snap)
	}
	s.log.Info("snapshot saved", "building", b.ID(), "path", path)
	return path, nil
}
