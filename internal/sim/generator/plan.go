package generator

import (
	"sort"

	"buildgen.ai/internal/sim/building"
	"buildgen.ai/internal/sim/templates"
)

// Plan is everything needed to regenerate a building: which template and
// seed every floor and the roof used. A nil seed draws a fresh one.
type Plan struct {
	BuildingID string
	Floors     []PlannedPart
	Roof       *PlannedPart
}

type PlannedPart struct {
	Level      int
	TemplateID string
	Seed       *int64
}

// PlanOf captures b's templates and seeds, floors in level order.
func PlanOf(b *building.Building) Plan {
	p := Plan{BuildingID: b.ID()}
	for _, f := range b.Floors() {
		sd := f.Seed
		p.Floors = append(p.Floors, PlannedPart{Level: f.Level, TemplateID: f.TemplateID, Seed: &sd})
	}
	if r := b.Roof(); r != nil {
		sd := r.Seed
		p.Roof = &PlannedPart{TemplateID: r.TemplateID, Seed: &sd}
	}
	return p
}

// Reseeded drops every seed so Rebuild draws fresh ones.
func (p Plan) Reseeded() Plan {
	out := Plan{BuildingID: p.BuildingID}
	for _, f := range p.Floors {
		out.Floors = append(out.Floors, PlannedPart{Level: f.Level, TemplateID: f.TemplateID})
	}
	if p.Roof != nil {
		out.Roof = &PlannedPart{TemplateID: p.Roof.TemplateID}
	}
	return out
}

// Rebuild replaces the building p.BuildingID with one generated from p.
// Floors are created bottom up so every floor lands on its final height.
// Every planned template is checked against the scene before the existing
// building is destroyed.
func (g *Generator) Rebuild(bt *templates.BuildingTemplate, p Plan) (*building.Building, error) {
	for _, f := range p.Floors {
		ft := bt.FloorTemplate(f.TemplateID)
		if ft == nil {
			return nil, &building.LookupError{What: "floor template", Key: f.TemplateID}
		}
		if err := bt.CheckFloor(ft, g.scene); err != nil {
			return nil, err
		}
	}
	if p.Roof != nil {
		rt := bt.RoofTemplate(p.Roof.TemplateID)
		if rt == nil {
			return nil, &building.LookupError{What: "roof template", Key: p.Roof.TemplateID}
		}
		if err := bt.CheckRoof(rt, g.scene); err != nil {
			return nil, err
		}
	}
	floors := append([]PlannedPart(nil), p.Floors...)
	sort.SliceStable(floors, func(i, j int) bool { return floors[i].Level < floors[j].Level })

	b, err := g.CreateEmptyBuilding(p.BuildingID, bt)
	if err != nil {
		return nil, err
	}
	for _, f := range floors {
		if _, err := g.CreateFloor(b, bt, bt.FloorTemplate(f.TemplateID), f.Level, f.Seed); err != nil {
			return nil, err
		}
	}
	if p.Roof != nil {
		if _, err := g.CreateRoof(b, bt, bt.RoofTemplate(p.Roof.TemplateID), p.Roof.Seed); err != nil {
			return nil, err
		}
	}
	return b, nil
}
