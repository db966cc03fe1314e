package memscene

import (
	"errors"
	"testing"

	"buildgen.ai/internal/host"
	"buildgen.ai/internal/sim/layout"
)

func TestSetParent_KeepsWorldPosition(t *testing.T) {
	s := New()
	root, _ := s.CreateNode(host.KindTransform, "root")
	child, _ := s.CreateNode(host.KindTransform, "child")
	if err := s.SetTranslate(root, layout.Vec3{0, 10, 0}); err != nil {
		t.Fatalf("SetTranslate: %v", err)
	}
	if err := s.SetTranslate(child, layout.Vec3{1, 12, 3}); err != nil {
		t.Fatalf("SetTranslate: %v", err)
	}
	if err := s.SetParent(child, root); err != nil {
		t.Fatalf("SetParent: %v", err)
	}
	local, _ := s.Translate(child)
	if local != (layout.Vec3{1, 2, 3}) {
		t.Fatalf("local=%v want [1 2 3]", local)
	}
	_ = s.SetTranslate(root, layout.Vec3{0, 20, 0})
	world, _ := s.WorldTranslate(child)
	if world != (layout.Vec3{1, 22, 3}) {
		t.Fatalf("world=%v want [1 22 3]", world)
	}
	if p, _ := s.Parent(child); p != root {
		t.Fatalf("parent=%q want %q", p, root)
	}
	if err := s.SetParent(root, child); !errors.Is(err, host.ErrCycle) {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestDuplicateRenameDelete(t *testing.T) {
	s := New()
	if err := s.AddBlueprint("wall_01"); err != nil {
		t.Fatalf("AddBlueprint: %v", err)
	}
	dup, err := s.Duplicate("wall_01")
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}
	if dup == "wall_01" || s.Source(dup) != "wall_01" {
		t.Fatalf("duplicate name=%q source=%q", dup, s.Source(dup))
	}
	name, err := s.Rename(dup, "b_floor_0_front_wall_1")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if s.Exists(dup) || !s.Exists(name) {
		t.Fatalf("rename did not move the node")
	}

	var collision *host.NameCollisionError
	if _, err := s.Rename("wall_01", name); !errors.As(err, &collision) {
		t.Fatalf("expected NameCollisionError, got %v", err)
	}
	if _, err := s.CreateNode(host.KindTransform, name); !errors.As(err, &collision) {
		t.Fatalf("expected NameCollisionError on create, got %v", err)
	}

	grp, _ := s.CreateNode(host.KindTransform, "grp")
	_ = s.SetParent(name, grp)
	if err := s.Delete(grp); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Exists(name) || s.Exists(grp) {
		t.Fatalf("delete must remove the subtree")
	}
	if !s.Exists("wall_01") {
		t.Fatalf("blueprint must survive")
	}
	if err := s.Delete(grp); !errors.Is(err, host.ErrNoSuchNode) {
		t.Fatalf("expected ErrNoSuchNode, got %v", err)
	}
}

func TestAttributesAndOps(t *testing.T) {
	s := New()
	n, _ := s.CreateNode(host.KindTransform, "b")
	if s.HasAttribute(n, "metaData") {
		t.Fatalf("unexpected attribute")
	}
	if err := s.WriteAttribute(n, "metaData", `{"object":"b"}`); err != nil {
		t.Fatalf("WriteAttribute: %v", err)
	}
	v, ok, err := s.ReadAttribute(n, "metaData")
	if err != nil || !ok || v != `{"object":"b"}` {
		t.Fatalf("ReadAttribute=%q,%v,%v", v, ok, err)
	}
	ops := s.Ops()
	if len(ops) != 2 || ops[0].Kind != "create" || ops[1].Kind != "attr" {
		t.Fatalf("ops=%v", ops)
	}
}
