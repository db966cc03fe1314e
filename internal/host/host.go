// Package host is the seam between the generator and the 3D authoring host.
// Node names are the handles: every call resolves the name again, so a
// renamed or deleted node is never reached through a stale reference.
package host

import (
	"errors"
	"fmt"

	"buildgen.ai/internal/sim/layout"
)

// Node kinds understood by CreateNode.
const (
	KindTransform = "transform"
	KindMesh      = "mesh"
)

var (
	ErrNoSuchNode = errors.New("no such node")
	ErrCycle      = errors.New("parent cycle")
)

// NameCollisionError is returned when a create or rename targets a name that
// is already in use.
type NameCollisionError struct {
	Name string
}

func (e *NameCollisionError) Error() string {
	return fmt.Sprintf("name %q already in use", e.Name)
}

// Scene is the host scene graph as consumed by the generator.
type Scene interface {
	// CreateNode creates an empty node called name and returns its name.
	CreateNode(kind, name string) (string, error)
	// Duplicate copies a blueprint (and its subtree) under a host-chosen
	// unique name and returns that name.
	Duplicate(blueprint string) (string, error)
	// Rename returns the node's new name.
	Rename(node, name string) (string, error)
	// Delete removes node and its whole subtree.
	Delete(node string) error
	Exists(name string) bool

	// SetParent reparents node keeping its world position. An empty parent
	// moves the node to the world root.
	SetParent(node, parent string) error
	// Parent returns "" for nodes at the world root.
	Parent(node string) (string, error)

	Translate(node string) (layout.Vec3, error)
	SetTranslate(node string, v layout.Vec3) error
	Rotate(node string) (layout.Vec3, error)
	SetRotate(node string, v layout.Vec3) error

	ReadAttribute(node, key string) (string, bool, error)
	WriteAttribute(node, key, value string) error
	HasAttribute(node, key string) bool
}

// BlueprintChecker is the part of Scene template validation needs.
type BlueprintChecker interface {
	Exists(name string) bool
}
