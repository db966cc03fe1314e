// Package memscene is an in-memory host.Scene. The hierarchy carries
// translation only; rotations are stored per node and never composed.
package memscene

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"buildgen.ai/internal/host"
	"buildgen.ai/internal/sim/layout"
)

type node struct {
	name     string
	kind     string
	source   string
	parent   *node
	children []*node

	translate layout.Vec3
	rotate    layout.Vec3
	attrs     map[string]string
}

// Op is one recorded scene mutation.
type Op struct {
	Kind string
	Node string
	Arg  string
}

// Scene is not safe for concurrent use; the host serializes access.
type Scene struct {
	nodes map[string]*node
	ops   []Op
}

var _ host.Scene = (*Scene)(nil)

func New() *Scene {
	return &Scene{nodes: map[string]*node{}}
}

// AddBlueprint registers a prototype mesh at the world root.
func (s *Scene) AddBlueprint(name string) error {
	_, err := s.CreateNode(host.KindMesh, name)
	return err
}

func (s *Scene) record(kind, name, arg string) {
	s.ops = append(s.ops, Op{Kind: kind, Node: name, Arg: arg})
}

// Ops returns the recorded mutations in call order.
func (s *Scene) Ops() []Op {
	out := make([]Op, len(s.ops))
	copy(out, s.ops)
	return out
}

func (s *Scene) ResetOps() { s.ops = nil }

func (s *Scene) get(name string) (*node, error) {
	n, ok := s.nodes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", host.ErrNoSuchNode, name)
	}
	return n, nil
}

func (s *Scene) uniqueName(base string) string {
	stem := strings.TrimRight(base, "0123456789")
	if stem == "" {
		stem = "node"
	}
	for i := 1; ; i++ {
		name := stem + strconv.Itoa(i)
		if _, taken := s.nodes[name]; !taken {
			return name
		}
	}
}

func (s *Scene) CreateNode(kind, name string) (string, error) {
	if name == "" {
		name = s.uniqueName(kind)
	}
	if _, taken := s.nodes[name]; taken {
		return "", &host.NameCollisionError{Name: name}
	}
	s.nodes[name] = &node{name: name, kind: kind}
	s.record("create", name, kind)
	return name, nil
}

func (s *Scene) Duplicate(blueprint string) (string, error) {
	src, err := s.get(blueprint)
	if err != nil {
		return "", err
	}
	cp := s.clone(src, nil)
	cp.translate = s.world(src)
	s.record("duplicate", cp.name, blueprint)
	return cp.name, nil
}

func (s *Scene) clone(src, parent *node) *node {
	n := &node{
		name:      s.uniqueName(src.name),
		kind:      src.kind,
		source:    src.name,
		parent:    parent,
		translate: src.translate,
		rotate:    src.rotate,
	}
	if len(src.attrs) > 0 {
		n.attrs = make(map[string]string, len(src.attrs))
		for k, v := range src.attrs {
			n.attrs[k] = v
		}
	}
	s.nodes[n.name] = n
	for _, c := range src.children {
		n.children = append(n.children, s.clone(c, n))
	}
	return n
}

func (s *Scene) Rename(name, newName string) (string, error) {
	n, err := s.get(name)
	if err != nil {
		return "", err
	}
	if name == newName {
		return name, nil
	}
	if newName == "" {
		return "", fmt.Errorf("rename %s: empty name", name)
	}
	if _, taken := s.nodes[newName]; taken {
		return "", &host.NameCollisionError{Name: newName}
	}
	delete(s.nodes, name)
	n.name = newName
	s.nodes[newName] = n
	s.record("rename", name, newName)
	return newName, nil
}

func (s *Scene) Delete(name string) error {
	n, err := s.get(name)
	if err != nil {
		return err
	}
	s.detach(n)
	s.drop(n)
	s.record("delete", name, "")
	return nil
}

func (s *Scene) drop(n *node) {
	for _, c := range n.children {
		s.drop(c)
	}
	delete(s.nodes, n.name)
}

func (s *Scene) detach(n *node) {
	p := n.parent
	if p == nil {
		return
	}
	for i, c := range p.children {
		if c == n {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	n.parent = nil
}

func (s *Scene) Exists(name string) bool {
	_, ok := s.nodes[name]
	return ok
}

func (s *Scene) SetParent(name, parent string) error {
	n, err := s.get(name)
	if err != nil {
		return err
	}
	var p *node
	if parent != "" {
		if p, err = s.get(parent); err != nil {
			return err
		}
		for a := p; a != nil; a = a.parent {
			if a == n {
				return fmt.Errorf("parent %s under %s: %w", name, parent, host.ErrCycle)
			}
		}
	}
	if n.parent == p {
		return nil
	}
	world := s.world(n)
	s.detach(n)
	if p != nil {
		p.children = append(p.children, n)
		n.parent = p
		n.translate = world.Sub(s.world(p))
	} else {
		n.translate = world
	}
	s.record("parent", name, parent)
	return nil
}

func (s *Scene) Parent(name string) (string, error) {
	n, err := s.get(name)
	if err != nil {
		return "", err
	}
	if n.parent == nil {
		return "", nil
	}
	return n.parent.name, nil
}

func (s *Scene) Translate(name string) (layout.Vec3, error) {
	n, err := s.get(name)
	if err != nil {
		return layout.Vec3{}, err
	}
	return n.translate, nil
}

func (s *Scene) SetTranslate(name string, v layout.Vec3) error {
	n, err := s.get(name)
	if err != nil {
		return err
	}
	n.translate = v
	s.record("translate", name, fmt.Sprint(v))
	return nil
}

func (s *Scene) Rotate(name string) (layout.Vec3, error) {
	n, err := s.get(name)
	if err != nil {
		return layout.Vec3{}, err
	}
	return n.rotate, nil
}

func (s *Scene) SetRotate(name string, v layout.Vec3) error {
	n, err := s.get(name)
	if err != nil {
		return err
	}
	n.rotate = v
	s.record("rotate", name, fmt.Sprint(v))
	return nil
}

func (s *Scene) ReadAttribute(name, key string) (string, bool, error) {
	n, err := s.get(name)
	if err != nil {
		return "", false, err
	}
	v, ok := n.attrs[key]
	return v, ok, nil
}

func (s *Scene) WriteAttribute(name, key, value string) error {
	n, err := s.get(name)
	if err != nil {
		return err
	}
	if n.attrs == nil {
		n.attrs = map[string]string{}
	}
	n.attrs[key] = value
	s.record("attr", name, key)
	return nil
}

func (s *Scene) HasAttribute(name, key string) bool {
	n, ok := s.nodes[name]
	if !ok {
		return false
	}
	_, ok = n.attrs[key]
	return ok
}

func (s *Scene) world(n *node) layout.Vec3 {
	var v layout.Vec3
	for a := n; a != nil; a = a.parent {
		v = v.Add(a.translate)
	}
	return v
}

// WorldTranslate is the node position after composing its ancestors.
func (s *Scene) WorldTranslate(name string) (layout.Vec3, error) {
	n, err := s.get(name)
	if err != nil {
		return layout.Vec3{}, err
	}
	return s.world(n), nil
}

// Source is the blueprint a duplicated node was copied from.
func (s *Scene) Source(name string) string {
	if n, ok := s.nodes[name]; ok {
		return n.source
	}
	return ""
}

// Children lists direct children in insertion order.
func (s *Scene) Children(name string) []string {
	n, ok := s.nodes[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c.name)
	}
	return out
}

// Descendants lists every node below name, sorted.
func (s *Scene) Descendants(name string) []string {
	n, ok := s.nodes[name]
	if !ok {
		return nil
	}
	var out []string
	var walk func(*node)
	walk = func(p *node) {
		for _, c := range p.children {
			out = append(out, c.name)
			walk(c)
		}
	}
	walk(n)
	sort.Strings(out)
	return out
}

// Roots lists world-root nodes, sorted.
func (s *Scene) Roots() []string {
	var out []string
	for name, n := range s.nodes {
		if n.parent == nil {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Scene) Len() int { return len(s.nodes) }
