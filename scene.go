package wgrender

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// NodeID addresses a node slot in a Scene arena. The generation makes ids
// of destroyed nodes unusable once their slot is recycled.
type NodeID struct {
	index uint32
	gen   uint32
}

func (id NodeID) String() string { return fmt.Sprintf("node(%d#%d)", id.index, id.gen) }

const noNode = -1

type node struct {
	gen   uint32
	alive bool
	name  string
	uuid  uuid.UUID

	local   Transform
	world   mgl32.Mat4
	changed uint64
	// computed is the clock value of the last world recomputation.
	computed uint64
	visible  bool

	parent     int32
	firstChild int32
	lastChild  int32
	prev       int32
	next       int32
	children   int

	camera     *Camera
	renderable *Renderable
}

// Scene owns every node reachable from its root. Nodes are stored in an
// arena and linked by index; a node has at most one parent and starts
// detached until added somewhere.
//
// A Scene is not safe for concurrent use.
type Scene struct {
	nodes   []node
	free    []uint32
	clock   uint64
	root    NodeID
	policy  TransformPolicy
	cameras []*Camera
}

func NewScene() *Scene {
	s := &Scene{}
	s.root = s.alloc("scene")
	return s
}

// SetTransformPolicy chooses how traversals refresh world matrices.
func (s *Scene) SetTransformPolicy(p TransformPolicy) { s.policy = p }

func (s *Scene) TransformPolicy() TransformPolicy { return s.policy }

func (s *Scene) Root() Object3D { return Object3D{scene: s, id: s.root} }

// NewObject creates a detached group node.
func (s *Scene) NewObject(name string) Object3D {
	return Object3D{scene: s, id: s.alloc(name)}
}

// Len is the number of live nodes, root included.
func (s *Scene) Len() int { return len(s.nodes) - len(s.free) }

// Cameras lists the live cameras created by this scene, attached or not.
func (s *Scene) Cameras() []*Camera {
	return append([]*Camera(nil), s.cameras...)
}

func (s *Scene) tick() uint64 {
	s.clock++
	return s.clock
}

func (s *Scene) alloc(name string) NodeID {
	n := node{
		alive:      true,
		name:       name,
		uuid:       uuid.New(),
		local:      NewTransform(),
		world:      mgl32.Ident4(),
		visible:    true,
		parent:     noNode,
		firstChild: noNode,
		lastChild:  noNode,
		prev:       noNode,
		next:       noNode,
	}
	n.changed = s.tick()
	if k := len(s.free); k > 0 {
		idx := s.free[k-1]
		s.free = s.free[:k-1]
		n.gen = s.nodes[idx].gen + 1
		s.nodes[idx] = n
		return NodeID{index: idx, gen: n.gen}
	}
	s.nodes = append(s.nodes, n)
	return NodeID{index: uint32(len(s.nodes) - 1), gen: 0}
}

func (s *Scene) valid(id NodeID) bool {
	return int(id.index) < len(s.nodes) && s.nodes[id.index].alive && s.nodes[id.index].gen == id.gen
}

func (s *Scene) node(id NodeID) *node {
	if !s.valid(id) {
		panic(fmt.Sprintf("wgrender: use of destroyed or foreign %v", id))
	}
	return &s.nodes[id.index]
}

func (s *Scene) idOf(idx int32) NodeID {
	return NodeID{index: uint32(idx), gen: s.nodes[idx].gen}
}

func (s *Scene) unlink(idx int32) {
	n := &s.nodes[idx]
	if n.parent == noNode {
		return
	}
	p := &s.nodes[n.parent]
	if n.prev != noNode {
		s.nodes[n.prev].next = n.next
	} else {
		p.firstChild = n.next
	}
	if n.next != noNode {
		s.nodes[n.next].prev = n.prev
	} else {
		p.lastChild = n.prev
	}
	p.children--
	n.parent, n.prev, n.next = noNode, noNode, noNode
}

func (s *Scene) link(parent, child int32) {
	p := &s.nodes[parent]
	c := &s.nodes[child]
	c.parent = parent
	c.prev = p.lastChild
	c.next = noNode
	if p.lastChild != noNode {
		s.nodes[p.lastChild].next = child
	} else {
		p.firstChild = child
	}
	p.lastChild = child
	p.children++
}

// reparent moves child under parent, appending it to the end of parent's
// children.
func (s *Scene) reparent(parent, child NodeID) error {
	if child == s.root {
		return fmt.Errorf("wgrender: the scene root cannot be reparented")
	}
	s.node(parent)
	c := s.node(child)
	for at := int32(parent.index); at != noNode; at = s.nodes[at].parent {
		if at == int32(child.index) {
			return ErrCycle
		}
	}
	s.unlink(int32(child.index))
	s.link(int32(parent.index), int32(child.index))
	c.changed = s.tick()
	return nil
}

func (s *Scene) detach(id NodeID) {
	n := s.node(id)
	if n.parent == noNode {
		return
	}
	s.unlink(int32(id.index))
	n.changed = s.tick()
}

// Destroy detaches obj and frees it together with its whole subtree. Handles
// to freed nodes become invalid. Geometries and materials referenced by
// freed renderables are not released.
func (s *Scene) Destroy(obj Object3D) {
	if obj.scene != s || !s.valid(obj.id) {
		return
	}
	if obj.id == s.root {
		panic("wgrender: the scene root cannot be destroyed")
	}
	s.unlink(int32(obj.id.index))
	stack := []int32{int32(obj.id.index)}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for c := s.nodes[idx].firstChild; c != noNode; c = s.nodes[c].next {
			stack = append(stack, c)
		}
		n := &s.nodes[idx]
		if n.camera != nil {
			s.dropCamera(n.camera)
		}
		if n.renderable != nil {
			n.renderable.destroyed = true
		}
		gen := n.gen
		*n = node{gen: gen, parent: noNode, firstChild: noNode, lastChild: noNode, prev: noNode, next: noNode}
		s.free = append(s.free, uint32(idx))
	}
}

func (s *Scene) dropCamera(c *Camera) {
	for i, cam := range s.cameras {
		if cam == c {
			s.cameras = append(s.cameras[:i], s.cameras[i+1:]...)
			return
		}
	}
}

// stale reports whether the cached world matrix of idx is out of date with
// respect to its own local transform or its parent's world matrix.
func (s *Scene) stale(idx int32) bool {
	n := &s.nodes[idx]
	if n.computed < n.changed {
		return true
	}
	return n.parent != noNode && s.nodes[n.parent].computed > n.computed
}

func (s *Scene) recompute(idx int32) {
	n := &s.nodes[idx]
	local := n.local.Matrix()
	if n.parent == noNode {
		n.world = local
	} else {
		n.world = s.nodes[n.parent].world.Mul4(local)
	}
	n.computed = s.tick()
}

// worldOf returns an up-to-date world matrix for idx, repairing only the
// path from its topmost ancestor.
func (s *Scene) worldOf(idx int32) mgl32.Mat4 {
	var path []int32
	for at := idx; at != noNode; at = s.nodes[at].parent {
		path = append(path, at)
	}
	for i := len(path) - 1; i >= 0; i-- {
		if s.stale(path[i]) {
			s.recompute(path[i])
		}
	}
	return s.nodes[idx].world
}

type visitFunc func(id NodeID, n *node, visible bool) bool

// walk visits the subtree under start in pre-order, refreshing world
// matrices on the way down. visible is the AND of the node's own flag and
// its ancestors'. Returning false from fn skips the node's children; their
// transforms are then refreshed lazily when read.
func (s *Scene) walk(start NodeID, fn visitFunc) {
	type frame struct {
		idx     int32
		visible bool
	}
	force := s.policy == TransformPolicyEveryFrame
	if start != s.root {
		s.worldOf(int32(start.index))
	}
	stack := []frame{{idx: int32(start.index), visible: true}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if force || s.stale(f.idx) {
			s.recompute(f.idx)
		}
		n := &s.nodes[f.idx]
		visible := f.visible && n.visible
		if fn != nil && !fn(s.idOf(f.idx), n, visible) {
			continue
		}
		for c := n.lastChild; c != noNode; c = s.nodes[c].prev {
			stack = append(stack, frame{idx: c, visible: visible})
		}
	}
}

// ComputeWorldTransforms refreshes the world matrix of every node reachable
// from the root, parents before children.
func (s *Scene) ComputeWorldTransforms() {
	s.walk(s.root, nil)
}
