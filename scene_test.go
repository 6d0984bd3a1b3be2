package wgrender

import (
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomTransform(rng *rand.Rand) Transform {
	axis := mgl32.Vec3{rng.Float32() + 0.1, rng.Float32(), rng.Float32()}.Normalize()
	return Transform{
		Position: mgl32.Vec3{rng.Float32()*10 - 5, rng.Float32()*10 - 5, rng.Float32()*10 - 5},
		Rotation: mgl32.QuatRotate(rng.Float32()*6, axis),
		Scale:    mgl32.Vec3{0.5 + rng.Float32(), 0.5 + rng.Float32(), 0.5 + rng.Float32()},
	}
}

func randomTree(t *testing.T, s *Scene, rng *rand.Rand, n int) []Object3D {
	t.Helper()
	nodes := []Object3D{s.Root()}
	for i := 0; i < n; i++ {
		obj := s.NewObject("node")
		obj.SetTransform(randomTransform(rng))
		parent := nodes[rng.Intn(len(nodes))]
		require.NoError(t, parent.Add(obj))
		nodes = append(nodes, obj)
	}
	return nodes
}

// assertWorldInvariant checks cached world matrices directly, without the
// repair done by WorldMatrix.
func assertWorldInvariant(t *testing.T, s *Scene, nodes []Object3D) {
	t.Helper()
	for _, obj := range nodes {
		n := obj.n()
		want := n.local.Matrix()
		if n.parent != noNode {
			want = s.nodes[n.parent].world.Mul4(want)
		}
		assertMat4Near(t, want, n.world)
	}
}

func TestComputeWorldTransforms_Policies(t *testing.T) {
	for _, policy := range []TransformPolicy{TransformPolicyLazy, TransformPolicyEveryFrame} {
		t.Run(policy.String(), func(t *testing.T) {
			rng := rand.New(rand.NewSource(7))
			s := NewScene()
			s.SetTransformPolicy(policy)
			s.Root().SetPosition(mgl32.Vec3{1, 2, 3})
			nodes := randomTree(t, s, rng, 60)

			s.ComputeWorldTransforms()
			assertWorldInvariant(t, s, nodes)
			assertMat4Near(t, s.Root().Transform().Matrix(), s.Root().n().world)

			// Mutate locals and move whole subtrees around, then traverse again.
			for i := 0; i < 20; i++ {
				nodes[1+rng.Intn(len(nodes)-1)].SetTransform(randomTransform(rng))
			}
			for i := 0; i < 10; i++ {
				child := nodes[1+rng.Intn(len(nodes)-1)]
				parent := nodes[rng.Intn(len(nodes))]
				if err := parent.Add(child); err != nil {
					require.ErrorIs(t, err, ErrCycle)
				}
			}
			s.Root().Translate(mgl32.Vec3{0, -1, 0})
			s.ComputeWorldTransforms()
			assertWorldInvariant(t, s, nodes)
		})
	}
}

func TestTraversalIsPreOrderAndVisitsOnce(t *testing.T) {
	s := NewScene()
	a, b, c, d := s.NewObject("a"), s.NewObject("b"), s.NewObject("c"), s.NewObject("d")
	require.NoError(t, s.Root().Add(a))
	require.NoError(t, a.Add(b))
	require.NoError(t, a.Add(c))
	require.NoError(t, s.Root().Add(d))

	var order []string
	s.Root().Traverse(func(obj Object3D) bool {
		order = append(order, obj.Name())
		return true
	})
	assert.Equal(t, []string{"scene", "a", "b", "c", "d"}, order)
}

func TestWorldMatrixRepairsOnRead(t *testing.T) {
	s := NewScene()
	parent := s.NewObject("parent")
	child := s.NewObject("child")
	require.NoError(t, s.Root().Add(parent))
	require.NoError(t, parent.Add(child))
	child.SetPosition(mgl32.Vec3{0, 0, 1})
	s.ComputeWorldTransforms()

	parent.SetPosition(mgl32.Vec3{10, 0, 0})
	assert.InDeltaSlice(t, []float32{10, 0, 1}, vec3(child.WorldPosition()), 1e-5)
}

func TestReparentMovesChildOnce(t *testing.T) {
	s := NewScene()
	a := s.NewObject("a")
	b := s.NewObject("b")
	c := s.NewObject("c")
	require.NoError(t, s.Root().Add(a))
	require.NoError(t, s.Root().Add(b))
	require.NoError(t, a.Add(c))
	a.SetPosition(mgl32.Vec3{1, 0, 0})
	b.SetPosition(mgl32.Vec3{0, 7, 0})
	c.SetPosition(mgl32.Vec3{0, 0, 2})

	s.ComputeWorldTransforms()
	assert.InDeltaSlice(t, []float32{1, 0, 2}, vec3(c.n().world.Col(3).Vec3()), 1e-5)

	require.NoError(t, b.Add(c))
	assert.Equal(t, 0, a.ChildCount())
	assert.Empty(t, a.Children())
	require.Len(t, b.Children(), 1)
	assert.Equal(t, c.ID(), b.Children()[0].ID())

	s.ComputeWorldTransforms()
	assert.InDeltaSlice(t, []float32{0, 7, 2}, vec3(c.n().world.Col(3).Vec3()), 1e-5)

	// Re-adding to the same parent moves it to the end without duplicating.
	d := s.NewObject("d")
	require.NoError(t, b.Add(d))
	require.NoError(t, b.Add(c))
	children := b.Children()
	require.Len(t, children, 2)
	assert.Equal(t, d.ID(), children[0].ID())
	assert.Equal(t, c.ID(), children[1].ID())
}

func TestAddRejectsCyclesAndForeignNodes(t *testing.T) {
	s := NewScene()
	a := s.NewObject("a")
	b := s.NewObject("b")
	require.NoError(t, s.Root().Add(a))
	require.NoError(t, a.Add(b))

	assert.ErrorIs(t, b.Add(a), ErrCycle)
	assert.ErrorIs(t, a.Add(a), ErrCycle)
	assert.Error(t, b.Add(s.Root()))

	other := NewScene()
	assert.ErrorIs(t, a.Add(other.NewObject("x")), ErrForeignNode)
}

func TestRemoveKeepsNodeAlive(t *testing.T) {
	s := NewScene()
	a := s.NewObject("a")
	require.NoError(t, s.Root().Add(a))
	s.Root().Remove(a)
	_, ok := a.Parent()
	assert.False(t, ok)
	assert.True(t, a.Valid())
	require.NoError(t, s.Root().Add(a))
	p, ok := a.Parent()
	require.True(t, ok)
	assert.Equal(t, s.Root().ID(), p.ID())
}

func TestDestroyFreesSubtree(t *testing.T) {
	s := NewScene()
	a := s.NewObject("a")
	rd := s.NewRenderable(nil, nil)
	cam := s.NewPerspectiveCamera(60, 1, 0.1, 10)
	require.NoError(t, s.Root().Add(a))
	require.NoError(t, a.Add(rd.Object3D))
	require.NoError(t, a.Add(cam.Object3D))
	before := s.Len()

	s.Destroy(a)
	assert.Equal(t, before-3, s.Len())
	assert.False(t, a.Valid())
	assert.False(t, rd.Valid())
	assert.True(t, rd.Destroyed())
	assert.Empty(t, s.Cameras())
	assert.Equal(t, 0, s.Root().ChildCount())

	// Slots are recycled under a new generation.
	fresh := s.NewObject("fresh")
	assert.True(t, fresh.Valid())
	assert.False(t, a.Valid())
	assert.Panics(t, func() { a.Position() })
}

func TestHiddenNodesStillUpdate(t *testing.T) {
	s := NewScene()
	a := s.NewObject("a")
	b := s.NewObject("b")
	require.NoError(t, s.Root().Add(a))
	require.NoError(t, a.Add(b))
	a.SetVisible(false)
	a.SetPosition(mgl32.Vec3{3, 0, 0})

	var visible []bool
	s.walk(s.root, func(id NodeID, n *node, v bool) bool {
		if n.name == "b" {
			visible = append(visible, v)
		}
		return true
	})
	assert.Equal(t, []bool{false}, visible)
	assert.InDeltaSlice(t, []float32{3, 0, 0}, vec3(b.n().world.Col(3).Vec3()), 1e-5)
}

func TestLookAtFacesTarget(t *testing.T) {
	s := NewScene()
	cam := s.NewPerspectiveCamera(60, 1, 0.1, 100)
	cam.SetPosition(mgl32.Vec3{5, 0, 0})
	cam.LookAt(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})
	forward := cam.WorldMatrix().Mul4x1(mgl32.Vec4{0, 0, -1, 0}).Vec3()
	assert.InDeltaSlice(t, []float32{-1, 0, 0}, vec3(forward), 1e-4)

	// The view matrix maps the target onto the -Z axis.
	p := cam.ViewMatrix().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	assert.InDeltaSlice(t, []float32{0, 0, -5}, vec3(p.Vec3()), 1e-4)
}
