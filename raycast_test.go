package wgrender

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAABB_IntersectRay(t *testing.T) {
	box := AABB{Min: mgl32.Vec3{-1, -1, -1}, Max: mgl32.Vec3{1, 1, 1}}

	tMin, tMax, ok := box.IntersectRay(Ray{Origin: mgl32.Vec3{0, 0, 5}, Direction: mgl32.Vec3{0, 0, -1}})
	require.True(t, ok)
	assert.InDelta(t, 4, tMin, 1e-6)
	assert.InDelta(t, 6, tMax, 1e-6)

	_, _, ok = box.IntersectRay(Ray{Origin: mgl32.Vec3{0, 2, 5}, Direction: mgl32.Vec3{0, 0, -1}})
	assert.False(t, ok, "parallel ray outside the slab")
	_, _, ok = box.IntersectRay(Ray{Origin: mgl32.Vec3{0, 0, 5}, Direction: mgl32.Vec3{0, 0, 1}})
	assert.False(t, ok, "box behind the origin")

	tMin, tMax, ok = box.IntersectRay(Ray{Direction: mgl32.Vec3{1, 0, 0}})
	require.True(t, ok)
	assert.Zero(t, tMin)
	assert.InDelta(t, 1, tMax, 1e-6)

	_, _, ok = EmptyAABB().IntersectRay(Ray{Direction: mgl32.Vec3{1, 0, 0}})
	assert.False(t, ok)
}

func TestScene_PickNearestTriangle(t *testing.T) {
	s := NewScene()
	g := testBox(t)
	near := addRenderable(t, s, g, nil, mgl32.Vec3{})
	far := addRenderable(t, s, g, nil, mgl32.Vec3{0, 0, -5})
	near.SetName("near")
	far.SetName("far")

	ray := Ray{Origin: mgl32.Vec3{0.1, 0.2, 10}, Direction: mgl32.Vec3{0, 0, -2}}
	hits := s.Raycast(ray)
	require.Len(t, hits, 2)
	assert.Equal(t, "near", hits[0].Renderable.Name())
	assert.Equal(t, "far", hits[1].Renderable.Name())
	assert.InDelta(t, 9.5, hits[0].Distance, 1e-4)
	assert.InDelta(t, 14.5, hits[1].Distance, 1e-4)
	assert.InDeltaSlice(t, []float32{0.1, 0.2, 0.5}, hits[0].Point[:], 1e-4)
	assert.InDeltaSlice(t, []float32{0, 0, 1}, hits[0].Normal[:], 1e-5)

	hit, ok := s.Pick(ray)
	require.True(t, ok)
	assert.Same(t, near, hit.Renderable)

	_, ok = s.Pick(Ray{Origin: mgl32.Vec3{0, 0, 10}, Direction: mgl32.Vec3{0, 0, 1}})
	assert.False(t, ok)
}

func TestScene_PickFollowsWorldTransform(t *testing.T) {
	s := NewScene()
	parent := s.NewObject("parent")
	require.NoError(t, s.Root().Add(parent))
	parent.SetPosition(mgl32.Vec3{3, 0, 0})
	rd := s.NewRenderable(testBox(t), nil)
	rd.SetScale(mgl32.Vec3{2, 2, 2})
	require.NoError(t, parent.Add(rd.Object3D))

	hit, ok := s.Pick(Ray{Origin: mgl32.Vec3{3.1, 0.2, 10}, Direction: mgl32.Vec3{0, 0, -1}})
	require.True(t, ok)
	assert.InDelta(t, 9, hit.Distance, 1e-4)
	assert.InDeltaSlice(t, []float32{0, 0, 1}, hit.Normal[:], 1e-5)

	// Hidden subtrees are not pickable.
	parent.SetVisible(false)
	_, ok = s.Pick(Ray{Origin: mgl32.Vec3{3.1, 0.2, 10}, Direction: mgl32.Vec3{0, 0, -1}})
	assert.False(t, ok)
}

func TestScene_PickInstancedUsesBounds(t *testing.T) {
	s := NewScene()
	g := NewInstancedGeometry(testBox(t), 3)
	addRenderable(t, s, g, nil, mgl32.Vec3{})

	hit, ok := s.Pick(Ray{Origin: mgl32.Vec3{0.1, 0.2, 10}, Direction: mgl32.Vec3{0, 0, -1}})
	require.True(t, ok)
	assert.InDelta(t, 9.5, hit.Distance, 1e-4)
	assert.InDeltaSlice(t, []float32{0, 0, 1}, hit.Normal[:], 1e-5)
}

func TestScene_PickUnindexedTriangle(t *testing.T) {
	s := NewScene()
	g := NewGeometry("tri")
	require.NoError(t, g.SetAttribute(AttributePosition, 3, []float32{-1, -1, 0, 1, -1, 0, 0, 1, 0}))
	addRenderable(t, s, g, nil, mgl32.Vec3{})

	// Seen from behind: the test is two-sided and the normal faces the ray.
	hit, ok := s.Pick(Ray{Origin: mgl32.Vec3{0, 0, -3}, Direction: mgl32.Vec3{0, 0, 1}})
	require.True(t, ok)
	assert.InDelta(t, 3, hit.Distance, 1e-5)
	assert.InDeltaSlice(t, []float32{0, 0, -1}, hit.Normal[:], 1e-5)

	_, ok = s.Pick(Ray{Origin: mgl32.Vec3{0.9, 0.9, -3}, Direction: mgl32.Vec3{0, 0, 1}})
	assert.False(t, ok, "inside the bounds but outside the triangle")
}
