package wgrender

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/wgrender/gpu"
	"github.com/gekko3d/wgrender/gpu/gputest"
	"github.com/gekko3d/wgrender/shaders"
)

func waveCompute(t *testing.T, out *ComputeBuffer) (*Compute, *UniformBuffer) {
	t.Helper()
	params := NewUniformBuffer("wave-params", NewUniformLayout().
		Add("time", UniformFloat).
		Add("count", UniformUint).
		Add("spacing", UniformFloat).
		Add("amplitude", UniformFloat))
	g, err := NewBindableGroup("wave", UniformBinding(0, params), StorageBinding(1, out, false))
	require.NoError(t, err)
	c, err := NewCompute(ComputeDescriptor{Label: "wave", Source: shaders.WaveWGSL, Groups: []*BindableGroup{g}})
	require.NoError(t, err)
	return c, params
}

func TestDispatchThenReadBack(t *testing.T) {
	r, dev := newTestRenderer(t)
	out := NewComputeBuffer("offsets", 16, false)
	c, _ := waveCompute(t, out)

	var dispatched [3]uint32
	dev.OnDispatch = func(groups map[uint32]*gputest.BindGroup, x, y, z uint32) {
		dispatched = [3]uint32{x, y, z}
		copy(groups[0].Buffer(1).Data, Float32Bytes([]float32{1, 2, 3, 4}))
	}
	require.NoError(t, r.Dispatch(c, 2, 1, 1))
	assert.Equal(t, [3]uint32{2, 1, 1}, dispatched)

	rb, err := r.ReadBack(out.Buffer, 0, 16)
	require.NoError(t, err)
	_, err = rb.Result()
	assert.ErrorIs(t, err, ErrReadbackPending)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	data, err := rb.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, BytesToFloat32(data))

	select {
	case <-rb.Done():
	default:
		t.Fatal("readback not marked done")
	}
	data, err = rb.Result()
	require.NoError(t, err)
	assert.Len(t, data, 16)
}

func TestDispatch_RecordsPass(t *testing.T) {
	r, dev := newTestRenderer(t)
	out := NewComputeBuffer("offsets", 64, true)
	c, params := waveCompute(t, out)
	require.NoError(t, params.SetFloat("time", 0.5))

	require.NoError(t, r.Dispatch(c, 4, 1, 1))
	require.NoError(t, r.Dispatch(c, 4, 1, 1))

	assert.Equal(t, 1, dev.Counters().ComputePipelines)
	assert.Equal(t, 1, dev.Counters().BindGroups)
	dispatches := dev.CommandsOf(gputest.OpDispatch)
	require.Len(t, dispatches, 2)
	assert.Equal(t, [4]uint32{4, 1, 1, 0}, dispatches[0].Counts)

	binds := dev.CommandsOf(gputest.OpSetBindGroup)
	require.Len(t, binds, 2)
	assert.Equal(t, uint32(0), binds[0].Index)
	pipe := dev.CommandsOf(gputest.OpSetPipeline)[0].ComputePipeline
	assert.Equal(t, shaders.ComputeEntry, pipe.Desc.EntryPoint)

	h := out.gpuBuffer().(*gputest.Buffer)
	assert.True(t, h.Usage().Has(gpu.BufferUsageVertex|gpu.BufferUsageStorage))
}

func TestDispatch_Errors(t *testing.T) {
	r, dev := newTestRenderer(t)
	out := NewComputeBuffer("offsets", 16, false)
	c, err := NewCompute(ComputeDescriptor{
		Label:  "broken",
		Source: "fn main() {}",
		Groups: []*BindableGroup{mustGroup(t, StorageBinding(0, out, false))},
	})
	require.NoError(t, err)

	err = r.Dispatch(c, 1, 1, 1)
	var pce *PipelineCompilationError
	require.ErrorAs(t, err, &pce)
	assert.Empty(t, dev.CommandsOf(gputest.OpDispatch))

	out.Release()
	c.SetSource(shaders.WaveWGSL)
	err = r.Dispatch(c, 1, 1, 1)
	var stale *StaleResourceError
	assert.ErrorAs(t, err, &stale)

	_, err = NewCompute(ComputeDescriptor{Label: "empty"})
	assert.Error(t, err)
	_, err = NewCompute(ComputeDescriptor{Source: shaders.WaveWGSL, Groups: []*BindableGroup{nil}})
	assert.Error(t, err)
	assert.Error(t, c.SetGroup(5, mustGroup(t)))
}

func TestReadBack_Validation(t *testing.T) {
	r, _ := newTestRenderer(t)
	plain := NewBuffer("plain", gpu.BufferUsageUniform, make([]byte, 16))
	_, err := r.ReadBack(plain, 0, 16)
	assert.Error(t, err)

	out := NewComputeBuffer("out", 16, false)
	_, err = r.ReadBack(out.Buffer, 2, 4)
	assert.Error(t, err)
	_, err = r.ReadBack(out.Buffer, 0, 32)
	assert.Error(t, err)
	_, err = r.ReadBack(out.Buffer, 0, 0)
	assert.Error(t, err)
}

func TestReadBack_WaitHonorsContext(t *testing.T) {
	r, dev := newTestRenderer(t)
	out := NewComputeBufferFromData("out", Float32Bytes([]float32{9, 8}), false)
	rb, err := r.ReadBack(out.Buffer, 0, 8)
	require.NoError(t, err)
	assert.Equal(t, 1, dev.PendingMaps())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = rb.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// Poll resolves it without blocking.
	r.Poll()
	data, err := rb.Result()
	require.NoError(t, err)
	assert.Equal(t, []float32{9, 8}, BytesToFloat32(data))
}

func TestReadBack_DeviceLost(t *testing.T) {
	r, dev := newTestRenderer(t)
	out := NewComputeBuffer("out", 16, false)
	rb, err := r.ReadBack(out.Buffer, 0, 16)
	require.NoError(t, err)

	dev.Lose()
	dev.Poll(false)
	_, err = rb.Result()
	assert.ErrorIs(t, err, gpu.ErrDeviceLost)
}

func TestReadBack_WaitEndsOnDeviceLoss(t *testing.T) {
	r, dev := newTestRenderer(t)
	out := NewComputeBuffer("out", 16, false)
	rb, err := r.ReadBack(out.Buffer, 0, 16)
	require.NoError(t, err)

	dev.Lose()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = rb.Wait(ctx)
	var dl *DeviceLostError
	require.ErrorAs(t, err, &dl)
	assert.ErrorIs(t, err, gpu.ErrDeviceLost)
	assert.NoError(t, ctx.Err())

	// The loss is latched on the renderer, not only on the readback.
	assert.ErrorAs(t, r.Err(), &dl)
	_, err = rb.Result()
	assert.ErrorAs(t, err, &dl)
	c, _ := waveCompute(t, out)
	assert.ErrorAs(t, r.Dispatch(c, 1, 1, 1), &dl)
}

func mustGroup(t *testing.T, bindings ...Binding) *BindableGroup {
	t.Helper()
	g, err := NewBindableGroup("", bindings...)
	require.NoError(t, err)
	return g
}
