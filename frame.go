package wgrender

import (
	"errors"
	"fmt"

	"github.com/gekko3d/wgrender/gpu"
)

// FrameStats counts what one pass, or a whole frame, did.
type FrameStats struct {
	Frame uint64
	// Passes is the number of Render calls folded into these stats.
	Passes int

	Visited   int
	Collected int
	Culled    int
	Skipped   int

	Draws     int
	Instances int
	Batches   int

	PipelineBinds int
	GroupBinds    int

	PipelinesBuilt int
	GroupsRebuilt  int
	Uploads        int
}

func (s *FrameStats) add(o FrameStats) {
	s.Passes += o.Passes
	s.Visited += o.Visited
	s.Collected += o.Collected
	s.Culled += o.Culled
	s.Skipped += o.Skipped
	s.Draws += o.Draws
	s.Instances += o.Instances
	s.Batches += o.Batches
	s.PipelineBinds += o.PipelineBinds
	s.GroupBinds += o.GroupBinds
	s.PipelinesBuilt += o.PipelinesBuilt
	s.GroupsRebuilt += o.GroupsRebuilt
	s.Uploads += o.Uploads
}

// FrameReport collects the per-renderable failures of a pass or frame.
// Skipped renderables never abort the frame; their errors land here.
type FrameReport struct {
	Frame       uint64
	Stats       FrameStats
	Diagnostics []error
}

// Err joins the diagnostics, or returns nil when there are none.
func (rep *FrameReport) Err() error {
	if rep == nil {
		return nil
	}
	return errors.Join(rep.Diagnostics...)
}

type frameState struct {
	frame  *gpu.Frame
	passes int
	report FrameReport
}

// BeginFrame acquires the next surface texture. Every Render until
// EndFrame draws into it; the first clears it and later ones load it.
func (r *Renderer) BeginFrame() error {
	if err := r.usable(); err != nil {
		return err
	}
	if r.cur != nil {
		return ErrFrameInProgress
	}
	frame, err := r.dev.AcquireFrame()
	if err != nil {
		return r.fail(&ResourceError{Resource: "surface", Op: "acquire", Err: err})
	}
	r.frameNo++
	r.cur = &frameState{frame: frame, report: FrameReport{Frame: r.frameNo}}
	r.cur.report.Stats.Frame = r.frameNo
	return nil
}

// EndFrame presents the frame and returns the merged report of its passes.
func (r *Renderer) EndFrame() (*FrameReport, error) {
	if err := r.usable(); err != nil {
		return nil, err
	}
	if r.cur == nil {
		return nil, ErrNoFrame
	}
	cur := r.cur
	r.cur = nil
	rep := cur.report
	r.last = &rep
	if err := r.dev.Present(cur.frame); err != nil {
		return &rep, r.fail(&ResourceError{Resource: "surface", Op: "present", Err: err})
	}
	return &rep, nil
}

// Render draws scene as seen from cam. Inside BeginFrame/EndFrame it adds
// one pass to the current frame and returns that pass's report; otherwise
// it runs a whole frame on its own.
//
// Per-renderable failures are reported, not returned. The error result is
// reserved for failures of the frame itself, device loss above all, after
// which the renderer must be recreated.
func (r *Renderer) Render(scene *Scene, cam *Camera) (*FrameReport, error) {
	if err := r.usable(); err != nil {
		return nil, err
	}
	if scene == nil || cam == nil {
		return nil, fmt.Errorf("wgrender: render needs a scene and a camera")
	}
	if !cam.Valid() {
		return nil, fmt.Errorf("wgrender: camera node was destroyed")
	}
	implicit := r.cur == nil
	if implicit {
		if err := r.BeginFrame(); err != nil {
			return nil, err
		}
	}
	rep, err := r.renderPass(scene, cam)
	if r.cur != nil && rep != nil {
		r.cur.passes++
		r.cur.report.Stats.add(rep.Stats)
		r.cur.report.Diagnostics = append(r.cur.report.Diagnostics, rep.Diagnostics...)
	}
	if err != nil {
		if implicit && r.cur != nil {
			if _, endErr := r.EndFrame(); endErr != nil {
				return rep, errors.Join(err, endErr)
			}
		}
		return rep, err
	}
	r.last = rep
	if implicit {
		return r.EndFrame()
	}
	return rep, nil
}
