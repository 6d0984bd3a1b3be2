package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"runtime"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/gekko3d/wgrender"
	"github.com/gekko3d/wgrender/controls"
	"github.com/gekko3d/wgrender/geometries"
	"github.com/gekko3d/wgrender/gpu/wgpudev"
	"github.com/gekko3d/wgrender/loaders"
	"github.com/gekko3d/wgrender/shaders"
)

func init() {
	runtime.LockOSThread()
}

type options struct {
	config    string
	texture   string
	instances int
	debug     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.config, "config", "", "YAML renderer config")
	flag.StringVar(&opts.texture, "texture", "", "image mapped onto the sphere (checkerboard when empty)")
	flag.IntVar(&opts.instances, "instances", 400, "number of instanced cubes animated by the compute pass")
	flag.BoolVar(&opts.debug, "debug", false, "log pipeline builds and per-frame stats")
	flag.Parse()

	log := wgrender.NewDefaultLogger("demo", opts.debug)
	if err := run(opts, log); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(opts options, log wgrender.Logger) error {
	cfg := wgrender.DefaultConfig()
	if opts.config != "" {
		var err error
		if cfg, err = wgrender.LoadConfig(opts.config); err != nil {
			return err
		}
	}
	cfg.Debug = cfg.Debug || opts.debug

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("init glfw: %w", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	window, err := glfw.CreateWindow(1280, 720, "wgrender", nil, nil)
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	defer window.Destroy()

	dev, err := wgpudev.New(window, wgpudev.Options{Label: "wgrender-demo", HighPerformance: true, VSync: true})
	if err != nil {
		return err
	}
	r, err := wgrender.NewRenderer(dev, cfg, wgrender.WithLogger(log))
	if err != nil {
		return err
	}
	defer r.Release()

	d, err := buildDemo(opts)
	if err != nil {
		return err
	}
	defer d.release()

	width, height := window.GetFramebufferSize()
	d.camera.SetAspect(float32(width) / float32(max(height, 1)))
	mouse := controls.NewMouseVectors(width, height)
	keys := &controls.KeyState{}
	orbit := controls.NewOrbitControls(d.camera, mgl32.Vec3{})
	var fly *controls.FlyControls
	bindInput(window, mouse, keys)

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		if width == 0 || height == 0 {
			return
		}
		if err := r.Resize(uint32(width), uint32(height)); err != nil {
			log.Warnf("resize: %v", err)
		}
		d.camera.SetAspect(float32(width) / float32(height))
		mouse.Resize(width, height)
	})

	clock := controls.NewClock()
	lastStats := time.Duration(0)
	for !window.ShouldClose() {
		glfw.PollEvents()
		dt := clock.Tick()

		// Tab switches between orbiting the scene and flying through it.
		if keys.JustPressed(controls.KeyTab) {
			if fly == nil {
				fly = controls.NewFlyControls(d.camera)
				window.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
			} else {
				fly = nil
				orbit = controls.NewOrbitControls(d.camera, orbit.Target)
				window.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
			}
		}
		if keys.JustPressed(controls.KeyEscape) {
			window.SetShouldClose(true)
		}
		if fly != nil {
			fly.Update(dt, keys, mouse, true)
		} else {
			if mouse.JustPressed(controls.ButtonLeft) {
				origin, dir := mouse.Ray(d.camera)
				if hit, ok := d.scene.Pick(wgrender.Ray{Origin: origin, Direction: dir}); ok {
					log.Infof("picked %s at %.2f", hit.Renderable.Name(), hit.Distance)
				}
			}
			orbit.Update(mouse)
		}
		mouse.EndFrame()
		keys.EndFrame()

		elapsed := float32(clock.Elapsed().Seconds())
		d.spin(elapsed)
		if err := d.params.SetFloat("time", elapsed); err != nil {
			return err
		}
		if err := r.Dispatch(d.wave, d.workgroups, 1, 1); err != nil {
			return err
		}

		rep, err := r.Render(d.scene, d.camera)
		if err != nil {
			return err
		}
		for _, diag := range rep.Diagnostics {
			log.Warnf("%v", diag)
		}
		if r.Config().Debug && clock.Elapsed()-lastStats > 2*time.Second {
			lastStats = clock.Elapsed()
			s := rep.Stats
			log.Debugf("frame %d: %d draws, %d batches, %d instances, %d culled", s.Frame, s.Draws, s.Batches, s.Instances, s.Culled)
		}
	}

	return d.dumpOffsets(r, log)
}

type demo struct {
	scene  *wgrender.Scene
	camera *wgrender.Camera

	sphere *wgrender.Renderable

	params     *wgrender.UniformBuffer
	offsets    *wgrender.ComputeBuffer
	wave       *wgrender.Compute
	workgroups uint32

	release func()
}

func buildDemo(opts options) (*demo, error) {
	d := &demo{scene: wgrender.NewScene()}
	var owned []interface{ Release() }
	d.release = func() {
		for i := len(owned) - 1; i >= 0; i-- {
			owned[i].Release()
		}
	}
	fail := func(err error) (*demo, error) {
		d.release()
		return nil, err
	}
	root := d.scene.Root()

	d.camera = d.scene.NewPerspectiveCamera(60, 16.0/9, 0.1, 500)
	d.camera.SetPosition(mgl32.Vec3{0, 12, 28})
	if err := root.Add(d.camera.Object3D); err != nil {
		return fail(err)
	}

	// Instanced cubes whose offsets the wave compute pass rewrites every
	// frame.
	count := uint32(max(opts.instances, 1))
	d.offsets = wgrender.NewComputeBuffer("wave-offsets", uint64(count)*16, true)
	d.params = wgrender.NewUniformBuffer("wave-params", wgrender.NewUniformLayout().
		Add("time", wgrender.UniformFloat).
		Add("count", wgrender.UniformUint).
		Add("spacing", wgrender.UniformFloat).
		Add("amplitude", wgrender.UniformFloat))
	owned = append(owned, d.offsets, d.params)
	for name, v := range map[string]float32{"spacing": 1.2, "amplitude": 1.5} {
		if err := d.params.SetFloat(name, v); err != nil {
			return fail(err)
		}
	}
	if err := d.params.SetUint("count", count); err != nil {
		return fail(err)
	}
	group, err := wgrender.NewBindableGroup("wave",
		wgrender.UniformBinding(0, d.params),
		wgrender.StorageBinding(1, d.offsets, false))
	if err != nil {
		return fail(err)
	}
	owned = append(owned, group)
	d.wave, err = wgrender.NewCompute(wgrender.ComputeDescriptor{Label: "wave", Source: shaders.WaveWGSL, Groups: []*wgrender.BindableGroup{group}})
	if err != nil {
		return fail(err)
	}
	d.workgroups = (count + 63) / 64

	cube := geometries.Box(1, 1, 1)
	owned = append(owned, cube)
	cubes, err := geometries.InstancedFromBuffer(cube, d.offsets.Buffer, count)
	if err != nil {
		return fail(err)
	}
	owned = append(owned, cubes)
	cubeMat, err := wgrender.NewInstancedMaterial("cubes", mgl32.Vec4{0.3, 0.6, 0.9, 1})
	if err != nil {
		return fail(err)
	}
	owned = append(owned, cubeMat)
	if err := root.Add(d.scene.NewRenderable(cubes, cubeMat).Object3D); err != nil {
		return fail(err)
	}

	// Textured sphere hovering above the grid.
	loader := loaders.TextureLoader{MaxSize: 1024, SRGB: true}
	var tex *wgrender.Texture
	if opts.texture != "" {
		if tex, err = loader.Load(opts.texture); err != nil {
			return fail(err)
		}
	} else {
		tex = wgrender.NewTexture("checker", loader.FromImage(checkerboard(256, 32)))
	}
	sampler := wgrender.LinearRepeatSampler("sphere-sampler")
	owned = append(owned, tex, sampler)
	sphereMat, err := wgrender.NewTexturedMaterial("sphere", tex, sampler)
	if err != nil {
		return fail(err)
	}
	sphereGeo := geometries.Sphere(3, 48, 32)
	owned = append(owned, sphereMat, sphereGeo)
	d.sphere = d.scene.NewRenderable(sphereGeo, sphereMat)
	d.sphere.SetPosition(mgl32.Vec3{0, 7, 0})
	if err := root.Add(d.sphere.Object3D); err != nil {
		return fail(err)
	}

	// Title text parented to the sphere so it follows it.
	font, err := loaders.FontLoader{Size: 48}.Parse(goregular.TTF)
	if err != nil {
		return fail(err)
	}
	atlas := font.Texture("font-atlas")
	owned = append(owned, atlas)
	textMat, err := wgrender.NewTextMaterial("title", atlas, mgl32.Vec4{1, 1, 1, 1})
	if err != nil {
		return fail(err)
	}
	owned = append(owned, textMat)
	if textGeo := geometries.Text(font, "wgrender", geometries.TextOptions{Size: 1.5, Center: true}); textGeo != nil {
		owned = append(owned, textGeo)
		title := d.scene.NewRenderable(textGeo, textMat)
		title.SetPosition(mgl32.Vec3{0, 4.5, 0})
		if err := d.sphere.Add(title.Object3D); err != nil {
			return fail(err)
		}
	}

	ground := geometries.Plane(60, 60, 1, 1)
	groundMat, err := wgrender.NewBasicMaterial("ground", mgl32.Vec4{0.25, 0.25, 0.28, 1})
	if err != nil {
		return fail(err)
	}
	owned = append(owned, ground, groundMat)
	floor := d.scene.NewRenderable(ground, groundMat)
	floor.SetPosition(mgl32.Vec3{0, -3, 0})
	floor.RotateAxis(-math.Pi/2, mgl32.Vec3{1, 0, 0})
	if err := root.Add(floor.Object3D); err != nil {
		return fail(err)
	}
	return d, nil
}

func (d *demo) spin(t float32) {
	d.sphere.SetRotation(mgl32.QuatRotate(t*0.5, mgl32.Vec3{0, 1, 0}))
}

// dumpOffsets reads the first few instance offsets back from the GPU.
func (d *demo) dumpOffsets(r *wgrender.Renderer, log wgrender.Logger) error {
	n := min(d.offsets.Size()/16, 4)
	rb, err := r.ReadBack(d.offsets.Buffer, 0, n*16)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, err := rb.Wait(ctx)
	if err != nil {
		return fmt.Errorf("read back offsets: %w", err)
	}
	values := wgrender.BytesToFloat32(data)
	for i := 0; i+3 < len(values); i += 4 {
		log.Infof("instance %d offset (%.2f, %.2f, %.2f) scale %.2f", i/4, values[i], values[i+1], values[i+2], values[i+3])
	}
	return nil
}

func checkerboard(size, cell int) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	light := color.NRGBA{R: 230, G: 200, B: 120, A: 255}
	dark := color.NRGBA{R: 60, G: 40, B: 90, A: 255}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := dark
			if (x/cell+y/cell)%2 == 0 {
				c = light
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

var glfwKeys = map[glfw.Key]controls.Key{
	glfw.KeyW:            controls.KeyW,
	glfw.KeyA:            controls.KeyA,
	glfw.KeyS:            controls.KeyS,
	glfw.KeyD:            controls.KeyD,
	glfw.KeyQ:            controls.KeyQ,
	glfw.KeyE:            controls.KeyE,
	glfw.KeySpace:        controls.KeySpace,
	glfw.KeyLeftControl:  controls.KeyControl,
	glfw.KeyRightControl: controls.KeyControl,
	glfw.KeyLeftShift:    controls.KeyShift,
	glfw.KeyRightShift:   controls.KeyShift,
	glfw.KeyTab:          controls.KeyTab,
	glfw.KeyEscape:       controls.KeyEscape,
	glfw.KeyUp:           controls.KeyUp,
	glfw.KeyDown:         controls.KeyDown,
	glfw.KeyLeft:         controls.KeyLeft,
	glfw.KeyRight:        controls.KeyRight,
}

var glfwButtons = map[glfw.MouseButton]controls.Button{
	glfw.MouseButtonLeft:   controls.ButtonLeft,
	glfw.MouseButtonRight:  controls.ButtonRight,
	glfw.MouseButtonMiddle: controls.ButtonMiddle,
}

// bindInput forwards GLFW pointer and key events.
func bindInput(window *glfw.Window, mouse *controls.MouseVectors, keys *controls.KeyState) {
	window.SetCursorPosCallback(func(w *glfw.Window, x, y float64) {
		// Cursor positions are in window coordinates; scale to the
		// framebuffer on HiDPI displays.
		ww, _ := w.GetSize()
		fw, _ := w.GetFramebufferSize()
		scale := 1.0
		if ww > 0 {
			scale = float64(fw) / float64(ww)
		}
		mouse.Move(x*scale, y*scale)
	})
	window.SetMouseButtonCallback(func(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
		b, ok := glfwButtons[button]
		if !ok {
			return
		}
		switch action {
		case glfw.Press:
			mouse.Press(b)
		case glfw.Release:
			mouse.Release(b)
		}
	})
	window.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		mouse.Scroll(yoff)
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		k, ok := glfwKeys[key]
		if !ok {
			return
		}
		switch action {
		case glfw.Press:
			keys.Press(k)
		case glfw.Release:
			keys.Release(k)
		}
	})
}
