package wgrender

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/wgrender/gpu"
)

type UniformType int

const (
	UniformFloat UniformType = iota
	UniformVec2
	UniformVec3
	UniformVec4
	UniformMat4
	UniformInt
	UniformUint
)

// size and align follow WGSL's uniform address space rules.
func (t UniformType) size() uint64 {
	switch t {
	case UniformVec2:
		return 8
	case UniformVec3:
		return 12
	case UniformVec4:
		return 16
	case UniformMat4:
		return 64
	}
	return 4
}

func (t UniformType) align() uint64 {
	switch t {
	case UniformVec2:
		return 8
	case UniformVec3, UniformVec4, UniformMat4:
		return 16
	}
	return 4
}

func (t UniformType) String() string {
	switch t {
	case UniformFloat:
		return "f32"
	case UniformVec2:
		return "vec2<f32>"
	case UniformVec3:
		return "vec3<f32>"
	case UniformVec4:
		return "vec4<f32>"
	case UniformMat4:
		return "mat4x4<f32>"
	case UniformInt:
		return "i32"
	case UniformUint:
		return "u32"
	}
	return "unknown"
}

type UniformField struct {
	Name   string
	Type   UniformType
	Offset uint64
}

// UniformLayout is an ordered set of named fields with WGSL struct offsets.
// Field order is part of the layout's identity.
type UniformLayout struct {
	fields []UniformField
	index  map[string]int
	size   uint64
}

func NewUniformLayout() *UniformLayout {
	return &UniformLayout{index: map[string]int{}}
}

// Add appends a field and returns the layout for chaining. Adding a
// duplicate name panics.
func (l *UniformLayout) Add(name string, t UniformType) *UniformLayout {
	if _, dup := l.index[name]; dup {
		panic(fmt.Sprintf("wgrender: duplicate uniform %q", name))
	}
	offset := alignTo(l.size, t.align())
	l.index[name] = len(l.fields)
	l.fields = append(l.fields, UniformField{Name: name, Type: t, Offset: offset})
	l.size = offset + t.size()
	return l
}

func (l *UniformLayout) Fields() []UniformField {
	return append([]UniformField(nil), l.fields...)
}

func (l *UniformLayout) Field(name string) (UniformField, bool) {
	i, ok := l.index[name]
	if !ok {
		return UniformField{}, false
	}
	return l.fields[i], true
}

// Size is the struct size rounded up to 16 bytes.
func (l *UniformLayout) Size() uint64 {
	return alignTo(max(l.size, 16), 16)
}

// WGSL renders the layout as a WGSL struct declaration.
func (l *UniformLayout) WGSL(structName string) string {
	s := "struct " + structName + " {\n"
	for _, f := range l.fields {
		s += fmt.Sprintf("  %s: %s,\n", f.Name, f.Type)
	}
	return s + "};\n"
}

// UniformBuffer is a uniform Buffer whose bytes are addressed through a
// UniformLayout.
type UniformBuffer struct {
	*Buffer
	layout *UniformLayout
}

func NewUniformBuffer(label string, layout *UniformLayout) *UniformBuffer {
	return &UniformBuffer{
		Buffer: NewBuffer(label, gpu.BufferUsageUniform, make([]byte, layout.Size())),
		layout: layout,
	}
}

func (u *UniformBuffer) Layout() *UniformLayout { return u.layout }

func (u *UniformBuffer) field(name string, t UniformType) (UniformField, error) {
	f, ok := u.layout.Field(name)
	if !ok {
		return f, fmt.Errorf("wgrender: uniform %q not in layout", name)
	}
	if f.Type != t {
		return f, fmt.Errorf("wgrender: uniform %q is %s, not %s", name, f.Type, t)
	}
	return f, nil
}

func (u *UniformBuffer) putFloats(name string, t UniformType, vals []float32) error {
	f, err := u.field(name, t)
	if err != nil {
		return err
	}
	for i, v := range vals {
		binary.LittleEndian.PutUint32(u.data[f.Offset+uint64(i)*4:], math.Float32bits(v))
	}
	u.markDirty()
	return nil
}

func (u *UniformBuffer) SetFloat(name string, v float32) error {
	return u.putFloats(name, UniformFloat, []float32{v})
}

func (u *UniformBuffer) SetVec2(name string, v mgl32.Vec2) error {
	return u.putFloats(name, UniformVec2, v[:])
}

func (u *UniformBuffer) SetVec3(name string, v mgl32.Vec3) error {
	return u.putFloats(name, UniformVec3, v[:])
}

func (u *UniformBuffer) SetVec4(name string, v mgl32.Vec4) error {
	return u.putFloats(name, UniformVec4, v[:])
}

func (u *UniformBuffer) SetMat4(name string, m mgl32.Mat4) error {
	return u.putFloats(name, UniformMat4, m[:])
}

func (u *UniformBuffer) SetInt(name string, v int32) error {
	f, err := u.field(name, UniformInt)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(u.data[f.Offset:], uint32(v))
	u.markDirty()
	return nil
}

func (u *UniformBuffer) SetUint(name string, v uint32) error {
	f, err := u.field(name, UniformUint)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(u.data[f.Offset:], v)
	u.markDirty()
	return nil
}

// Float reads a float field back from the CPU copy.
func (u *UniformBuffer) Float(name string) (float32, error) {
	f, err := u.field(name, UniformFloat)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(u.data[f.Offset:])), nil
}

func putMat4(dst []byte, m mgl32.Mat4) {
	for i, v := range m {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

func putVec4(dst []byte, v mgl32.Vec4) {
	for i, c := range v {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(c))
	}
}

// Float32Bytes encodes values little endian, the layout GPU buffers expect.
func Float32Bytes(values []float32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func Uint32Bytes(values []uint32) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], v)
	}
	return out
}

func Uint16Bytes(values []uint16) []byte {
	out := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(out[i*2:], v)
	}
	return out
}

// BytesToFloat32 decodes little endian float32 values, e.g. from a
// Readback result.
func BytesToFloat32(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}
