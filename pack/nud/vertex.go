package nud

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/smash_model_tools/3rdparty/half"
)

// Vertices holds the decoded attributes of a single mesh. All attribute
// slices are indexed by vertex and have the same length as Positions.
type Vertices struct {
	Positions []mgl32.Vec3
	Normals   Normals
	Bones     *Bones
	Colors    Colors
	Uvs       Uvs
}

// Normals carries the normal attribute in the representation selected
// by Type. Float32 variants store a leading unknown float per vertex in
// Unk1; the NONE variant stores its single float there as well.
// Bitangents and Tangents are present only for the tangent variants.
type Normals struct {
	Type       NormalType
	Unk1       []float32
	Normals    []mgl32.Vec4
	Bitangents []mgl32.Vec4
	Tangents   []mgl32.Vec4
}

// Bones holds up to four weighted bone influences per vertex. Unused
// slots have weight zero.
type Bones struct {
	Type    BoneType
	Indices [][4]uint32
	Weights []mgl32.Vec4
}

type Colors struct {
	Type ColorType
	Rgba []mgl32.Vec4
}

type Uvs struct {
	Type   UvType
	Layers [][]mgl32.Vec2
}

func (v *Vertices) Count() int { return len(v.Positions) }

// Flags derives the on-disk vertex layout from the attribute
// representations currently held.
func (v *Vertices) Flags() VertexFlags {
	f := VertexFlags{
		Normals:  v.Normals.Type,
		Colors:   v.Colors.Type,
		Uvs:      v.Uvs.Type,
		UvLayers: uint8(len(v.Uvs.Layers)),
	}
	if v.Bones != nil {
		f.Bones = v.Bones.Type
	}
	return f
}

type vertexReader struct {
	b   []byte
	pos int
}

func (r *vertexReader) u8() uint8 {
	v := r.b[r.pos]
	r.pos += 1
	return v
}

func (r *vertexReader) u16() uint16 {
	v := binary.BigEndian.Uint16(r.b[r.pos:])
	r.pos += 2
	return v
}

func (r *vertexReader) u32() uint32 {
	v := binary.BigEndian.Uint32(r.b[r.pos:])
	r.pos += 4
	return v
}

func (r *vertexReader) f32() float32 { return math.Float32frombits(r.u32()) }

func (r *vertexReader) f16() float32 { return half.Float16(r.u16()).Float32() }

func (r *vertexReader) vec4f32() mgl32.Vec4 {
	return mgl32.Vec4{r.f32(), r.f32(), r.f32(), r.f32()}
}

func (r *vertexReader) vec4f16() mgl32.Vec4 {
	return mgl32.Vec4{r.f16(), r.f16(), r.f16(), r.f16()}
}

type vertexWriter struct {
	b   []byte
	pos int
}

func (w *vertexWriter) u8(v uint8) {
	w.b[w.pos] = v
	w.pos += 1
}

func (w *vertexWriter) u16(v uint16) {
	binary.BigEndian.PutUint16(w.b[w.pos:], v)
	w.pos += 2
}

func (w *vertexWriter) u32(v uint32) {
	binary.BigEndian.PutUint32(w.b[w.pos:], v)
	w.pos += 4
}

func (w *vertexWriter) f32(v float32) { w.u32(math.Float32bits(v)) }

func (w *vertexWriter) f16(v float32) { w.u16(uint16(half.NewFloat16(v))) }

func (w *vertexWriter) vec4f32(v mgl32.Vec4) {
	w.f32(v[0])
	w.f32(v[1])
	w.f32(v[2])
	w.f32(v[3])
}

func (w *vertexWriter) vec4f16(v mgl32.Vec4) {
	w.f16(v[0])
	w.f16(v[1])
	w.f16(v[2])
	w.f16(v[3])
}

func byteToUnorm(b uint8) float32 { return float32(b) / 255.0 }

// unormToByte truncates like the game tooling does, so values produced
// by byteToUnorm survive a round trip bit-exactly.
func unormToByte(f float32) uint8 {
	if !(f > 0) {
		return 0
	}
	if f >= 1 {
		return 255
	}
	return uint8(f * 255.0)
}

// ReadVertices decodes count vertices laid out per flags, reading the
// first-buffer columns at offset0 of buffer0 and, for skinned layouts,
// the second-buffer columns at offset1 of buffer1.
func ReadVertices(buffer0 []byte, offset0 uint32, buffer1 []byte, offset1 uint32, flags VertexFlags, count int) (*Vertices, error) {
	stride0 := flags.Buffer0Stride()
	stride1 := flags.Buffer1Stride()

	if stride0 > 0 {
		if end := int64(offset0) + int64(stride0)*int64(count); end > int64(len(buffer0)) {
			return nil, errors.Errorf("Vertex buffer 0 overflow: need 0x%x bytes, have 0x%x", end, len(buffer0))
		}
	}
	if stride1 > 0 {
		if end := int64(offset1) + int64(stride1)*int64(count); end > int64(len(buffer1)) {
			return nil, errors.Errorf("Vertex buffer 1 overflow: need 0x%x bytes, have 0x%x", end, len(buffer1))
		}
	}

	v := &Vertices{
		Positions: make([]mgl32.Vec3, count),
		Normals:   Normals{Type: flags.Normals},
		Colors:    Colors{Type: flags.Colors},
		Uvs:       Uvs{Type: flags.Uvs},
	}

	switch flags.Normals {
	case NORMAL_TYPE_NONE:
		v.Normals.Unk1 = make([]float32, count)
	case NORMAL_TYPE_FLOAT32:
		v.Normals.Unk1 = make([]float32, count)
		v.Normals.Normals = make([]mgl32.Vec4, count)
	case NORMAL_TYPE_UNK2, NORMAL_TYPE_TANGENT_BITANGENT_FLOAT32:
		v.Normals.Unk1 = make([]float32, count)
		v.Normals.Normals = make([]mgl32.Vec4, count)
		v.Normals.Bitangents = make([]mgl32.Vec4, count)
		v.Normals.Tangents = make([]mgl32.Vec4, count)
	case NORMAL_TYPE_FLOAT16:
		v.Normals.Normals = make([]mgl32.Vec4, count)
	case NORMAL_TYPE_TANGENT_BITANGENT_FLOAT16:
		v.Normals.Normals = make([]mgl32.Vec4, count)
		v.Normals.Bitangents = make([]mgl32.Vec4, count)
		v.Normals.Tangents = make([]mgl32.Vec4, count)
	}
	if flags.Bones != BONE_TYPE_NONE {
		v.Bones = &Bones{
			Type:    flags.Bones,
			Indices: make([][4]uint32, count),
			Weights: make([]mgl32.Vec4, count),
		}
	}
	if flags.Colors != COLOR_TYPE_NONE {
		v.Colors.Rgba = make([]mgl32.Vec4, count)
	}
	v.Uvs.Layers = make([][]mgl32.Vec2, flags.UvLayers)
	for iLayer := range v.Uvs.Layers {
		v.Uvs.Layers[iLayer] = make([]mgl32.Vec2, count)
	}

	for i := 0; i < count; i++ {
		r0 := &vertexReader{b: buffer0, pos: int(offset0) + i*stride0}

		// skinned meshes keep position, normals and bones in the
		// second buffer
		rShape := r0
		if stride1 != 0 {
			rShape = &vertexReader{b: buffer1, pos: int(offset1) + i*stride1}
		}

		v.Positions[i] = mgl32.Vec3{rShape.f32(), rShape.f32(), rShape.f32()}

		switch flags.Normals {
		case NORMAL_TYPE_NONE:
			v.Normals.Unk1[i] = rShape.f32()
		case NORMAL_TYPE_FLOAT32:
			v.Normals.Unk1[i] = rShape.f32()
			v.Normals.Normals[i] = rShape.vec4f32()
		case NORMAL_TYPE_UNK2, NORMAL_TYPE_TANGENT_BITANGENT_FLOAT32:
			v.Normals.Unk1[i] = rShape.f32()
			v.Normals.Normals[i] = rShape.vec4f32()
			v.Normals.Bitangents[i] = rShape.vec4f32()
			v.Normals.Tangents[i] = rShape.vec4f32()
		case NORMAL_TYPE_FLOAT16:
			v.Normals.Normals[i] = rShape.vec4f16()
		case NORMAL_TYPE_TANGENT_BITANGENT_FLOAT16:
			v.Normals.Normals[i] = rShape.vec4f16()
			v.Normals.Bitangents[i] = rShape.vec4f16()
			v.Normals.Tangents[i] = rShape.vec4f16()
		}

		switch flags.Bones {
		case BONE_TYPE_FLOAT32:
			for j := 0; j < 4; j++ {
				v.Bones.Indices[i][j] = rShape.u32()
			}
			v.Bones.Weights[i] = rShape.vec4f32()
		case BONE_TYPE_FLOAT16:
			for j := 0; j < 4; j++ {
				v.Bones.Indices[i][j] = uint32(rShape.u16())
			}
			v.Bones.Weights[i] = rShape.vec4f16()
		case BONE_TYPE_BYTE:
			for j := 0; j < 4; j++ {
				v.Bones.Indices[i][j] = uint32(rShape.u8())
			}
			v.Bones.Weights[i] = mgl32.Vec4{
				byteToUnorm(rShape.u8()), byteToUnorm(rShape.u8()),
				byteToUnorm(rShape.u8()), byteToUnorm(rShape.u8())}
		}

		switch flags.Colors {
		case COLOR_TYPE_BYTE:
			v.Colors.Rgba[i] = mgl32.Vec4{
				byteToUnorm(r0.u8()), byteToUnorm(r0.u8()),
				byteToUnorm(r0.u8()), byteToUnorm(r0.u8())}
		case COLOR_TYPE_FLOAT16:
			v.Colors.Rgba[i] = r0.vec4f16()
		}

		for iLayer := range v.Uvs.Layers {
			if flags.Uvs == UV_TYPE_FLOAT32 {
				v.Uvs.Layers[iLayer][i] = mgl32.Vec2{r0.f32(), r0.f32()}
			} else {
				v.Uvs.Layers[iLayer][i] = mgl32.Vec2{r0.f16(), r0.f16()}
			}
		}
	}

	return v, nil
}

func (v *Vertices) validate() error {
	count := len(v.Positions)
	checkLen := func(name string, l int) error {
		if l != count {
			return errors.Errorf("Attribute %s has %d elements for %d vertices", name, l, count)
		}
		return nil
	}

	if len(v.Uvs.Layers) > 15 {
		return errors.Errorf("Too many uv layers: %d", len(v.Uvs.Layers))
	}
	// each normal representation requires exactly the columns it encodes
	if v.Normals.Type.HasUnk1() {
		if err := checkLen("normals unk1", len(v.Normals.Unk1)); err != nil {
			return err
		}
	}
	if v.Normals.Type != NORMAL_TYPE_NONE {
		if err := checkLen("normals", len(v.Normals.Normals)); err != nil {
			return err
		}
	}
	if v.Normals.Type.HasTangents() {
		if err := checkLen("bitangents", len(v.Normals.Bitangents)); err != nil {
			return err
		}
		if err := checkLen("tangents", len(v.Normals.Tangents)); err != nil {
			return err
		}
	}
	if v.Bones != nil {
		if v.Bones.Type == BONE_TYPE_NONE {
			return errors.Errorf("Bones present but bones type is none")
		}
		if err := checkLen("bone indices", len(v.Bones.Indices)); err != nil {
			return err
		}
		if err := checkLen("bone weights", len(v.Bones.Weights)); err != nil {
			return err
		}
	}
	if v.Colors.Type != COLOR_TYPE_NONE {
		if err := checkLen("colors", len(v.Colors.Rgba)); err != nil {
			return err
		}
	}
	for iLayer, layer := range v.Uvs.Layers {
		if len(layer) != count {
			return errors.Errorf("Uv layer %d has %d elements for %d vertices", iLayer, len(layer), count)
		}
	}
	return nil
}

// WriteVertices appends the encoded attribute columns to the two vertex
// buffers and pads each to a 16 byte boundary. The caller records buffer
// lengths before the call to obtain the mesh offsets.
func WriteVertices(v *Vertices, buffer0, buffer1 *bytes.Buffer) (VertexFlags, error) {
	flags := v.Flags()
	if err := v.validate(); err != nil {
		return flags, err
	}

	count := len(v.Positions)
	stride0 := flags.Buffer0Stride()
	stride1 := flags.Buffer1Stride()

	chunk0 := make([]byte, count*stride0)
	chunk1 := make([]byte, count*stride1)

	for i := 0; i < count; i++ {
		w0 := &vertexWriter{b: chunk0, pos: i * stride0}

		wShape := w0
		if stride1 != 0 {
			wShape = &vertexWriter{b: chunk1, pos: i * stride1}
		}

		wShape.f32(v.Positions[i][0])
		wShape.f32(v.Positions[i][1])
		wShape.f32(v.Positions[i][2])

		switch flags.Normals {
		case NORMAL_TYPE_NONE:
			wShape.f32(v.Normals.Unk1[i])
		case NORMAL_TYPE_FLOAT32:
			wShape.f32(v.Normals.Unk1[i])
			wShape.vec4f32(v.Normals.Normals[i])
		case NORMAL_TYPE_UNK2, NORMAL_TYPE_TANGENT_BITANGENT_FLOAT32:
			wShape.f32(v.Normals.Unk1[i])
			wShape.vec4f32(v.Normals.Normals[i])
			wShape.vec4f32(v.Normals.Bitangents[i])
			wShape.vec4f32(v.Normals.Tangents[i])
		case NORMAL_TYPE_FLOAT16:
			wShape.vec4f16(v.Normals.Normals[i])
		case NORMAL_TYPE_TANGENT_BITANGENT_FLOAT16:
			wShape.vec4f16(v.Normals.Normals[i])
			wShape.vec4f16(v.Normals.Bitangents[i])
			wShape.vec4f16(v.Normals.Tangents[i])
		}

		switch flags.Bones {
		case BONE_TYPE_FLOAT32:
			for j := 0; j < 4; j++ {
				wShape.u32(v.Bones.Indices[i][j])
			}
			wShape.vec4f32(v.Bones.Weights[i])
		case BONE_TYPE_FLOAT16:
			for j := 0; j < 4; j++ {
				wShape.u16(uint16(v.Bones.Indices[i][j]))
			}
			wShape.vec4f16(v.Bones.Weights[i])
		case BONE_TYPE_BYTE:
			for j := 0; j < 4; j++ {
				wShape.u8(uint8(v.Bones.Indices[i][j]))
			}
			for j := 0; j < 4; j++ {
				wShape.u8(unormToByte(v.Bones.Weights[i][j]))
			}
		}

		switch flags.Colors {
		case COLOR_TYPE_BYTE:
			for j := 0; j < 4; j++ {
				w0.u8(unormToByte(v.Colors.Rgba[i][j]))
			}
		case COLOR_TYPE_FLOAT16:
			w0.vec4f16(v.Colors.Rgba[i])
		}

		for iLayer := range v.Uvs.Layers {
			uv := v.Uvs.Layers[iLayer][i]
			if flags.Uvs == UV_TYPE_FLOAT32 {
				w0.f32(uv[0])
				w0.f32(uv[1])
			} else {
				w0.f16(uv[0])
				w0.f16(uv[1])
			}
		}
	}

	buffer0.Write(chunk0)
	buffer1.Write(chunk1)
	alignBuffer(buffer0, 16)
	alignBuffer(buffer1, 16)

	return flags, nil
}

func alignBuffer(buf *bytes.Buffer, alignment int) {
	for buf.Len()%alignment != 0 {
		buf.WriteByte(0)
	}
}

// ReadVertexIndices decodes count big-endian u16 indices starting at
// offset within the index buffer.
func ReadVertexIndices(buffer []byte, offset uint32, count int) ([]uint16, error) {
	if end := int64(offset) + int64(count)*2; end > int64(len(buffer)) {
		return nil, errors.Errorf("Index buffer overflow: need 0x%x bytes, have 0x%x", end, len(buffer))
	}
	indices := make([]uint16, count)
	for i := range indices {
		indices[i] = binary.BigEndian.Uint16(buffer[int(offset)+i*2:])
	}
	return indices, nil
}

func WriteVertexIndices(buffer *bytes.Buffer, indices []uint16) {
	var tmp [2]byte
	for _, index := range indices {
		binary.BigEndian.PutUint16(tmp[:], index)
		buffer.Write(tmp[:])
	}
}

// TriangleStripToList unpacks a triangle strip with 0xffff restart
// markers into a plain triangle list, flipping the winding of every
// other triangle.
func TriangleStripToList(indices []uint16) []uint16 {
	list := make([]uint16, 0, len(indices))
	parity := 0
	for i := 0; i+2 < len(indices); i++ {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		if a == 0xffff || b == 0xffff || c == 0xffff {
			parity = 0
			continue
		}
		if parity%2 == 0 {
			list = append(list, a, b, c)
		} else {
			list = append(list, b, a, c)
		}
		parity++
	}
	return list
}
