package nud

import (
	"github.com/pkg/errors"
)

// NormalType selects the per-vertex normal layout. Float32 variants carry
// a leading unknown float before the normal itself.
type NormalType uint8

const (
	NORMAL_TYPE_NONE                      NormalType = 0
	NORMAL_TYPE_FLOAT32                   NormalType = 1
	NORMAL_TYPE_UNK2                      NormalType = 2
	NORMAL_TYPE_TANGENT_BITANGENT_FLOAT32 NormalType = 3
	NORMAL_TYPE_FLOAT16                   NormalType = 6
	NORMAL_TYPE_TANGENT_BITANGENT_FLOAT16 NormalType = 7
)

// Size returns the per-vertex byte size of the normals attribute.
// The NONE variant still occupies one float per vertex.
func (nt NormalType) Size() int {
	switch nt {
	case NORMAL_TYPE_NONE:
		return 4
	case NORMAL_TYPE_FLOAT32:
		return 20
	case NORMAL_TYPE_UNK2:
		return 52
	case NORMAL_TYPE_TANGENT_BITANGENT_FLOAT32:
		return 52
	case NORMAL_TYPE_FLOAT16:
		return 8
	case NORMAL_TYPE_TANGENT_BITANGENT_FLOAT16:
		return 24
	}
	return 0
}

func (nt NormalType) HasTangents() bool {
	return nt == NORMAL_TYPE_UNK2 ||
		nt == NORMAL_TYPE_TANGENT_BITANGENT_FLOAT32 ||
		nt == NORMAL_TYPE_TANGENT_BITANGENT_FLOAT16
}

// HasUnk1 reports whether the representation carries the leading
// unknown float32 column.
func (nt NormalType) HasUnk1() bool {
	return nt == NORMAL_TYPE_NONE ||
		nt == NORMAL_TYPE_FLOAT32 ||
		nt == NORMAL_TYPE_UNK2 ||
		nt == NORMAL_TYPE_TANGENT_BITANGENT_FLOAT32
}

type BoneType uint8

const (
	BONE_TYPE_NONE    BoneType = 0
	BONE_TYPE_FLOAT32 BoneType = 1
	BONE_TYPE_FLOAT16 BoneType = 2
	BONE_TYPE_BYTE    BoneType = 4
)

// Size returns the combined per-vertex byte size of the four bone
// indices and four bone weights.
func (bt BoneType) Size() int {
	switch bt {
	case BONE_TYPE_NONE:
		return 0
	case BONE_TYPE_FLOAT32:
		return 32
	case BONE_TYPE_FLOAT16:
		return 16
	case BONE_TYPE_BYTE:
		return 8
	}
	return 0
}

type ColorType uint8

const (
	COLOR_TYPE_NONE    ColorType = 0
	COLOR_TYPE_BYTE    ColorType = 1
	COLOR_TYPE_FLOAT16 ColorType = 2
)

func (ct ColorType) Size() int {
	switch ct {
	case COLOR_TYPE_NONE:
		return 0
	case COLOR_TYPE_BYTE:
		return 4
	case COLOR_TYPE_FLOAT16:
		return 8
	}
	return 0
}

type UvType uint8

const (
	UV_TYPE_FLOAT16 UvType = 0
	UV_TYPE_FLOAT32 UvType = 1
)

// Size returns the byte size of a single uv layer.
func (ut UvType) Size() int {
	if ut == UV_TYPE_FLOAT32 {
		return 8
	}
	return 4
}

// VertexFlags describes the vertex layout of a mesh. On disk it is two
// bytes: the first packs the normal type in the low nibble and the bone
// type in the high nibble, the second packs the uv type in bit 0, the
// color type in bits 1-3 and the uv layer count in the high nibble.
type VertexFlags struct {
	Normals  NormalType
	Bones    BoneType
	Colors   ColorType
	Uvs      UvType
	UvLayers uint8
}

func ParseVertexFlags(shape, uvColor byte) (VertexFlags, error) {
	f := VertexFlags{
		Normals:  NormalType(shape & 0xf),
		Bones:    BoneType(shape >> 4),
		Uvs:      UvType(uvColor & 1),
		Colors:   ColorType((uvColor >> 1) & 0x7),
		UvLayers: uvColor >> 4,
	}
	switch f.Normals {
	case NORMAL_TYPE_NONE, NORMAL_TYPE_FLOAT32, NORMAL_TYPE_UNK2,
		NORMAL_TYPE_TANGENT_BITANGENT_FLOAT32, NORMAL_TYPE_FLOAT16,
		NORMAL_TYPE_TANGENT_BITANGENT_FLOAT16:
	default:
		return f, errors.Errorf("Unknown normals type 0x%x in flags 0x%.2x%.2x", uint8(f.Normals), shape, uvColor)
	}
	switch f.Bones {
	case BONE_TYPE_NONE, BONE_TYPE_FLOAT32, BONE_TYPE_FLOAT16, BONE_TYPE_BYTE:
	default:
		return f, errors.Errorf("Unknown bones type 0x%x in flags 0x%.2x%.2x", uint8(f.Bones), shape, uvColor)
	}
	switch f.Colors {
	case COLOR_TYPE_NONE, COLOR_TYPE_BYTE, COLOR_TYPE_FLOAT16:
	default:
		return f, errors.Errorf("Unknown colors type 0x%x in flags 0x%.2x%.2x", uint8(f.Colors), shape, uvColor)
	}
	return f, nil
}

// ParseVertexFlagsU16 accepts the combined big-endian form of the two
// flag bytes.
func ParseVertexFlagsU16(flags uint16) (VertexFlags, error) {
	return ParseVertexFlags(byte(flags>>8), byte(flags))
}

func (f VertexFlags) Encode() (shape, uvColor byte) {
	shape = byte(f.Normals)&0xf | byte(f.Bones)<<4
	uvColor = byte(f.Uvs)&1 | (byte(f.Colors)&0x7)<<1 | f.UvLayers<<4
	return shape, uvColor
}

func (f VertexFlags) U16() uint16 {
	shape, uvColor := f.Encode()
	return uint16(shape)<<8 | uint16(uvColor)
}

// Buffer0Stride returns the per-vertex byte size of the first vertex
// buffer. Skinned meshes keep only colors and uvs there; everything
// else lives in the second buffer.
func (f VertexFlags) Buffer0Stride() int {
	stride := f.Colors.Size() + f.Uvs.Size()*int(f.UvLayers)
	if f.Bones == BONE_TYPE_NONE {
		stride += 12 + f.Normals.Size()
	}
	return stride
}

// Buffer1Stride returns the per-vertex byte size of the second vertex
// buffer, which is zero for unskinned meshes.
func (f VertexFlags) Buffer1Stride() int {
	if f.Bones == BONE_TYPE_NONE {
		return 0
	}
	return 12 + f.Normals.Size() + f.Bones.Size()
}

// VertexIndexFlags describes how a mesh interprets its index buffer.
type VertexIndexFlags uint16

const (
	VERTEX_INDEX_FLAG_BONES         VertexIndexFlags = 0x0004
	VERTEX_INDEX_FLAG_TRIANGLE_LIST VertexIndexFlags = 0x4000
)

func NewVertexIndexFlags(triangleList, hasBones bool) VertexIndexFlags {
	var f VertexIndexFlags
	if triangleList {
		f |= VERTEX_INDEX_FLAG_TRIANGLE_LIST
	}
	if hasBones {
		f |= VERTEX_INDEX_FLAG_BONES
	}
	return f
}

func (f VertexIndexFlags) IsTriangleList() bool {
	return f&VERTEX_INDEX_FLAG_TRIANGLE_LIST != 0
}

func (f VertexIndexFlags) HasBones() bool {
	return f&VERTEX_INDEX_FLAG_BONES != 0
}
