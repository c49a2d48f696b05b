package model

import (
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/smash_model_tools/3rdparty/half"
	"github.com/mogaika/smash_model_tools/pack/nud"
)

func f16(f float32) float32 { return half.NewFloat16(f).Float32() }

func testMaterial() *Material {
	return &Material{
		ShaderId:     0x92,
		SrcFactor:    nud.SRC_FACTOR_SOURCE_ALPHA,
		DstFactor:    nud.DST_FACTOR_ONE_MINUS_SOURCE_ALPHA,
		AlphaFunc:    nud.ALPHA_FUNC_GREATER,
		AlphaTestRef: 0x80,
		CullMode:     nud.CULL_MODE_INSIDE,
		Textures: []Texture{{
			Hash:      0x40000010,
			MapMode:   nud.MAP_MODE_TEX_COORD,
			WrapModeS: nud.WRAP_MODE_REPEAT,
			WrapModeT: nud.WRAP_MODE_REPEAT,
			MinFilter: nud.MIN_FILTER_LINEAR,
			MagFilter: nud.MAG_FILTER_LINEAR,
			MipDetail: 6,
		}},
		Properties: []Property{
			{Name: "NU_colorSamplerUV", Values: []float32{1, 1, 0, 0}},
			// doubles as the property list terminator
			{Name: nud.MATERIAL_PROPERTY_NAME_HASH, Values: []float32{4.2}},
		},
	}
}

func testModel() *Model {
	skinnedVertices := &nud.Vertices{
		Positions: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}},
		Normals: nud.Normals{
			Type:    nud.NORMAL_TYPE_FLOAT16,
			Normals: []mgl32.Vec4{{0, 0, 1, 1}, {0, 0, 1, 1}, {f16(0.5), f16(0.5), f16(0.70703125), 1}},
		},
		Bones: &nud.Bones{
			Type:    nud.BONE_TYPE_BYTE,
			Indices: [][4]uint32{{3, 7, 0, 0}, {12, 0, 0, 0}, {7, 0, 0, 0}},
			Weights: []mgl32.Vec4{
				{127.0 / 255.0, 128.0 / 255.0, 0, 0},
				{1, 0, 0, 0},
				{1, 0, 0, 0},
			},
		},
		Uvs: nud.Uvs{
			Type:   nud.UV_TYPE_FLOAT16,
			Layers: [][]mgl32.Vec2{{{0, 0}, {1, 0}, {1, 1}}},
		},
	}

	plainVertices := &nud.Vertices{
		Positions: []mgl32.Vec3{{0, 0, 1}, {1, 0, 1}, {1, 1, 1}},
		Normals: nud.Normals{
			Type:    nud.NORMAL_TYPE_FLOAT16,
			Normals: []mgl32.Vec4{{0, 0, 1, 1}, {0, 0, 1, 1}, {0, 0, 1, 1}},
		},
		Colors: nud.Colors{
			Type: nud.COLOR_TYPE_BYTE,
			Rgba: []mgl32.Vec4{{1, 1, 1, 1}, {1, 1, 1, 1}, {1, 1, 1, 1}},
		},
		Uvs: nud.Uvs{
			Type:   nud.UV_TYPE_FLOAT16,
			Layers: [][]mgl32.Vec2{{{0, 0}, {1, 0}, {1, 1}}},
		},
	}

	return &Model{
		Groups: []MeshGroup{
			{
				Name:            "Body_VIS_O_OBJ",
				SortBias:        0.5,
				BoundingSphere:  mgl32.Vec4{0, 1, 0, 2},
				ParentBoneIndex: -1,
				Meshes: []Mesh{{
					Vertices:      skinnedVertices,
					VertexIndices: []uint16{0, 1, 2},
					PrimitiveType: PRIMITIVE_TRIANGLE_STRIP,
					Materials:     [4]*Material{testMaterial(), nil, nil, nil},
				}},
			},
			{
				Name:            "Shield_VIS_O_OBJ",
				BoundingSphere:  mgl32.Vec4{1, 1, 1, 1},
				ParentBoneIndex: 5,
				Meshes: []Mesh{{
					Vertices:      plainVertices,
					VertexIndices: []uint16{0, 1, 2},
					PrimitiveType: PRIMITIVE_TRIANGLE_LIST,
					Materials:     [4]*Material{testMaterial(), nil, nil, nil},
				}},
			},
		},
		BoundingSphere: mgl32.Vec4{0.5, 0.5, 0.5, 3},
	}
}

func TestModelToNud(t *testing.T) {
	m := testModel()
	n, err := m.ToNud()
	if err != nil {
		t.Fatalf("Failed to convert: %v", err)
	}

	if n.Version != nud.NUD_VERSION {
		t.Errorf("Version = %d", n.Version)
	}
	// indices 0 and the padding slots, 3, 7, 12 from skinning, 5 from
	// the parented group
	if n.BoneStartIndex != 0 || n.BoneEndIndex != 12 {
		t.Errorf("Bone range = %d..%d, want 0..12", n.BoneStartIndex, n.BoneEndIndex)
	}

	skinned := &n.MeshGroups[0]
	if skinned.BoneFlags != nud.BONE_FLAGS_SKINNING || skinned.ParentBoneIndex != -1 {
		t.Errorf("Skinned group: flags %d parent %d", skinned.BoneFlags, skinned.ParentBoneIndex)
	}
	if skinned.Meshes[0].VertexIndexFlags.IsTriangleList() {
		t.Errorf("Strip mesh marked as triangle list")
	}
	if !skinned.Meshes[0].VertexIndexFlags.HasBones() {
		t.Errorf("Skinned mesh lost its bones flag")
	}

	parented := &n.MeshGroups[1]
	if parented.BoneFlags != nud.BONE_FLAGS_PARENT_BONE || parented.ParentBoneIndex != 5 {
		t.Errorf("Parented group: flags %d parent %d", parented.BoneFlags, parented.ParentBoneIndex)
	}
	if !parented.Meshes[0].VertexIndexFlags.IsTriangleList() {
		t.Errorf("List mesh lost its triangle list flag")
	}

	// unskinned meshes keep everything in the first buffer
	if parented.Meshes[0].VertexBuffer1Offset != 0 {
		t.Errorf("Unskinned mesh has buffer 1 offset 0x%x", parented.Meshes[0].VertexBuffer1Offset)
	}

	if len(n.IndexBuffer)%16 != 0 || len(n.VertexBuffer0)%16 != 0 || len(n.VertexBuffer1)%16 != 0 {
		t.Errorf("Buffers are not padded: %d/%d/%d",
			len(n.IndexBuffer), len(n.VertexBuffer0), len(n.VertexBuffer1))
	}
}

func TestModelRoundTrip(t *testing.T) {
	m := testModel()

	n, err := m.ToNud()
	if err != nil {
		t.Fatalf("Failed to convert: %v", err)
	}
	data, err := n.MarshalBuffer()
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	reparsed, err := nud.NewFromData(data)
	if err != nil {
		t.Fatalf("Failed to parse marshaled data: %v", err)
	}
	decoded, err := NewFromNud(reparsed, nil)
	if err != nil {
		t.Fatalf("Failed to convert back: %v", err)
	}

	if !reflect.DeepEqual(decoded, m) {
		t.Errorf("Model changed over a round trip:\ngot %+v\nwant %+v", decoded, m)
	}
}

func TestTriangleListIndices(t *testing.T) {
	mesh := &Mesh{
		VertexIndices: []uint16{0, 1, 2, 3},
		PrimitiveType: PRIMITIVE_TRIANGLE_STRIP,
	}
	expected := []uint16{0, 1, 2, 2, 1, 3}
	if got := mesh.TriangleListIndices(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Got %v, want %v", got, expected)
	}

	mesh.PrimitiveType = PRIMITIVE_TRIANGLE_LIST
	if got := mesh.TriangleListIndices(); !reflect.DeepEqual(got, []uint16{0, 1, 2, 3}) {
		t.Errorf("Got %v", got)
	}
}
