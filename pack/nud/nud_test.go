package nud

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/smash_model_tools/utils"
)

func buildTestNUD(t *testing.T) *NUD {
	t.Helper()

	vertices := &Vertices{
		Positions: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		Normals: Normals{
			Type: NORMAL_TYPE_FLOAT16,
			Normals: []mgl32.Vec4{
				{0, 0, 1, 1}, {0, 0, 1, 1}, {0, 0, 1, 1}, {0, 0, 1, 1},
			},
		},
		Colors: Colors{
			Type: COLOR_TYPE_BYTE,
			Rgba: []mgl32.Vec4{
				{1, 1, 1, 1}, {1, 1, 1, 1}, {1, 1, 1, 1}, {1, 1, 1, 1},
			},
		},
		Uvs: Uvs{
			Type: UV_TYPE_FLOAT16,
			Layers: [][]mgl32.Vec2{
				{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
			},
		},
	}

	var indexBuffer, buffer0, buffer1 bytes.Buffer
	flags, err := WriteVertices(vertices, &buffer0, &buffer1)
	if err != nil {
		t.Fatalf("Failed to write vertices: %v", err)
	}
	WriteVertexIndices(&indexBuffer, []uint16{0, 1, 2, 0, 2, 3})
	alignBuffer(&indexBuffer, 16)

	material := &Material{
		ShaderId:     0x92,
		SrcFactor:    SRC_FACTOR_SOURCE_ALPHA,
		DstFactor:    DST_FACTOR_ONE_MINUS_SOURCE_ALPHA,
		AlphaFunc:    ALPHA_FUNC_GREATER,
		AlphaTestRef: 0x80,
		CullMode:     CULL_MODE_INSIDE,
		Textures: []MaterialTexture{{
			Hash:      0x40000010,
			MapMode:   MAP_MODE_TEX_COORD,
			WrapModeS: WRAP_MODE_REPEAT,
			WrapModeT: WRAP_MODE_REPEAT,
			MinFilter: MIN_FILTER_LINEAR,
			MagFilter: MAG_FILTER_LINEAR,
			MipDetail: 6,
		}},
		Properties: []MaterialProperty{
			{Size: 32, Name: "NU_colorSamplerUV", Values: []float32{1, 1, 0, 0}},
			{Size: 0, Name: MATERIAL_PROPERTY_NAME_HASH, Values: []float32{4.2}},
		},
	}

	return &NUD{
		Version: NUD_VERSION,
		BoundingSphere: BoundingSphere{
			Center: mgl32.Vec3{0.5, 0.5, 0},
			Radius: 0.8,
		},
		MeshGroups: []MeshGroup{{
			Name: "Plane_VIS_O_OBJ",
			BoundingSphere: BoundingSphere{
				Center: mgl32.Vec3{0.5, 0.5, 0},
				Radius: 0.75,
			},
			Center:          mgl32.Vec3{0.5, 0.5, 0},
			ParentBoneIndex: -1,
			Meshes: []Mesh{{
				VertexCount:      4,
				VertexFlags:      flags,
				Materials:        [4]*Material{material, nil, nil, nil},
				VertexIndexCount: 6,
				VertexIndexFlags: NewVertexIndexFlags(true, false),
			}},
		}},
		IndexBuffer:   indexBuffer.Bytes(),
		VertexBuffer0: buffer0.Bytes(),
		VertexBuffer1: buffer1.Bytes(),
	}
}

func TestContainerRoundTrip(t *testing.T) {
	n := buildTestNUD(t)

	data, err := n.MarshalBuffer()
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	if binary.BigEndian.Uint32(data[4:]) != uint32(len(data)) {
		t.Errorf("File size field %d does not match data length %d",
			binary.BigEndian.Uint32(data[4:]), len(data))
	}

	decoded, err := NewFromData(data)
	if err != nil {
		t.Fatalf("Failed to parse marshaled data: %v", err)
	}
	if !reflect.DeepEqual(decoded, n) {
		t.Errorf("Decoded container differs:\n%s\nwant:\n%s", utils.SDump(decoded), utils.SDump(n))
	}

	redata, err := decoded.MarshalBuffer()
	if err != nil {
		t.Fatalf("Failed to remarshal: %v", err)
	}
	if !bytes.Equal(data, redata) {
		t.Errorf("Byte level round trip failed: %d vs %d bytes", len(data), len(redata))
	}
}

func TestContainerUnalignedBuffers(t *testing.T) {
	n := buildTestNUD(t)
	// 6 indices occupy 12 bytes; unpadded they move the string section
	// off a 16 byte boundary
	n.IndexBuffer = n.IndexBuffer[:12]

	data, err := n.MarshalBuffer()
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	decoded, err := NewFromData(data)
	if err != nil {
		t.Fatalf("Failed to parse marshaled data: %v", err)
	}
	if decoded.MeshGroups[0].Name != "Plane_VIS_O_OBJ" {
		t.Errorf("Group name damaged: %q", decoded.MeshGroups[0].Name)
	}
	if got := decoded.MeshGroups[0].Meshes[0].Materials[0].Properties[0].Name; got != "NU_colorSamplerUV" {
		t.Errorf("Property name damaged: %q", got)
	}
	if !reflect.DeepEqual(decoded, n) {
		t.Errorf("Decoded container differs:\n%s\nwant:\n%s", utils.SDump(decoded), utils.SDump(n))
	}
}

func TestContainerSharedStrings(t *testing.T) {
	n := buildTestNUD(t)
	second := n.MeshGroups[0]
	second.Meshes = nil
	n.MeshGroups = append(n.MeshGroups, second)

	data, err := n.MarshalBuffer()
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	name := utils.StringToBytes("Plane_VIS_O_OBJ", true)
	if count := bytes.Count(data, name); count != 1 {
		t.Errorf("Group name stored %d times, want 1", count)
	}

	decoded, err := NewFromData(data)
	if err != nil {
		t.Fatalf("Failed to parse marshaled data: %v", err)
	}
	if decoded.MeshGroups[0].Name != decoded.MeshGroups[1].Name {
		t.Errorf("Groups lost the shared name: %q vs %q",
			decoded.MeshGroups[0].Name, decoded.MeshGroups[1].Name)
	}
}

func TestContainerBadInput(t *testing.T) {
	n := buildTestNUD(t)
	data, err := n.MarshalBuffer()
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	corrupt := func(mutate func(b []byte)) []byte {
		b := append([]byte(nil), data...)
		mutate(b)
		return b
	}

	for _, test := range []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated header", data[:0x20]},
		{"bad magic", corrupt(func(b []byte) { b[0] = 'X' })},
		{"bad bone flags", corrupt(func(b []byte) {
			binary.BigEndian.PutUint16(b[HEADER_SIZE+0x26:], 3)
		})},
		{"mesh table out of file", corrupt(func(b []byte) {
			binary.BigEndian.PutUint32(b[HEADER_SIZE+0x2c:], 0x7fffffff)
		})},
		{"reserved vertex flags", corrupt(func(b []byte) {
			// first mesh record directly follows the group table
			b[HEADER_SIZE+MESH_GROUP_SIZE+0xe] = 0x04
		})},
		{"buffers out of file", corrupt(func(b []byte) {
			binary.BigEndian.PutUint32(b[0x14:], 0xffffff00)
		})},
	} {
		t.Run(test.name, func(t *testing.T) {
			if _, err := NewFromData(test.data); err == nil {
				t.Errorf("Expected parse error")
			}
		})
	}
}
