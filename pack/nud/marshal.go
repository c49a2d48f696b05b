package nud

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/mogaika/smash_model_tools/utils"
)

// stringPool collects the deduplicated trailing string section. Strings
// are placed in first-use order, each padded to a 16 byte boundary.
// References remember file positions that receive the relative offset
// once the section position is known.
type stringPool struct {
	order   []string
	offsets map[string]uint32
	size    uint32
	refs    []stringRef
}

type stringRef struct {
	pos int
	s   string
}

func newStringPool() *stringPool {
	return &stringPool{offsets: make(map[string]uint32)}
}

func (sp *stringPool) Use(s string, pos int) {
	if _, ok := sp.offsets[s]; !ok {
		sp.offsets[s] = sp.size
		sp.order = append(sp.order, s)
		entrySize := uint32(len(utils.StringToBytes(s, true)))
		sp.size += (entrySize + 15) &^ 15
	}
	sp.refs = append(sp.refs, stringRef{pos: pos, s: s})
}

type beWriter struct {
	buf *bytes.Buffer
}

func (w beWriter) u8(v uint8) { w.buf.WriteByte(v) }

func (w beWriter) u16(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	w.buf.Write(tmp[:])
}

func (w beWriter) u32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.buf.Write(tmp[:])
}

func (w beWriter) f32(v float32) { w.u32(math.Float32bits(v)) }

// MarshalBuffer encodes the container back to its file form. Group
// records follow the header, then the per-group mesh tables, then the
// materials of every mesh in order, then the three shared buffers and
// finally the string section.
func (n *NUD) MarshalBuffer() ([]byte, error) {
	if len(n.MeshGroups) > 0xffff {
		return nil, errors.Errorf("Too many mesh groups: %d", len(n.MeshGroups))
	}

	var buf bytes.Buffer
	w := beWriter{buf: &buf}
	sp := newStringPool()

	type patch struct {
		pos   int
		value uint32
	}
	var patches []patch

	w.u32(NUD_MAGIC)
	fileSizePos := buf.Len()
	w.u32(0)
	w.u16(n.Version)
	w.u16(uint16(len(n.MeshGroups)))
	w.u16(n.BoneStartIndex)
	w.u16(n.BoneEndIndex)
	indicesOffsetPos := buf.Len()
	w.u32(0)
	w.u32(uint32(len(n.IndexBuffer)))
	w.u32(uint32(len(n.VertexBuffer0)))
	w.u32(uint32(len(n.VertexBuffer1)))
	w.f32(n.BoundingSphere.Center[0])
	w.f32(n.BoundingSphere.Center[1])
	w.f32(n.BoundingSphere.Center[2])
	w.f32(n.BoundingSphere.Radius)

	meshTablePos := make([]int, len(n.MeshGroups))
	for iGroup := range n.MeshGroups {
		group := &n.MeshGroups[iGroup]
		if len(group.Meshes) > 0xffff {
			return nil, errors.Errorf("Too many meshes in group %q: %d", group.Name, len(group.Meshes))
		}

		w.f32(group.BoundingSphere.Center[0])
		w.f32(group.BoundingSphere.Center[1])
		w.f32(group.BoundingSphere.Center[2])
		w.f32(group.BoundingSphere.Radius)
		w.f32(group.Center[0])
		w.f32(group.Center[1])
		w.f32(group.Center[2])
		w.f32(group.SortBias)
		sp.Use(group.Name, buf.Len())
		w.u32(0)
		w.u16(group.Unk1)
		w.u16(uint16(group.BoneFlags))
		w.u16(uint16(group.ParentBoneIndex))
		w.u16(uint16(len(group.Meshes)))
		meshTablePos[iGroup] = buf.Len()
		w.u32(0)
	}

	type materialSlot struct {
		pos      int
		material *Material
	}
	var materialSlots []materialSlot

	for iGroup := range n.MeshGroups {
		group := &n.MeshGroups[iGroup]
		patches = append(patches, patch{pos: meshTablePos[iGroup], value: uint32(buf.Len())})

		for iMesh := range group.Meshes {
			mesh := &group.Meshes[iMesh]

			w.u32(mesh.VertexIndicesOffset)
			w.u32(mesh.VertexBuffer0Offset)
			w.u32(mesh.VertexBuffer1Offset)
			w.u16(mesh.VertexCount)
			shape, uvColor := mesh.VertexFlags.Encode()
			w.u8(shape)
			w.u8(uvColor)
			for iMaterial := 0; iMaterial < 4; iMaterial++ {
				materialSlots = append(materialSlots, materialSlot{
					pos: buf.Len(), material: mesh.Materials[iMaterial]})
				w.u32(0)
			}
			w.u16(mesh.VertexIndexCount)
			w.u16(uint16(mesh.VertexIndexFlags))
			w.u32(mesh.Unk[0])
			w.u32(mesh.Unk[1])
			w.u32(mesh.Unk[2])
		}
	}

	for _, slot := range materialSlots {
		material := slot.material
		if material == nil {
			continue
		}
		patches = append(patches, patch{pos: slot.pos, value: uint32(buf.Len())})
		if err := marshalMaterial(w, sp, material); err != nil {
			return nil, err
		}
	}

	alignBuffer(&buf, 16)
	patches = append(patches, patch{pos: indicesOffsetPos, value: uint32(buf.Len() - HEADER_SIZE)})

	buf.Write(n.IndexBuffer)
	buf.Write(n.VertexBuffer0)
	buf.Write(n.VertexBuffer1)

	// Name offsets count from the unaligned end of the vertex buffers,
	// so any padding inserted before the first string is part of every
	// offset.
	stringsBase := buf.Len()
	alignBuffer(&buf, 16)
	stringsBias := uint32(buf.Len() - stringsBase)
	for _, s := range sp.order {
		buf.Write(utils.StringToBytes(s, true))
		alignBuffer(&buf, 16)
	}

	data := buf.Bytes()
	patches = append(patches, patch{pos: fileSizePos, value: uint32(len(data))})
	for _, p := range patches {
		binary.BigEndian.PutUint32(data[p.pos:], p.value)
	}
	for _, ref := range sp.refs {
		binary.BigEndian.PutUint32(data[ref.pos:], stringsBias+sp.offsets[ref.s])
	}

	return data, nil
}

func marshalMaterial(w beWriter, sp *stringPool, material *Material) error {
	if len(material.Textures) > 0xffff {
		return errors.Errorf("Too many material textures: %d", len(material.Textures))
	}

	w.u32(material.ShaderId)
	w.u32(material.Unk1)
	w.u16(material.SrcFactor)
	w.u16(uint16(len(material.Textures)))
	w.u16(material.DstFactor)
	w.u16(material.AlphaFunc)
	w.u16(material.AlphaTestRef)
	w.u16(material.CullMode)
	w.u32(material.Unk2)
	w.u32(material.Unk3)
	w.u32(uint32(material.ZBufferOffset))

	for iTexture := range material.Textures {
		t := &material.Textures[iTexture]
		w.u32(t.Hash)
		w.u16(t.Unk1[0])
		w.u16(t.Unk1[1])
		w.u16(t.Unk1[2])
		w.u16(t.MapMode)
		w.u8(t.WrapModeS)
		w.u8(t.WrapModeT)
		w.u8(t.MinFilter)
		w.u8(t.MagFilter)
		w.u8(t.MipDetail)
		w.u8(t.Unk2)
		w.u32(t.Unk3)
		w.u16(t.Unk4)
	}

	for iProperty := range material.Properties {
		prop := &material.Properties[iProperty]
		if len(prop.Values) > 0xff {
			return errors.Errorf("Too many values in material property %q: %d", prop.Name, len(prop.Values))
		}

		w.u32(prop.Size)
		sp.Use(prop.Name, w.buf.Len())
		w.u32(0)
		w.u8(prop.Unk1[0])
		w.u8(prop.Unk1[1])
		w.u8(prop.Unk1[2])
		w.u8(uint8(len(prop.Values)))
		w.u32(prop.Unk2)
		for _, value := range prop.Values {
			w.f32(value)
		}
	}

	return nil
}
