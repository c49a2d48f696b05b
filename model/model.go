package model

import (
	"bytes"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/smash_model_tools/pack/nud"
)

type PrimitiveType int

const (
	PRIMITIVE_TRIANGLE_LIST PrimitiveType = iota
	PRIMITIVE_TRIANGLE_STRIP
)

// Model is the editable form of a nud container: vertices, indices and
// materials are fully decoded, buffer layout and offsets are gone and
// get rebuilt by ToNud.
type Model struct {
	Groups         []MeshGroup
	BoundingSphere mgl32.Vec4
	Skeleton       *Skeleton
}

type MeshGroup struct {
	Name           string
	Meshes         []Mesh
	SortBias       float32
	BoundingSphere mgl32.Vec4

	// ParentBoneIndex is -1 unless the whole group follows one bone.
	ParentBoneIndex int
}

type Mesh struct {
	Vertices      *nud.Vertices
	VertexIndices []uint16
	PrimitiveType PrimitiveType
	Materials     [4]*Material
}

type Material struct {
	ShaderId     uint32
	SrcFactor    uint16
	DstFactor    uint16
	AlphaFunc    uint16
	AlphaTestRef uint16
	CullMode     uint16
	Textures     []Texture
	Properties   []Property
}

type Texture struct {
	Hash      uint32
	MapMode   uint16
	WrapModeS uint8
	WrapModeT uint8
	MinFilter uint8
	MagFilter uint8
	MipDetail uint8
}

type Property struct {
	Name   string
	Values []float32
}

// TriangleListIndices returns indices forming a triangle list,
// converting from a strip when needed.
func (m *Mesh) TriangleListIndices() []uint16 {
	if m.PrimitiveType == PRIMITIVE_TRIANGLE_STRIP {
		return nud.TriangleStripToList(m.VertexIndices)
	}
	return m.VertexIndices
}

// SkinWeights returns the skinning data of the mesh, or nil for
// unskinned meshes.
func (m *Mesh) SkinWeights() *SkinWeights {
	if m.Vertices == nil || m.Vertices.Bones == nil {
		return nil
	}
	return &SkinWeights{
		BoneIndices: m.Vertices.Bones.Indices,
		BoneWeights: m.Vertices.Bones.Weights,
	}
}

func NewFromNud(n *nud.NUD, skeleton *Skeleton) (*Model, error) {
	model := &Model{
		Groups: make([]MeshGroup, len(n.MeshGroups)),
		BoundingSphere: mgl32.Vec4{
			n.BoundingSphere.Center[0], n.BoundingSphere.Center[1],
			n.BoundingSphere.Center[2], n.BoundingSphere.Radius},
		Skeleton: skeleton,
	}

	for iGroup := range n.MeshGroups {
		g := &n.MeshGroups[iGroup]

		group := MeshGroup{
			Name:     g.Name,
			Meshes:   make([]Mesh, len(g.Meshes)),
			SortBias: g.SortBias,
			BoundingSphere: mgl32.Vec4{
				g.BoundingSphere.Center[0], g.BoundingSphere.Center[1],
				g.BoundingSphere.Center[2], g.BoundingSphere.Radius},
			ParentBoneIndex: int(g.ParentBoneIndex),
		}

		for iMesh := range g.Meshes {
			nudMesh := &g.Meshes[iMesh]

			vertices, err := n.Vertices(nudMesh)
			if err != nil {
				return nil, errors.Wrapf(err, "Error when reading vertices of mesh %d of group %q", iMesh, g.Name)
			}
			indices, err := n.VertexIndices(nudMesh)
			if err != nil {
				return nil, errors.Wrapf(err, "Error when reading indices of mesh %d of group %q", iMesh, g.Name)
			}

			primitiveType := PRIMITIVE_TRIANGLE_STRIP
			if nudMesh.VertexIndexFlags.IsTriangleList() {
				primitiveType = PRIMITIVE_TRIANGLE_LIST
			}

			mesh := Mesh{
				Vertices:      vertices,
				VertexIndices: indices,
				PrimitiveType: primitiveType,
			}
			for iMaterial, material := range nudMesh.Materials {
				if material != nil {
					mesh.Materials[iMaterial] = newMaterial(material)
				}
			}
			group.Meshes[iMesh] = mesh
		}

		model.Groups[iGroup] = group
	}

	return model, nil
}

func newMaterial(m *nud.Material) *Material {
	material := &Material{
		ShaderId:     m.ShaderId,
		SrcFactor:    m.SrcFactor,
		DstFactor:    m.DstFactor,
		AlphaFunc:    m.AlphaFunc,
		AlphaTestRef: m.AlphaTestRef,
		CullMode:     m.CullMode,
		Textures:     make([]Texture, len(m.Textures)),
		Properties:   make([]Property, len(m.Properties)),
	}
	for i, t := range m.Textures {
		material.Textures[i] = Texture{
			Hash:      t.Hash,
			MapMode:   t.MapMode,
			WrapModeS: t.WrapModeS,
			WrapModeT: t.WrapModeT,
			MinFilter: t.MinFilter,
			MagFilter: t.MagFilter,
			MipDetail: t.MipDetail,
		}
	}
	for i, p := range m.Properties {
		material.Properties[i] = Property{Name: p.Name, Values: p.Values}
	}
	return material
}

func (m *Material) toNud() *nud.Material {
	material := &nud.Material{
		ShaderId:     m.ShaderId,
		SrcFactor:    m.SrcFactor,
		DstFactor:    m.DstFactor,
		AlphaFunc:    m.AlphaFunc,
		AlphaTestRef: m.AlphaTestRef,
		CullMode:     m.CullMode,
		Textures:     make([]nud.MaterialTexture, len(m.Textures)),
		Properties:   make([]nud.MaterialProperty, len(m.Properties)),
	}
	for i, t := range m.Textures {
		material.Textures[i] = nud.MaterialTexture{
			Hash:      t.Hash,
			MapMode:   t.MapMode,
			WrapModeS: t.WrapModeS,
			WrapModeT: t.WrapModeT,
			MinFilter: t.MinFilter,
			MagFilter: t.MagFilter,
			MipDetail: t.MipDetail,
		}
	}
	for i, p := range m.Properties {
		// The hash property doubles as the list terminator and is
		// stored with a zero size.
		size := uint32(nud.MATERIAL_PROPERTY_HEAD_SIZE + len(p.Values)*4)
		if p.Name == nud.MATERIAL_PROPERTY_NAME_HASH {
			size = 0
		}
		material.Properties[i] = nud.MaterialProperty{
			Size:   size,
			Name:   p.Name,
			Values: p.Values,
		}
	}
	return material
}

// ToNud packs the model back into container form, rebuilding the three
// shared buffers, the mesh offsets and the used bone index range.
func (m *Model) ToNud() (*nud.NUD, error) {
	n := &nud.NUD{
		Version: nud.NUD_VERSION,
		BoundingSphere: nud.BoundingSphere{
			Center: m.BoundingSphere.Vec3(),
			Radius: m.BoundingSphere[3],
		},
		MeshGroups: make([]nud.MeshGroup, len(m.Groups)),
	}

	var indexBuffer, buffer0, buffer1 bytes.Buffer

	usedBoneIndices := map[uint32]bool{}

	for iGroup := range m.Groups {
		group := &m.Groups[iGroup]
		if group.ParentBoneIndex >= 0 {
			usedBoneIndices[uint32(group.ParentBoneIndex)] = true
		}

		nudGroup := nud.MeshGroup{
			Name: group.Name,
			BoundingSphere: nud.BoundingSphere{
				Center: group.BoundingSphere.Vec3(),
				Radius: group.BoundingSphere[3],
			},
			Center:          group.BoundingSphere.Vec3(),
			SortBias:        group.SortBias,
			ParentBoneIndex: -1,
			BoneFlags:       nud.BONE_FLAGS_DISABLED,
			Meshes:          make([]nud.Mesh, len(group.Meshes)),
		}
		if group.ParentBoneIndex >= 0 {
			if group.ParentBoneIndex > 0x7fff {
				return nil, errors.Errorf("Parent bone index %d of group %q does not fit in record", group.ParentBoneIndex, group.Name)
			}
			nudGroup.ParentBoneIndex = int16(group.ParentBoneIndex)
			nudGroup.BoneFlags = nud.BONE_FLAGS_PARENT_BONE
		}

		for iMesh := range group.Meshes {
			mesh := &group.Meshes[iMesh]
			if len(mesh.Vertices.Positions) > 0xffff {
				return nil, errors.Errorf("Too many vertices in mesh %d of group %q", iMesh, group.Name)
			}
			if len(mesh.VertexIndices) > 0xffff {
				return nil, errors.Errorf("Too many indices in mesh %d of group %q", iMesh, group.Name)
			}

			vertexBuffer0Offset := uint32(buffer0.Len())
			vertexBuffer1Offset := uint32(buffer1.Len())
			vertexIndicesOffset := uint32(indexBuffer.Len())

			flags, err := nud.WriteVertices(mesh.Vertices, &buffer0, &buffer1)
			if err != nil {
				return nil, errors.Wrapf(err, "Error when writing vertices of mesh %d of group %q", iMesh, group.Name)
			}
			nud.WriteVertexIndices(&indexBuffer, mesh.VertexIndices)

			if flags.Buffer0Stride() == 0 {
				vertexBuffer0Offset = 0
			}
			if flags.Buffer1Stride() == 0 {
				vertexBuffer1Offset = 0
			}

			if mesh.Vertices.Bones != nil {
				for _, indices := range mesh.Vertices.Bones.Indices {
					for _, boneIndex := range indices {
						usedBoneIndices[boneIndex] = true
					}
				}
			}

			nudMesh := nud.Mesh{
				VertexIndicesOffset: vertexIndicesOffset,
				VertexBuffer0Offset: vertexBuffer0Offset,
				VertexBuffer1Offset: vertexBuffer1Offset,
				VertexCount:         uint16(len(mesh.Vertices.Positions)),
				VertexFlags:         flags,
				VertexIndexCount:    uint16(len(mesh.VertexIndices)),
				VertexIndexFlags: nud.NewVertexIndexFlags(
					mesh.PrimitiveType == PRIMITIVE_TRIANGLE_LIST,
					flags.Bones != nud.BONE_TYPE_NONE),
			}
			for iMaterial, material := range mesh.Materials {
				if material != nil {
					nudMesh.Materials[iMaterial] = material.toNud()
				}
			}
			nudGroup.Meshes[iMesh] = nudMesh
		}

		if group.ParentBoneIndex < 0 {
			for iMesh := range group.Meshes {
				if group.Meshes[iMesh].Vertices.Bones != nil {
					nudGroup.BoneFlags = nud.BONE_FLAGS_SKINNING
					break
				}
			}
		}

		n.MeshGroups[iGroup] = nudGroup
	}

	align16(&indexBuffer)
	align16(&buffer0)
	align16(&buffer1)

	n.IndexBuffer = indexBuffer.Bytes()
	n.VertexBuffer0 = buffer0.Bytes()
	n.VertexBuffer1 = buffer1.Bytes()

	first := true
	var minBone, maxBone uint32
	for boneIndex := range usedBoneIndices {
		if first || boneIndex < minBone {
			minBone = boneIndex
		}
		if first || boneIndex > maxBone {
			maxBone = boneIndex
		}
		first = false
	}
	n.BoneStartIndex = uint16(minBone)
	n.BoneEndIndex = uint16(maxBone)

	return n, nil
}

func align16(buf *bytes.Buffer) {
	for buf.Len()%16 != 0 {
		buf.WriteByte(0)
	}
}
