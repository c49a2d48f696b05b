package nud

import (
	"bytes"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/smash_model_tools/utils"
)

const (
	NUD_MAGIC   = 0x4e445033 // "NDP3"
	NUD_VERSION = 512

	HEADER_SIZE     = 0x30
	MESH_GROUP_SIZE = 0x30
	MESH_SIZE       = 0x30
)

type BoneFlags uint16

const (
	BONE_FLAGS_DISABLED    BoneFlags = 0
	BONE_FLAGS_SKINNING    BoneFlags = 4
	BONE_FLAGS_PARENT_BONE BoneFlags = 8
)

type BoundingSphere struct {
	Center mgl32.Vec3
	Radius float32
}

// NUD is the in-memory form of an NDP3 model container. The index and
// vertex buffers are kept as raw bytes; meshes describe slices into
// them which are decoded on demand with ReadVertices and
// ReadVertexIndices.
type NUD struct {
	Version        uint16
	BoneStartIndex uint16
	BoneEndIndex   uint16
	BoundingSphere BoundingSphere
	MeshGroups     []MeshGroup

	IndexBuffer   []byte
	VertexBuffer0 []byte
	VertexBuffer1 []byte
}

type MeshGroup struct {
	Name            string
	BoundingSphere  BoundingSphere
	Center          mgl32.Vec3
	SortBias        float32
	Unk1            uint16
	BoneFlags       BoneFlags
	ParentBoneIndex int16
	Meshes          []Mesh
}

// Mesh is the data for a single draw call. Offsets are relative to the
// corresponding shared buffer of the container.
type Mesh struct {
	VertexIndicesOffset uint32
	VertexBuffer0Offset uint32
	VertexBuffer1Offset uint32
	VertexCount         uint16
	VertexFlags         VertexFlags
	Materials           [4]*Material
	VertexIndexCount    uint16
	VertexIndexFlags    VertexIndexFlags
	Unk                 [3]uint32
}

// Vertices decodes the vertex attributes of the mesh from the
// container's shared vertex buffers.
func (n *NUD) Vertices(mesh *Mesh) (*Vertices, error) {
	return ReadVertices(
		n.VertexBuffer0, mesh.VertexBuffer0Offset,
		n.VertexBuffer1, mesh.VertexBuffer1Offset,
		mesh.VertexFlags, int(mesh.VertexCount))
}

// VertexIndices decodes the index slice of the mesh from the
// container's shared index buffer.
func (n *NUD) VertexIndices(mesh *Mesh) ([]uint16, error) {
	return ReadVertexIndices(n.IndexBuffer, mesh.VertexIndicesOffset, int(mesh.VertexIndexCount))
}

func readPoolString(data []byte, stringsBase, relOffset uint32) (string, error) {
	offset := int64(stringsBase) + int64(relOffset)
	if offset >= int64(len(data)) {
		return "", errors.Errorf("String offset 0x%x out of file", offset)
	}
	raw := data[offset:]
	end := bytes.IndexByte(raw, 0)
	if end < 0 {
		return "", errors.Errorf("Unterminated string at 0x%x", offset)
	}
	return utils.BytesToString(raw[:end]), nil
}

func NewFromData(b []byte) (*NUD, error) {
	return NewFromDataWithLog(b, nil)
}

// NewFromDataWithLog additionally writes a parse trace to exlog, which
// may be nil.
func NewFromDataWithLog(b []byte, exlog *utils.Logger) (*NUD, error) {
	bs := utils.NewBufStack("nud", b)

	if !bs.VerifyAvailable(0, HEADER_SIZE) {
		return nil, errors.Errorf("File too small for header: 0x%x bytes", len(b))
	}
	header := bs.SubBuf("header", 0).SetSize(HEADER_SIZE)

	if magic := header.BU32(0); magic != NUD_MAGIC {
		return nil, errors.Errorf("Invalid magic 0x%.8x", magic)
	}

	n := &NUD{
		Version:        header.BU16(0x8),
		BoneStartIndex: header.BU16(0xc),
		BoneEndIndex:   header.BU16(0xe),
		BoundingSphere: BoundingSphere{
			Center: mgl32.Vec3{header.BF(0x20), header.BF(0x24), header.BF(0x28)},
			Radius: header.BF(0x2c),
		},
	}

	groupCount := int(header.BU16(0xa))
	indicesOffset := int(header.BU32(0x10))
	indicesSize := int(header.BU32(0x14))
	vb0Size := int(header.BU32(0x18))
	vb1Size := int(header.BU32(0x1c))

	exlog.Printf("header: version %d groups %d bones %d..%d buffers 0x%x+0x%x/0x%x/0x%x",
		n.Version, groupCount, n.BoneStartIndex, n.BoneEndIndex,
		indicesOffset, indicesSize, vb0Size, vb1Size)

	indicesStart := HEADER_SIZE + indicesOffset
	if !bs.VerifyAvailable(indicesStart, indicesSize+vb0Size+vb1Size) {
		return nil, errors.Errorf("Buffers out of file: offset 0x%x sizes 0x%x/0x%x/0x%x",
			indicesStart, indicesSize, vb0Size, vb1Size)
	}

	indexBuffer := bs.SubBuf("indexBuffer", indicesStart).SetSize(indicesSize)
	vertexBuffer0 := indexBuffer.SubBufFollowing("vertexBuffer0").SetSize(vb0Size)
	vertexBuffer1 := vertexBuffer0.SubBufFollowing("vertexBuffer1").SetSize(vb1Size)

	copyRaw := func(bs *utils.BufStack) []byte {
		if bs.Size() == 0 {
			return nil
		}
		return append([]byte(nil), bs.Raw()...)
	}
	n.IndexBuffer = copyRaw(indexBuffer)
	n.VertexBuffer0 = copyRaw(vertexBuffer0)
	n.VertexBuffer1 = copyRaw(vertexBuffer1)

	stringsBase := uint32(indicesStart + indicesSize + vb0Size + vb1Size)
	readString := func(relOffset uint32) (string, error) {
		return readPoolString(b, stringsBase, relOffset)
	}

	if !bs.VerifyAvailable(HEADER_SIZE, groupCount*MESH_GROUP_SIZE) {
		return nil, errors.Errorf("Mesh group table out of file (%d groups)", groupCount)
	}
	groupsBs := bs.SubBuf("meshGroups", HEADER_SIZE).SetSize(groupCount * MESH_GROUP_SIZE)

	n.MeshGroups = make([]MeshGroup, groupCount)
	for iGroup := range n.MeshGroups {
		if err := n.parseMeshGroup(bs, groupsBs, iGroup, readString, exlog); err != nil {
			return nil, errors.Wrapf(err, "Error when parsing mesh group %d", iGroup)
		}
	}

	return n, nil
}

func (n *NUD) parseMeshGroup(bs, groupsBs *utils.BufStack, iGroup int, readString func(relOffset uint32) (string, error), exlog *utils.Logger) error {
	g := iGroup * MESH_GROUP_SIZE

	group := &n.MeshGroups[iGroup]
	group.BoundingSphere = BoundingSphere{
		Center: mgl32.Vec3{groupsBs.BF(g + 0x0), groupsBs.BF(g + 0x4), groupsBs.BF(g + 0x8)},
		Radius: groupsBs.BF(g + 0xc),
	}
	group.Center = mgl32.Vec3{groupsBs.BF(g + 0x10), groupsBs.BF(g + 0x14), groupsBs.BF(g + 0x18)}
	group.SortBias = groupsBs.BF(g + 0x1c)
	group.Unk1 = groupsBs.BU16(g + 0x24)
	group.BoneFlags = BoneFlags(groupsBs.BU16(g + 0x26))
	group.ParentBoneIndex = int16(groupsBs.BU16(g + 0x28))

	switch group.BoneFlags {
	case BONE_FLAGS_DISABLED, BONE_FLAGS_SKINNING, BONE_FLAGS_PARENT_BONE:
	default:
		return errors.Errorf("Unknown bone flags 0x%x", uint16(group.BoneFlags))
	}

	name, err := readString(groupsBs.BU32(g + 0x20))
	if err != nil {
		return errors.Wrap(err, "Error when reading group name")
	}
	group.Name = name

	meshCount := int(groupsBs.BU16(g + 0x2a))
	meshesOffset := int(groupsBs.BU32(g + 0x2c))
	if !bs.VerifyAvailable(meshesOffset, meshCount*MESH_SIZE) {
		return errors.Errorf("Mesh table out of file: offset 0x%x (%d meshes)", meshesOffset, meshCount)
	}
	meshesBs := bs.SubBuf("meshes", meshesOffset).SetName(group.Name).SetSize(meshCount * MESH_SIZE)

	exlog.Printf("group %d %q: boneFlags %d parent %d meshes %d at 0x%x",
		iGroup, group.Name, group.BoneFlags, group.ParentBoneIndex, meshCount, meshesOffset)

	group.Meshes = make([]Mesh, meshCount)
	for iMesh := range group.Meshes {
		if err := parseMesh(bs, meshesBs, &group.Meshes[iMesh], iMesh, readString, exlog); err != nil {
			return errors.Wrapf(err, "Error when parsing mesh %d", iMesh)
		}
	}
	return nil
}

func parseMesh(bs, meshesBs *utils.BufStack, mesh *Mesh, iMesh int, readString func(relOffset uint32) (string, error), exlog *utils.Logger) error {
	m := iMesh * MESH_SIZE

	mesh.VertexIndicesOffset = meshesBs.BU32(m + 0x0)
	mesh.VertexBuffer0Offset = meshesBs.BU32(m + 0x4)
	mesh.VertexBuffer1Offset = meshesBs.BU32(m + 0x8)
	mesh.VertexCount = meshesBs.BU16(m + 0xc)

	flags, err := ParseVertexFlags(meshesBs.Byte(m+0xe), meshesBs.Byte(m+0xf))
	if err != nil {
		return err
	}
	mesh.VertexFlags = flags

	for iMaterial := 0; iMaterial < 4; iMaterial++ {
		materialOffset := meshesBs.BU32(m + 0x10 + iMaterial*4)
		if materialOffset == 0 {
			continue
		}
		material, err := parseMaterial(bs.Raw(), materialOffset, readString)
		if err != nil {
			return errors.Wrapf(err, "Error when parsing material %d at 0x%x", iMaterial, materialOffset)
		}
		mesh.Materials[iMaterial] = material
		if exlog != nil {
			exlog.Printf("  mesh %d material %d at 0x%x:\n%v", iMesh, iMaterial, materialOffset, utils.SDump(material))
		}
	}

	mesh.VertexIndexCount = meshesBs.BU16(m + 0x20)
	mesh.VertexIndexFlags = VertexIndexFlags(meshesBs.BU16(m + 0x22))
	mesh.Unk = [3]uint32{meshesBs.BU32(m + 0x24), meshesBs.BU32(m + 0x28), meshesBs.BU32(m + 0x2c)}

	exlog.Printf("  mesh %d: %d vertices flags %+v, %d indices flags 0x%x",
		iMesh, mesh.VertexCount, mesh.VertexFlags, mesh.VertexIndexCount, uint16(mesh.VertexIndexFlags))
	return nil
}
