package vbn

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/smash_model_tools/utils"
)

const (
	VBN_MAGIC_BE = 0x56424e20 // "VBN "
	VBN_MAGIC_LE = 0x204e4256 // " NBV"

	HEADER_SIZE         = 0x1c
	BONE_NAME_SIZE      = 0x40
	BONE_SIZE           = BONE_NAME_SIZE + 0xc
	BONE_TRANSFORM_SIZE = 0x24
)

type BoneType uint32

const (
	BONE_TYPE_NORMAL BoneType = 0
	BONE_TYPE_FOLLOW BoneType = 1
	BONE_TYPE_HELPER BoneType = 2
	BONE_TYPE_SWING  BoneType = 3
)

type Bone struct {
	Name            string
	Type            BoneType
	ParentBoneIndex int32
	Id              uint32

	Translation mgl32.Vec3
	Rotation    mgl32.Vec3
	Scale       mgl32.Vec3
}

// VBN is a skeleton container. Bone records and their rest pose
// transforms are stored in two parallel tables; they are merged here
// since the counts always match.
type VBN struct {
	BigEndian        bool
	Version          uint32
	BoneCountPerType [4]uint32
	Bones            []Bone
}

func NewFromData(b []byte) (*VBN, error) {
	if len(b) < HEADER_SIZE {
		return nil, errors.Errorf("File too small for header: 0x%x bytes", len(b))
	}

	v := &VBN{}
	switch binary.BigEndian.Uint32(b) {
	case VBN_MAGIC_BE:
		v.BigEndian = true
	case VBN_MAGIC_LE:
		v.BigEndian = false
	default:
		return nil, errors.Errorf("Invalid magic 0x%.8x", binary.BigEndian.Uint32(b))
	}

	bs := utils.NewBufStack("vbn", b)
	bs.Skip(4)

	readU32 := bs.ReadLU32
	readF := bs.ReadLF
	if v.BigEndian {
		readU32 = bs.ReadBU32
		readF = bs.ReadBF
	}

	v.Version = readU32()
	boneCount := int(readU32())
	for i := range v.BoneCountPerType {
		v.BoneCountPerType[i] = readU32()
	}

	if !bs.VerifyAvailable(HEADER_SIZE, boneCount*(BONE_SIZE+BONE_TRANSFORM_SIZE)) {
		return nil, errors.Errorf("Bone tables out of file (%d bones)", boneCount)
	}

	v.Bones = make([]Bone, boneCount)
	for i := range v.Bones {
		bone := &v.Bones[i]
		bone.Name = bs.ReadStringBuffer(BONE_NAME_SIZE)
		bone.Type = BoneType(readU32())
		bone.ParentBoneIndex = int32(readU32())
		bone.Id = readU32()

		if bone.Type > BONE_TYPE_SWING {
			return nil, errors.Errorf("Unknown type %d of bone %q", uint32(bone.Type), bone.Name)
		}
	}
	for i := range v.Bones {
		bone := &v.Bones[i]
		bone.Translation = mgl32.Vec3{readF(), readF(), readF()}
		bone.Rotation = mgl32.Vec3{readF(), readF(), readF()}
		bone.Scale = mgl32.Vec3{readF(), readF(), readF()}
	}

	return v, nil
}

func (v *VBN) MarshalBuffer() ([]byte, error) {
	var buf bytes.Buffer

	order := binary.ByteOrder(binary.LittleEndian)
	if v.BigEndian {
		order = binary.BigEndian
	}

	var tmp [4]byte
	u32 := func(value uint32) {
		order.PutUint32(tmp[:], value)
		buf.Write(tmp[:])
	}
	f32 := func(value float32) { u32(math.Float32bits(value)) }

	if v.BigEndian {
		binary.BigEndian.PutUint32(tmp[:], VBN_MAGIC_BE)
	} else {
		binary.BigEndian.PutUint32(tmp[:], VBN_MAGIC_LE)
	}
	buf.Write(tmp[:])

	u32(v.Version)
	u32(uint32(len(v.Bones)))
	for _, count := range v.BoneCountPerType {
		u32(count)
	}

	for i := range v.Bones {
		bone := &v.Bones[i]
		if len(utils.StringToBytes(bone.Name, true)) > BONE_NAME_SIZE {
			return nil, errors.Errorf("Name of bone %d does not fit in record: %q", i, bone.Name)
		}
		buf.Write(utils.StringToBytesBuffer(bone.Name, BONE_NAME_SIZE, true))
		u32(uint32(bone.Type))
		u32(uint32(bone.ParentBoneIndex))
		u32(bone.Id)
	}
	for i := range v.Bones {
		bone := &v.Bones[i]
		for _, vec := range []mgl32.Vec3{bone.Translation, bone.Rotation, bone.Scale} {
			f32(vec[0])
			f32(vec[1])
			f32(vec[2])
		}
	}

	return buf.Bytes(), nil
}
