package model

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/smash_model_tools/pack/vbn"
	"github.com/mogaika/smash_model_tools/utils"
)

// Parent index value seen in files for bones without a parent. Note the
// missing high nibble compared to a full -1.
const vbnParentNone = 0x0fffffff

type Skeleton struct {
	Bones []Bone
}

type Bone struct {
	Name        string
	Hash        uint32
	ParentIndex int // -1 when the bone has no parent
	Type        vbn.BoneType

	Translation mgl32.Vec3
	Rotation    mgl32.Vec3
	Scale       mgl32.Vec3
}

func NewSkeletonFromVBN(v *vbn.VBN) *Skeleton {
	s := &Skeleton{Bones: make([]Bone, len(v.Bones))}
	for i := range v.Bones {
		b := &v.Bones[i]

		parent := -1
		if b.ParentBoneIndex >= 0 && b.ParentBoneIndex <= 0xffff {
			parent = int(b.ParentBoneIndex)
		}

		s.Bones[i] = Bone{
			Name:        b.Name,
			Hash:        b.Id,
			ParentIndex: parent,
			Type:        b.Type,
			Translation: b.Translation,
			Rotation:    b.Rotation,
			Scale:       b.Scale,
		}
	}
	return s
}

func (s *Skeleton) ToVBN(bigEndian bool) *vbn.VBN {
	v := &vbn.VBN{
		BigEndian: bigEndian,
		Bones:     make([]vbn.Bone, len(s.Bones)),
	}
	for i := range s.Bones {
		b := &s.Bones[i]

		hash := b.Hash
		if hash == 0 {
			hash = utils.BoneNameHash(b.Name)
		}
		parent := int32(vbnParentNone)
		if b.ParentIndex >= 0 {
			parent = int32(b.ParentIndex)
		}

		v.Bones[i] = vbn.Bone{
			Name:            b.Name,
			Type:            b.Type,
			ParentBoneIndex: parent,
			Id:              hash,
			Translation:     b.Translation,
			Rotation:        b.Rotation,
			Scale:           b.Scale,
		}
		v.BoneCountPerType[b.Type] += 1
	}
	return v
}

func (s *Skeleton) BoneNames() []string {
	names := make([]string, len(s.Bones))
	for i := range s.Bones {
		names[i] = s.Bones[i].Name
	}
	return names
}

// Matrix returns the bone's local transform: translation, then an
// extrinsic xyz euler rotation, then scale.
func (b *Bone) Matrix() mgl32.Mat4 {
	rotation := mgl32.HomogRotate3DZ(b.Rotation[2]).
		Mul4(mgl32.HomogRotate3DY(b.Rotation[1])).
		Mul4(mgl32.HomogRotate3DX(b.Rotation[0]))
	return mgl32.Translate3D(b.Translation[0], b.Translation[1], b.Translation[2]).
		Mul4(rotation).
		Mul4(mgl32.Scale3D(b.Scale[0], b.Scale[1], b.Scale[2]))
}

// ModelSpaceTransforms returns the rest pose matrix of every bone in
// model space. Inverting these gives the inverse bind matrices used
// for skinning. Bones are assumed to appear after their parents.
func (s *Skeleton) ModelSpaceTransforms() []mgl32.Mat4 {
	transforms := make([]mgl32.Mat4, len(s.Bones))
	for i := range s.Bones {
		transforms[i] = s.Bones[i].Matrix()
	}
	for i := range s.Bones {
		if parent := s.Bones[i].ParentIndex; parent >= 0 && parent < len(transforms) {
			transforms[i] = transforms[parent].Mul4(s.Bones[i].Matrix())
		}
	}
	return transforms
}
