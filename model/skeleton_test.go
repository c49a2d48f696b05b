package model

import (
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/smash_model_tools/pack/vbn"
	"github.com/mogaika/smash_model_tools/utils"
)

func testSkeleton() *Skeleton {
	return &Skeleton{Bones: []Bone{
		{
			Name:        "TransN",
			Hash:        utils.BoneNameHash("TransN"),
			ParentIndex: -1,
			Type:        vbn.BONE_TYPE_NORMAL,
			Translation: mgl32.Vec3{1, 0, 0},
			Scale:       mgl32.Vec3{1, 1, 1},
		},
		{
			Name:        "HipN",
			Hash:        utils.BoneNameHash("HipN"),
			ParentIndex: 0,
			Type:        vbn.BONE_TYPE_NORMAL,
			Translation: mgl32.Vec3{0, 2, 0},
			Scale:       mgl32.Vec3{1, 1, 1},
		},
		{
			Name:        "ThrowN",
			Hash:        utils.BoneNameHash("ThrowN"),
			ParentIndex: 1,
			Type:        vbn.BONE_TYPE_HELPER,
			Translation: mgl32.Vec3{0, 0, 3},
			Scale:       mgl32.Vec3{1, 1, 1},
		},
	}}
}

func TestBoneMatrix(t *testing.T) {
	b := &Bone{
		Translation: mgl32.Vec3{1, 2, 3},
		Scale:       mgl32.Vec3{1, 1, 1},
	}
	if got := b.Matrix(); got != mgl32.Translate3D(1, 2, 3) {
		t.Errorf("Got %v", got)
	}

	b.Scale = mgl32.Vec3{2, 2, 2}
	expected := mgl32.Translate3D(1, 2, 3).Mul4(mgl32.Scale3D(2, 2, 2))
	if got := b.Matrix(); got != expected {
		t.Errorf("Got %v", got)
	}
}

func TestModelSpaceTransforms(t *testing.T) {
	transforms := testSkeleton().ModelSpaceTransforms()
	expected := []mgl32.Mat4{
		mgl32.Translate3D(1, 0, 0),
		mgl32.Translate3D(1, 2, 0),
		mgl32.Translate3D(1, 2, 3),
	}
	if !reflect.DeepEqual(transforms, expected) {
		t.Errorf("Got %v, want %v", transforms, expected)
	}
}

func TestSkeletonVBNRoundTrip(t *testing.T) {
	s := testSkeleton()

	v := s.ToVBN(true)
	if !v.BigEndian {
		t.Errorf("Lost endianness")
	}
	if v.Bones[0].ParentBoneIndex != 0x0fffffff {
		t.Errorf("Root parent = 0x%x", v.Bones[0].ParentBoneIndex)
	}
	if v.BoneCountPerType != [4]uint32{2, 0, 1, 0} {
		t.Errorf("Bone counts per type = %v", v.BoneCountPerType)
	}
	if v.Bones[0].Id != utils.BoneNameHash("TransN") {
		t.Errorf("Bone id = 0x%x", v.Bones[0].Id)
	}

	decoded := NewSkeletonFromVBN(v)
	if !reflect.DeepEqual(decoded, s) {
		t.Errorf("Skeleton changed over a round trip:\ngot %+v\nwant %+v", decoded, s)
	}
}
