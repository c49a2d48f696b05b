package utils

import "testing"

var boneHashTests = []struct {
	in  string
	out uint32
}{
	{"hip", 0x5dbfe258},
	{"Hip", 0x5dbfe258},
	{"waist", 0x1a36341b},
	{"head", 0xa7f3f69c},
	{"ArmL", 0x61fccbdd},
	{"HandR", 0x1129036e},
	{"throw", 0x4f934137},
}

func TestBoneNameHash(t *testing.T) {
	for _, test := range boneHashTests {
		result := BoneNameHash(test.in)
		if result != test.out {
			t.Errorf("BoneNameHash(%q)=0x%x; expected 0x%x", test.in, result, test.out)
		}
	}
}
