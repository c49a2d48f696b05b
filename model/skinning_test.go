package model

import (
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/smash_model_tools/pack/nud"
)

func TestSkinWeightsFromInfluencesEmpty(t *testing.T) {
	got := NewSkinWeightsFromInfluences(nil, 3, []string{"a", "b", "c"}, nud.BONE_TYPE_FLOAT32)
	expected := &SkinWeights{
		BoneIndices: make([][4]uint32, 3),
		BoneWeights: make([]mgl32.Vec4, 3),
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Got %+v, want %+v", got, expected)
	}
}

func TestSkinWeightsFromInfluencesMultiple(t *testing.T) {
	got := NewSkinWeightsFromInfluences(
		[]Influence{
			{BoneName: "a", Weights: []VertexWeight{
				{VertexIndex: 0, Weight: 0.8},
				{VertexIndex: 2, Weight: 0.7},
			}},
			{BoneName: "b", Weights: []VertexWeight{
				{VertexIndex: 0, Weight: 0.0},
			}},
			{BoneName: "c", Weights: []VertexWeight{
				{VertexIndex: 2, Weight: 0.3},
			}},
			// not part of the bone list, reported and dropped
			{BoneName: "d", Weights: []VertexWeight{
				{VertexIndex: 1, Weight: 1.0},
			}},
		},
		3, []string{"a", "c", "b"}, nud.BONE_TYPE_FLOAT32)

	expected := &SkinWeights{
		BoneIndices: [][4]uint32{{0, 0, 0, 0}, {0, 0, 0, 0}, {0, 1, 0, 0}},
		BoneWeights: []mgl32.Vec4{
			{1.0, 0, 0, 0},
			{0, 0, 0, 0},
			{0.7, 0.3, 0, 0},
		},
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Got %+v, want %+v", got, expected)
	}
}

func normalizeInfluences() []Influence {
	return []Influence{
		{BoneName: "a", Weights: []VertexWeight{{VertexIndex: 0, Weight: 0.5}}},
		{BoneName: "b", Weights: []VertexWeight{{VertexIndex: 1, Weight: 1.0}}},
		{BoneName: "c", Weights: []VertexWeight{{VertexIndex: 1, Weight: 1.0}}},
	}
}

func TestSkinWeightsNormalizeFloat32(t *testing.T) {
	got := NewSkinWeightsFromInfluences(
		normalizeInfluences(), 2, []string{"a", "b", "c"}, nud.BONE_TYPE_FLOAT32)
	expected := &SkinWeights{
		BoneIndices: [][4]uint32{{0, 0, 0, 0}, {1, 2, 0, 0}},
		BoneWeights: []mgl32.Vec4{{1.0, 0, 0, 0}, {0.5, 0.5, 0, 0}},
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Got %+v, want %+v", got, expected)
	}
}

func TestSkinWeightsNormalizeFloat16(t *testing.T) {
	got := NewSkinWeightsFromInfluences(
		normalizeInfluences(), 2, []string{"a", "b", "c"}, nud.BONE_TYPE_FLOAT16)
	expected := &SkinWeights{
		BoneIndices: [][4]uint32{{0, 0, 0, 0}, {1, 2, 0, 0}},
		BoneWeights: []mgl32.Vec4{{1.0, 0, 0, 0}, {0.5, 0.5, 0, 0}},
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Got %+v, want %+v", got, expected)
	}
}

func TestSkinWeightsNormalizeByte(t *testing.T) {
	// stored u8 weights redistribute the remainder to sum to 255
	got := NewSkinWeightsFromInfluences(
		[]Influence{
			{BoneName: "a", Weights: []VertexWeight{{VertexIndex: 0, Weight: 0.25}}},
			{BoneName: "b", Weights: []VertexWeight{
				{VertexIndex: 0, Weight: 0.5},
				{VertexIndex: 1, Weight: 1.0},
			}},
			{BoneName: "c", Weights: []VertexWeight{
				{VertexIndex: 0, Weight: 0.75},
				{VertexIndex: 1, Weight: 1.0},
			}},
		},
		2, []string{"a", "b", "c"}, nud.BONE_TYPE_BYTE)

	expected := &SkinWeights{
		BoneIndices: [][4]uint32{{2, 1, 0, 0}, {1, 2, 0, 0}},
		BoneWeights: []mgl32.Vec4{
			{127.0 / 255.0, 85.0 / 255.0, 43.0 / 255.0, 0},
			{127.0 / 255.0, 128.0 / 255.0, 0, 0},
		},
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Got %+v, want %+v", got, expected)
	}
}

func TestToInfluencesEmpty(t *testing.T) {
	s := &SkinWeights{}
	if got := s.ToInfluences(nil); len(got) != 0 {
		t.Errorf("Got %+v, want no influences", got)
	}
}

func TestToInfluencesZeroWeights(t *testing.T) {
	s := &SkinWeights{
		BoneIndices: make([][4]uint32, 2),
		BoneWeights: make([]mgl32.Vec4, 2),
	}
	if got := s.ToInfluences([]string{"root"}); len(got) != 0 {
		t.Errorf("Got %+v, want no influences", got)
	}
}

func TestToInfluencesMultipleBones(t *testing.T) {
	s := &SkinWeights{
		BoneIndices: [][4]uint32{{3, 1, 2, 0}, {2, 1, 0, 0}},
		BoneWeights: []mgl32.Vec4{{0.3, 0.4, 0.1, 0.2}, {0.7, 0.3, 0, 0}},
	}
	got := s.ToInfluences([]string{"D", "C", "B", "A", "unused"})

	expected := []Influence{
		{BoneName: "D", Weights: []VertexWeight{{VertexIndex: 0, Weight: 0.2}}},
		{BoneName: "C", Weights: []VertexWeight{
			{VertexIndex: 0, Weight: 0.4},
			{VertexIndex: 1, Weight: 0.3},
		}},
		{BoneName: "B", Weights: []VertexWeight{
			{VertexIndex: 0, Weight: 0.1},
			{VertexIndex: 1, Weight: 0.7},
		}},
		{BoneName: "A", Weights: []VertexWeight{{VertexIndex: 0, Weight: 0.3}}},
	}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Got %+v, want %+v", got, expected)
	}
}
