package model

import (
	"log"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/smash_model_tools/3rdparty/half"
	"github.com/mogaika/smash_model_tools/pack/nud"
)

// Influence lists the weighted vertices of a single bone. This is the
// representation used by editors and exchange formats, transposed from
// the per-vertex layout stored in vertex buffers.
type Influence struct {
	BoneName string
	Weights  []VertexWeight
}

type VertexWeight struct {
	VertexIndex uint32
	Weight      float32
}

// SkinWeights is the per-vertex form of skinning data: up to four bone
// slots per vertex, unused slots holding weight zero.
type SkinWeights struct {
	BoneIndices [][4]uint32
	BoneWeights []mgl32.Vec4
}

// ToInfluences transposes the per-vertex weights into per-bone
// influence lists. boneNames maps bone indices to names; bones without
// any weighted vertex are omitted.
func (s *SkinWeights) ToInfluences(boneNames []string) []Influence {
	influences := make([]Influence, len(boneNames))
	for i, name := range boneNames {
		influences[i].BoneName = name
	}

	for iVertex, indices := range s.BoneIndices {
		weights := s.BoneWeights[iVertex]
		for slot := 0; slot < 4; slot++ {
			if weights[slot] <= 0 {
				continue
			}
			boneIndex := indices[slot]
			if int(boneIndex) >= len(influences) {
				log.Printf("[model] Bone index %d of vertex %d outside of skeleton", boneIndex, iVertex)
				continue
			}
			influences[boneIndex].Weights = append(influences[boneIndex].Weights,
				VertexWeight{VertexIndex: uint32(iVertex), Weight: weights[slot]})
		}
	}

	result := make([]Influence, 0, len(influences))
	for _, influence := range influences {
		if len(influence.Weights) != 0 {
			result = append(result, influence)
		}
	}
	return result
}

// NewSkinWeightsFromInfluences transposes per-bone influences back to
// the per-vertex form. Only the first four nonzero weights of each
// vertex are kept; slots are then sorted by descending weight and
// renormalized so the values survive encoding with elementType.
func NewSkinWeightsFromInfluences(influences []Influence, vertexCount int, boneNames []string, elementType nud.BoneType) *SkinWeights {
	counts := make([]int, vertexCount)
	s := &SkinWeights{
		BoneIndices: make([][4]uint32, vertexCount),
		BoneWeights: make([]mgl32.Vec4, vertexCount),
	}

	boneIndexByName := make(map[string]int, len(boneNames))
	for i := len(boneNames) - 1; i >= 0; i-- {
		boneIndexByName[boneNames[i]] = i
	}

	for _, influence := range influences {
		boneIndex, ok := boneIndexByName[influence.BoneName]
		if !ok {
			log.Printf("[model] Influence %q not found in skeleton", influence.BoneName)
			continue
		}
		for _, weight := range influence.Weights {
			i := weight.VertexIndex
			if int(i) >= vertexCount {
				log.Printf("[model] Influence %q weight for vertex %d outside of mesh", influence.BoneName, i)
				continue
			}
			if counts[i] < 4 && weight.Weight > 0 {
				s.BoneIndices[i][counts[i]] = uint32(boneIndex)
				s.BoneWeights[i][counts[i]] = weight.Weight
				counts[i] += 1
			}
		}
	}

	for iVertex := range s.BoneWeights {
		indices := &s.BoneIndices[iVertex]
		weights := &s.BoneWeights[iVertex]

		permutation := []int{0, 1, 2, 3}
		sort.SliceStable(permutation, func(a, b int) bool {
			return weights[permutation[a]] > weights[permutation[b]]
		})

		*indices = [4]uint32{
			indices[permutation[0]], indices[permutation[1]],
			indices[permutation[2]], indices[permutation[3]]}
		*weights = mgl32.Vec4{
			weights[permutation[0]], weights[permutation[1]],
			weights[permutation[2]], weights[permutation[3]]}

		normalizeWeights(weights, elementType)
	}

	return s
}

// normalizeWeights rescales the four slots to sum to one after
// quantization. Float16 weights are normalized in half precision and
// byte weights with integer remainder redistribution so the stored
// bytes sum to 255.
func normalizeWeights(weights *mgl32.Vec4, elementType nud.BoneType) {
	switch elementType {
	case nud.BONE_TYPE_FLOAT32:
		sum := weights[0] + weights[1] + weights[2] + weights[3]
		if sum > 0 {
			for i := range weights {
				weights[i] /= sum
			}
		}
	case nud.BONE_TYPE_FLOAT16:
		var quantized [4]float32
		var sum float32
		for i := range weights {
			quantized[i] = half.NewFloat16(weights[i]).Float32()
			sum = half.NewFloat16(sum + quantized[i]).Float32()
		}
		if sum > 0 {
			for i := range weights {
				weights[i] = half.NewFloat16(quantized[i] / sum).Float32()
			}
		}
	case nud.BONE_TYPE_BYTE:
		var quantized [4]uint32
		var sum uint32
		for i := range weights {
			quantized[i] = uint32(unormWeightToByte(weights[i]))
			sum += quantized[i]
		}
		if sum > 0 {
			var remainder uint32
			for i := range weights {
				scaled := quantized[i]*255 + remainder
				weights[i] = float32(scaled/sum) / 255.0
				remainder = scaled % sum
			}
		}
	}
}

func unormWeightToByte(f float32) uint8 {
	if !(f > 0) {
		return 0
	}
	if f >= 1 {
		return 255
	}
	return uint8(f * 255.0)
}
