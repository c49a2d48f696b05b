package model

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/mogaika/smash_model_tools/pack/shaderdb"
)

// ExportGLTF converts the model to a gltf document. The shader database
// is optional and only improves material naming.
func (m *Model) ExportGLTF(db *shaderdb.Database) (*gltf.Document, error) {
	doc := gltf.NewDocument()

	var jointNodes []uint32
	if m.Skeleton != nil {
		jointNodes = exportSkeleton(doc, m.Skeleton)
	}

	materialIndexByShader := make(map[uint32]uint32)

	for iGroup := range m.Groups {
		group := &m.Groups[iGroup]
		for iMesh := range group.Meshes {
			mesh := &group.Meshes[iMesh]
			verticesCount := len(mesh.Vertices.Positions)

			attributes := make(map[string]uint32)

			{
				positions := make([][3]float32, verticesCount)
				for iVertex, position := range mesh.Vertices.Positions {
					positions[iVertex] = position
				}
				attributes["POSITION"] = modeler.WritePosition(doc, positions)
			}

			if mesh.Vertices.Normals.Normals != nil {
				normals := make([][3]float32, verticesCount)
				for iVertex, normal := range mesh.Vertices.Normals.Normals {
					n := normal.Vec3()
					if n.Len() > 0.5 {
						n = n.Normalize()
					}
					normals[iVertex] = n
				}
				attributes["NORMAL"] = modeler.WriteNormal(doc, normals)
			}

			for iLayer := range mesh.Vertices.Uvs.Layers {
				uvs := make([][2]float32, verticesCount)
				for iVertex, uv := range mesh.Vertices.Uvs.Layers[iLayer] {
					uvs[iVertex] = uv
				}
				attributes[fmt.Sprintf("TEXCOORD_%d", iLayer)] = modeler.WriteTextureCoord(doc, uvs)
			}

			if mesh.Vertices.Colors.Rgba != nil {
				colors := make([][4]uint8, verticesCount)
				for iVertex, color := range mesh.Vertices.Colors.Rgba {
					for i := 0; i < 4; i++ {
						colors[iVertex][i] = colorToByte(color[i])
					}
				}
				attributes["COLOR_0"] = modeler.WriteColor(doc, colors)
			}

			if bones := mesh.Vertices.Bones; bones != nil {
				joints := make([][4]uint16, verticesCount)
				weights := make([][4]float32, verticesCount)
				for iVertex := range bones.Indices {
					for i := 0; i < 4; i++ {
						joints[iVertex][i] = uint16(bones.Indices[iVertex][i])
						weights[iVertex][i] = bones.Weights[iVertex][i]
						if weights[iVertex][i] == 0 {
							joints[iVertex][i] = 0
						}
					}
				}
				attributes["JOINTS_0"] = modeler.WriteJoints(doc, joints)
				attributes["WEIGHTS_0"] = modeler.WriteWeights(doc, weights)
			}

			triangles := mesh.TriangleListIndices()
			indices := make([]uint32, len(triangles))
			for i, index := range triangles {
				indices[i] = uint32(index)
			}
			indicesAccessor := modeler.WriteIndices(doc, indices)

			primitive := &gltf.Primitive{
				Indices:    gltf.Index(indicesAccessor),
				Attributes: attributes,
			}
			if material := mesh.Materials[0]; material != nil {
				primitive.Material = gltf.Index(
					exportMaterial(doc, db, material, materialIndexByShader))
			}

			gltfMesh := &gltf.Mesh{
				Name:       fmt.Sprintf("%s_m%d", group.Name, iMesh),
				Primitives: []*gltf.Primitive{primitive},
			}
			doc.Meshes = append(doc.Meshes, gltfMesh)

			node := &gltf.Node{
				Name: gltfMesh.Name,
				Mesh: gltf.Index(uint32(len(doc.Meshes) - 1)),
			}
			if group.ParentBoneIndex >= 0 && group.ParentBoneIndex < len(jointNodes) {
				parent := doc.Nodes[jointNodes[group.ParentBoneIndex]]
				parent.Children = append(parent.Children, uint32(len(doc.Nodes)))
			} else {
				doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)))
			}
			doc.Nodes = append(doc.Nodes, node)
		}
	}

	return doc, nil
}

func exportSkeleton(doc *gltf.Document, skeleton *Skeleton) []uint32 {
	jointNodes := make([]uint32, len(skeleton.Bones))

	for iBone := range skeleton.Bones {
		bone := &skeleton.Bones[iBone]

		rotation := mgl32.AnglesToQuat(
			bone.Rotation[2], bone.Rotation[1], bone.Rotation[0], mgl32.ZYX)

		jointNodes[iBone] = uint32(len(doc.Nodes))
		doc.Nodes = append(doc.Nodes, &gltf.Node{
			Name:        bone.Name,
			Translation: bone.Translation,
			Rotation:    rotation.V.Vec4(rotation.W),
			Scale:       bone.Scale,
		})
	}

	for iBone := range skeleton.Bones {
		bone := &skeleton.Bones[iBone]
		if bone.ParentIndex >= 0 && bone.ParentIndex < len(jointNodes) {
			parent := doc.Nodes[jointNodes[bone.ParentIndex]]
			parent.Children = append(parent.Children, jointNodes[iBone])
		} else {
			doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, jointNodes[iBone])
		}
	}

	return jointNodes
}

func exportMaterial(doc *gltf.Document, db *shaderdb.Database, material *Material, indexByShader map[uint32]uint32) uint32 {
	if index, ok := indexByShader[material.ShaderId]; ok {
		return index
	}

	name := fmt.Sprintf("shader_%08x", material.ShaderId)
	if p := db.Program(material.ShaderId); p != nil && p.Name != "" {
		name = p.Name
	}

	index := uint32(len(doc.Materials))
	doc.Materials = append(doc.Materials, &gltf.Material{
		Name:        name,
		DoubleSided: material.CullMode == 0,
	})
	indexByShader[material.ShaderId] = index
	return index
}

func colorToByte(f float32) uint8 {
	if !(f > 0) {
		return 0
	}
	if f >= 1 {
		return 255
	}
	return uint8(f * 255.0)
}
