package nud

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

const (
	MATERIAL_HEAD_SIZE          = 0x20
	MATERIAL_TEXTURE_SIZE       = 0x18
	MATERIAL_PROPERTY_HEAD_SIZE = 0x10

	// Written with a zero size field even though its values are kept.
	MATERIAL_PROPERTY_NAME_HASH = "NU_materialHash"
)

// Blend factor, alpha test and cull values observed in game files. The
// fields stay raw uint16 so unknown values survive a round trip.
const (
	SRC_FACTOR_ONE               = 0
	SRC_FACTOR_SOURCE_ALPHA      = 1
	SRC_FACTOR_ZERO              = 4
	SRC_FACTOR_DESTINATION_ALPHA = 6
	SRC_FACTOR_DESTINATION_COLOR = 8

	DST_FACTOR_ZERO                        = 0
	DST_FACTOR_ONE_MINUS_SOURCE_ALPHA      = 1
	DST_FACTOR_ONE                         = 2
	DST_FACTOR_SOURCE_ALPHA                = 4
	DST_FACTOR_ONE_MINUS_DESTINATION_ALPHA = 6

	ALPHA_FUNC_DISABLED      = 0x000
	ALPHA_FUNC_NEVER         = 0x200
	ALPHA_FUNC_LESS          = 0x201
	ALPHA_FUNC_EQUAL         = 0x202
	ALPHA_FUNC_GREATER       = 0x204
	ALPHA_FUNC_NOT_EQUAL     = 0x205
	ALPHA_FUNC_GREATER_EQUAL = 0x206
	ALPHA_FUNC_ALWAYS        = 0x207

	CULL_MODE_DISABLED = 0x000
	CULL_MODE_OUTSIDE  = 0x404
	CULL_MODE_INSIDE   = 0x405
)

const (
	MAP_MODE_TEX_COORD  = 0x0000
	MAP_MODE_ENV_CAMERA = 0x1d00
	MAP_MODE_PROJECTION = 0x1e00
	MAP_MODE_ENV_LIGHT  = 0x1ecd
	MAP_MODE_ENV_SPEC   = 0x1f00

	WRAP_MODE_REPEAT          = 1
	WRAP_MODE_MIRRORED_REPEAT = 2
	WRAP_MODE_CLAMP_TO_EDGE   = 3

	MIN_FILTER_LINEAR_MIPMAP_LINEAR  = 0
	MIN_FILTER_NEAREST               = 1
	MIN_FILTER_LINEAR                = 2
	MIN_FILTER_NEAREST_MIPMAP_LINEAR = 3

	MAG_FILTER_NEAREST = 1
	MAG_FILTER_LINEAR  = 2
)

type Material struct {
	ShaderId      uint32
	Unk1          uint32
	SrcFactor     uint16
	DstFactor     uint16
	AlphaFunc     uint16
	AlphaTestRef  uint16
	CullMode      uint16
	Unk2          uint32
	Unk3          uint32
	ZBufferOffset int32
	Textures      []MaterialTexture
	Properties    []MaterialProperty
}

type MaterialTexture struct {
	Hash      uint32
	Unk1      [3]uint16
	MapMode   uint16
	WrapModeS uint8
	WrapModeT uint8
	MinFilter uint8
	MagFilter uint8
	MipDetail uint8
	Unk2      uint8
	Unk3      uint32
	Unk4      uint16
}

// MaterialProperty is a named float parameter block. The property list
// of a material ends with the first record whose Size field is zero;
// that record is kept here so files using the hash property quirk keep
// their layout.
type MaterialProperty struct {
	Size   uint32
	Name   string
	Unk1   [3]uint8
	Unk2   uint32
	Values []float32
}

// parseMaterial decodes the material record at the absolute offset,
// its texture table and its terminated property list.
func parseMaterial(data []byte, offset uint32, readString func(relOffset uint32) (string, error)) (*Material, error) {
	if int64(offset)+MATERIAL_HEAD_SIZE > int64(len(data)) {
		return nil, errors.Errorf("Material head out of file at 0x%x", offset)
	}
	d := data[offset:]

	m := &Material{
		ShaderId:      binary.BigEndian.Uint32(d[0x0:]),
		Unk1:          binary.BigEndian.Uint32(d[0x4:]),
		SrcFactor:     binary.BigEndian.Uint16(d[0x8:]),
		DstFactor:     binary.BigEndian.Uint16(d[0xc:]),
		AlphaFunc:     binary.BigEndian.Uint16(d[0xe:]),
		AlphaTestRef:  binary.BigEndian.Uint16(d[0x10:]),
		CullMode:      binary.BigEndian.Uint16(d[0x12:]),
		Unk2:          binary.BigEndian.Uint32(d[0x14:]),
		Unk3:          binary.BigEndian.Uint32(d[0x18:]),
		ZBufferOffset: int32(binary.BigEndian.Uint32(d[0x1c:])),
	}
	texCount := binary.BigEndian.Uint16(d[0xa:])

	pos := int64(offset) + MATERIAL_HEAD_SIZE
	if pos+int64(texCount)*MATERIAL_TEXTURE_SIZE > int64(len(data)) {
		return nil, errors.Errorf("Material texture table out of file at 0x%x (%d textures)", pos, texCount)
	}
	m.Textures = make([]MaterialTexture, texCount)
	for i := range m.Textures {
		t := data[pos:]
		m.Textures[i] = MaterialTexture{
			Hash:      binary.BigEndian.Uint32(t[0x0:]),
			Unk1:      [3]uint16{binary.BigEndian.Uint16(t[0x4:]), binary.BigEndian.Uint16(t[0x6:]), binary.BigEndian.Uint16(t[0x8:])},
			MapMode:   binary.BigEndian.Uint16(t[0xa:]),
			WrapModeS: t[0xc],
			WrapModeT: t[0xd],
			MinFilter: t[0xe],
			MagFilter: t[0xf],
			MipDetail: t[0x10],
			Unk2:      t[0x11],
			Unk3:      binary.BigEndian.Uint32(t[0x12:]),
			Unk4:      binary.BigEndian.Uint16(t[0x16:]),
		}
		pos += MATERIAL_TEXTURE_SIZE
	}

	for {
		if pos+MATERIAL_PROPERTY_HEAD_SIZE > int64(len(data)) {
			return nil, errors.Errorf("Material property head out of file at 0x%x", pos)
		}
		p := data[pos:]

		prop := MaterialProperty{
			Size: binary.BigEndian.Uint32(p[0x0:]),
			Unk1: [3]uint8{p[0x8], p[0x9], p[0xa]},
			Unk2: binary.BigEndian.Uint32(p[0xc:]),
		}
		valueCount := int(p[0xb])

		name, err := readString(binary.BigEndian.Uint32(p[0x4:]))
		if err != nil {
			return nil, errors.Wrapf(err, "Error when reading material property name at 0x%x", pos)
		}
		prop.Name = name

		valuesSize := int64(valueCount) * 4
		if padded := int64(prop.Size) - MATERIAL_PROPERTY_HEAD_SIZE; padded > valuesSize {
			valuesSize = padded
		}
		if pos+MATERIAL_PROPERTY_HEAD_SIZE+int64(valueCount)*4 > int64(len(data)) {
			return nil, errors.Errorf("Material property %q values out of file at 0x%x", prop.Name, pos)
		}
		prop.Values = make([]float32, valueCount)
		for i := range prop.Values {
			prop.Values[i] = math.Float32frombits(
				binary.BigEndian.Uint32(p[MATERIAL_PROPERTY_HEAD_SIZE+i*4:]))
		}

		m.Properties = append(m.Properties, prop)
		pos += MATERIAL_PROPERTY_HEAD_SIZE + valuesSize

		if prop.Size == 0 {
			break
		}
	}

	return m, nil
}
