package shaderdb

import "testing"

const testDatabase = `
programs:
  0x92:
    name: character_diffuse
    samplers:
      - colorSampler
      - normalSampler
    parameters:
      - NU_colorSamplerUV
      - NU_materialHash
  0xf1:
    samplers: []
    parameters: []
`

func TestLookup(t *testing.T) {
	db, err := NewFromData([]byte(testDatabase))
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	p := db.Program(0x92)
	if p == nil {
		t.Fatalf("Shader 0x92 not found")
	}
	if p.Name != "character_diffuse" || len(p.Samplers) != 2 {
		t.Errorf("Got %+v", p)
	}
	if db.Program(0x1234) != nil {
		t.Errorf("Found a shader that is not in the database")
	}
}

func TestNameFallbacks(t *testing.T) {
	db, err := NewFromData([]byte(testDatabase))
	if err != nil {
		t.Fatalf("Failed to parse: %v", err)
	}

	for _, test := range []struct {
		got, expected string
	}{
		{db.SamplerName(0x92, 1), "normalSampler"},
		{db.SamplerName(0x92, 2), "sampler2"},
		{db.SamplerName(0x1234, 0), "sampler0"},
		{db.ParameterName(0x92, 0), "NU_colorSamplerUV"},
		{db.ParameterName(0xf1, 0), "param0"},
	} {
		if test.got != test.expected {
			t.Errorf("Got %q, want %q", test.got, test.expected)
		}
	}

	var nilDb *Database
	if got := nilDb.SamplerName(0x92, 0); got != "sampler0" {
		t.Errorf("Got %q for nil database", got)
	}
}

func TestBadData(t *testing.T) {
	if _, err := NewFromData([]byte("programs: [not, a, map]")); err == nil {
		t.Errorf("Expected error for malformed database")
	}
}
