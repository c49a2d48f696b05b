package shaderdb

import (
	"fmt"
	"io/ioutil"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Program describes the resource bindings of a single in-game shader.
// Samplers and parameters are listed in binding order, so their indices
// line up with material texture slots and property order.
type Program struct {
	Name       string   `yaml:"name,omitempty"`
	Samplers   []string `yaml:"samplers"`
	Parameters []string `yaml:"parameters"`
}

// Database maps shader ids from materials to shader metadata. It is
// loaded from a hand-maintained yaml file.
type Database struct {
	Programs map[uint32]Program `yaml:"programs"`
}

func NewFromData(b []byte) (*Database, error) {
	db := &Database{}
	if err := yaml.Unmarshal(b, db); err != nil {
		return nil, errors.Wrap(err, "Failed to parse shader database")
	}
	return db, nil
}

func NewFromFile(path string) (*Database, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read shader database %q", path)
	}
	return NewFromData(data)
}

func (db *Database) Program(shaderId uint32) *Program {
	if db == nil {
		return nil
	}
	if p, ok := db.Programs[shaderId]; ok {
		return &p
	}
	return nil
}

// SamplerName returns the shader's name for a texture slot, or a
// generic placeholder when the shader is not in the database.
func (db *Database) SamplerName(shaderId uint32, slot int) string {
	if p := db.Program(shaderId); p != nil && slot < len(p.Samplers) {
		return p.Samplers[slot]
	}
	return fmt.Sprintf("sampler%d", slot)
}

// ParameterName returns the shader's name for a material property
// index, or a generic placeholder when unknown.
func (db *Database) ParameterName(shaderId uint32, index int) string {
	if p := db.Program(shaderId); p != nil && index < len(p.Parameters) {
		return p.Parameters[index]
	}
	return fmt.Sprintf("param%d", index)
}
