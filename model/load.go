package model

import (
	"io/ioutil"
	"log"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/mogaika/smash_model_tools/pack/nud"
	"github.com/mogaika/smash_model_tools/pack/vbn"
)

// LoadFromFile reads a nud model and, when present, the skeleton from
// the sibling "model.vbn" file.
func LoadFromFile(path string) (*Model, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read %q", path)
	}

	n, err := nud.NewFromData(data)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to parse %q", path)
	}

	var skeleton *Skeleton
	vbnPath := filepath.Join(filepath.Dir(path), "model.vbn")
	if vbnData, err := ioutil.ReadFile(vbnPath); err == nil {
		v, err := vbn.NewFromData(vbnData)
		if err != nil {
			log.Printf("[model] Failed to parse %q: %v", vbnPath, err)
		} else {
			skeleton = NewSkeletonFromVBN(v)
		}
	}

	return NewFromNud(n, skeleton)
}
