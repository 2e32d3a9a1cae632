package pabt

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/behave/internal/core/bt"
)

type domainFile struct {
	Actions []Action `mapstructure:"actions"`
}

// LoadDomain reads an action domain:
//
//	actions:
//	  - name: forage
//	    effects: {has_food: true}
//	  - name: eat
//	    pre: [{prop: has_food, op: eq, value: true}]
//	    effects: {fed: true}
//
// Actions loaded this way have no Run and apply their effects directly.
func LoadDomain(r io.Reader) ([]Action, error) {
	var raw map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", bt.ErrInvalidConfig, err)
	}

	var out domainFile
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  mapstructure.TextUnmarshallerHookFunc(),
		ErrorUnused: true,
		Result:      &out,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", bt.ErrInvalidConfig, err)
	}
	for i, a := range out.Actions {
		if a.Name == "" {
			return nil, fmt.Errorf("%w: action %d has no name", bt.ErrInvalidConfig, i)
		}
	}
	return out.Actions, nil
}

// LoadDomainFile is LoadDomain on a file.
func LoadDomainFile(path string) ([]Action, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadDomain(f)
}
