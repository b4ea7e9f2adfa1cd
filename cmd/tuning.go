package main

import (
	"os"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/hexsphere/chunks"
	"github.com/aukilabs/hexsphere/mesher"
	"gopkg.in/yaml.v3"
)

// tuning holds the level of detail parameters. Fields missing from the tuning
// file keep their default value.
type tuning struct {
	Body     bodyTuning     `yaml:"body"`
	Resolver resolverTuning `yaml:"resolver"`
	Mesher   mesherTuning   `yaml:"mesher"`
	Colors   colorsTuning   `yaml:"colors"`
}

type bodyTuning struct {
	Capacity  int     `yaml:"capacity"`
	HalfWidth float32 `yaml:"half_width"`
}

type resolverTuning struct {
	Epsilon float32 `yaml:"epsilon"`
}

type mesherTuning struct {
	SimplifyThreshold int `yaml:"simplify_threshold"`
	Workers           int `yaml:"workers"`
	MaxInFlight       int `yaml:"max_in_flight"`
}

type colorsTuning struct {
	SampleSize int `yaml:"sample_size"`
}

func defaultTuning() tuning {
	return tuning{
		Body: bodyTuning{
			Capacity:  chunks.DefaultCapacity,
			HalfWidth: chunks.DefaultHalfWidth,
		},
		Resolver: resolverTuning{
			Epsilon: chunks.DefaultEpsilon,
		},
		Mesher: mesherTuning{
			SimplifyThreshold: mesher.DefaultSimplifyThreshold,
			Workers:           mesher.DefaultNumWorkers,
			MaxInFlight:       mesher.DefaultMaxInFlight,
		},
		Colors: colorsTuning{
			SampleSize: 8,
		},
	}
}

func loadTuning(path string) (tuning, error) {
	t := defaultTuning()
	if path == "" {
		return t, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return t, errors.New("reading tuning file failed").
			WithTag("path", path).
			Wrap(err)
	}

	if err := yaml.Unmarshal(b, &t); err != nil {
		return t, errors.New("decoding tuning file failed").
			WithTag("path", path).
			Wrap(err)
	}

	if err := t.validate(); err != nil {
		return t, errors.New("invalid tuning file").
			WithTag("path", path).
			Wrap(err)
	}
	return t, nil
}

func (t tuning) validate() error {
	switch {
	case t.Body.Capacity <= 0:
		return errors.New("body capacity must be positive").
			WithTag("capacity", t.Body.Capacity)

	case t.Body.HalfWidth <= 0:
		return errors.New("body half width must be positive").
			WithTag("half_width", t.Body.HalfWidth)

	case t.Resolver.Epsilon < 0:
		return errors.New("resolver epsilon must not be negative").
			WithTag("epsilon", t.Resolver.Epsilon)

	case t.Mesher.Workers <= 0:
		return errors.New("mesher workers must be positive").
			WithTag("workers", t.Mesher.Workers)

	case t.Mesher.MaxInFlight <= 0:
		return errors.New("mesher max in flight must be positive").
			WithTag("max_in_flight", t.Mesher.MaxInFlight)

	case t.Colors.SampleSize < 0:
		return errors.New("colors sample size must not be negative").
			WithTag("sample_size", t.Colors.SampleSize)

	default:
		return nil
	}
}
