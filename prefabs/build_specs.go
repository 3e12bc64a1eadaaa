package prefabs

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// EntityBuildSpec is a free-form actor: a name plus a map of component
// specs keyed by component name.
type EntityBuildSpec struct {
	Name       string         `yaml:"name"`
	Components map[string]any `yaml:"components"`
}

func LoadEntityBuildSpec(filename string) (EntityBuildSpec, error) {
	return LoadSpec[EntityBuildSpec](filename)
}

func DecodeComponentSpec[T any](raw any) (T, error) {
	var zero T
	if raw == nil {
		return zero, nil
	}
	b, err := yaml.Marshal(raw)
	if err != nil {
		return zero, err
	}
	var out T
	if err := yaml.Unmarshal(b, &out); err != nil {
		return zero, err
	}
	return out, nil
}

type BodyComponentSpec struct {
	X          float64 `yaml:"x"`
	Y          float64 `yaml:"y"`
	Width      float64 `yaml:"width"`
	Height     float64 `yaml:"height"`
	Mass       float64 `yaml:"mass"`
	Friction   float64 `yaml:"friction"`
	Elasticity float64 `yaml:"elasticity"`
	Static     bool    `yaml:"static"`
	Kinematic  bool    `yaml:"kinematic"`
	Sensor     bool    `yaml:"sensor"`
}

type CharacterComponentSpec struct {
	Speed float64 `yaml:"speed"`
	MinX  float64 `yaml:"min_x"`
	MaxX  float64 `yaml:"max_x"`
}

// Body decodes the required "body" component.
func (s EntityBuildSpec) Body() (BodyComponentSpec, error) {
	raw, ok := s.Components["body"]
	if !ok {
		return BodyComponentSpec{}, fmt.Errorf("actor %q has no body component", s.Name)
	}
	body, err := DecodeComponentSpec[BodyComponentSpec](raw)
	if err != nil {
		return BodyComponentSpec{}, fmt.Errorf("actor %q body: %w", s.Name, err)
	}
	if body.Width <= 0 || body.Height <= 0 {
		return BodyComponentSpec{}, fmt.Errorf("actor %q body: width and height must be positive", s.Name)
	}
	return body, nil
}

// Tag decodes the required "tag" component.
func (s EntityBuildSpec) Tag() (TagSpec, error) {
	raw, ok := s.Components["tag"]
	if !ok {
		return TagSpec{}, fmt.Errorf("actor %q has no tag component", s.Name)
	}
	return DecodeComponentSpec[TagSpec](raw)
}

// Character decodes the optional "character" component.
func (s EntityBuildSpec) Character() (*CharacterComponentSpec, error) {
	raw, ok := s.Components["character"]
	if !ok {
		return nil, nil
	}
	spec, err := DecodeComponentSpec[CharacterComponentSpec](raw)
	if err != nil {
		return nil, fmt.Errorf("actor %q character: %w", s.Name, err)
	}
	return &spec, nil
}
