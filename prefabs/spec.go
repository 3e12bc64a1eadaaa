package prefabs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/contactsim/filter"
	"gopkg.in/yaml.v3"
)

// DefaultScene is the embedded sample scene.
const DefaultScene = "scene.yaml"

// StaticAnchor names the space's static body in joint specs.
const StaticAnchor = "static"

var ErrInvalidScene = errors.New("prefabs: invalid scene")

func LoadSpec[T any](filename string) (T, error) {
	var zero T
	data, err := Load(filename)
	if err != nil {
		return zero, fmt.Errorf("prefabs: load %s: %w", filename, err)
	}

	var spec T
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return zero, fmt.Errorf("prefabs: unmarshal %s: %w", filename, err)
	}

	return spec, nil
}

type VecSpec struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

func (v VecSpec) Vector() cp.Vector {
	return cp.Vector{X: v.X, Y: v.Y}
}

type TagSpec struct {
	Category string   `yaml:"category"`
	Interest []string `yaml:"interest"`
}

// Tag resolves the category and interest names.
func (t TagSpec) Tag() (filter.Tag, error) {
	cat, err := filter.ParseCategory(t.Category)
	if err != nil {
		return filter.Tag{}, err
	}
	interest, err := filter.ParseMask(t.Interest)
	if err != nil {
		return filter.Tag{}, err
	}
	return filter.Tag{Category: cat, Interest: interest}, nil
}

type WorldSpec struct {
	Gravity            VecSpec `yaml:"gravity"`
	Iterations         uint    `yaml:"iterations"`
	SleepTimeThreshold float64 `yaml:"sleep_time_threshold"`
	Substeps           int     `yaml:"substeps"`
	PosePreview        bool    `yaml:"pose_preview"`
}

type LoopSpec struct {
	TickRate  float64 `yaml:"tick_rate"`
	TimeScale float64 `yaml:"time_scale"`
}

type FilterSpec struct {
	Policy string `yaml:"policy"`
}

type MaterialSpec struct {
	Friction   float64 `yaml:"friction"`
	Elasticity float64 `yaml:"elasticity"`
}

// BodySpec describes a single box-shaped actor.
type BodySpec struct {
	Name     string        `yaml:"name"`
	Position VecSpec       `yaml:"position"`
	Width    float64       `yaml:"width"`
	Height   float64       `yaml:"height"`
	Mass     float64       `yaml:"mass"`
	Material *MaterialSpec `yaml:"material"`
	Tag      TagSpec       `yaml:"tag"`
}

// StackSpec is a vertical column of equal boxes. Box i sits at
// origin.y + i*(2*half_extent + spacing).
type StackSpec struct {
	Name       string        `yaml:"name"`
	Count      int           `yaml:"count"`
	HalfExtent float64       `yaml:"half_extent"`
	Spacing    float64       `yaml:"spacing"`
	Origin     VecSpec       `yaml:"origin"`
	Mass       float64       `yaml:"mass"`
	Material   *MaterialSpec `yaml:"material"`
	Tag        TagSpec       `yaml:"tag"`
}

// BoxName is the actor name of the i-th box of the stack.
func (s StackSpec) BoxName(i int) string {
	name := s.Name
	if name == "" {
		name = "box"
	}
	return fmt.Sprintf("%s-%d", name, i)
}

// BoxPosition is the spawn position of the i-th box.
func (s StackSpec) BoxPosition(i int) cp.Vector {
	return cp.Vector{
		X: s.Origin.X,
		Y: s.Origin.Y + float64(i)*(2*s.HalfExtent+s.Spacing),
	}
}

type CharacterSpec struct {
	BodySpec `yaml:",inline"`
	Speed    float64 `yaml:"speed"`
	MinX     float64 `yaml:"min_x"`
	MaxX     float64 `yaml:"max_x"`
}

// JointSpec pins two actors together. A or B may be StaticAnchor. Anchors
// are in each body's local space.
type JointSpec struct {
	Name       string  `yaml:"name"`
	A          string  `yaml:"a"`
	B          string  `yaml:"b"`
	AnchorA    VecSpec `yaml:"anchor_a"`
	AnchorB    VecSpec `yaml:"anchor_b"`
	BreakForce float64 `yaml:"break_force"`
}

type SceneSpec struct {
	Name      string            `yaml:"name"`
	World     WorldSpec         `yaml:"world"`
	Loop      LoopSpec          `yaml:"loop"`
	Filter    FilterSpec        `yaml:"filter"`
	Material  MaterialSpec      `yaml:"material"`
	Floor     *BodySpec         `yaml:"floor"`
	Boxes     StackSpec         `yaml:"boxes"`
	Character *CharacterSpec    `yaml:"character"`
	Zones     []BodySpec        `yaml:"zones"`
	Joints    []JointSpec       `yaml:"joints"`
	Actors    []EntityBuildSpec `yaml:"actors"`
	Script    string            `yaml:"script"`
}

// LoadSceneSpec loads and validates a scene. An empty name loads the
// default scene.
func LoadSceneSpec(name string) (*SceneSpec, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultScene
	}
	spec, err := LoadSpec[SceneSpec](name)
	if err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("prefabs: %s: %w", name, err)
	}
	return &spec, nil
}

// ParseSceneSpec decodes and validates a scene from raw YAML.
func ParseSceneSpec(data []byte) (*SceneSpec, error) {
	var spec SceneSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("prefabs: unmarshal scene: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Validate checks the parts of a scene the builder relies on.
func (s *SceneSpec) Validate() error {
	var errs []error
	if s.Loop.TickRate < 0 {
		errs = append(errs, fmt.Errorf("loop.tick_rate must not be negative"))
	}
	if s.Loop.TimeScale < 0 {
		errs = append(errs, fmt.Errorf("loop.time_scale must not be negative"))
	}
	if s.World.Substeps < 0 {
		errs = append(errs, fmt.Errorf("world.substeps must not be negative"))
	}
	if _, err := filter.ParsePolicy(s.Filter.Policy); err != nil {
		errs = append(errs, err)
	}

	names := map[string]bool{StaticAnchor: true}
	addName := func(name string) {
		if name == "" {
			return
		}
		if names[name] {
			errs = append(errs, fmt.Errorf("duplicate actor name %q", name))
		}
		names[name] = true
	}
	checkBody := func(where string, b BodySpec) {
		addName(b.Name)
		if b.Width <= 0 || b.Height <= 0 {
			errs = append(errs, fmt.Errorf("%s: width and height must be positive", where))
		}
		if _, err := b.Tag.Tag(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
	}

	if s.Floor != nil {
		checkBody("floor", *s.Floor)
	}
	if s.Boxes.Count < 0 {
		errs = append(errs, fmt.Errorf("boxes.count must not be negative"))
	}
	if s.Boxes.Count > 0 {
		if s.Boxes.HalfExtent <= 0 {
			errs = append(errs, fmt.Errorf("boxes.half_extent must be positive"))
		}
		if _, err := s.Boxes.Tag.Tag(); err != nil {
			errs = append(errs, fmt.Errorf("boxes: %w", err))
		}
		for i := 0; i < s.Boxes.Count; i++ {
			addName(s.Boxes.BoxName(i))
		}
	}
	if s.Character != nil {
		checkBody("character", s.Character.BodySpec)
		if s.Character.MinX > s.Character.MaxX {
			errs = append(errs, fmt.Errorf("character: min_x is greater than max_x"))
		}
	}
	for i, z := range s.Zones {
		checkBody(fmt.Sprintf("zones[%d]", i), z)
	}
	for i, a := range s.Actors {
		addName(a.Name)
		if _, err := a.Body(); err != nil {
			errs = append(errs, fmt.Errorf("actors[%d]: %w", i, err))
		}
		tag, err := a.Tag()
		if err == nil {
			_, err = tag.Tag()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("actors[%d]: %w", i, err))
		}
	}
	for i, j := range s.Joints {
		if !names[j.A] || !names[j.B] {
			errs = append(errs, fmt.Errorf("joints[%d]: unknown actor in %q-%q", i, j.A, j.B))
		}
		if j.A == j.B {
			errs = append(errs, fmt.Errorf("joints[%d]: joint needs two actors", i))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidScene, errors.Join(errs...))
}
