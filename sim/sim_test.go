package sim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/milk9111/contactsim/config"
	"github.com/milk9111/contactsim/ecs"
	"github.com/milk9111/contactsim/event"
	"github.com/milk9111/contactsim/loop"
	"github.com/milk9111/contactsim/prefabs"
	"github.com/milk9111/contactsim/sink"
)

const stackScene = `
name: stack
world:
  gravity: {x: 0, y: -9.81}
  iterations: 10
  sleep_time_threshold: 0.5
loop:
  tick_rate: 60
filter:
  policy: any
material:
  friction: 0.5
  elasticity: 0
floor:
  name: floor
  position: {x: 0, y: -0.5}
  width: 100
  height: 1
  tag:
    category: floor
boxes:
  count: 5
  half_extent: 1
  spacing: 2
  origin: {x: 0, y: 1.5}
  mass: 1
  tag:
    category: box
    interest: [floor, box]
`

func newSim(t *testing.T, spec *prefabs.SceneSpec, rt config.Runtime, out *bytes.Buffer) (*Simulation, *sink.Recorder) {
	t.Helper()
	rec := sink.NewRecorder()
	clock := loop.NewMockTime(time.Unix(0, 0))
	opts := Options{
		Scene:        spec,
		Runtime:      rt,
		Sink:         rec,
		TimeProvider: clock,
		Sleeper:      clock,
	}
	if out != nil {
		opts.Out = out
	}
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, rec
}

func parseScene(t *testing.T, src string) *prefabs.SceneSpec {
	t.Helper()
	spec, err := prefabs.ParseSceneSpec([]byte(src))
	if err != nil {
		t.Fatalf("ParseSceneSpec: %v", err)
	}
	return spec
}

func TestStackSettlesWithOneFloorContact(t *testing.T) {
	s, rec := newSim(t, parseScene(t, stackScene), config.Runtime{Steps: 600}, nil)

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := s.Driver.Stats().Iterations; got != 600 {
		t.Fatalf("iterations = %d, want 600", got)
	}

	floorHits := map[string]int{}
	boxHits := map[string]int{}
	for _, r := range rec.Records() {
		if r.Kind != event.KindContact {
			continue
		}
		a, b := s.Name(r.A), s.Name(r.B)
		if b < a {
			a, b = b, a
		}
		switch r.Label {
		case event.LabelBoxVsFloor:
			box := a
			if box == "floor" {
				box = b
			}
			floorHits[box]++
		case event.LabelBoxVsBox:
			boxHits[a+"/"+b]++
		default:
			t.Fatalf("unexpected contact %s between %s and %s", r.Label, a, b)
		}
	}

	if len(floorHits) != 1 || floorHits["box-0"] != 1 {
		t.Fatalf("floor contacts = %v, want exactly one for box-0", floorHits)
	}
	for i := 0; i < 4; i++ {
		pair := fmt.Sprintf("box-%d/box-%d", i, i+1)
		if boxHits[pair] == 0 {
			t.Fatalf("no contact for adjacent pair %s (got %v)", pair, boxHits)
		}
		delete(boxHits, pair)
	}
	if len(boxHits) != 0 {
		t.Fatalf("contacts between non-adjacent boxes: %v", boxHits)
	}

	if got := rec.Count(event.KindAdvance, ""); got != 0 {
		t.Fatalf("advance records without pose preview: %d", got)
	}

	st := s.Classifier.Stats()
	if st.Emitted != uint64(rec.Len()) {
		t.Fatalf("classifier emitted %d, recorder holds %d", st.Emitted, rec.Len())
	}
	if st.SinkErrors != 0 {
		t.Fatalf("sink errors = %d", st.SinkErrors)
	}
}

func TestDefaultSceneEndToEnd(t *testing.T) {
	spec, err := prefabs.LoadSceneSpec("")
	if err != nil {
		t.Fatalf("LoadSceneSpec: %v", err)
	}
	journal := filepath.Join(t.TempDir(), "events.db")
	var out bytes.Buffer
	s, rec := newSim(t, spec, config.Runtime{Steps: 300, Journal: journal}, &out)

	if s.Script == nil || s.Journal == nil || s.Log == nil {
		t.Fatalf("sinks not wired: script=%v journal=%v log=%v", s.Script != nil, s.Journal != nil, s.Log != nil)
	}
	if got := s.Sinks.Len(); got != 4 {
		t.Fatalf("fanout has %d sinks, want 4", got)
	}

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	breaks := rec.Count(event.KindConstraintBreak, "")
	if breaks != 1 {
		t.Fatalf("constraint breaks = %d, want 1", breaks)
	}
	for _, r := range rec.Records() {
		if r.Kind == event.KindConstraintBreak && r.Joint != "tether" {
			t.Fatalf("broken joint = %q", r.Joint)
		}
	}

	enters := rec.Count(event.KindTriggerEnter, "")
	exits := rec.Count(event.KindTriggerExit, "")
	if enters == 0 || enters != exits {
		t.Fatalf("trigger enters = %d, exits = %d", enters, exits)
	}
	if got := rec.Count(event.KindTriggerEnter, "box-vs-zone"); got != enters {
		t.Fatalf("box-vs-zone enters = %d of %d", got, enters)
	}

	if rec.Count(event.KindContact, event.LabelBoxVsFloor) == 0 {
		t.Fatalf("no box-vs-floor contact")
	}
	if rec.Count(event.KindContact, event.LabelCharacterVsBox) == 0 {
		t.Fatalf("walker never reached the stack")
	}
	if rec.Count(event.KindAdvance, "") == 0 {
		t.Fatalf("no advance records with pose preview enabled")
	}

	floor := rec.Count(event.KindContact, event.LabelBoxVsFloor)
	if got, ok := s.Script.Counter(string(event.LabelBoxVsFloor)); !ok || int(got) != floor {
		t.Fatalf("script counter = %d (%v), want %d", got, ok, floor)
	}

	counts, err := s.Journal.Counts(context.Background(), s.Journal.RunID(), event.KindContact)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	for _, label := range []event.Label{event.LabelBoxVsFloor, event.LabelBoxVsBox, event.LabelCharacterVsBox} {
		if counts[label] != rec.Count(event.KindContact, label) {
			t.Fatalf("journal %s = %d, recorder = %d", label, counts[label], rec.Count(event.KindContact, label))
		}
	}

	if _, ok := s.Poses.Lookup(mustActor(t, s, "walker")); !ok {
		t.Fatalf("walker pose was not published")
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	for _, want := range []string{"Box hit the Floor!", "Constraint broken!", "Trigger detected!", "event summary:"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("log output missing %q", want)
		}
	}
	if strings.Contains(out.String(), "Advanced stage") {
		t.Fatalf("advances logged without WithAdvances")
	}
}

func mustActor(t *testing.T, s *Simulation, name string) ecs.Entity {
	t.Helper()
	e, ok := s.Actor(name)
	if !ok {
		t.Fatalf("missing actor %q", name)
	}
	return e
}

func TestRuntimeOverridesScene(t *testing.T) {
	tests := []struct {
		name      string
		rt        config.Runtime
		wantStep  time.Duration
		wantScale float64
	}{
		{name: "scene values", rt: config.Runtime{}, wantStep: time.Second / 60, wantScale: 1},
		{name: "slow motion", rt: config.Runtime{TimeScale: 0.05}, wantStep: time.Second / 60, wantScale: 0.05},
		{name: "fixed step", rt: config.Runtime{FixedStep: 10 * time.Millisecond}, wantStep: 10 * time.Millisecond, wantScale: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newSim(t, parseScene(t, stackScene), tt.rt, nil)
			clock := s.Driver.Clock()
			if clock.FixedStep != tt.wantStep || clock.TimeScale != tt.wantScale {
				t.Fatalf("clock = %v x%v, want %v x%v", clock.FixedStep, clock.TimeScale, tt.wantStep, tt.wantScale)
			}
		})
	}
}

func TestStopEndsUnboundedRun(t *testing.T) {
	spec := parseScene(t, stackScene)
	clock := loop.NewMockTime(time.Unix(0, 0))
	var s *Simulation
	stopper := event.SinkFunc(func(r event.Record) error {
		if r.Kind == event.KindContact {
			s.Stop()
		}
		return nil
	})
	s, err := New(Options{Scene: spec, Sink: stopper, TimeProvider: clock, Sleeper: clock})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		s.Stop()
		t.Fatalf("run did not stop")
	}
	if s.Driver.State() != loop.StateStopped {
		t.Fatalf("state = %v", s.Driver.State())
	}
}

func TestNewErrors(t *testing.T) {
	badPolicy := parseScene(t, stackScene)
	badPolicy.Filter.Policy = "sometimes"

	tests := []struct {
		name string
		opts Options
		want error
	}{
		{name: "no scene", opts: Options{}, want: ErrNoScene},
		{name: "bad policy", opts: Options{Scene: badPolicy}},
		{name: "missing script", opts: Options{Scene: parseScene(t, stackScene), Runtime: config.Runtime{Script: "scripts/missing.tengo"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.opts)
			if err == nil {
				_ = s.Close()
				t.Fatalf("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}
