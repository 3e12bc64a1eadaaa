package sink

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Shopify/go-lua"
	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/milk9111/contactsim/event"
)

var (
	ErrUnsupportedScript = errors.New("sink: unsupported script type")
	ErrNoHandler         = errors.New("sink: script does not define on_event")
)

// tengo scripts define on_event(ev, state); state persists across calls.
const tengoDispatchScript = `
if __ready {
	on_event(__event, __state)
}
`

type scriptRuntime interface {
	call(ev event.Record) error
	counter(name string) (int64, bool)
	close()
}

// ScriptSink hands each record to a user script. The runtime is picked from
// the script's extension: .tengo or .lua.
type ScriptSink struct {
	mu   sync.Mutex
	path string
	rt   scriptRuntime
}

func NewScriptSink(path string, src []byte) (*ScriptSink, error) {
	var (
		rt  scriptRuntime
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tengo":
		rt, err = newTengoRuntime(src)
	case ".lua":
		rt, err = newLuaRuntime(src)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScript, path)
	}
	if err != nil {
		return nil, fmt.Errorf("sink: load script %s: %w", path, err)
	}
	return &ScriptSink{path: path, rt: rt}, nil
}

func (s *ScriptSink) Path() string {
	return s.path
}

func (s *ScriptSink) Emit(r event.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rt == nil {
		return fmt.Errorf("sink: script %s is closed", s.path)
	}
	return s.rt.call(r)
}

// Counter reads an integer the script stored under name in its state.
func (s *ScriptSink) Counter(name string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rt == nil {
		return 0, false
	}
	return s.rt.counter(name)
}

func (s *ScriptSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rt != nil {
		s.rt.close()
		s.rt = nil
	}
	return nil
}

func scriptLog(msg string) {
	log.Printf("ScriptSink: %s", msg)
}

type tengoRuntime struct {
	compiled  *tengo.Compiled
	stateData *tengo.Map
	engine    *tengo.ImmutableMap
}

func newTengoRuntime(src []byte) (*tengoRuntime, error) {
	if err := checkTengoHandler(src); err != nil {
		return nil, err
	}

	script := tengo.NewScript([]byte(string(src) + "\n" + tengoDispatchScript))
	_ = script.Add("__ready", false)
	_ = script.Add("__event", map[string]any{})
	_ = script.Add("__state", map[string]any{})
	_ = script.Add("__engine", map[string]any{})
	script.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	compiled, err := script.Compile()
	if err != nil {
		return nil, err
	}

	rt := &tengoRuntime{
		compiled:  compiled,
		stateData: &tengo.Map{Value: map[string]tengo.Object{}},
		engine: &tengo.ImmutableMap{Value: map[string]tengo.Object{
			"log": &tengo.UserFunction{Name: "log", Value: func(args ...tengo.Object) (tengo.Object, error) {
				parts := make([]string, 0, len(args))
				for _, a := range args {
					parts = append(parts, objectAsString(a))
				}
				scriptLog(strings.Join(parts, " "))
				return tengo.UndefinedValue, nil
			}},
		}},
	}

	// a dry run surfaces top-level errors early
	if err := compiled.Run(); err != nil {
		return nil, err
	}
	return rt, nil
}

// checkTengoHandler runs the user script alone; the dispatch snippet would
// not compile without on_event.
func checkTengoHandler(src []byte) error {
	script := tengo.NewScript(src)
	_ = script.Add("__engine", map[string]any{})
	script.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))
	compiled, err := script.Compile()
	if err != nil {
		return err
	}
	if err := compiled.Run(); err != nil {
		return err
	}
	if !compiled.IsDefined("on_event") {
		return ErrNoHandler
	}
	return nil
}

func (rt *tengoRuntime) call(r event.Record) error {
	if err := rt.compiled.Set("__ready", true); err != nil {
		return err
	}
	if err := rt.compiled.Set("__event", recordObject(r)); err != nil {
		return err
	}
	if err := rt.compiled.Set("__state", rt.stateData); err != nil {
		return err
	}
	if err := rt.compiled.Set("__engine", rt.engine); err != nil {
		return err
	}
	return rt.compiled.Run()
}

func (rt *tengoRuntime) counter(name string) (int64, bool) {
	obj, ok := rt.stateData.Value[name]
	if !ok {
		return 0, false
	}
	v, ok := obj.(*tengo.Int)
	if !ok {
		return 0, false
	}
	return v.Value, true
}

func (rt *tengoRuntime) close() {}

func recordObject(r event.Record) *tengo.ImmutableMap {
	return &tengo.ImmutableMap{Value: map[string]tengo.Object{
		"kind":    &tengo.String{Value: string(r.Kind)},
		"label":   &tengo.String{Value: string(r.Label)},
		"message": &tengo.String{Value: r.Message()},
		"a":       &tengo.String{Value: r.A.String()},
		"b":       &tengo.String{Value: r.B.String()},
		"step":    &tengo.Int{Value: int64(r.Step)},
		"x":       &tengo.Float{Value: r.Pose.Position.X},
		"y":       &tengo.Float{Value: r.Pose.Position.Y},
		"joint":   &tengo.String{Value: r.Joint},
		"force":   &tengo.Float{Value: r.Force},
	}}
}

func objectAsString(obj tengo.Object) string {
	if obj == nil {
		return ""
	}
	switch v := obj.(type) {
	case *tengo.String:
		return v.Value
	default:
		return strings.Trim(v.String(), "\"")
	}
}

// Lua scripts define a global on_event(ev) and keep their counters in a
// global table named state.
type luaRuntime struct {
	state *lua.State
}

func newLuaRuntime(src []byte) (*luaRuntime, error) {
	l := lua.NewState()
	lua.OpenLibraries(l)
	l.Register("log", func(l *lua.State) int {
		scriptLog(lua.CheckString(l, 1))
		return 0
	})

	if err := lua.DoString(l, string(src)); err != nil {
		return nil, err
	}
	l.Global("on_event")
	defined := l.IsFunction(-1)
	l.Pop(1)
	if !defined {
		return nil, ErrNoHandler
	}
	return &luaRuntime{state: l}, nil
}

func (rt *luaRuntime) call(r event.Record) error {
	l := rt.state
	l.Global("on_event")
	l.NewTable()
	setString(l, "kind", string(r.Kind))
	setString(l, "label", string(r.Label))
	setString(l, "message", r.Message())
	setString(l, "a", r.A.String())
	setString(l, "b", r.B.String())
	setString(l, "joint", r.Joint)
	l.PushInteger(int(r.Step))
	l.SetField(-2, "step")
	setNumber(l, "x", r.Pose.Position.X)
	setNumber(l, "y", r.Pose.Position.Y)
	setNumber(l, "force", r.Force)
	return l.ProtectedCall(1, 0, 0)
}

func (rt *luaRuntime) counter(name string) (int64, bool) {
	l := rt.state
	l.Global("state")
	defer l.SetTop(0)
	if !l.IsTable(-1) {
		return 0, false
	}
	l.Field(-1, name)
	v, ok := l.ToInteger(-1)
	return int64(v), ok
}

func (rt *luaRuntime) close() {
	rt.state.SetTop(0)
}

func setString(l *lua.State, key, value string) {
	l.PushString(value)
	l.SetField(-2, key)
}

func setNumber(l *lua.State, key string, value float64) {
	l.PushNumber(value)
	l.SetField(-2, key)
}
