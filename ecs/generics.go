package ecs

import "github.com/milk9111/contactsim/ecs/component"

func CreateEntity(w *World) Entity {
	return w.CreateEntity()
}

func DestroyEntity(w *World, e Entity) bool {
	return w.DestroyEntity(e)
}

func IsAlive(w *World, e Entity) bool {
	return w.IsAlive(e)
}

// Entities returns every entity that owns at least one component.
func Entities(w *World) []Entity {
	if w == nil {
		return nil
	}
	seen := make(map[Entity]struct{})
	var out []Entity
	for _, s := range w.stores {
		for _, e := range s.Entities() {
			if _, ok := seen[e]; ok {
				continue
			}
			seen[e] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}

func Add[T any](w *World, e Entity, kind component.ComponentKind[T], value *T) error {
	if !kind.Valid() {
		return component.ErrInvalidComponentKind
	}
	if value == nil {
		return component.ErrNilComponent
	}
	if !w.IsAlive(e) {
		return component.ErrEntityNotAlive
	}
	w.store(kind.ID(), true).Set(e, value)
	return nil
}

func Get[T any](w *World, e Entity, kind component.ComponentKind[T]) (*T, bool) {
	if !w.IsAlive(e) {
		return nil, false
	}
	v, ok := w.store(kind.ID(), false).Get(e).(*T)
	return v, ok
}

func Has[T any](w *World, e Entity, kind component.ComponentKind[T]) bool {
	if !w.IsAlive(e) {
		return false
	}
	return w.store(kind.ID(), false).Has(e)
}

func Remove[T any](w *World, e Entity, kind component.ComponentKind[T]) bool {
	if !w.IsAlive(e) {
		return false
	}
	return w.store(kind.ID(), false).Remove(e)
}

func ForEach[T any](w *World, kind component.ComponentKind[T], fn func(Entity, *T)) {
	s := w.store(kind.ID(), false)
	if s == nil || fn == nil {
		return
	}
	ents := append([]Entity(nil), s.Entities()...)
	for _, e := range ents {
		v, ok := s.Get(e).(*T)
		if !ok || !w.IsAlive(e) {
			continue
		}
		fn(e, v)
	}
}

func ForEach2[A, B any](w *World, ka component.ComponentKind[A], kb component.ComponentKind[B], fn func(Entity, *A, *B)) {
	sa := w.store(ka.ID(), false)
	sb := w.store(kb.ID(), false)
	if sa == nil || sb == nil || fn == nil {
		return
	}
	if sa.Len() > sb.Len() {
		ForEach(w, kb, func(e Entity, b *B) {
			if a, ok := sa.Get(e).(*A); ok {
				fn(e, a, b)
			}
		})
		return
	}
	ForEach(w, ka, func(e Entity, a *A) {
		if b, ok := sb.Get(e).(*B); ok {
			fn(e, a, b)
		}
	})
}
