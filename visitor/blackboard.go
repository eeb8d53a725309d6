package visitor

import "reflect"

// Blackboard carries arbitrary values, keyed by type, to Visit
// implementations. It is never persisted.
type Blackboard struct {
	items map[reflect.Type]any
}

func NewBlackboard() *Blackboard {
	return &Blackboard{items: make(map[reflect.Type]any)}
}

// Register stores value under its type, replacing any earlier value of the
// same type.
func Register[T any](bb *Blackboard, value *T) {
	bb.items[reflect.TypeFor[T]()] = value
}

// Lookup returns the value registered for T.
func Lookup[T any](bb *Blackboard) (*T, bool) {
	x, ok := bb.items[reflect.TypeFor[T]()]
	if !ok {
		return nil, false
	}
	return x.(*T), true
}

// Remove drops the value registered for T.
func Remove[T any](bb *Blackboard) {
	delete(bb.items, reflect.TypeFor[T]())
}

func (bb *Blackboard) Len() int { return len(bb.items) }
