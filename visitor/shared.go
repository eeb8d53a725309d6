package visitor

import (
	"reflect"
	"sync"
	"weak"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// registry maps shared objects to the ids they are stored under. Ids start
// at 1; 0 is the null reference.
//
// The registry keeps a strong reference to every object it has seen until
// the visitor is dropped.
type registry struct {
	byID map[uint64]any
	ids  map[any]uint64
	next uint64
}

func newRegistry() registry {
	return registry{
		byID: make(map[uint64]any),
		ids:  make(map[any]uint64),
		next: 1,
	}
}

// id returns the id of ptr, assigning a new one on first sight.
func (r *registry) id(ptr any) (id uint64, first bool) {
	if id, ok := r.ids[ptr]; ok {
		return id, false
	}
	id = r.next
	r.next++
	r.byID[id] = ptr
	r.ids[ptr] = id
	return id, true
}

func (r *registry) insert(id uint64, ptr any) {
	r.byID[id] = ptr
	r.ids[ptr] = id
}

func (r *registry) remove(id uint64) {
	if ptr, ok := r.byID[id]; ok {
		delete(r.ids, ptr)
	}
	delete(r.byID, id)
}

func (r *registry) len() int { return len(r.byID) }

// VisitShared visits a reference to an object that may be referenced from
// several places. The region name holds the object's Id; the first reference
// written also holds the object itself under RcData. After reading, all
// references with the same Id point to one object.
//
// Writing a nil reference and reading the null Id fail with
// ErrUnexpectedNullID; use VisitOptionalShared for nullable references.
func VisitShared[T any](v *Visitor, name string, p **T, visit VisitFunc[T]) error {
	return visitShared(v, &v.rc, name, "RcData", p, func(r *Visitor, ptr *T) error {
		return visit(r, "RcData", ptr)
	})
}

// Sync is a value shared between goroutines. Access it through Read and
// Write, or through Lock and Unlock.
type Sync[T any] struct {
	mu    sync.RWMutex
	value T
}

func NewSync[T any](value T) *Sync[T] {
	return &Sync[T]{value: value}
}

// Read calls fn with the value under a read lock.
func (s *Sync[T]) Read(fn func(value *T)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.value)
}

// Write calls fn with the value under the write lock.
func (s *Sync[T]) Write(fn func(value *T)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.value)
}

func (s *Sync[T]) Lock()   { s.mu.Lock() }
func (s *Sync[T]) Unlock() { s.mu.Unlock() }

// Get returns a copy of the value.
func (s *Sync[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// VisitSync is VisitShared for *Sync[T] references. They are tracked apart
// from VisitShared references and their payload is stored under ArcData.
// The value is visited under the write lock.
func VisitSync[T any](v *Visitor, name string, p **Sync[T], visit VisitFunc[T]) error {
	return visitShared(v, &v.arc, name, "ArcData", p, func(r *Visitor, s *Sync[T]) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return visit(r, "ArcData", &s.value)
	})
}

// VisitWeak visits a weak reference. A reference whose target is gone is
// stored as the null Id and read back as the zero weak.Pointer. A target
// first seen through a weak reference is stored like a VisitShared one.
//
// A target restored only through weak references is kept alive by the
// visitor and becomes collectable once the visitor is dropped.
func VisitWeak[T any](v *Visitor, name string, w *weak.Pointer[T], visit VisitFunc[T]) error {
	ptr := w.Value()
	if !v.reading && ptr == nil {
		return writeNullID(v, name)
	}
	if v.reading {
		null, err := readsNullID(v, name)
		if err != nil || null {
			*w = weak.Pointer[T]{}
			return err
		}
	}
	if err := VisitShared(v, name, &ptr, visit); err != nil {
		return err
	}
	*w = weak.Make(ptr)
	return nil
}

// VisitWeakSync is VisitWeak for *Sync[T] targets.
func VisitWeakSync[T any](v *Visitor, name string, w *weak.Pointer[Sync[T]], visit VisitFunc[T]) error {
	ptr := w.Value()
	if !v.reading && ptr == nil {
		return writeNullID(v, name)
	}
	if v.reading {
		null, err := readsNullID(v, name)
		if err != nil || null {
			*w = weak.Pointer[Sync[T]]{}
			return err
		}
	}
	if err := VisitSync(v, name, &ptr, visit); err != nil {
		return err
	}
	*w = weak.Make(ptr)
	return nil
}

func writeNullID(v *Visitor, name string) error {
	r, err := v.EnterRegion(name)
	if err != nil {
		return err
	}
	defer r.Leave()
	var id uint64
	return VisitValue(r.Visitor, "Id", &id)
}

func readsNullID(v *Visitor, name string) (bool, error) {
	r, err := v.EnterRegion(name)
	if err != nil {
		return false, err
	}
	defer r.Leave()
	var id uint64
	if err := VisitValue(r.Visitor, "Id", &id); err != nil {
		return false, err
	}
	return id == 0, nil
}

func visitShared[T any](v *Visitor, reg *registry, name, dataName string, p **T, payload func(r *Visitor, ptr *T) error) error {
	if !v.reading && *p == nil {
		return errors.Wrapf(ErrUnexpectedNullID, "shared reference %q is nil", name)
	}

	r, err := v.EnterRegion(name)
	if err != nil {
		return err
	}
	defer r.Leave()

	if !v.reading {
		id, first := reg.id(*p)
		if err := VisitValue(r.Visitor, "Id", &id); err != nil {
			return err
		}
		if !first {
			return nil
		}
		return payload(r.Visitor, *p)
	}

	var id uint64
	if err := VisitValue(r.Visitor, "Id", &id); err != nil {
		return err
	}
	if id == 0 {
		return errors.Wrapf(ErrUnexpectedNullID, "shared reference %q", name)
	}
	if x, ok := reg.byID[id]; ok {
		ptr, ok := x.(*T)
		if !ok {
			return errors.Wrapf(ErrTypeMismatch, "shared reference %q: id %d holds %s, requested %s",
				name, id, reflect.TypeOf(x).Elem(), reflect.TypeFor[T]())
		}
		*p = ptr
		return nil
	}
	v.logger.Debug("restoring shared object",
		zap.String("name", name), zap.String("payload", dataName), zap.Uint64("id", id))

	ptr := new(T)
	reg.insert(id, ptr)
	if err := payload(r.Visitor, ptr); err != nil {
		reg.remove(id)
		return err
	}
	*p = ptr
	return nil
}
