package visitor

import (
	"cmp"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

type tagsCache struct {
	mu   sync.RWMutex
	cmap map[reflect.Type][]tag
}

type tag struct {
	index    int
	name     string
	optional bool
}

var structTags tagsCache

// Get returns the visited fields of struct type t in declaration order.
// Fields are named by their `visit:"Name"` tag or by their Go name;
// unexported fields and fields tagged `visit:"-"` are skipped.
func (tc *tagsCache) Get(t reflect.Type) []tag {
	tc.mu.RLock()
	tags, ok := tc.cmap[t]
	tc.mu.RUnlock()
	if ok {
		return tags
	}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		name, opts, _ := strings.Cut(sf.Tag.Get("visit"), ",")
		if name == "-" || !sf.IsExported() {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		tags = append(tags, tag{index: i, name: name, optional: opts == "optional"})
	}

	tc.mu.Lock()
	if tc.cmap == nil {
		tc.cmap = make(map[reflect.Type][]tag)
	}
	tc.cmap[t] = tags
	tc.mu.Unlock()
	return tags
}

var (
	visitableType = reflect.TypeFor[Visitable]()
	durationType  = reflect.TypeFor[time.Duration]()
	uuidType      = reflect.TypeFor[uuid.UUID]()
	fieldKindType = reflect.TypeFor[FieldKind]()
)

// VisitStruct visits the struct ptr points to as a region holding one entry
// per exported field.
//
// Fields of primitive types are stored as fields; nested structs, slices,
// arrays, maps with ordered keys and pointers are stored as regions laid out
// like VisitStruct, VisitSlice, VisitArray, VisitMap and VisitOptional do.
// []byte is stored as a blob. A field whose pointer implements Visitable is
// visited through its Visit method. A field tagged `visit:",optional"` may
// be absent when reading.
func VisitStruct(v *Visitor, name string, ptr any) error {
	rv := reflect.ValueOf(ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return UserError("VisitStruct: need a non-nil pointer to a struct, got %T", ptr)
	}
	return visitReflect(v, name, rv.Elem())
}

func visitReflect(v *Visitor, name string, rv reflect.Value) error {
	t := rv.Type()
	if reflect.PointerTo(t).Implements(visitableType) {
		return rv.Addr().Interface().(Visitable).Visit(name, v)
	}

	switch {
	case t == durationType:
		return VisitDuration(v, name, rv.Addr().Interface().(*time.Duration))
	case t == uuidType:
		return VisitValue(v, name, rv.Addr().Interface().(*uuid.UUID))
	case t.Implements(fieldKindType):
		return visitKind(v, name, rv)
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8:
		b := rv.Bytes()
		if err := VisitBlob(v, name, &b); err != nil {
			return err
		}
		rv.SetBytes(b)
		return nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return reflectPrimitive[bool](v, name, rv)
	case reflect.Int8:
		return reflectPrimitive[int8](v, name, rv)
	case reflect.Int16:
		return reflectPrimitive[int16](v, name, rv)
	case reflect.Int32:
		return reflectPrimitive[int32](v, name, rv)
	case reflect.Int64, reflect.Int:
		return reflectPrimitive[int64](v, name, rv)
	case reflect.Uint8:
		return reflectPrimitive[uint8](v, name, rv)
	case reflect.Uint16:
		return reflectPrimitive[uint16](v, name, rv)
	case reflect.Uint32:
		return reflectPrimitive[uint32](v, name, rv)
	case reflect.Uint64, reflect.Uint, reflect.Uintptr:
		return reflectPrimitive[uint64](v, name, rv)
	case reflect.Float32:
		return reflectPrimitive[float32](v, name, rv)
	case reflect.Float64:
		return reflectPrimitive[float64](v, name, rv)
	case reflect.String:
		return reflectPrimitive[string](v, name, rv)
	case reflect.Struct:
		return reflectStruct(v, name, rv)
	case reflect.Slice:
		return reflectSlice(v, name, rv)
	case reflect.Array:
		return reflectArray(v, name, rv)
	case reflect.Map:
		return reflectMap(v, name, rv)
	case reflect.Pointer:
		return reflectPointer(v, name, rv)
	}
	return UserError("cannot visit %q of type %s", name, t)
}

func reflectPrimitive[T Primitive](v *Visitor, name string, rv reflect.Value) error {
	target := reflect.TypeFor[T]()
	x := rv.Convert(target).Interface().(T)
	if err := VisitValue(v, name, &x); err != nil {
		return err
	}
	if v.reading {
		rv.Set(reflect.ValueOf(x).Convert(rv.Type()))
	}
	return nil
}

// visitKind handles values whose type is itself a field kind, such as
// vectors and matrices.
func visitKind(v *Visitor, name string, rv reflect.Value) error {
	if !v.reading {
		return v.writeField(name, rv.Interface().(FieldKind))
	}
	f, err := v.readField(name)
	if err != nil {
		return err
	}
	kv := reflect.ValueOf(f.Kind)
	if kv.Type() != rv.Type() {
		return &FieldTypeMismatchError{
			Field:    name,
			Expected: rv.Interface().(FieldKind).TypeName(),
			Actual:   f.Kind.TypeName(),
		}
	}
	rv.Set(kv)
	return nil
}

func reflectStruct(v *Visitor, name string, rv reflect.Value) error {
	r, err := v.EnterRegion(name)
	if err != nil {
		return err
	}
	defer r.Leave()

	for _, tg := range structTags.Get(rv.Type()) {
		if v.reading && tg.optional {
			if _, ok := r.FindField(tg.name); !ok && !r.HasRegion(tg.name) {
				continue
			}
		}
		if err := visitReflect(r.Visitor, tg.name, rv.Field(tg.index)); err != nil {
			return errors.Wrapf(err, "%s.%s", rv.Type().Name(), rv.Type().Field(tg.index).Name)
		}
	}
	return nil
}

func reflectSlice(v *Visitor, name string, rv reflect.Value) error {
	r, err := v.EnterRegion(name)
	if err != nil {
		return err
	}
	defer r.Leave()

	n := uint32(rv.Len())
	if err := VisitValue(r.Visitor, "Length", &n); err != nil {
		return err
	}
	if !v.reading {
		for i := 0; i < int(n); i++ {
			if err := visitReflect(r.Visitor, itemName(i), rv.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}

	items := reflect.MakeSlice(rv.Type(), 0, min(int(n), maxPrealloc))
	for i := 0; i < int(n); i++ {
		item := reflect.New(rv.Type().Elem()).Elem()
		if v.version == VersionLegacy {
			err = reflectItemData(r.Visitor, itemName(i), item)
		} else {
			err = visitReflect(r.Visitor, itemName(i), item)
		}
		if err != nil {
			return err
		}
		items = reflect.Append(items, item)
	}
	rv.Set(items)
	return nil
}

func reflectItemData(v *Visitor, name string, rv reflect.Value) error {
	r, err := v.EnterRegion(name)
	if err != nil {
		return err
	}
	defer r.Leave()
	return visitReflect(r.Visitor, "ItemData", rv)
}

func reflectArray(v *Visitor, name string, rv reflect.Value) error {
	r, err := v.EnterRegion(name)
	if err != nil {
		return err
	}
	defer r.Leave()

	n := uint32(rv.Len())
	if err := VisitValue(r.Visitor, "Length", &n); err != nil {
		return err
	}
	if int(n) > rv.Len() {
		return UserError("not enough space in static array, got %d, needed %d", n, rv.Len())
	}
	for i := 0; i < int(n); i++ {
		if err := reflectItemData(r.Visitor, itemName(i), rv.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

func reflectMap(v *Visitor, name string, rv reflect.Value) error {
	t := rv.Type()
	if !orderedKind(t.Key().Kind()) {
		return UserError("cannot visit %q: map key %s is not ordered", name, t.Key())
	}

	r, err := v.EnterRegion(name)
	if err != nil {
		return err
	}
	defer r.Leave()

	n := uint32(rv.Len())
	if err := VisitValue(r.Visitor, "Count", &n); err != nil {
		return err
	}

	if !v.reading {
		type entry struct{ key, value reflect.Value }
		entries := make([]entry, 0, rv.Len())
		for it := rv.MapRange(); it.Next(); {
			key := reflect.New(t.Key()).Elem()
			key.Set(it.Key())
			value := reflect.New(t.Elem()).Elem()
			value.Set(it.Value())
			entries = append(entries, entry{key, value})
		}
		slices.SortFunc(entries, func(a, b entry) int { return compareKeys(a.key, b.key) })
		for i, e := range entries {
			if err := reflectEntry(r.Visitor, i, e.key, e.value); err != nil {
				return err
			}
		}
		return nil
	}

	m := reflect.MakeMapWithSize(t, min(int(n), maxPrealloc))
	for i := 0; i < int(n); i++ {
		key := reflect.New(t.Key()).Elem()
		value := reflect.New(t.Elem()).Elem()
		if err := reflectEntry(r.Visitor, i, key, value); err != nil {
			return err
		}
		m.SetMapIndex(key, value)
	}
	rv.Set(m)
	return nil
}

func reflectEntry(v *Visitor, i int, key, value reflect.Value) error {
	r, err := v.EnterRegion(itemName(i))
	if err != nil {
		return err
	}
	defer r.Leave()
	if err := visitReflect(r.Visitor, "Key", key); err != nil {
		return err
	}
	return visitReflect(r.Visitor, "Value", value)
}

func orderedKind(k reflect.Kind) bool {
	switch k {
	case reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func compareKeys(a, b reflect.Value) int {
	switch a.Kind() {
	case reflect.String:
		return cmp.Compare(a.String(), b.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(a.Int(), b.Int())
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(a.Float(), b.Float())
	default:
		return cmp.Compare(a.Uint(), b.Uint())
	}
}

func reflectPointer(v *Visitor, name string, rv reflect.Value) error {
	r, err := v.EnterRegion(name)
	if err != nil {
		return err
	}
	defer r.Leave()

	var isSome uint8
	if !rv.IsNil() {
		isSome = 1
	}
	if err := VisitValue(r.Visitor, "IsSome", &isSome); err != nil {
		return err
	}
	if isSome == 0 {
		if v.reading {
			rv.Set(reflect.Zero(rv.Type()))
		}
		return nil
	}
	if v.reading {
		rv.Set(reflect.New(rv.Type().Elem()))
	}
	return visitReflect(r.Visitor, "Data", rv.Elem())
}
