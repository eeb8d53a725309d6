package visitor

import (
	"cmp"
	"math"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// maxPrealloc caps the capacity reserved from a length read out of a
// document.
const maxPrealloc = 1 << 12

func itemName(i int) string { return "Item" + strconv.Itoa(i) }

// VisitSlice visits a sequence as a region holding its Length and one entry
// per element named Item0, Item1 and so on. Documents of VersionLegacy
// nest every element in an Item{i} region under the name ItemData.
func VisitSlice[T any](v *Visitor, name string, s *[]T, visit VisitFunc[T]) error {
	r, err := v.EnterRegion(name)
	if err != nil {
		return err
	}
	defer r.Leave()

	n := uint32(len(*s))
	if err := VisitValue(r.Visitor, "Length", &n); err != nil {
		return err
	}

	if !v.reading {
		for i := range *s {
			if err := visit(r.Visitor, itemName(i), &(*s)[i]); err != nil {
				return err
			}
		}
		return nil
	}

	items := make([]T, 0, min(int(n), maxPrealloc))
	for i := 0; i < int(n); i++ {
		var item T
		if v.version == VersionLegacy {
			err = visitItemData(r.Visitor, itemName(i), &item, visit)
		} else {
			err = visit(r.Visitor, itemName(i), &item)
		}
		if err != nil {
			return err
		}
		items = append(items, item)
	}
	*s = items
	return nil
}

func visitItemData[T any](v *Visitor, name string, item *T, visit VisitFunc[T]) error {
	r, err := v.EnterRegion(name)
	if err != nil {
		return err
	}
	defer r.Leave()
	return visit(r.Visitor, "ItemData", item)
}

// VisitArray visits a fixed-size sequence, typically arr[:]. Elements are
// stored as Item{i}/ItemData regions. Reading fails when the document holds
// more elements than items has room for.
func VisitArray[T any](v *Visitor, name string, items []T, visit VisitFunc[T]) error {
	r, err := v.EnterRegion(name)
	if err != nil {
		return err
	}
	defer r.Leave()

	n := uint32(len(items))
	if err := VisitValue(r.Visitor, "Length", &n); err != nil {
		return err
	}
	if v.reading && int(n) > len(items) {
		return UserError("not enough space in static array, got %d, needed %d", n, len(items))
	}
	for i := range items[:n] {
		if err := visitItemData(r.Visitor, itemName(i), &items[i], visit); err != nil {
			return err
		}
	}
	return nil
}

// VisitMap visits a map as a region holding its Count and one Item{i} region
// per entry with Key and Value. Entries are written in ascending key order.
func VisitMap[K cmp.Ordered, V any](v *Visitor, name string, m *map[K]V, visitKey VisitFunc[K], visitValue VisitFunc[V]) error {
	r, err := v.EnterRegion(name)
	if err != nil {
		return err
	}
	defer r.Leave()

	n := uint32(len(*m))
	if err := VisitValue(r.Visitor, "Count", &n); err != nil {
		return err
	}

	if !v.reading {
		// NaN keys cannot be looked up again, so entries are sorted as pairs
		entries := lo.Entries(*m)
		slices.SortFunc(entries, func(a, b lo.Entry[K, V]) int { return cmp.Compare(a.Key, b.Key) })
		for i := range entries {
			e := &entries[i]
			if err := visitEntry(r.Visitor, i, &e.Key, &e.Value, visitKey, visitValue); err != nil {
				return err
			}
		}
		return nil
	}

	out := make(map[K]V, min(int(n), maxPrealloc))
	for i := 0; i < int(n); i++ {
		var k K
		var value V
		if err := visitEntry(r.Visitor, i, &k, &value, visitKey, visitValue); err != nil {
			return err
		}
		out[k] = value
	}
	*m = out
	return nil
}

func visitEntry[K, V any](v *Visitor, i int, k *K, value *V, visitKey VisitFunc[K], visitValue VisitFunc[V]) error {
	r, err := v.EnterRegion(itemName(i))
	if err != nil {
		return err
	}
	defer r.Leave()
	if err := visitKey(r.Visitor, "Key", k); err != nil {
		return err
	}
	if visitValue == nil {
		return nil
	}
	return visitValue(r.Visitor, "Value", value)
}

// VisitSet visits a set like VisitMap, with a Key and no Value per entry.
func VisitSet[K cmp.Ordered](v *Visitor, name string, s *map[K]struct{}, visitKey VisitFunc[K]) error {
	return VisitMap(v, name, s, visitKey, nil)
}

// VisitOptional visits a nullable value as a region holding IsSome and,
// when present, Data. A present value is allocated when reading.
func VisitOptional[T any](v *Visitor, name string, p **T, visit VisitFunc[T]) error {
	return visitOptional(v, name, p, func(r *Visitor) error {
		if v.reading {
			*p = new(T)
		}
		return visit(r, "Data", *p)
	})
}

// VisitOptionalShared is VisitOptional for a shared reference; Data holds
// the reference as written by VisitShared.
func VisitOptionalShared[T any](v *Visitor, name string, p **T, visit VisitFunc[T]) error {
	return visitOptional(v, name, p, func(r *Visitor) error {
		return VisitShared(r, "Data", p, visit)
	})
}

// VisitOptionalSync is VisitOptional for a concurrency-safe shared
// reference, see VisitSync.
func VisitOptionalSync[T any](v *Visitor, name string, p **Sync[T], visit VisitFunc[T]) error {
	return visitOptional(v, name, p, func(r *Visitor) error {
		return VisitSync(r, "Data", p, visit)
	})
}

func visitOptional[T any](v *Visitor, name string, p **T, data func(r *Visitor) error) error {
	r, err := v.EnterRegion(name)
	if err != nil {
		return err
	}
	defer r.Leave()

	var isSome uint8
	if *p != nil {
		isSome = 1
	}
	if err := VisitValue(r.Visitor, "IsSome", &isSome); err != nil {
		return err
	}
	if isSome == 0 {
		if v.reading {
			*p = nil
		}
		return nil
	}
	return data(r.Visitor)
}

const maxDurationSecs = uint64(math.MaxInt64 / int64(time.Second))

// VisitDuration visits a non-negative duration as Secs and Nanos.
func VisitDuration(v *Visitor, name string, d *time.Duration) error {
	if !v.reading && *d < 0 {
		return UserError("negative duration %s in %q", *d, name)
	}
	r, err := v.EnterRegion(name)
	if err != nil {
		return err
	}
	defer r.Leave()

	secs := uint64(*d / time.Second)
	nanos := uint32(*d % time.Second)
	if err := VisitValue(r.Visitor, "Secs", &secs); err != nil {
		return err
	}
	if err := VisitValue(r.Visitor, "Nanos", &nanos); err != nil {
		return err
	}
	if secs > maxDurationSecs || secs*uint64(time.Second)+uint64(nanos) > math.MaxInt64 {
		return UserError("duration %q of %ds %dns overflows time.Duration", name, secs, nanos)
	}
	*d = time.Duration(secs)*time.Second + time.Duration(nanos)
	return nil
}

// Range is a half-open interval.
type Range[T any] struct {
	Start, End T
}

func VisitRange[T any](v *Visitor, name string, rg *Range[T], visit VisitFunc[T]) error {
	r, err := v.EnterRegion(name)
	if err != nil {
		return err
	}
	defer r.Leave()
	if err := visit(r.Visitor, "Start", &rg.Start); err != nil {
		return err
	}
	return visit(r.Visitor, "End", &rg.End)
}

// VisitPath visits a file system path. Separators are stored as forward
// slashes.
func VisitPath(v *Visitor, name string, path *string) error {
	r, err := v.EnterRegion(name)
	if err != nil {
		return err
	}
	defer r.Leave()

	var data []byte
	if !v.reading {
		if !utf8.ValidString(*path) {
			return UserError("path %q is not valid utf-8", name)
		}
		data = []byte(strings.ReplaceAll(*path, `\`, "/"))
	}
	n := uint32(len(data))
	if err := VisitValue(r.Visitor, "Length", &n); err != nil {
		return err
	}
	if err := VisitBlob(r.Visitor, "Data", &data); err != nil {
		return err
	}
	if v.reading {
		s, err := checkUTF8(data)
		if err != nil {
			return errors.Wrapf(err, "path %q", name)
		}
		*path = filepath.FromSlash(s)
	}
	return nil
}

// Enum is a tagged union value. Discriminant identifies the variant.
type Enum interface {
	Visitable
	Discriminant() uint32
}

// VisitEnum visits a tagged union as a region holding the discriminant Id
// and the variant payload Data. When reading, variant builds an empty value
// for the stored discriminant before its payload is visited.
func VisitEnum[T Enum](v *Visitor, name string, value *T, variant func(id uint32) (T, error)) error {
	r, err := v.EnterRegion(name)
	if err != nil {
		return err
	}
	defer r.Leave()

	var id uint32
	if !v.reading {
		id = (*value).Discriminant()
	}
	if err := VisitValue(r.Visitor, "Id", &id); err != nil {
		return err
	}
	if v.reading {
		x, err := variant(id)
		if err != nil {
			return errors.Wrapf(err, "enum %q variant %d", name, id)
		}
		*value = x
	}
	return (*value).Visit("Data", r.Visitor)
}
