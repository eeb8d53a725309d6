// Package store keeps named visitor documents in a bbolt database.
//
// Every document is stored with an Info record holding its format, version,
// size and a siphash checksum, verified whenever the document is read.
package store

import (
	"bytes"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dchest/siphash"
	"github.com/vmihailenco/msgpack/v5"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/FyroxEngine/Fyrox-sub011/internal/log"
	"github.com/FyroxEngine/Fyrox-sub011/internal/metrics"
	"github.com/FyroxEngine/Fyrox-sub011/visitor"
)

var (
	ErrNotFound         = errors.New("store: document not found")
	ErrChecksumMismatch = errors.New("store: document checksum mismatch")
	ErrEmptyName        = errors.New("store: empty document name")
)

var (
	documentsBucket = []byte("documents")
	infoBucket      = []byte("info")
)

// checksum keys; changing them invalidates every stored document
const (
	sipK0 = 0x6676697369746f72
	sipK1 = 0x646f63756d656e74
)

func checksum(b []byte) uint64 { return siphash.Hash(sipK0, sipK1, b) }

// Info describes a stored document.
type Info struct {
	Format   string    `msgpack:"f"`
	Version  uint32    `msgpack:"v"`
	Size     int       `msgpack:"s"`
	Checksum uint64    `msgpack:"c"`
	SavedAt  time.Time `msgpack:"t"`
}

type Options struct {
	// IsTesting trades durability for speed.
	IsTesting bool
	// Timeout waits for the file lock; 0 waits forever.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Store is a bbolt-backed document store. It is safe for concurrent use.
type Store struct {
	bdb    *bbolt.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open opens or creates the database at path.
func Open(path string, opt Options) (*Store, error) {
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = opt.Timeout
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
	} else {
		bopt.FreelistType = bbolt.FreelistMapType
	}

	bdb, err := bbolt.Open(path, 0o666, &bopt)
	if err != nil {
		return nil, errors.Wrapf(err, "store: opening %s", path)
	}
	err = bdb.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{documentsBucket, infoBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		bdb.Close()
		return nil, errors.Wrap(err, "store: creating buckets")
	}

	logger := opt.Logger
	if logger == nil {
		logger = log.L()
	}
	return &Store{bdb: bdb, logger: logger, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.bdb.Close()
}

// Put encodes v in format f and stores it under name, replacing any
// previous document.
func (s *Store) Put(name string, v *visitor.Visitor, f visitor.Format) (Info, error) {
	b, err := v.Encode(f)
	if err != nil {
		return Info{}, err
	}
	return s.PutEncoded(name, b)
}

// PutEncoded stores an already encoded document. It fails with
// visitor.ErrNotSupportedFormat if b does not start with a known magic.
func (s *Store) PutEncoded(name string, b []byte) (Info, error) {
	if name == "" {
		return Info{}, ErrEmptyName
	}
	f := visitor.DetectFormatFromSlice(b)
	if f == visitor.FormatUnknown {
		return Info{}, errors.Wrapf(visitor.ErrNotSupportedFormat, "store: document %q", name)
	}
	info := Info{
		Format:   f.String(),
		Version:  uint32(documentVersion(b)),
		Size:     len(b),
		Checksum: checksum(b),
		SavedAt:  s.now().UTC(),
	}
	raw, err := msgpack.Marshal(&info)
	if err != nil {
		return Info{}, errors.Wrap(err, "store: encoding info")
	}

	err = s.bdb.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(documentsBucket).Put([]byte(name), b); err != nil {
			return err
		}
		return tx.Bucket(infoBucket).Put([]byte(name), raw)
	})
	if err != nil {
		return Info{}, errors.Wrapf(err, "store: putting %q", name)
	}
	metrics.StoreOps.WithLabelValues(metrics.OpPut).Inc()
	s.logger.Debug("document stored", zap.String("name", name), zap.String("format", info.Format), zap.Int("bytes", info.Size))
	return info, nil
}

// GetEncoded returns the stored bytes of a document after checking them
// against the stored checksum.
func (s *Store) GetEncoded(name string) ([]byte, Info, error) {
	var b []byte
	var info Info
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(infoBucket).Get([]byte(name))
		data := tx.Bucket(documentsBucket).Get([]byte(name))
		if raw == nil || data == nil {
			return errors.Wrapf(ErrNotFound, "%q", name)
		}
		if err := decodeInfo(name, raw, &info); err != nil {
			return err
		}
		b = bytes.Clone(data)
		return nil
	})
	if err != nil {
		return nil, Info{}, err
	}
	if sum := checksum(b); sum != info.Checksum {
		return nil, Info{}, errors.Wrapf(ErrChecksumMismatch, "%q: stored %016x, computed %016x", name, info.Checksum, sum)
	}
	metrics.StoreOps.WithLabelValues(metrics.OpGet).Inc()
	return b, info, nil
}

// Get loads a document into a Visitor in read mode.
func (s *Store) Get(name string, opts ...visitor.Option) (*visitor.Visitor, Info, error) {
	b, info, err := s.GetEncoded(name)
	if err != nil {
		return nil, Info{}, err
	}
	v, err := visitor.LoadFromMemory(b, opts...)
	if err != nil {
		return nil, Info{}, errors.Wrapf(err, "store: loading %q", name)
	}
	return v, info, nil
}

// Stat returns the Info of a document without reading it.
func (s *Store) Stat(name string) (Info, error) {
	var info Info
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(infoBucket).Get([]byte(name))
		if raw == nil {
			return errors.Wrapf(ErrNotFound, "%q", name)
		}
		return decodeInfo(name, raw, &info)
	})
	return info, err
}

// List returns the names of all documents in ascending order.
func (s *Store) List() ([]string, error) {
	var names []string
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(infoBucket).ForEach(func(k, _ []byte) error {
			names = append(names, string(k))
			return nil
		})
	})
	return names, err
}

// Delete removes a document.
func (s *Store) Delete(name string) error {
	err := s.bdb.Update(func(tx *bbolt.Tx) error {
		info := tx.Bucket(infoBucket)
		if info.Get([]byte(name)) == nil {
			return errors.Wrapf(ErrNotFound, "%q", name)
		}
		if err := info.Delete([]byte(name)); err != nil {
			return err
		}
		return tx.Bucket(documentsBucket).Delete([]byte(name))
	})
	if err != nil {
		return err
	}
	metrics.StoreOps.WithLabelValues(metrics.OpDelete).Inc()
	return nil
}

func decodeInfo(name string, raw []byte, info *Info) error {
	if err := msgpack.Unmarshal(raw, info); err != nil {
		return errors.Wrapf(err, "store: decoding info of %q", name)
	}
	info.SavedAt = info.SavedAt.UTC()
	return nil
}

// documentVersion reads the version from a document header without
// decoding the document.
func documentVersion(b []byte) visitor.Version {
	v, err := visitor.PeekVersion(b)
	if err != nil {
		return 0
	}
	return v
}
