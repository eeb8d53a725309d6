package visitor

const (
	binaryMagic       = "FBAF"
	binaryMagicLegacy = "RG3D"
	asciiMagic        = "FTAX"
	asciiMagicLegacy  = "FTAF"

	magicSize = 4
)

// Version identifies the layout rules a document was written with.
type Version uint32

const (
	// VersionLegacy documents store sequence items as Item{i}/ItemData
	// regions and carry no version in their header.
	VersionLegacy Version = 1
	// VersionVectorFlattening documents store sequence items directly
	// under Item{i}.
	VersionVectorFlattening Version = 2

	CurrentVersion = VersionVectorFlattening
)

// Flags alter how values are written.
type Flags uint32

const (
	FlagNone Flags = 0
	// FlagSerializeEverything forces inheritable values to be written even
	// when they were not modified.
	FlagSerializeEverything Flags = 1 << 1
)

// Contains reports whether all bits of o are set in f.
func (f Flags) Contains(o Flags) bool { return f&o == o }

const rootName = "__ROOT__"

// maxDepth bounds the nesting of nodes below the root, both when writing
// and when decoding.
const maxDepth = 1 << 12

// binary field tags
const (
	tagU8             = 1
	tagI8             = 2
	tagU16            = 3
	tagI16            = 4
	tagU32            = 5
	tagI32            = 6
	tagU64            = 7
	tagI64            = 8
	tagF32            = 9
	tagF64            = 10
	tagVector3F32     = 11
	tagUnitQuaternion = 12
	tagMatrix4        = 13
	tagBinaryBlob     = 14
	tagBool           = 15
	tagMatrix3        = 16
	tagVector2F32     = 17
	tagVector4F32     = 18
	tagUUID           = 19
	tagUnitComplex    = 20
	tagPodArray       = 21
	tagMatrix2        = 22
	tagVector2F64     = 23
	tagVector3F64     = 24
	tagVector4F64     = 25
	tagVector2I8      = 26
	tagVector3I8      = 27
	tagVector4I8      = 28
	tagVector2U8      = 29
	tagVector3U8      = 30
	tagVector4U8      = 31
	tagVector2I16     = 32
	tagVector3I16     = 33
	tagVector4I16     = 34
	tagVector2U16     = 35
	tagVector3U16     = 36
	tagVector4U16     = 37
	tagVector2I32     = 38
	tagVector3I32     = 39
	tagVector4I32     = 40
	tagVector2U32     = 41
	tagVector3U32     = 42
	tagVector4U32     = 43
	tagVector2I64     = 44
	tagVector3I64     = 45
	tagVector4I64     = 46
	tagVector2U64     = 47
	tagVector3U64     = 48
	tagVector4U64     = 49
	tagString         = 50
)

// pod element type ids
const (
	podU8  = 0
	podI8  = 1
	podU16 = 2
	podI16 = 3
	podU32 = 4
	podI32 = 5
	podU64 = 6
	podI64 = 7
	podF32 = 8
	podF64 = 9
)
