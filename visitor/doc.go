/*
Package visitor implements a tree-based, self-describing serializer.

A single Visit method serves both directions. A Visitor in write mode copies
values into a tree of named nodes holding typed fields; a Visitor produced by
one of the Load functions is in read mode and the same Visit calls copy the
stored values back.

The tree can be saved in two interchangeable encodings: a versioned
little-endian binary format (magic "FBAF") and a human-readable ASCII format
(magic "FTAX"). Documents written with the legacy magics "RG3D" and "FTAF"
are still accepted.

Objects reachable through several shared references are stored once and
restored as a single object, see VisitShared and VisitSync. Cycles are not
supported.
*/
package visitor
