// Package types holds the core value and identifier types shared across
// the storage engine: object id ranges (spec §3.1), the typed value
// variant and data type enum (spec §4.6), and column data addresses.
package types

// ObjectKind names an object id's partition so FirstUser can look up the
// correct boundary (spec §3.1).
type ObjectKind int

const (
	KindTable ObjectKind = iota
	KindColumnSet
	KindColumn
	KindColumnSetColumn
	KindConstraintDef
	KindConstraint
	KindColumnDef
	KindColumnDefConstraint
	KindIndex
	KindIndexColumn
	KindUser
	KindDatabase
)

// firstUserID is the first id in the user range for each object kind,
// per spec §3.1.
var firstUserID = map[ObjectKind]uint64{
	KindTable:               0x10000,
	KindColumnSet:           0x1000000,
	KindColumn:              0x100000,
	KindColumnSetColumn:     0x10000000,
	KindConstraintDef:       0x100000,
	KindConstraint:          0x1000000,
	KindColumnDef:           0x1000000,
	KindColumnDefConstraint: 0x10000000,
	KindIndex:               0x1000000,
	KindIndexColumn:         0x10000000,
	KindUser:                0x1000,
	KindDatabase:            0x1000,
}

// FirstUserID returns the first id in kind's user range.
func FirstUserID(kind ObjectKind) uint64 { return firstUserID[kind] }

// IsSystemID reports whether id falls in kind's system range
// [0, FirstUserID(kind)).
func IsSystemID(kind ObjectKind, id uint64) bool { return id < firstUserID[kind] }

// IDGenerator hands out ids from the system or user range of one object
// kind. It is not itself synchronized; callers serialize access under the
// owning Database's mutex (spec §5 lock order: Instance -> Database ->
// Table -> Column).
type IDGenerator struct {
	kind        ObjectKind
	nextSystem  uint64
	nextUser    uint64
}

// NewIDGenerator creates a generator for kind, resuming the system counter
// at nextSystem and the user counter at nextUser (both are the *next* id
// to hand out, not the last one issued).
func NewIDGenerator(kind ObjectKind, nextSystem, nextUser uint64) *IDGenerator {
	if nextSystem == 0 {
		nextSystem = 1
	}
	if nextUser < firstUserID[kind] {
		nextUser = firstUserID[kind]
	}
	return &IDGenerator{kind: kind, nextSystem: nextSystem, nextUser: nextUser}
}

// Next returns the next id from the system range (system=true) or the
// user range (system=false), per spec §3.1.
func (g *IDGenerator) Next(system bool) uint64 {
	if system {
		id := g.nextSystem
		g.nextSystem++
		return id
	}
	id := g.nextUser
	g.nextUser++
	return id
}

// Peek returns the id Next would return next, without consuming it.
func (g *IDGenerator) Peek(system bool) uint64 {
	if system {
		return g.nextSystem
	}
	return g.nextUser
}
