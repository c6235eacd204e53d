// Package persist implements the on-disk format: a single self-describing
// binary file with a fixed little-endian header, one variable-length
// record per node, and the vector arena verbatim.
package persist

import "fmt"

// Magic is the 8-byte file identifier. It is a wire contract, not an
// implementation detail, so it is never renamed regardless of what the
// rest of the format around it looks like.
const Magic = "USEARCH\x00"

// FormatVersion is bumped whenever the header or record layout changes in
// a way that breaks compatibility with files already on disk.
const FormatVersion uint32 = 1

// noEntry mirrors nstore's empty-entry-point sentinel in the file format.
const noEntry = ^uint32(0)

// Header is the fixed-size preamble, in exact on-disk field order.
type Header struct {
	Version        uint32
	Dim            uint32
	ElementType    uint32
	MetricID       uint32
	M              uint32
	M0             uint32
	EfConstruction uint32
	EfSearch       uint32
	Size           uint64
	Capacity       uint64
	EntryID        uint32
	MaxLevel       uint32
	LevelLambda    float64
}

// headerByteLen is the on-disk size of everything between the magic and
// the first node record: 4 u32 pairs + 2 u64 + 2 u32 + 1 f64, after the
// magic's 8 bytes.
const headerByteLen = 4 + 4 + 4 + 4 + 4 + 4 + 4 + 4 + 8 + 8 + 4 + 4 + 8

// IncompatibleError reports a mismatch between the file's fixed identity
// fields (dimension, element type, metric) and what the caller asked to
// load into, or a magic/version that this build doesn't understand.
type IncompatibleError struct {
	Reason string
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("persist: incompatible file: %s", e.Reason)
}

// Logger is the minimal diagnostic sink Load/View need; the façade
// satisfies it with a *zap.SugaredLogger so this package stays free of a
// direct zap dependency, matching pgraph's own Logger interface.
type Logger interface {
	Warnf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Warnf(string, ...interface{}) {}
