package security

import "time"

// Limits bounds resource consumption while processing untrusted files.
// A zero value for any field means unlimited; prefer DefaultLimits.
type Limits struct {
	// MaxUploadSize caps the size of a file accepted for scanning.
	MaxUploadSize int64

	// MaxObjectCount caps the number of indirect objects loaded.
	MaxObjectCount int

	// MaxStringLength caps a single string object's length in bytes.
	MaxStringLength int

	// MaxNestingDepth caps array/dict nesting while parsing.
	MaxNestingDepth int

	// MaxStreamLength caps a single stream's raw length.
	MaxStreamLength int64

	// MaxDecompressedSize caps a stream's decoded size.
	MaxDecompressedSize int64

	// MaxXRefDepth caps the /Prev chain while resolving cross references.
	MaxXRefDepth int

	// MaxScanTime bounds a whole scan.
	MaxScanTime time.Duration
}

// DefaultLimits returns limits sized for typical documents while
// rejecting decompression bombs and deeply recursive structures.
func DefaultLimits() Limits {
	return Limits{
		MaxUploadSize:       256 << 20, // 256 MiB
		MaxObjectCount:      500_000,
		MaxStringLength:     16 << 20,
		MaxNestingDepth:     100,
		MaxStreamLength:     128 << 20,
		MaxDecompressedSize: 512 << 20,
		MaxXRefDepth:        50,
		MaxScanTime:         2 * time.Minute,
	}
}
