// Package vcf provides VCF file parsing functionality.
package vcf

// PositionReader is the interface for sources of coordinate-sorted positions.
type PositionReader interface {
	// Next reads the next position.
	// Returns nil, nil when there are no more positions.
	Next() (*Position, error)

	// Close closes the reader and releases resources.
	Close() error

	// LineNumber returns the current line number being processed.
	LineNumber() int
}
