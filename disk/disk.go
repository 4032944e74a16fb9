// Package disk provides access to a logical sector-addressed disk.
package disk

// Sector is a SectorSize-byte buffer
type Sector = []byte

const SectorSize uint64 = 512

// Disk provides synchronous access to fixed-size sectors by index.
type Disk interface {
	// Read reads the disk sector at address a.
	//
	// Expects a < Size().
	Read(a uint64) (Sector, error)

	// ReadTo reads the disk sector at a and stores the result in b.
	//
	// Expects a < Size().
	ReadTo(a uint64, b Sector) error

	// Write updates the disk sector at address a.
	//
	// Expects a < Size().
	Write(a uint64, v Sector) error

	// Size reports how big the disk is, in sectors. The size is fixed
	// at creation.
	Size() uint64

	// Barrier ensures data is persisted.
	//
	// When it returns, all outstanding writes are guaranteed to be
	// durably on disk.
	Barrier() error

	// Close releases any resources used by the disk and makes it
	// unusable.
	Close() error
}
