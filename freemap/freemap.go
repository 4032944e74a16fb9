// Package freemap implements the persistent free-space allocator: one
// bit per device sector, backed by a reserved file at sector 0.
//
// Allocation is first-fit over contiguous runs. Every successful
// allocate or release persists the bitmap to its backing file before
// returning; if the persist fails during allocation, the flipped bits
// are rolled back so the in-memory map never gets ahead of the disk.
package freemap

import (
	"errors"
	"io"
	"sync"

	"github.com/mit-pdos/extentfs/bitmap"
	"github.com/mit-pdos/extentfs/common"
	"github.com/mit-pdos/extentfs/file"
	"github.com/mit-pdos/extentfs/inode"
	"github.com/mit-pdos/extentfs/util"
)

// ErrNoSpace means no run of enough consecutive free sectors exists.
var ErrNoSpace = errors.New("freemap: out of free sectors")

type FreeMap struct {
	mu *sync.Mutex // protects bm and f
	bm *bitmap.Bitmap
	f  *file.File // backing file, nil until Create or Open
}

var _ inode.Allocator = (*FreeMap)(nil)

// Init returns a free map for a device of sectors sectors, with the
// free map's and root directory's own sectors premarked allocated.
func Init(sectors uint64) *FreeMap {
	bm := bitmap.New(sectors)
	bm.Mark(common.FreeMapSector)
	bm.Mark(common.RootDirSector)
	return &FreeMap{
		mu: new(sync.Mutex),
		bm: bm,
	}
}

// persist writes the bitmap through the backing file. No-op before the
// backing file exists (during formatting).
func (fm *FreeMap) persist() error {
	if fm.f == nil {
		return nil
	}
	n, err := fm.f.WriteAt(fm.bm.Bytes(), 0)
	if err != nil {
		return err
	}
	if uint64(n) != fm.bm.ByteSize() {
		return io.ErrShortWrite
	}
	return nil
}

// Allocate finds cnt consecutive free sectors, marks them allocated,
// and returns the first. Allocation is all-or-nothing with respect to
// durability: if the bitmap cannot be persisted, the bits are rolled
// back and the allocation fails.
func (fm *FreeMap) Allocate(cnt uint64) (common.Snum, error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	start, ok := fm.bm.ScanAndFlip(cnt)
	if !ok {
		return 0, ErrNoSpace
	}
	if err := fm.persist(); err != nil {
		fm.bm.SetMultiple(start, cnt, false)
		return 0, err
	}
	util.DPrintf(1, "freemap: allocate %d at %d\n", cnt, start)
	return common.Snum(start), nil
}

// Release makes cnt sectors starting at start available again. All of
// them must currently be allocated; releasing a free sector means the
// filesystem is corrupt and panics.
func (fm *FreeMap) Release(start common.Snum, cnt uint64) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if !fm.bm.All(uint64(start), cnt) {
		panic("freemap: release of unallocated sectors")
	}
	fm.bm.SetMultiple(uint64(start), cnt, false)
	util.DPrintf(1, "freemap: release %d at %d\n", cnt, start)
	if err := fm.persist(); err != nil {
		util.DPrintf(1, "freemap: persist after release failed: %v\n", err)
	}
}

// Create makes the reserved free-map file on disk and writes the
// current bitmap to it. Used only while formatting; failures are
// fatal.
func (fm *FreeMap) Create(c *inode.Cache) {
	err := c.Create(common.FreeMapSector, int64(fm.bm.ByteSize()))
	if err != nil {
		panic("freemap: free map creation failed: " + err.Error())
	}
	ip, err := c.Open(common.FreeMapSector)
	if err != nil {
		panic("freemap: can't open free map: " + err.Error())
	}
	fm.mu.Lock()
	fm.f = file.Open(ip)
	err = fm.persist()
	fm.mu.Unlock()
	if err != nil {
		panic("freemap: can't write free map: " + err.Error())
	}
}

// Open loads the persisted bitmap from the reserved file, replacing
// the in-memory state. Failures are fatal.
func (fm *FreeMap) Open(c *inode.Cache) {
	ip, err := c.Open(common.FreeMapSector)
	if err != nil {
		panic("freemap: can't open free map: " + err.Error())
	}
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.f = file.Open(ip)
	n, err := fm.f.ReadAt(fm.bm.Bytes(), 0)
	if err != nil || uint64(n) != fm.bm.ByteSize() {
		panic("freemap: can't read free map")
	}
}

// Close closes the backing file handle.
func (fm *FreeMap) Close() {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.f.Close()
	fm.f = nil
}

// NumFree returns the number of free sectors.
func (fm *FreeMap) NumFree() uint64 {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	return fm.bm.CountClear()
}
