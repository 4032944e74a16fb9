// Package inode manages on-disk inode records and the cache of open
// in-memory inodes.
//
// An inode describes one file: a contiguous extent of data sectors plus
// a byte length, identified by the sector holding its record. Opening
// the same sector twice returns the same shared *Inode; the open count
// decides when the in-memory inode is destroyed, and a removed inode's
// storage is reclaimed only when the last opener closes it.
package inode

import (
	"sync"

	"github.com/mit-pdos/extentfs/common"
	"github.com/mit-pdos/extentfs/disk"
	"github.com/mit-pdos/extentfs/util"
)

// Allocator hands out and reclaims contiguous runs of free sectors.
// Release panics if any sector of the run is not currently allocated.
type Allocator interface {
	Allocate(cnt uint64) (common.Snum, error)
	Release(start common.Snum, cnt uint64)
}

// Cache is the registry of open inodes, so that opening a single
// sector twice returns the same *Inode.
type Cache struct {
	d     disk.Disk
	alloc Allocator
	mu    *sync.Mutex
	open  map[common.Snum]*Inode
}

func MkCache(d disk.Disk, alloc Allocator) *Cache {
	return &Cache{
		d:     d,
		alloc: alloc,
		mu:    new(sync.Mutex),
		open:  make(map[common.Snum]*Inode),
	}
}

// Inode is an open in-memory inode, shared by all openers of its
// sector. The cache owns all live instances; holders have a borrowed
// reference that dies with Close.
type Inode struct {
	cache   *Cache
	sector  common.Snum // sector of the on-disk record
	openCnt int         // number of openers
	removed bool        // deleted, reclaim at last close
	denyCnt int         // 0: writes ok, >0: deny writes
	rec     record
}

// Create initializes an inode of length bytes at sector, allocating a
// contiguous extent for its data and zero-filling it. An unsuccessful
// Create leaves no additional sectors allocated.
func (c *Cache) Create(sector common.Snum, length int64) error {
	if length < 0 {
		panic("inode: negative length")
	}
	sectors := bytesToSectors(length)
	rec := record{length: length}
	if sectors > 0 {
		start, err := c.alloc.Allocate(sectors)
		if err != nil {
			return err
		}
		rec.start = start
	}
	util.DPrintf(1, "inode: create %d len %d start %d\n", sector, length, rec.start)
	err := c.d.Write(uint64(sector), encodeRecord(rec))
	if err == nil {
		zeros := make(disk.Sector, disk.SectorSize)
		for i := uint64(0); i < sectors; i++ {
			err = c.d.Write(uint64(rec.start)+i, zeros)
			if err != nil {
				break
			}
		}
	}
	if err != nil {
		if sectors > 0 {
			c.alloc.Release(rec.start, sectors)
		}
		return err
	}
	return nil
}

// Open returns the shared inode for sector, reading its record from
// disk if it is not already open. A record whose magic number does not
// match is corruption and panics.
func (c *Cache) Open(sector common.Snum) (*Inode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ip, ok := c.open[sector]
	if ok {
		ip.openCnt++
		return ip, nil
	}
	blk, err := c.d.Read(uint64(sector))
	if err != nil {
		return nil, err
	}
	rec, magic := decodeRecord(blk)
	if magic != common.InodeMagic {
		panic("inode: bad magic number")
	}
	ip = &Inode{
		cache:   c,
		sector:  sector,
		openCnt: 1,
		rec:     rec,
	}
	c.open[sector] = ip
	util.DPrintf(2, "inode: open %d len %d\n", sector, rec.length)
	return ip, nil
}

// Reopen takes another reference on an already-open inode.
func (ip *Inode) Reopen() *Inode {
	if ip == nil {
		return nil
	}
	c := ip.cache
	c.mu.Lock()
	ip.openCnt++
	c.mu.Unlock()
	return ip
}

// Close drops one reference. The last close evicts the inode from the
// cache and, if it was removed, returns its record sector and its whole
// data extent to the allocator.
func (ip *Inode) Close() {
	if ip == nil {
		return
	}
	c := ip.cache
	c.mu.Lock()
	if ip.openCnt <= 0 {
		c.mu.Unlock()
		panic("inode: close of closed inode")
	}
	ip.openCnt--
	if ip.openCnt > 0 {
		c.mu.Unlock()
		return
	}
	delete(c.open, ip.sector)
	removed := ip.removed
	c.mu.Unlock()
	if removed {
		util.DPrintf(1, "inode: reclaim %d\n", ip.sector)
		c.alloc.Release(ip.sector, 1)
		sectors := bytesToSectors(ip.rec.length)
		if sectors > 0 {
			c.alloc.Release(ip.rec.start, sectors)
		}
	}
}

// Remove marks the inode to be deleted when the last opener closes it.
// Open handles keep working until then.
func (ip *Inode) Remove() {
	c := ip.cache
	c.mu.Lock()
	ip.removed = true
	c.mu.Unlock()
}

// Removed reports whether deletion has been requested.
func (ip *Inode) Removed() bool {
	c := ip.cache
	c.mu.Lock()
	r := ip.removed
	c.mu.Unlock()
	return r
}

// ReadAt reads up to len(p) bytes starting at byte offset off,
// returning the number of bytes read. A short count means end of file
// and is not an error; an error is only returned for device failures.
func (ip *Inode) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		panic("inode: negative offset")
	}
	var n int
	var bounce disk.Sector
	for n < len(p) {
		// bytes left in file, bytes left in sector, lesser of the two
		sectorOfs := off % int64(disk.SectorSize)
		fileLeft := ip.rec.length - off
		sectorLeft := int64(disk.SectorSize) - sectorOfs
		chunk := util.MinInt64(int64(len(p)-n), util.MinInt64(fileLeft, sectorLeft))
		if chunk <= 0 {
			break
		}
		sector := uint64(ip.rec.start) + uint64(off)/disk.SectorSize
		if sectorOfs == 0 && chunk == int64(disk.SectorSize) {
			// full sector straight into the caller's buffer
			err := ip.cache.d.ReadTo(sector, p[n:n+int(disk.SectorSize)])
			if err != nil {
				return n, err
			}
		} else {
			if bounce == nil {
				bounce = make(disk.Sector, disk.SectorSize)
			}
			err := ip.cache.d.ReadTo(sector, bounce)
			if err != nil {
				return n, err
			}
			copy(p[n:n+int(chunk)], bounce[sectorOfs:])
		}
		n += int(chunk)
		off += chunk
	}
	return n, nil
}

// WriteAt writes up to len(p) bytes starting at byte offset off,
// returning the number of bytes written. Writes never extend the file:
// anything past the inode's length is silently dropped. Returns 0
// immediately while writes are denied.
func (ip *Inode) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		panic("inode: negative offset")
	}
	c := ip.cache
	c.mu.Lock()
	deny := ip.denyCnt > 0
	c.mu.Unlock()
	if deny {
		return 0, nil
	}
	var n int
	var bounce disk.Sector
	for n < len(p) {
		sectorOfs := off % int64(disk.SectorSize)
		fileLeft := ip.rec.length - off
		sectorLeft := int64(disk.SectorSize) - sectorOfs
		chunk := util.MinInt64(int64(len(p)-n), util.MinInt64(fileLeft, sectorLeft))
		if chunk <= 0 {
			break
		}
		sector := uint64(ip.rec.start) + uint64(off)/disk.SectorSize
		if sectorOfs == 0 && chunk == int64(disk.SectorSize) {
			// full sector straight from the caller's buffer
			err := ip.cache.d.Write(sector, p[n:n+int(disk.SectorSize)])
			if err != nil {
				return n, err
			}
		} else {
			if bounce == nil {
				bounce = make(disk.Sector, disk.SectorSize)
			}
			// Read the sector first only if it has bytes outside the
			// write window that must be preserved.
			if sectorOfs > 0 || chunk < sectorLeft {
				err := ip.cache.d.ReadTo(sector, bounce)
				if err != nil {
					return n, err
				}
			} else {
				for i := range bounce {
					bounce[i] = 0
				}
			}
			copy(bounce[sectorOfs:], p[n:n+int(chunk)])
			err := ip.cache.d.Write(sector, bounce)
			if err != nil {
				return n, err
			}
		}
		n += int(chunk)
		off += chunk
	}
	return n, nil
}

// DenyWrite disables writes to the inode.
// May be called at most once per opener.
func (ip *Inode) DenyWrite() {
	c := ip.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	if ip.denyCnt+1 > ip.openCnt {
		panic("inode: deny-write count exceeds open count")
	}
	ip.denyCnt++
}

// AllowWrite re-enables writes to the inode. Must be called once by
// each opener that called DenyWrite, before closing the inode.
func (ip *Inode) AllowWrite() {
	c := ip.cache
	c.mu.Lock()
	defer c.mu.Unlock()
	if ip.denyCnt <= 0 {
		panic("inode: allow-write without deny-write")
	}
	ip.denyCnt--
}

// Symlink reports whether the inode is a symbolic link.
func (ip *Inode) Symlink() bool {
	return ip.rec.symlink
}

// SetSymlink sets the symlink flag and writes the record through to
// disk.
func (ip *Inode) SetSymlink(symlink bool) error {
	ip.rec.symlink = symlink
	return ip.cache.d.Write(uint64(ip.sector), encodeRecord(ip.rec))
}

// Length returns the length of the inode's data, in bytes.
func (ip *Inode) Length() int64 {
	return ip.rec.length
}

// Inumber returns the sector number of the inode's record, which
// serves as its stable identifier.
func (ip *Inode) Inumber() common.Snum {
	return ip.sector
}
