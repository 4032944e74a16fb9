// Package dir implements flat directories mapping names to inode
// sectors.
//
// A directory is an ordinary fixed-size inode holding an array of
// 20-byte entries. Entries are never compacted; removing a name just
// clears its in-use flag so the slot can be reused. Because files
// cannot grow, a directory holds at most the number of entries it was
// created with.
package dir

import (
	"errors"
	"strings"

	"github.com/mit-pdos/extentfs/common"
	"github.com/mit-pdos/extentfs/inode"
)

var (
	ErrExists   = errors.New("dir: name already exists")
	ErrNotFound = errors.New("dir: no such name")
	ErrDirFull  = errors.New("dir: directory is full")
	ErrBadName  = errors.New("dir: invalid name")
)

// Dir is an open directory: an inode reference plus a read cursor for
// ReadDir.
type Dir struct {
	c   *inode.Cache
	ip  *inode.Inode
	pos int64
}

// Create initializes a directory of entryCnt entries at sector.
func Create(c *inode.Cache, sector common.Snum, entryCnt uint64) error {
	return c.Create(sector, int64(entryCnt*entrySize))
}

// Open wraps an inode reference, of which it takes ownership, in a
// directory. Returns nil if ip is nil.
func Open(c *inode.Cache, ip *inode.Inode) *Dir {
	if ip == nil {
		return nil
	}
	return &Dir{c: c, ip: ip}
}

// OpenRoot opens the root directory.
func OpenRoot(c *inode.Cache) (*Dir, error) {
	ip, err := c.Open(common.RootDirSector)
	if err != nil {
		return nil, err
	}
	return Open(c, ip), nil
}

// OpenPath opens the directory named by path, walking each component
// from the root. The empty path and "/" name the root itself. Returns
// nil if any component is missing or removed.
func OpenPath(c *inode.Cache, path string) (*Dir, error) {
	d, err := OpenRoot(c)
	if err != nil {
		return nil, err
	}
	for _, name := range strings.Split(path, "/") {
		if name == "" {
			continue
		}
		sector, ok := d.Lookup(name)
		d.Close()
		if !ok {
			return nil, nil
		}
		ip, err := c.Open(sector)
		if err != nil {
			return nil, err
		}
		if ip.Removed() {
			ip.Close()
			return nil, nil
		}
		d = Open(c, ip)
	}
	return d, nil
}

// Close releases the directory and its inode reference.
func (d *Dir) Close() {
	if d == nil {
		return
	}
	d.ip.Close()
	d.ip = nil
}

// Inode returns the inode encapsulated by the directory.
func (d *Dir) Inode() *inode.Inode {
	return d.ip
}

// lookup scans for an in-use entry named name, returning it and the
// byte offset of its slot.
func (d *Dir) lookup(name string) (entry, int64, bool) {
	for ofs := int64(0); ; ofs += int64(entrySize) {
		e, ok := d.readEntry(ofs)
		if !ok {
			return entry{}, 0, false
		}
		if e.inUse && e.name == name {
			return e, ofs, true
		}
	}
}

// Lookup returns the inode sector recorded for name.
func (d *Dir) Lookup(name string) (common.Snum, bool) {
	e, _, ok := d.lookup(name)
	if !ok {
		return 0, false
	}
	return e.sector, true
}

// Add records name as referring to the inode at sector. Fails if name
// is already present or no entry slot is free.
func (d *Dir) Add(name string, sector common.Snum) error {
	if name == "" || uint64(len(name)) > common.NameMax {
		return ErrBadName
	}
	if _, _, ok := d.lookup(name); ok {
		return ErrExists
	}
	// First free slot, or end of the directory if none is. A write at
	// the end comes back short since the inode cannot grow, which is
	// how a full directory fails.
	var ofs int64
	for {
		e, ok := d.readEntry(ofs)
		if !ok || !e.inUse {
			break
		}
		ofs += int64(entrySize)
	}
	return d.writeEntry(entry{sector: sector, name: name, inUse: true}, ofs)
}

// Remove erases name's entry and marks its inode removed, so its
// storage is reclaimed once the last opener closes it.
func (d *Dir) Remove(name string) error {
	e, ofs, ok := d.lookup(name)
	if !ok {
		return ErrNotFound
	}
	ip, err := d.c.Open(e.sector)
	if err != nil {
		return err
	}
	e.inUse = false
	err = d.writeEntry(e, ofs)
	if err != nil {
		ip.Close()
		return err
	}
	ip.Remove()
	ip.Close()
	return nil
}

// ReadDir returns the next in-use entry name, advancing the
// directory's cursor. ok is false at the end of the directory.
func (d *Dir) ReadDir() (string, bool) {
	for {
		e, ok := d.readEntry(d.pos)
		if !ok {
			return "", false
		}
		d.pos += int64(entrySize)
		if e.inUse {
			return e.name, true
		}
	}
}
