// Package filesys composes the free-space allocator, the inode cache
// and the directory module into a path-level filesystem over one block
// device.
//
// All public operations are serialized by a single coarse lock; the
// only finer-grained synchronization in the system is the allocator's
// own mutex.
package filesys

import (
	"errors"
	"strings"
	"sync"

	"github.com/mit-pdos/extentfs/common"
	"github.com/mit-pdos/extentfs/dir"
	"github.com/mit-pdos/extentfs/disk"
	"github.com/mit-pdos/extentfs/file"
	"github.com/mit-pdos/extentfs/freemap"
	"github.com/mit-pdos/extentfs/inode"
	"github.com/mit-pdos/extentfs/util"
)

var (
	ErrNotFound    = errors.New("filesys: no such file")
	ErrExists      = errors.New("filesys: file exists")
	ErrLinkDepth   = errors.New("filesys: too many levels of symbolic links")
	ErrNameTooLong = errors.New("filesys: path too long")
)

// RootDirEntries is how many entries the root directory is formatted
// with. Directories cannot grow afterwards.
const RootDirEntries uint64 = 16

type FS struct {
	mu *sync.Mutex
	d  disk.Disk
	fm *freemap.FreeMap
	c  *inode.Cache
}

// Mount initializes the filesystem on d, formatting it first if format
// is set, and loads the persisted free map. The device stays owned by
// the caller. Unrecoverable setup failures panic.
func Mount(d disk.Disk, format bool) *FS {
	fm := freemap.Init(d.Size())
	c := inode.MkCache(d, fm)
	fs := &FS{
		mu: new(sync.Mutex),
		d:  d,
		fm: fm,
		c:  c,
	}
	if format {
		fs.doFormat()
	}
	fm.Open(c)
	util.DPrintf(1, "filesys: mounted, %d sectors free\n", fm.NumFree())
	return fs
}

func (fs *FS) doFormat() {
	util.DPrintf(1, "filesys: formatting\n")
	fs.fm.Create(fs.c)
	if err := dir.Create(fs.c, common.RootDirSector, RootDirEntries); err != nil {
		panic("filesys: root directory creation failed: " + err.Error())
	}
	fs.fm.Close()
}

// Unmount flushes the free map's backing file and issues a barrier so
// everything written is durable. The device itself is not closed.
func (fs *FS) Unmount() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.fm.Close()
	return fs.d.Barrier()
}

// FreeSectors returns the number of unallocated sectors.
func (fs *FS) FreeSectors() uint64 {
	return fs.fm.NumFree()
}

// splitPath splits a path into its directory part and leaf name. An
// empty leaf means the path names a directory itself.
func splitPath(path string) (string, string) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

// Create makes a file named path of size bytes, allocating its whole
// extent up front. Fails if the name exists, a path component is
// missing, or there is not enough contiguous space; a failed create
// leaves no sectors allocated.
func (fs *FS) Create(path string, size int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.create(path, size)
}

func (fs *FS) create(path string, size int64) error {
	dirPath, name := splitPath(path)
	d, err := dir.OpenPath(fs.c, dirPath)
	if err != nil {
		return err
	}
	if d == nil {
		return ErrNotFound
	}
	defer d.Close()
	sector, err := fs.fm.Allocate(1)
	if err != nil {
		return err
	}
	if err := fs.c.Create(sector, size); err != nil {
		fs.fm.Release(sector, 1)
		return err
	}
	if err := d.Add(name, sector); err != nil {
		// Take back both the record sector and the data extent: open
		// the orphaned inode, mark it removed and drop the reference.
		ip, operr := fs.c.Open(sector)
		if operr != nil {
			fs.fm.Release(sector, 1)
			return operr
		}
		ip.Remove()
		ip.Close()
		if errors.Is(err, dir.ErrExists) {
			return ErrExists
		}
		return err
	}
	util.DPrintf(1, "filesys: create %q size %d at %d\n", path, size, sector)
	return nil
}

// Open opens the file named path. An empty leaf name (a trailing
// slash, "/", or the empty path) opens the directory itself. A name
// whose inode is marked removed is not found. Symlinks are resolved
// recursively, up to common.SymlinkMax levels.
func (fs *FS) Open(path string) (*file.File, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.open(path, common.SymlinkMax)
}

func (fs *FS) open(path string, depth int) (*file.File, error) {
	dirPath, name := splitPath(path)
	d, err := dir.OpenPath(fs.c, dirPath)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrNotFound
	}
	var ip *inode.Inode
	if name != "" {
		sector, ok := d.Lookup(name)
		d.Close()
		if !ok {
			return nil, ErrNotFound
		}
		ip, err = fs.c.Open(sector)
		if err != nil {
			return nil, err
		}
	} else {
		// empty leaf: the path names the directory itself
		ip = d.Inode().Reopen()
		d.Close()
	}
	if ip.Removed() {
		ip.Close()
		return nil, ErrNotFound
	}
	if ip.Symlink() {
		if depth == 0 {
			ip.Close()
			return nil, ErrLinkDepth
		}
		target, err := readTarget(ip)
		ip.Close()
		if err != nil {
			return nil, err
		}
		return fs.open(target, depth-1)
	}
	return file.Open(ip), nil
}

// readTarget reads a symlink's target path from its content.
func readTarget(ip *inode.Inode) (string, error) {
	buf := make([]byte, common.PathMax)
	n, err := ip.ReadAt(buf, 0)
	if err != nil {
		return "", err
	}
	s := string(buf[:n])
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return "", ErrNotFound
	}
	return s, nil
}

// Remove deletes the file named path: its directory entry disappears
// immediately, while its storage is reclaimed when the last open
// handle closes.
func (fs *FS) Remove(path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	dirPath, name := splitPath(path)
	if name == "" {
		return ErrNotFound
	}
	d, err := dir.OpenPath(fs.c, dirPath)
	if err != nil {
		return err
	}
	if d == nil {
		return ErrNotFound
	}
	defer d.Close()
	err = d.Remove(name)
	if errors.Is(err, dir.ErrNotFound) {
		return ErrNotFound
	}
	if err == nil {
		util.DPrintf(1, "filesys: remove %q\n", path)
	}
	return err
}

// Symlink creates linkpath as a symbolic link to target.
func (fs *FS) Symlink(target string, linkpath string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if uint64(len(target))+1 > common.PathMax {
		return ErrNameTooLong
	}
	if err := fs.create(linkpath, int64(common.PathMax)); err != nil {
		return err
	}
	// The symlink flag is still clear, so this open cannot recurse.
	f, err := fs.open(linkpath, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	buf := make([]byte, common.PathMax)
	copy(buf, target)
	if _, err := f.WriteAt(buf, 0); err != nil {
		return err
	}
	return f.Inode().SetSymlink(true)
}

// ReadDir lists the names in the directory named path.
func (fs *FS) ReadDir(path string) ([]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	d, err := dir.OpenPath(fs.c, path)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, ErrNotFound
	}
	defer d.Close()
	var names []string
	for {
		name, ok := d.ReadDir()
		if !ok {
			return names, nil
		}
		names = append(names, name)
	}
}
