// Package file implements the per-open file handle: a position cursor
// and a deny-write latch over one shared inode reference.
package file

import (
	"github.com/mit-pdos/extentfs/inode"
)

type File struct {
	ip        *inode.Inode
	pos       int64
	denyWrite bool
}

// Open wraps an inode reference, of which it takes ownership, in a new
// handle with position 0. Returns nil if ip is nil.
func Open(ip *inode.Inode) *File {
	if ip == nil {
		return nil
	}
	return &File{ip: ip}
}

// Reopen returns a second handle for the same inode, with its own
// position cursor.
func (f *File) Reopen() *File {
	return Open(f.ip.Reopen())
}

// Close releases the handle's deny-write hold, if any, and then its
// inode reference. The handle is unusable afterwards.
func (f *File) Close() {
	if f == nil {
		return
	}
	f.AllowWrite()
	f.ip.Close()
	f.ip = nil
}

// Inode returns the inode encapsulated by the handle.
func (f *File) Inode() *inode.Inode {
	return f.ip
}

// Read reads up to len(p) bytes at the current position, advancing it
// by the number of bytes actually read. A short count means end of
// file.
func (f *File) Read(p []byte) (int, error) {
	n, err := f.ip.ReadAt(p, f.pos)
	f.pos += int64(n)
	return n, err
}

// ReadAt reads at an explicit offset; the current position is
// unaffected.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	return f.ip.ReadAt(p, off)
}

// Write writes up to len(p) bytes at the current position, advancing
// it by the number of bytes actually written. A short count means the
// end of the file was reached (growth is not implemented).
func (f *File) Write(p []byte) (int, error) {
	n, err := f.ip.WriteAt(p, f.pos)
	f.pos += int64(n)
	return n, err
}

// WriteAt writes at an explicit offset; the current position is
// unaffected.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	return f.ip.WriteAt(p, off)
}

// DenyWrite prevents writes to the underlying inode until AllowWrite
// is called or the handle is closed. Calling it again on the same
// handle has no additional effect.
func (f *File) DenyWrite() {
	if !f.denyWrite {
		f.denyWrite = true
		f.ip.DenyWrite()
	}
}

// AllowWrite drops this handle's deny-write hold. Writes may still be
// denied by other handles on the same inode.
func (f *File) AllowWrite() {
	if f.denyWrite {
		f.denyWrite = false
		f.ip.AllowWrite()
	}
}

// Length returns the size of the file in bytes.
func (f *File) Length() int64 {
	return f.ip.Length()
}

// Seek sets the current position. pos must be non-negative.
func (f *File) Seek(pos int64) {
	if pos < 0 {
		panic("file: negative seek position")
	}
	f.pos = pos
}

// Tell returns the current position.
func (f *File) Tell() int64 {
	return f.pos
}
