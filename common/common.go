package common

import (
	"github.com/mit-pdos/extentfs/disk"
)

// Snum is a sector number on the filesystem device.
type Snum = uint64

const (
	// SectorSize is the device's I/O granularity, in bytes.
	SectorSize uint64 = disk.SectorSize

	// FreeMapSector holds the inode of the free-space map file.
	FreeMapSector Snum = 0
	// RootDirSector holds the inode of the root directory.
	RootDirSector Snum = 1

	// InodeMagic identifies a valid on-disk inode record ("INOD").
	InodeMagic uint32 = 0x494e4f44

	// NameMax is the longest directory entry name, not counting the
	// terminating NUL stored on disk.
	NameMax uint64 = 14

	// PathMax bounds a symlink target path, including its NUL.
	PathMax uint64 = 128

	// SymlinkMax is the longest chain of symlinks an open will follow.
	SymlinkMax = 8
)
