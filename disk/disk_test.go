package disk_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mit-pdos/extentfs/disk"
)

func mkSector(b0 byte) disk.Sector {
	s := make(disk.Sector, disk.SectorSize)
	s[0] = b0
	return s
}

func TestMemDiskReadWrite(t *testing.T) {
	d := disk.NewMemDisk(100)
	assert.Equal(t, uint64(100), d.Size())

	err := d.Write(7, mkSector(42))
	assert.NoError(t, err)
	s, err := d.Read(7)
	assert.NoError(t, err)
	assert.Equal(t, byte(42), s[0])

	s, err = d.Read(8)
	assert.NoError(t, err)
	assert.Equal(t, byte(0), s[0], "untouched sectors read as zero")
}

func TestMemDiskBadSizePanics(t *testing.T) {
	d := disk.NewMemDisk(10)
	assert.Panics(t, func() { d.Write(0, make([]byte, 10)) })
	assert.Panics(t, func() { d.Write(10, mkSector(0)) })
	assert.Panics(t, func() { d.Read(10) })
}

func TestFileDiskPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")

	d, err := disk.NewFileDisk(path, 50)
	assert.NoError(t, err)
	assert.Equal(t, uint64(50), d.Size())
	assert.NoError(t, d.Write(3, mkSector(7)))
	assert.NoError(t, d.Barrier())
	assert.NoError(t, d.Close())

	d, err = disk.NewFileDisk(path, 50)
	assert.NoError(t, err)
	s, err := d.Read(3)
	assert.NoError(t, err)
	assert.Equal(t, byte(7), s[0], "content should survive reopen")
	assert.NoError(t, d.Close())
}
