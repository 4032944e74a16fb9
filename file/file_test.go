package file_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mit-pdos/extentfs/common"
	"github.com/mit-pdos/extentfs/disk"
	"github.com/mit-pdos/extentfs/file"
	"github.com/mit-pdos/extentfs/freemap"
	"github.com/mit-pdos/extentfs/inode"
)

// mkFile builds a handle on a fresh file of length bytes.
func mkFile(t *testing.T, length int64) (*file.File, common.Snum, *inode.Cache) {
	t.Helper()
	d := disk.NewMemDisk(64)
	fm := freemap.Init(64)
	c := inode.MkCache(d, fm)
	sector, err := fm.Allocate(1)
	assert.NoError(t, err)
	assert.NoError(t, c.Create(sector, length))
	ip, err := c.Open(sector)
	assert.NoError(t, err)
	return file.Open(ip), sector, c
}

func TestReadWriteAdvancesCursor(t *testing.T) {
	f, _, _ := mkFile(t, 100)
	defer f.Close()

	n, err := f.Write([]byte("hello"))
	assert.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, int64(5), f.Tell())

	f.Seek(0)
	buf := make([]byte, 5)
	n, err = f.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("hello"), buf)
	assert.Equal(t, int64(5), f.Tell())
}

func TestAtVariantsLeaveCursorAlone(t *testing.T) {
	f, _, _ := mkFile(t, 100)
	defer f.Close()

	n, err := f.WriteAt([]byte("abc"), 10)
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int64(0), f.Tell())

	buf := make([]byte, 3)
	n, err = f.ReadAt(buf, 10)
	assert.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte("abc"), buf)
	assert.Equal(t, int64(0), f.Tell())
}

func TestWriteStopsAtEnd(t *testing.T) {
	f, _, _ := mkFile(t, 100)
	defer f.Close()

	f.Seek(90)
	n, err := f.Write(make([]byte, 50))
	assert.NoError(t, err)
	assert.Equal(t, 10, n, "write is truncated at the file's length")
	assert.Equal(t, int64(100), f.Tell())
	assert.Equal(t, int64(100), f.Length())
}

func TestSeekNegativePanics(t *testing.T) {
	f, _, _ := mkFile(t, 100)
	defer f.Close()
	assert.Panics(t, func() { f.Seek(-1) })
}

func TestReopenIndependentCursors(t *testing.T) {
	f, _, _ := mkFile(t, 100)
	f2 := f.Reopen()

	f.Seek(50)
	assert.Equal(t, int64(0), f2.Tell(), "cursors are per handle")

	f.Close()
	// the shared inode stays alive for the second handle
	n, err := f2.Write([]byte("x"))
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	f2.Close()
}

func TestDenyWriteIdempotentPerHandle(t *testing.T) {
	f, _, _ := mkFile(t, 100)
	f2 := f.Reopen()

	f.DenyWrite()
	f.DenyWrite() // second call is a no-op on the shared counter

	n, err := f2.Write([]byte("x"))
	assert.NoError(t, err)
	assert.Equal(t, 0, n, "other handles observe the deny")

	f.AllowWrite()
	n, _ = f2.Write([]byte("x"))
	assert.Equal(t, 1, n)

	f.AllowWrite() // nothing held, no-op
	f.Close()
	f2.Close()
}

func TestCloseReleasesDeny(t *testing.T) {
	f, _, _ := mkFile(t, 100)
	f2 := f.Reopen()

	f.DenyWrite()
	f.Close() // must drop its hold exactly once

	n, err := f2.Write([]byte("x"))
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
	f2.Close()
}
