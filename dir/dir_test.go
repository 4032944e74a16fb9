package dir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mit-pdos/extentfs/common"
	"github.com/mit-pdos/extentfs/dir"
	"github.com/mit-pdos/extentfs/disk"
	"github.com/mit-pdos/extentfs/freemap"
	"github.com/mit-pdos/extentfs/inode"
)

// mkDir builds a directory of entryCnt entries on a fresh disk.
func mkDir(t *testing.T, entryCnt uint64) (*dir.Dir, *inode.Cache, *freemap.FreeMap) {
	t.Helper()
	d := disk.NewMemDisk(128)
	fm := freemap.Init(128)
	c := inode.MkCache(d, fm)
	sector, err := fm.Allocate(1)
	assert.NoError(t, err)
	assert.NoError(t, dir.Create(c, sector, entryCnt))
	ip, err := c.Open(sector)
	assert.NoError(t, err)
	return dir.Open(c, ip), c, fm
}

// mkInode creates an empty inode for a directory entry to refer to.
func mkInode(t *testing.T, c *inode.Cache, fm *freemap.FreeMap) common.Snum {
	t.Helper()
	sector, err := fm.Allocate(1)
	assert.NoError(t, err)
	assert.NoError(t, c.Create(sector, 0))
	return sector
}

func TestAddLookup(t *testing.T) {
	d, c, fm := mkDir(t, 8)
	defer d.Close()

	_, ok := d.Lookup("a.txt")
	assert.False(t, ok)

	sector := mkInode(t, c, fm)
	assert.NoError(t, d.Add("a.txt", sector))

	got, ok := d.Lookup("a.txt")
	assert.True(t, ok)
	assert.Equal(t, sector, got)
}

func TestAddDuplicate(t *testing.T) {
	d, c, fm := mkDir(t, 8)
	defer d.Close()

	sector := mkInode(t, c, fm)
	assert.NoError(t, d.Add("a.txt", sector))
	assert.Equal(t, dir.ErrExists, d.Add("a.txt", mkInode(t, c, fm)))
}

func TestAddBadName(t *testing.T) {
	d, _, _ := mkDir(t, 8)
	defer d.Close()

	assert.Equal(t, dir.ErrBadName, d.Add("", 5))
	assert.Equal(t, dir.ErrBadName, d.Add("name-that-is-too-long", 5))
}

func TestDirFull(t *testing.T) {
	d, c, fm := mkDir(t, 2)
	defer d.Close()

	assert.NoError(t, d.Add("a", mkInode(t, c, fm)))
	assert.NoError(t, d.Add("b", mkInode(t, c, fm)))
	assert.Equal(t, dir.ErrDirFull, d.Add("c", mkInode(t, c, fm)),
		"directories cannot grow")
}

func TestRemoveAndSlotReuse(t *testing.T) {
	d, c, fm := mkDir(t, 2)
	defer d.Close()

	assert.NoError(t, d.Add("a", mkInode(t, c, fm)))
	assert.NoError(t, d.Add("b", mkInode(t, c, fm)))

	free := fm.NumFree()
	assert.NoError(t, d.Remove("a"))
	_, ok := d.Lookup("a")
	assert.False(t, ok)
	assert.Equal(t, free+1, fm.NumFree(),
		"removing with no open handles reclaims the inode at once")

	// the freed slot is reused, so the directory is not full
	assert.NoError(t, d.Add("c", mkInode(t, c, fm)))
	_, ok = d.Lookup("c")
	assert.True(t, ok)

	assert.Equal(t, dir.ErrNotFound, d.Remove("a"))
}

func TestReadDir(t *testing.T) {
	d, c, fm := mkDir(t, 8)
	defer d.Close()

	assert.NoError(t, d.Add("a", mkInode(t, c, fm)))
	assert.NoError(t, d.Add("b", mkInode(t, c, fm)))
	assert.NoError(t, d.Add("c", mkInode(t, c, fm)))
	assert.NoError(t, d.Remove("b"))

	var names []string
	for {
		name, ok := d.ReadDir()
		if !ok {
			break
		}
		names = append(names, name)
	}
	assert.Equal(t, []string{"a", "c"}, names, "removed entries are skipped")
}

func TestOpenPath(t *testing.T) {
	dsk := disk.NewMemDisk(128)
	fm := freemap.Init(128)
	c := inode.MkCache(dsk, fm)
	assert.NoError(t, dir.Create(c, common.RootDirSector, 8))

	// nest a subdirectory with one file under the root
	subSector, err := fm.Allocate(1)
	assert.NoError(t, err)
	assert.NoError(t, dir.Create(c, subSector, 4))
	root, err := dir.OpenRoot(c)
	assert.NoError(t, err)
	assert.NoError(t, root.Add("sub", subSector))
	root.Close()

	fileSector := mkInode(t, c, fm)
	sub, err := dir.OpenPath(c, "sub")
	assert.NoError(t, err)
	assert.NotNil(t, sub)
	assert.Equal(t, subSector, sub.Inode().Inumber())
	assert.NoError(t, sub.Add("f", fileSector))
	sub.Close()

	nested, err := dir.OpenPath(c, "/sub/")
	assert.NoError(t, err)
	assert.NotNil(t, nested, "empty components are skipped")
	got, ok := nested.Lookup("f")
	assert.True(t, ok)
	assert.Equal(t, fileSector, got)
	nested.Close()

	missing, err := dir.OpenPath(c, "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}
