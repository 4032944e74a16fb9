package dir

import (
	"strings"

	"github.com/tchajed/marshal"

	"github.com/mit-pdos/extentfs/common"
)

// entrySize is the fixed on-disk entry size:
//
//	[sector: 4][name: NameMax+1, NUL-padded][in-use: 1]
const entrySize uint64 = 4 + (common.NameMax + 1) + 1

type entry struct {
	sector common.Snum
	name   string
	inUse  bool
}

func encodeEntry(e entry) []byte {
	enc := marshal.NewEnc(entrySize)
	enc.PutInt32(uint32(e.sector))
	name := make([]byte, common.NameMax+1)
	copy(name, e.name)
	enc.PutBytes(name)
	var inUse byte
	if e.inUse {
		inUse = 1
	}
	enc.PutBytes([]byte{inUse})
	return enc.Finish()
}

func decodeEntry(b []byte) entry {
	dec := marshal.NewDec(b)
	sector := dec.GetInt32()
	name := dec.GetBytes(common.NameMax + 1)
	inUse := dec.GetBytes(1)
	s := string(name)
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return entry{
		sector: common.Snum(sector),
		name:   s,
		inUse:  inUse[0] != 0,
	}
}

// readEntry reads the entry at byte offset ofs. ok is false at the end
// of the directory or on a device error.
func (d *Dir) readEntry(ofs int64) (entry, bool) {
	buf := make([]byte, entrySize)
	n, err := d.ip.ReadAt(buf, ofs)
	if err != nil || uint64(n) != entrySize {
		return entry{}, false
	}
	return decodeEntry(buf), true
}

// writeEntry writes e into the slot at byte offset ofs. A short write
// means the directory is full.
func (d *Dir) writeEntry(e entry, ofs int64) error {
	n, err := d.ip.WriteAt(encodeEntry(e), ofs)
	if err != nil {
		return err
	}
	if uint64(n) != entrySize {
		return ErrDirFull
	}
	return nil
}
