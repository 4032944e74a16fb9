package inode

import (
	"github.com/tchajed/marshal"

	"github.com/mit-pdos/extentfs/common"
	"github.com/mit-pdos/extentfs/disk"
	"github.com/mit-pdos/extentfs/util"
)

// record is the on-disk inode, exactly one sector long:
//
//	[start: 4][length: signed 4][magic: 4][symlink: 1][pad to sector]
type record struct {
	start   common.Snum // first data sector of the extent
	length  int64       // file size in bytes
	symlink bool
}

// bytesToSectors returns the number of sectors occupied by length bytes
// of data.
func bytesToSectors(length int64) uint64 {
	return util.RoundUp(uint64(length), disk.SectorSize)
}

func encodeRecord(r record) disk.Sector {
	enc := marshal.NewEnc(disk.SectorSize)
	enc.PutInt32(uint32(r.start))
	enc.PutInt32(uint32(r.length))
	enc.PutInt32(common.InodeMagic)
	var sym byte
	if r.symlink {
		sym = 1
	}
	enc.PutBytes([]byte{sym})
	return enc.Finish()
}

func decodeRecord(blk disk.Sector) (record, uint32) {
	dec := marshal.NewDec(blk)
	start := dec.GetInt32()
	length := int32(dec.GetInt32())
	magic := dec.GetInt32()
	sym := dec.GetBytes(1)
	r := record{
		start:   common.Snum(start),
		length:  int64(length),
		symlink: sym[0] != 0,
	}
	return r, magic
}
