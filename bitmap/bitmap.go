// Package bitmap implements a fixed-size bit vector with first-fit
// scanning for runs of clear bits.
package bitmap

import (
	"math/bits"

	"github.com/mit-pdos/extentfs/util"
)

type Bitmap struct {
	cnt  uint64
	data []byte
}

// New returns a bitmap of cnt bits, all clear.
func New(cnt uint64) *Bitmap {
	return &Bitmap{
		cnt:  cnt,
		data: make([]byte, util.RoundUp(cnt, 8)),
	}
}

// Count returns the number of bits in the bitmap.
func (bm *Bitmap) Count() uint64 {
	return bm.cnt
}

// ByteSize returns the size of the bitmap's backing storage, in bytes.
func (bm *Bitmap) ByteSize() uint64 {
	return uint64(len(bm.data))
}

// Bytes exposes the backing storage, for persisting and restoring the
// bitmap. The slice aliases the bitmap's state.
func (bm *Bitmap) Bytes() []byte {
	return bm.data
}

func (bm *Bitmap) check(i uint64) {
	if i >= bm.cnt {
		panic("bitmap: index out of range")
	}
}

// Test reports whether bit i is set.
func (bm *Bitmap) Test(i uint64) bool {
	bm.check(i)
	return bm.data[i/8]&(1<<(i%8)) != 0
}

// Mark sets bit i.
func (bm *Bitmap) Mark(i uint64) {
	bm.check(i)
	bm.data[i/8] = bm.data[i/8] | (1 << (i % 8))
}

// Reset clears bit i.
func (bm *Bitmap) Reset(i uint64) {
	bm.check(i)
	bm.data[i/8] = bm.data[i/8] & ^(byte(1) << (i % 8))
}

// All reports whether every bit in [start, start+cnt) is set.
func (bm *Bitmap) All(start uint64, cnt uint64) bool {
	for i := uint64(0); i < cnt; i++ {
		if !bm.Test(start + i) {
			return false
		}
	}
	return true
}

// None reports whether every bit in [start, start+cnt) is clear.
func (bm *Bitmap) None(start uint64, cnt uint64) bool {
	for i := uint64(0); i < cnt; i++ {
		if bm.Test(start + i) {
			return false
		}
	}
	return true
}

// SetMultiple sets or clears all bits in [start, start+cnt).
func (bm *Bitmap) SetMultiple(start uint64, cnt uint64, value bool) {
	for i := uint64(0); i < cnt; i++ {
		if value {
			bm.Mark(start + i)
		} else {
			bm.Reset(start + i)
		}
	}
}

// ScanAndFlip finds the first run of cnt consecutive clear bits, sets
// them, and returns the run's first index. ok is false if no such run
// exists.
func (bm *Bitmap) ScanAndFlip(cnt uint64) (uint64, bool) {
	if cnt == 0 {
		return 0, true
	}
	if cnt > bm.cnt {
		return 0, false
	}
	for start := uint64(0); start+cnt <= bm.cnt; start++ {
		if bm.None(start, cnt) {
			bm.SetMultiple(start, cnt, true)
			return start, true
		}
	}
	return 0, false
}

// CountClear returns the number of clear bits.
func (bm *Bitmap) CountClear() uint64 {
	var set uint64
	for _, b := range bm.data {
		set += uint64(bits.OnesCount8(b))
	}
	return bm.cnt - set
}
