package disk

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

var _ Disk = (*fileDisk)(nil)

// fileDisk is a disk backed by a host file or block device, accessed
// with pread/pwrite.
type fileDisk struct {
	fd         int
	numSectors uint64
}

func NewFileDisk(path string, numSectors uint64) (Disk, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0666)
	if err != nil {
		return nil, err
	}
	var stat unix.Stat_t
	err = unix.Fstat(fd, &stat)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	if (stat.Mode&unix.S_IFREG) != 0 && uint64(stat.Size) != numSectors*SectorSize {
		err = unix.Ftruncate(fd, int64(numSectors*SectorSize))
		if err != nil {
			unix.Close(fd)
			return nil, err
		}
	}
	return &fileDisk{fd: fd, numSectors: numSectors}, nil
}

func (d *fileDisk) ReadTo(a uint64, buf Sector) error {
	if uint64(len(buf)) != SectorSize {
		panic("buffer is not sector-sized")
	}
	if a >= d.numSectors {
		panic(fmt.Errorf("out-of-bounds read at %v", a))
	}
	_, err := unix.Pread(d.fd, buf, int64(a*SectorSize))
	return err
}

func (d *fileDisk) Read(a uint64) (Sector, error) {
	buf := make([]byte, SectorSize)
	err := d.ReadTo(a, buf)
	return buf, err
}

func (d *fileDisk) Write(a uint64, v Sector) error {
	if uint64(len(v)) != SectorSize {
		panic(fmt.Errorf("v is not sector-sized (%d bytes)", len(v)))
	}
	if a >= d.numSectors {
		panic(fmt.Errorf("out-of-bounds write at %v", a))
	}
	_, err := unix.Pwrite(d.fd, v, int64(a*SectorSize))
	return err
}

func (d *fileDisk) Size() uint64 {
	return d.numSectors
}

func (d *fileDisk) Barrier() error {
	// NOTE: on macOS, this flushes to the drive but doesn't actually
	// issue a disk barrier; the correct replacement is an fcntl syscall
	// with cmd F_FULLFSYNC.
	return unix.Fsync(d.fd)
}

func (d *fileDisk) Close() error {
	return unix.Close(d.fd)
}

var _ Disk = (*memDisk)(nil)

// memDisk keeps all sectors in memory.
type memDisk struct {
	l       *sync.RWMutex
	sectors [][SectorSize]byte
}

func NewMemDisk(numSectors uint64) Disk {
	sectors := make([][SectorSize]byte, numSectors)
	return &memDisk{l: new(sync.RWMutex), sectors: sectors}
}

func (d *memDisk) ReadTo(a uint64, buf Sector) error {
	if uint64(len(buf)) != SectorSize {
		panic("buffer is not sector-sized")
	}
	d.l.RLock()
	defer d.l.RUnlock()
	if a >= uint64(len(d.sectors)) {
		panic(fmt.Errorf("out-of-bounds read at %v", a))
	}
	copy(buf, d.sectors[a][:])
	return nil
}

func (d *memDisk) Read(a uint64) (Sector, error) {
	buf := make(Sector, SectorSize)
	err := d.ReadTo(a, buf)
	return buf, err
}

func (d *memDisk) Write(a uint64, v Sector) error {
	if uint64(len(v)) != SectorSize {
		panic(fmt.Errorf("v is not sector-sized (%d bytes)", len(v)))
	}
	d.l.Lock()
	defer d.l.Unlock()
	if a >= uint64(len(d.sectors)) {
		panic(fmt.Errorf("out-of-bounds write at %v", a))
	}
	copy(d.sectors[a][:], v)
	return nil
}

func (d *memDisk) Size() uint64 {
	// this never changes so we assume it's safe to run lock-free
	return uint64(len(d.sectors))
}

func (d *memDisk) Barrier() error { return nil }

func (d *memDisk) Close() error { return nil }
