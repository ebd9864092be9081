package disk

import (
	"github.com/minikern/minikern/debug"
	"github.com/minikern/minikern/stats"
)

// MemDisk is an in-memory sector device. It is the device of choice for
// tests: cheap to make, trivially snapshotted and compared.
type MemDisk struct {
	sectors []byte
	st      *stats.Stats
}

// NewMemDisk makes a zero filled in-memory disk with numSectors
// sectors. st may be nil.
func NewMemDisk(numSectors int, st *stats.Stats) *MemDisk {
	return &MemDisk{
		sectors: make([]byte, numSectors*SectorSize),
		st:      st,
	}
}

// NumSectors returns the disk geometry.
func (d *MemDisk) NumSectors() int {
	return len(d.sectors) / SectorSize
}

// ReadSector reads one sector into buf.
func (d *MemDisk) ReadSector(sector int, buf []byte) error {
	if err := checkRequest(d.NumSectors(), sector, buf); err != nil {
		return err
	}
	debug.Logf(debug.Disk, "reading sector %d", sector)
	copy(buf, d.sectors[sector*SectorSize:(sector+1)*SectorSize])
	countRead(d.st)
	return nil
}

// WriteSector writes buf to one sector.
func (d *MemDisk) WriteSector(sector int, buf []byte) error {
	if err := checkRequest(d.NumSectors(), sector, buf); err != nil {
		return err
	}
	debug.Logf(debug.Disk, "writing sector %d", sector)
	copy(d.sectors[sector*SectorSize:(sector+1)*SectorSize], buf)
	countWrite(d.st)
	return nil
}

// Snapshot returns a copy of the raw disk contents. Tests use it to
// check that failed operations leave the image untouched.
func (d *MemDisk) Snapshot() []byte {
	out := make([]byte, len(d.sectors))
	copy(out, d.sectors)
	return out
}
