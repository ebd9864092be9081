// Package disk provides the synchronous sector device the file system
// runs on.
//
// A disk is an array of fixed size sectors addressed by sector number.
// Reads and writes are whole sectors and complete before returning;
// there is no request queue and no reordering. Two implementations are
// provided: MemDisk keeps the sectors in memory and FileDisk persists
// them in an image file.
package disk

import (
	"fmt"

	"github.com/minikern/minikern/stats"
)

// SectorSize is the number of bytes in a sector. It is also the unit
// the free map and file headers count in.
const SectorSize = 128

// DefaultNumSectors is the size of a freshly created disk image unless
// the caller asks for another geometry.
const DefaultNumSectors = 1024

// Disk is a synchronous sector device.
type Disk interface {
	// ReadSector reads sector number sector into buf. buf must be
	// exactly SectorSize bytes.
	ReadSector(sector int, buf []byte) error
	// WriteSector writes buf to sector number sector. buf must be
	// exactly SectorSize bytes.
	WriteSector(sector int, buf []byte) error
	// NumSectors returns the disk geometry.
	NumSectors() int
}

func checkRequest(numSectors, sector int, buf []byte) error {
	if sector < 0 || sector >= numSectors {
		return fmt.Errorf("disk: sector %d out of range [0,%d)", sector, numSectors)
	}
	if len(buf) != SectorSize {
		return fmt.Errorf("disk: buffer is %d bytes, want %d", len(buf), SectorSize)
	}
	return nil
}

func countRead(st *stats.Stats) {
	if st != nil {
		st.DiskReads.Inc()
	}
}

func countWrite(st *stats.Stats) {
	if st != nil {
		st.DiskWrites.Inc()
	}
}
