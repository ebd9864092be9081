package disk

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/minikern/minikern/debug"
	"github.com/minikern/minikern/stats"
)

// diskMagic marks a file as a disk image so we don't scribble over an
// unrelated file the user pointed us at by mistake.
const diskMagic = 0x6b6e6673 // "knfs"

// headerLen is the image file preamble: magic plus sector count.
const headerLen = 8

// FileDisk is a sector device backed by an image file. Sector n lives
// at byte offset headerLen + n*SectorSize. Writes are flushed with
// Sync before returning so a completed operation is on stable storage.
type FileDisk struct {
	f          *os.File
	numSectors int
	st         *stats.Stats
}

// CreateFileDisk makes a fresh zero filled image file with numSectors
// sectors, truncating any existing file at path.
func CreateFileDisk(path string, numSectors int, st *stats.Stats) (*FileDisk, error) {
	if numSectors <= 0 {
		return nil, fmt.Errorf("disk: invalid geometry %d sectors", numSectors)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	hdr := make([]byte, headerLen)
	binary.LittleEndian.PutUint32(hdr[0:4], diskMagic)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(numSectors))
	if _, err := f.Write(hdr); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Truncate(headerLen + int64(numSectors)*SectorSize); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, err
	}
	debug.Logf(debug.Disk, "created image %q with %d sectors", path, numSectors)
	return &FileDisk{f: f, numSectors: numSectors, st: st}, nil
}

// OpenFileDisk opens an existing image file and validates its header.
func OpenFileDisk(path string, st *stats.Stats) (*FileDisk, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0666)
	if err != nil {
		return nil, err
	}
	hdr := make([]byte, headerLen)
	if _, err := io.ReadFull(f, hdr); err != nil {
		f.Close()
		return nil, fmt.Errorf("disk: reading image header: %w", err)
	}
	if magic := binary.LittleEndian.Uint32(hdr[0:4]); magic != diskMagic {
		f.Close()
		return nil, fmt.Errorf("disk: %q is not a disk image (bad magic %#x)", path, magic)
	}
	numSectors := int(binary.LittleEndian.Uint32(hdr[4:8]))
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if want := headerLen + int64(numSectors)*SectorSize; fi.Size() != want {
		f.Close()
		return nil, fmt.Errorf("disk: image %q is %d bytes, want %d", path, fi.Size(), want)
	}
	return &FileDisk{f: f, numSectors: numSectors, st: st}, nil
}

// NumSectors returns the disk geometry.
func (d *FileDisk) NumSectors() int {
	return d.numSectors
}

// ReadSector reads one sector into buf.
func (d *FileDisk) ReadSector(sector int, buf []byte) error {
	if err := checkRequest(d.numSectors, sector, buf); err != nil {
		return err
	}
	debug.Logf(debug.Disk, "reading sector %d", sector)
	if _, err := d.f.ReadAt(buf, headerLen+int64(sector)*SectorSize); err != nil {
		return fmt.Errorf("disk: reading sector %d: %w", sector, err)
	}
	countRead(d.st)
	return nil
}

// WriteSector writes buf to one sector and syncs.
func (d *FileDisk) WriteSector(sector int, buf []byte) error {
	if err := checkRequest(d.numSectors, sector, buf); err != nil {
		return err
	}
	debug.Logf(debug.Disk, "writing sector %d", sector)
	if _, err := d.f.WriteAt(buf, headerLen+int64(sector)*SectorSize); err != nil {
		return fmt.Errorf("disk: writing sector %d: %w", sector, err)
	}
	if err := d.f.Sync(); err != nil {
		return fmt.Errorf("disk: syncing sector %d: %w", sector, err)
	}
	countWrite(d.st)
	return nil
}

// Close closes the image file.
func (d *FileDisk) Close() error {
	return d.f.Close()
}
