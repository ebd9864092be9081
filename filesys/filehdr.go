package filesys

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/minikern/minikern/debug"
	"github.com/minikern/minikern/disk"
)

// NumDirect is the header fan-out: the number of sector pointers that
// fit in one header sector alongside the two length fields.
const NumDirect = (disk.SectorSize - 2*4) / 4

// MaxLevel is the deepest header shape supported.
const MaxLevel = 4

// FileHeader locates a file's data on disk. It is exactly one sector.
//
// A header has one of four shapes, chosen from the byte length at
// allocation time and never changed afterwards. A level 1 header is a
// leaf whose pointers name raw data sectors. A level k header's
// pointers each name a level k-1 subheader, so a single sector sized
// header can address NumDirect^k data sectors. Subheaders live on disk
// like any other sector and are fetched lazily when the byte range
// being translated falls into them.
type FileHeader struct {
	numBytes    int32
	numSectors  int32
	dataSectors [NumDirect]int32
}

// LevelLimit returns the maximum byte length addressable by a header of
// the given shape level.
func LevelLimit(level int) int64 {
	lim := int64(NumDirect) * disk.SectorSize
	for i := 1; i < level; i++ {
		lim *= NumDirect
	}
	return lim
}

// MaxFileSize is the largest file a header can describe.
func MaxFileSize() int64 {
	return LevelLimit(MaxLevel)
}

// Level returns the header's shape, derived from its byte length alone
// so that it round-trips through persistence.
func (h *FileHeader) Level() int {
	size := int64(h.numBytes)
	for level := 1; level <= MaxLevel; level++ {
		if size <= LevelLimit(level) {
			return level
		}
	}
	debug.Assert(false, "file header with unaddressable size %d", size)
	return 0
}

// FileLength returns the file's byte length.
func (h *FileHeader) FileLength() int64 {
	return int64(h.numBytes)
}

// NumSectors returns the number of data sectors the file occupies.
func (h *FileHeader) NumSectors() int {
	return int(h.numSectors)
}

// SectorsNeeded returns the total sector count a file of the given size
// costs: data sectors plus every subheader sector, excluding the top
// level header itself (its sector is the caller's to allocate).
func SectorsNeeded(size int64) int64 {
	if size <= 0 {
		return 0
	}
	level := 1
	for size > LevelLimit(level) {
		level++
	}
	return sectorsNeededLevel(size, level)
}

func sectorsNeededLevel(size int64, level int) int64 {
	if level == 1 {
		return divRoundUp(size, disk.SectorSize)
	}
	childCap := LevelLimit(level - 1)
	var n int64
	for size > 0 {
		child := size
		if child > childCap {
			child = childCap
		}
		n += 1 + sectorsNeededLevel(child, level-1)
		size -= childCap
	}
	return n
}

// Allocate initializes a fresh header for a file of the given size and
// claims its sectors from freeMap. Subheaders are written to disk as
// they are built; the top level header is not, so the caller decides
// when it becomes reachable.
//
// The full sector cost is checked up front, so a failed Allocate has
// claimed nothing and written nothing: rollback is discarding the
// in-memory free map.
func (h *FileHeader) Allocate(freeMap *Bitmap, d disk.Disk, size int64) error {
	if size < 0 {
		return ErrorInvalidPath
	}
	if size > MaxFileSize() {
		return ErrorFileTooBig
	}
	if int64(freeMap.NumClear()) < SectorsNeeded(size) {
		return ErrorOutOfSpace
	}
	return h.allocate(freeMap, d, size)
}

func (h *FileHeader) allocate(freeMap *Bitmap, d disk.Disk, size int64) error {
	h.numBytes = int32(size)
	h.numSectors = int32(divRoundUp(size, disk.SectorSize))
	level := h.Level()
	if level == 1 {
		for i := 0; i < int(h.numSectors); i++ {
			sector := freeMap.FindAndSet()
			// the up-front capacity check makes exhaustion here a
			// broken invariant, not a recoverable error
			debug.Assert(sector >= 0, "free map exhausted after capacity check")
			h.dataSectors[i] = int32(sector)
		}
		return nil
	}
	childCap := LevelLimit(level - 1)
	i := 0
	for remaining := size; remaining > 0; remaining -= childCap {
		sector := freeMap.FindAndSet()
		debug.Assert(sector >= 0, "free map exhausted after capacity check")
		child := remaining
		if child > childCap {
			child = childCap
		}
		sub := new(FileHeader)
		if err := sub.allocate(freeMap, d, child); err != nil {
			return err
		}
		if err := sub.WriteBack(d, sector); err != nil {
			return err
		}
		h.dataSectors[i] = int32(sector)
		i++
	}
	return nil
}

// Deallocate returns every sector of the file to freeMap: data sectors
// and, for indirect shapes, each subheader sector after recursively
// freeing what it covers.
func (h *FileHeader) Deallocate(freeMap *Bitmap, d disk.Disk) error {
	level := h.Level()
	if level == 1 {
		for i := 0; i < int(h.numSectors); i++ {
			sector := int(h.dataSectors[i])
			debug.Assert(freeMap.Test(sector), "freeing sector %d not marked in use", sector)
			freeMap.Clear(sector)
		}
		return nil
	}
	childCap := LevelLimit(level - 1)
	children := int(divRoundUp(int64(h.numBytes), childCap))
	for i := 0; i < children; i++ {
		sector := int(h.dataSectors[i])
		sub := new(FileHeader)
		if err := sub.FetchFrom(d, sector); err != nil {
			return err
		}
		if err := sub.Deallocate(freeMap, d); err != nil {
			return err
		}
		debug.Assert(freeMap.Test(sector), "freeing subheader sector %d not marked in use", sector)
		freeMap.Clear(sector)
	}
	return nil
}

// ByteToSector translates a byte offset within the file to the disk
// sector storing it, fetching subheaders from disk as the offset
// descends through indirect shapes.
func (h *FileHeader) ByteToSector(d disk.Disk, offset int64) (int, error) {
	debug.Assert(offset >= 0 && offset < int64(h.numBytes),
		"offset %d outside file of %d bytes", offset, h.numBytes)
	level := h.Level()
	if level == 1 {
		return int(h.dataSectors[offset/disk.SectorSize]), nil
	}
	childCap := LevelLimit(level - 1)
	which := offset / childCap
	sub := new(FileHeader)
	if err := sub.FetchFrom(d, int(h.dataSectors[which])); err != nil {
		return -1, err
	}
	return sub.ByteToSector(d, offset-which*childCap)
}

// FetchFrom reads the header from its sector.
func (h *FileHeader) FetchFrom(d disk.Disk, sector int) error {
	buf := make([]byte, disk.SectorSize)
	if err := d.ReadSector(sector, buf); err != nil {
		return err
	}
	h.unmarshal(buf)
	return nil
}

// WriteBack writes the header to its sector.
func (h *FileHeader) WriteBack(d disk.Disk, sector int) error {
	buf := make([]byte, disk.SectorSize)
	h.marshal(buf)
	return d.WriteSector(sector, buf)
}

func (h *FileHeader) marshal(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.numBytes))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.numSectors))
	for i, s := range h.dataSectors {
		binary.LittleEndian.PutUint32(buf[8+i*4:12+i*4], uint32(s))
	}
}

func (h *FileHeader) unmarshal(buf []byte) {
	h.numBytes = int32(binary.LittleEndian.Uint32(buf[0:4]))
	h.numSectors = int32(binary.LittleEndian.Uint32(buf[4:8]))
	for i := range h.dataSectors {
		h.dataSectors[i] = int32(binary.LittleEndian.Uint32(buf[8+i*4 : 12+i*4]))
	}
}

// Print dumps the header tree and, for leaves, the file contents in the
// classic printable-or-hex style. For debugging.
func (h *FileHeader) Print(w io.Writer, d disk.Disk) {
	fmt.Fprintf(w, "FileHeader contents.  File size: %d.  Level: %d.  File blocks:\n", h.numBytes, h.Level())
	h.print(w, d)
}

func (h *FileHeader) print(w io.Writer, d disk.Disk) {
	level := h.Level()
	if level > 1 {
		childCap := LevelLimit(level - 1)
		children := int(divRoundUp(int64(h.numBytes), childCap))
		for i := 0; i < children; i++ {
			fmt.Fprintf(w, "subheader at sector %d:\n", h.dataSectors[i])
			sub := new(FileHeader)
			if err := sub.FetchFrom(d, int(h.dataSectors[i])); err != nil {
				fmt.Fprintf(w, "  <unreadable: %v>\n", err)
				continue
			}
			sub.print(w, d)
		}
		return
	}
	for i := 0; i < int(h.numSectors); i++ {
		fmt.Fprintf(w, "%d ", h.dataSectors[i])
	}
	fmt.Fprintf(w, "\nFile contents:\n")
	data := make([]byte, disk.SectorSize)
	written := 0
	for i := 0; i < int(h.numSectors); i++ {
		if err := d.ReadSector(int(h.dataSectors[i]), data); err != nil {
			fmt.Fprintf(w, "<unreadable sector %d: %v>\n", h.dataSectors[i], err)
			continue
		}
		for j := 0; j < disk.SectorSize && written < int(h.numBytes); j++ {
			c := data[j]
			if c >= 0x20 && c <= 0x7e {
				fmt.Fprintf(w, "%c", c)
			} else {
				fmt.Fprintf(w, "\\%x", c)
			}
			written++
		}
		fmt.Fprintln(w)
	}
}

func divRoundUp(n, d int64) int64 {
	return (n + d - 1) / d
}
