package filesys

import (
	"fmt"
	"io"

	"github.com/minikern/minikern/disk"
)

// OpenFile is a live handle on a file, bound to the sector holding its
// header. It supports positioned reads and writes plus ReadAt/WriteAt,
// translating byte offsets to sectors through the file header.
//
// Handles do not synchronize with each other. Two handles on the same
// file, or one handle used from two threads, need exclusion from the
// caller; the kernel's single accessor discipline provides it.
type OpenFile struct {
	d      disk.Disk
	hdr    *FileHeader
	sector int
	pos    int64
}

// newOpenFile binds a handle to the header stored at sector.
func newOpenFile(d disk.Disk, sector int) (*OpenFile, error) {
	hdr := new(FileHeader)
	if err := hdr.FetchFrom(d, sector); err != nil {
		return nil, err
	}
	return &OpenFile{d: d, hdr: hdr, sector: sector}, nil
}

// Length returns the file's fixed byte length.
func (f *OpenFile) Length() int64 {
	return f.hdr.FileLength()
}

// Header returns the file's header.
func (f *OpenFile) Header() *FileHeader {
	return f.hdr
}

// HeaderSector returns the sector the header was fetched from.
func (f *OpenFile) HeaderSector() int {
	return f.sector
}

// Seek sets the position for the next Read or Write, interpreted per
// the usual io.Seeker whence values.
func (f *OpenFile) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = f.pos + offset
	case io.SeekEnd:
		pos = f.Length() + offset
	default:
		return 0, fmt.Errorf("openfile: invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("openfile: negative position %d", pos)
	}
	f.pos = pos
	return pos, nil
}

// Read reads from the current position, advancing it.
func (f *OpenFile) Read(p []byte) (int, error) {
	n, err := f.ReadAt(p, f.pos)
	f.pos += int64(n)
	return n, err
}

// Write writes at the current position, advancing it.
func (f *OpenFile) Write(p []byte) (int, error) {
	n, err := f.WriteAt(p, f.pos)
	f.pos += int64(n)
	return n, err
}

// ReadAt reads up to len(p) bytes starting at byte offset off. Reads
// past the end of the file are clamped; a read starting at or beyond
// the end returns io.EOF.
func (f *OpenFile) ReadAt(p []byte, off int64) (int, error) {
	length := f.Length()
	if off < 0 {
		return 0, fmt.Errorf("openfile: negative offset %d", off)
	}
	if off >= length {
		return 0, io.EOF
	}
	n := int64(len(p))
	if off+n > length {
		n = length - off
	}
	if n == 0 {
		return 0, nil
	}

	first := off / disk.SectorSize
	last := (off + n - 1) / disk.SectorSize
	buf := make([]byte, disk.SectorSize)
	read := int64(0)
	for sec := first; sec <= last; sec++ {
		sector, err := f.hdr.ByteToSector(f.d, sec*disk.SectorSize)
		if err != nil {
			return int(read), err
		}
		if err := f.d.ReadSector(sector, buf); err != nil {
			return int(read), err
		}
		start := int64(0)
		if sec == first {
			start = off % disk.SectorSize
		}
		end := int64(disk.SectorSize)
		if got := start + (n - read); got < end {
			end = got
		}
		copy(p[read:], buf[start:end])
		read += end - start
	}
	if off+read == length && read < int64(len(p)) {
		return int(read), io.EOF
	}
	return int(read), nil
}

// WriteAt writes up to len(p) bytes starting at byte offset off. Files
// have a fixed size, so writes are clamped at the end of the file; a
// clamped write returns io.ErrShortWrite with the count that fit.
// Partial head and tail sectors are read, patched and written back.
func (f *OpenFile) WriteAt(p []byte, off int64) (int, error) {
	length := f.Length()
	if off < 0 {
		return 0, fmt.Errorf("openfile: negative offset %d", off)
	}
	if off >= length {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.ErrShortWrite
	}
	n := int64(len(p))
	clamped := false
	if off+n > length {
		n = length - off
		clamped = true
	}
	if n == 0 {
		return 0, nil
	}

	first := off / disk.SectorSize
	last := (off + n - 1) / disk.SectorSize
	buf := make([]byte, disk.SectorSize)
	written := int64(0)
	for sec := first; sec <= last; sec++ {
		sector, err := f.hdr.ByteToSector(f.d, sec*disk.SectorSize)
		if err != nil {
			return int(written), err
		}
		start := int64(0)
		if sec == first {
			start = off % disk.SectorSize
		}
		end := int64(disk.SectorSize)
		if got := start + (n - written); got < end {
			end = got
		}
		if start != 0 || end != disk.SectorSize {
			// partial sector: read-modify-write
			if err := f.d.ReadSector(sector, buf); err != nil {
				return int(written), err
			}
		}
		copy(buf[start:end], p[written:])
		if err := f.d.WriteSector(sector, buf); err != nil {
			return int(written), err
		}
		written += end - start
	}
	if clamped {
		return int(written), io.ErrShortWrite
	}
	return int(written), nil
}
