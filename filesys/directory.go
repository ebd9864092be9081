package filesys

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// FileNameMaxLen bounds directory entry names. Longer names are
// truncated at insertion and compared truncated.
const FileNameMaxLen = 9

// NumDirEntries is the fixed capacity of every directory table.
const NumDirEntries = 64

// direntSize is the on-disk size of one directory entry: in-use flag,
// directory flag, header sector, null padded name.
const direntSize = 1 + 1 + 4 + FileNameMaxLen

// DirectoryFileSize is the byte length of the file holding a directory
// table. Fixed at creation; directories cannot grow.
const DirectoryFileSize = direntSize * NumDirEntries

// DirectoryEntry is one slot in a directory table.
type DirectoryEntry struct {
	InUse  bool
	IsDir  bool
	Sector int32
	name   [FileNameMaxLen]byte
}

// Name returns the entry's file name.
func (e *DirectoryEntry) Name() string {
	n := bytes.IndexByte(e.name[:], 0)
	if n < 0 {
		n = FileNameMaxLen
	}
	return string(e.name[:n])
}

// truncateName clips a name to the bounded length all comparisons and
// insertions use.
func truncateName(name string) string {
	if len(name) > FileNameMaxLen {
		return name[:FileNameMaxLen]
	}
	return name
}

// Directory is a fixed capacity table mapping names to the sectors
// holding their file headers, with a flag telling files from
// subdirectories. A directory on disk is an ordinary file whose
// contents are this table.
type Directory struct {
	table []DirectoryEntry
}

// NewDirectory makes an empty directory with the given capacity.
func NewDirectory(size int) *Directory {
	return &Directory{table: make([]DirectoryEntry, size)}
}

// FetchFrom reads the directory table from its backing file.
func (dir *Directory) FetchFrom(f *OpenFile) error {
	buf := make([]byte, len(dir.table)*direntSize)
	n, err := f.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return fmt.Errorf("directory: %w", err)
	}
	if n != len(buf) {
		return fmt.Errorf("directory: short read %d of %d bytes", n, len(buf))
	}
	for i := range dir.table {
		dir.table[i].unmarshal(buf[i*direntSize:])
	}
	return nil
}

// WriteBack flushes the directory table to its backing file.
func (dir *Directory) WriteBack(f *OpenFile) error {
	buf := make([]byte, len(dir.table)*direntSize)
	for i := range dir.table {
		dir.table[i].marshal(buf[i*direntSize:])
	}
	n, err := f.WriteAt(buf, 0)
	if err != nil {
		return fmt.Errorf("directory: %w", err)
	}
	if n != len(buf) {
		return fmt.Errorf("directory: short write %d of %d bytes", n, len(buf))
	}
	return nil
}

func (e *DirectoryEntry) marshal(buf []byte) {
	buf[0] = boolByte(e.InUse)
	buf[1] = boolByte(e.IsDir)
	binary.LittleEndian.PutUint32(buf[2:6], uint32(e.Sector))
	copy(buf[6:6+FileNameMaxLen], e.name[:])
}

func (e *DirectoryEntry) unmarshal(buf []byte) {
	e.InUse = buf[0] != 0
	e.IsDir = buf[1] != 0
	e.Sector = int32(binary.LittleEndian.Uint32(buf[2:6]))
	copy(e.name[:], buf[6:6+FileNameMaxLen])
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// findIndex returns the table slot holding name, or -1.
func (dir *Directory) findIndex(name string) int {
	name = truncateName(name)
	for i := range dir.table {
		if dir.table[i].InUse && dir.table[i].Name() == name {
			return i
		}
	}
	return -1
}

// Find returns the header sector of the named entry, or -1 if the name
// is not in the directory.
func (dir *Directory) Find(name string) int32 {
	if i := dir.findIndex(name); i != -1 {
		return dir.table[i].Sector
	}
	return -1
}

// Add inserts a name into the first free slot. It fails with
// ErrorAlreadyExists on a duplicate name and ErrorDirectoryFull when
// every slot is in use.
func (dir *Directory) Add(name string, sector int32, isDir bool) error {
	if dir.findIndex(name) != -1 {
		return ErrorAlreadyExists
	}
	name = truncateName(name)
	for i := range dir.table {
		if dir.table[i].InUse {
			continue
		}
		e := &dir.table[i]
		e.InUse = true
		e.IsDir = isDir
		e.Sector = sector
		e.name = [FileNameMaxLen]byte{}
		copy(e.name[:], name)
		return nil
	}
	return ErrorDirectoryFull
}

// Remove clears the named entry's in-use flag. It does not free the
// entry's sectors; that is the facade's job.
func (dir *Directory) Remove(name string) error {
	i := dir.findIndex(name)
	if i == -1 {
		return ErrorNotFound
	}
	dir.table[i].InUse = false
	return nil
}

// IsDirectory reports whether the named entry exists and is a
// subdirectory.
func (dir *Directory) IsDirectory(name string) bool {
	i := dir.findIndex(name)
	return i != -1 && dir.table[i].IsDir
}

// Entries returns the in-use entries in table order.
func (dir *Directory) Entries() []DirectoryEntry {
	var out []DirectoryEntry
	for i := range dir.table {
		if dir.table[i].InUse {
			out = append(out, dir.table[i])
		}
	}
	return out
}

// List prints the directory's entries, one per line, marking each as a
// file or a directory.
func (dir *Directory) List(w io.Writer) {
	for i, e := range dir.Entries() {
		kind := 'F'
		if e.IsDir {
			kind = 'D'
		}
		fmt.Fprintf(w, "[%d] %s %c\n", i, e.Name(), kind)
	}
}
