package filesys

import (
	"fmt"
	"io"

	"github.com/minikern/minikern/debug"
)

// Bitmap tracks which disk sectors are free. Bit i set means sector i
// is allocated. The map persists as an ordinary file whose header lives
// at the well known free map sector, so it survives across runs like
// everything else on the disk.
type Bitmap struct {
	numBits int
	bits    []byte
}

// NewBitmap makes a bitmap of numBits clear bits.
func NewBitmap(numBits int) *Bitmap {
	return &Bitmap{
		numBits: numBits,
		bits:    make([]byte, bitmapBytes(numBits)),
	}
}

// bitmapBytes is the serialized size of a bitmap over numBits bits.
func bitmapBytes(numBits int) int {
	return (numBits + 7) / 8
}

// NewBitmapFromFile reads a previously persisted bitmap back in.
func NewBitmapFromFile(f *OpenFile, numBits int) (*Bitmap, error) {
	b := NewBitmap(numBits)
	if err := b.FetchFrom(f); err != nil {
		return nil, err
	}
	return b, nil
}

// Mark sets bit i.
func (b *Bitmap) Mark(i int) {
	debug.Assert(i >= 0 && i < b.numBits, "bitmap: mark %d out of range", i)
	b.bits[i/8] |= 1 << (i % 8)
}

// Clear clears bit i.
func (b *Bitmap) Clear(i int) {
	debug.Assert(i >= 0 && i < b.numBits, "bitmap: clear %d out of range", i)
	b.bits[i/8] &^= 1 << (i % 8)
}

// Test reports whether bit i is set.
func (b *Bitmap) Test(i int) bool {
	debug.Assert(i >= 0 && i < b.numBits, "bitmap: test %d out of range", i)
	return b.bits[i/8]&(1<<(i%8)) != 0
}

// FindAndSet returns the lowest clear bit after setting it, or -1 if
// every bit is set.
func (b *Bitmap) FindAndSet() int {
	for i := 0; i < b.numBits; i++ {
		if b.bits[i/8]&(1<<(i%8)) == 0 {
			b.Mark(i)
			return i
		}
	}
	return -1
}

// NumClear returns the number of clear bits.
func (b *Bitmap) NumClear() int {
	n := 0
	for i := 0; i < b.numBits; i++ {
		if !b.Test(i) {
			n++
		}
	}
	return n
}

// NumBits returns the size of the bitmap.
func (b *Bitmap) NumBits() int {
	return b.numBits
}

// FetchFrom reads the bitmap contents from its backing file.
func (b *Bitmap) FetchFrom(f *OpenFile) error {
	n, err := f.ReadAt(b.bits, 0)
	if err != nil && err != io.EOF {
		return fmt.Errorf("free map: %w", err)
	}
	if n != len(b.bits) {
		return fmt.Errorf("free map: short read %d of %d bytes", n, len(b.bits))
	}
	return nil
}

// WriteBack flushes the bitmap contents to its backing file.
func (b *Bitmap) WriteBack(f *OpenFile) error {
	n, err := f.WriteAt(b.bits, 0)
	if err != nil {
		return fmt.Errorf("free map: %w", err)
	}
	if n != len(b.bits) {
		return fmt.Errorf("free map: short write %d of %d bytes", n, len(b.bits))
	}
	return nil
}

// Print dumps the set bits for debugging.
func (b *Bitmap) Print(w io.Writer) {
	fmt.Fprintf(w, "Bitmap set bits:")
	for i := 0; i < b.numBits; i++ {
		if b.Test(i) {
			fmt.Fprintf(w, " %d", i)
		}
	}
	fmt.Fprintln(w)
}
