package filesys

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minikern/minikern/disk"
)

func newTestFile(t *testing.T, size int64) (*FileSystem, *OpenFile) {
	d := disk.NewMemDisk(256, nil)
	fs, err := New(d, nil, true)
	require.NoError(t, err)
	require.NoError(t, fs.Create("/f", size))
	f, err := fs.Open("/f")
	require.NoError(t, err)
	return fs, f
}

func TestOpenFileReadWriteAt(t *testing.T) {
	_, f := newTestFile(t, 1000)
	assert.EqualValues(t, 1000, f.Length())

	// a write straddling sector boundaries at an odd offset
	data := bytes.Repeat([]byte("0123456789"), 40) // 400 bytes
	n, err := f.WriteAt(data, 111)
	require.NoError(t, err)
	assert.Equal(t, 400, n)

	out := make([]byte, 400)
	n, err = f.ReadAt(out, 111)
	require.NoError(t, err)
	assert.Equal(t, 400, n)
	assert.Equal(t, data, out)

	// bytes around the write are still zero
	one := make([]byte, 1)
	_, err = f.ReadAt(one, 110)
	require.NoError(t, err)
	assert.Equal(t, byte(0), one[0])
	_, err = f.ReadAt(one, 511)
	require.NoError(t, err)
	assert.Equal(t, byte(0), one[0])
}

func TestOpenFileClampsAtEnd(t *testing.T) {
	_, f := newTestFile(t, 100)

	// reads past the end are clamped and flagged
	buf := make([]byte, 50)
	n, err := f.ReadAt(buf, 80)
	assert.Equal(t, 20, n)
	assert.Equal(t, io.EOF, err)

	// reads at the end are empty
	n, err = f.ReadAt(buf, 100)
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)

	// writes cannot grow the fixed size file
	n, err = f.WriteAt(bytes.Repeat([]byte{1}, 50), 80)
	assert.Equal(t, 20, n)
	assert.Equal(t, io.ErrShortWrite, err)
	n, err = f.WriteAt([]byte{1}, 100)
	assert.Equal(t, 0, n)
	assert.Equal(t, io.ErrShortWrite, err)
}

func TestOpenFileSeekReadWrite(t *testing.T) {
	_, f := newTestFile(t, 64)
	n, err := f.Write([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)

	pos, err := f.Seek(6, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 6, pos)

	buf := make([]byte, 5)
	n, err = f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "world", string(buf))

	pos, err = f.Seek(-5, io.SeekEnd)
	require.NoError(t, err)
	assert.EqualValues(t, 59, pos)
	_, err = f.Seek(0, 42)
	assert.Error(t, err)
}

func TestOpenFileIndependentHandles(t *testing.T) {
	fs, f := newTestFile(t, 128)
	_, err := f.WriteAt([]byte("shared"), 0)
	require.NoError(t, err)

	g, err := fs.Open("/f")
	require.NoError(t, err)
	buf := make([]byte, 6)
	_, err = g.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "shared", string(buf))
}
