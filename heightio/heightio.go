// Package heightio stores square heightmaps in a small raw binary format:
// the magic "HGT1", the side length as a little-endian uint32, then
// size*size little-endian float32 heights in row-major order.
package heightio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path"

	"go.uber.org/multierr"
	billy "gopkg.in/src-d/go-billy.v4"
)

var magic = [4]byte{'H', 'G', 'T', '1'}

// MaxSize bounds the side length accepted by Decode.
const MaxSize = 1 << 14

var (
	ErrBadMagic  = errors.New("heightio: not a heightmap file")
	ErrTruncated = errors.New("heightio: truncated heightmap")
	ErrBadSize   = errors.New("heightio: bad heightmap size")
)

// Encode writes heights, which must hold size*size values.
func Encode(w io.Writer, size int, heights []float32) error {
	if size < 1 || size > MaxSize {
		return fmt.Errorf("%w: %d", ErrBadSize, size)
	}
	if len(heights) != size*size {
		return fmt.Errorf("%w: %d values for size %d", ErrBadSize, len(heights), size)
	}
	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(size)); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, heights)
}

// Decode reads one heightmap.
func Decode(r io.Reader) (int, []float32, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return 0, nil, truncated(err)
	}
	if head != magic {
		return 0, nil, ErrBadMagic
	}
	var size uint32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return 0, nil, truncated(err)
	}
	if size < 1 || size > MaxSize {
		return 0, nil, fmt.Errorf("%w: %d", ErrBadSize, size)
	}
	heights := make([]float32, int(size)*int(size))
	if err := binary.Read(r, binary.LittleEndian, heights); err != nil {
		return 0, nil, truncated(err)
	}
	return int(size), heights, nil
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrTruncated
	}
	return err
}

// Write stores the heightmap at name. It writes to a temporary file first
// and renames it into place, so readers never see a partial file.
func Write(fs billy.Filesystem, name string, size int, heights []float32) error {
	var buf bytes.Buffer
	if err := Encode(&buf, size, heights); err != nil {
		return err
	}

	dir := path.Dir(name)
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return err
	}
	temp, err := fs.TempFile(dir, path.Base(name))
	if err != nil {
		return err
	}
	if _, err := temp.Write(buf.Bytes()); err != nil {
		err = multierr.Append(err, temp.Close())
		return multierr.Append(err, fs.Remove(temp.Name()))
	}
	if err := temp.Close(); err != nil {
		return multierr.Append(err, fs.Remove(temp.Name()))
	}
	return fs.Rename(temp.Name(), name)
}

// Read loads the heightmap stored at name.
func Read(fs billy.Filesystem, name string) (size int, heights []float32, err error) {
	file, err := fs.Open(name)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		err = multierr.Append(err, file.Close())
	}()
	size, heights, err = Decode(file)
	if err != nil {
		return 0, nil, fmt.Errorf("read %s: %w", name, err)
	}
	return size, heights, nil
}
