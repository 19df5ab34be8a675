package vm

import (
	"encoding/binary"
	"os"

	"github.com/pkg/errors"
)

// Image is the assembled program: an 8-byte little-endian entry offset
// followed by the concatenated section payloads (§3, §6). It is treated as
// immutable once loaded into an Instance.
type Image []byte

// Load reads an Image from fileName.
func Load(fileName string) (Image, error) {
	b, err := os.ReadFile(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "load image %q", fileName)
	}
	img := Image(b)
	if len(img) < 8 {
		return nil, errors.Errorf("load image %q: too small for entry header", fileName)
	}
	return img, nil
}

// Save writes the Image to fileName.
func (img Image) Save(fileName string) error {
	if err := os.WriteFile(fileName, img, 0o644); err != nil {
		return errors.Wrapf(err, "save image %q", fileName)
	}
	return nil
}

// EntryOffset decodes the 8-byte little-endian header: the offset within
// program space (i.e. relative to byte 8 of the image) of the first
// instruction to execute.
func (img Image) EntryOffset() (int, error) {
	if len(img) < 8 {
		return 0, errors.New("image too small for entry header")
	}
	off := binary.LittleEndian.Uint64(img[:8])
	if off > uint64(len(img)-8) {
		return 0, errors.Errorf("entry offset %d exceeds program space size %d", off, len(img)-8)
	}
	return int(off), nil
}

// NewImage assembles a header + program-space payload into an Image. The
// assembler's pass 2 (asm/layout.go) and the tests build their images with
// it, so the header encoding lives in one place.
func NewImage(entryOffset int, space []byte) Image {
	img := make(Image, 8+len(space))
	binary.LittleEndian.PutUint64(img[:8], uint64(entryOffset))
	copy(img[8:], space)
	return img
}
