// Package pefile toggles the Large Address Aware flag in Windows
// executables. It works on fixed byte offsets of the PE container only and
// deliberately avoids a full PE parser.
package pefile

import (
	"encoding/binary"
	"fmt"
	"os"
)

const (
	// peHeaderPointerOffset is where the DOS header stores the file offset
	// of the PE header.
	peHeaderPointerOffset = 0x3C

	// characteristicsOffset is the offset of the Characteristics field,
	// counted from the end of the 4-byte PE signature.
	characteristicsOffset = 18

	// LargeAddressAware is the IMAGE_FILE_LARGE_ADDRESS_AWARE bit of the
	// Characteristics field.
	LargeAddressAware = 0x0020
)

var (
	dosMagic = []byte("MZ")
	peMagic  = []byte("PE\x00\x00")
)

// SetLargeAddressAware sets the LAA bit in the executable at path. It
// returns true if the bit was already set, in which case the file is not
// written to at all. Both outcomes are success; an error means the file is
// not a recognizable PE executable.
func SetLargeAddressAware(path string) (already bool, err error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, 4)
	if _, err := f.ReadAt(buf[:2], 0); err != nil {
		return false, fmt.Errorf("failed to read DOS header of '%s': %w", path, err)
	}
	if string(buf[:2]) != string(dosMagic) {
		return false, fmt.Errorf("no MZ signature in '%s'", path)
	}

	if _, err := f.ReadAt(buf, peHeaderPointerOffset); err != nil {
		return false, fmt.Errorf("failed to read PE header pointer of '%s': %w", path, err)
	}
	peOffset := int64(binary.LittleEndian.Uint32(buf))

	if _, err := f.ReadAt(buf, peOffset); err != nil {
		return false, fmt.Errorf("failed to read PE header of '%s': %w", path, err)
	}
	if string(buf) != string(peMagic) {
		return false, fmt.Errorf("invalid PE header in '%s'", path)
	}

	charOffset := peOffset + 4 + characteristicsOffset
	if _, err := f.ReadAt(buf[:2], charOffset); err != nil {
		return false, fmt.Errorf("failed to read characteristics of '%s': %w", path, err)
	}
	bits := binary.LittleEndian.Uint16(buf)
	if bits&LargeAddressAware != 0 {
		return true, nil
	}

	binary.LittleEndian.PutUint16(buf, bits|LargeAddressAware)
	if _, err := f.WriteAt(buf[:2], charOffset); err != nil {
		return false, fmt.Errorf("failed to write characteristics of '%s': %w", path, err)
	}
	return false, nil
}
