// Package loader is the static application catalog: the programs
// linked into the kernel image, their byte ranges and their names.
// The catalog is built once and never changes.
package loader

import (
	"encoding/binary"

	"rvos-in-go/kernel/hart"
	"rvos-in-go/kernel/kerror"
	"rvos-in-go/kernel/vm"
)

var (
	errBadImage = &kerror.Error{Module: "loader", Message: "malformed application image"}

	// ErrNotFound is the catalog's only miss: an index past the end
	// or a name no program carries.
	ErrNotFound = &kerror.Error{Module: "loader", Message: "no such application"}
)

// Catalog indexes the embedded application image. Layout of the packed
// bytes, all words little-endian:
//
//	count N
//	N+1 offsets into the program blob, offsets[0] = 0
//	N NUL-terminated names
//	the program blob
type Catalog struct {
	offsets []uint64
	names   []string
	blob    []byte
}

// ParseImage validates and indexes a packed application image.
func ParseImage(data []byte) (*Catalog, *kerror.Error) {
	if len(data) < 8 {
		return nil, errBadImage
	}
	n := binary.LittleEndian.Uint64(data)
	pos := uint64(8)

	// n is bounded before the multiply so an absurd count word cannot
	// wrap the arithmetic
	if n == 0 || n >= uint64(len(data))/8 || uint64(len(data)) < pos+(n+1)*8 {
		return nil, errBadImage
	}
	offsets := make([]uint64, n+1)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint64(data[pos:])
		pos += 8
	}

	names := make([]string, n)
	for i := range names {
		start := pos
		for pos < uint64(len(data)) && data[pos] != 0 {
			pos++
		}
		if pos >= uint64(len(data)) || pos == start {
			return nil, errBadImage
		}
		names[i] = string(data[start:pos])
		pos++ // NUL
	}

	blob := data[pos:]
	if offsets[0] != 0 || offsets[n] != uint64(len(blob)) {
		return nil, errBadImage
	}
	for i := uint64(0); i < n; i++ {
		if offsets[i] >= offsets[i+1] {
			return nil, errBadImage
		}
	}

	return &Catalog{offsets: offsets, names: names, blob: blob}, nil
}

// NumApp is the number of embedded programs.
func (c *Catalog) NumApp() int { return len(c.names) }

// AppBounds returns the program's [start, end) byte range within the
// embedded blob.
func (c *Catalog) AppBounds(i int) (uint64, uint64, *kerror.Error) {
	if i < 0 || i >= len(c.names) {
		return 0, 0, ErrNotFound
	}
	return c.offsets[i], c.offsets[i+1], nil
}

func (c *Catalog) AppName(i int) (string, *kerror.Error) {
	if i < 0 || i >= len(c.names) {
		return "", ErrNotFound
	}
	return c.names[i], nil
}

// Lookup finds a program by name. Catalogs hold tens of entries at
// most, so a linear scan is fine.
func (c *Catalog) Lookup(name string) (int, *kerror.Error) {
	for i, n := range c.names {
		if n == name {
			return i, nil
		}
	}
	return 0, ErrNotFound
}

// AppData returns the program's image bytes.
func (c *Catalog) AppData(i int) ([]byte, *kerror.Error) {
	start, end, err := c.AppBounds(i)
	if err != nil {
		return nil, err
	}
	return c.blob[start:end], nil
}

// LoadApp materializes program i into a task address space: image at
// USERBASE plus a user stack behind a guard page.
func (c *Catalog) LoadApp(m *hart.Machine, as *vm.AddressSpace, i int) *kerror.Error {
	data, err := c.AppData(i)
	if err != nil {
		return err
	}
	if err := as.MapProgram(m, data); err != nil {
		return err
	}
	return as.MapUserStack(m)
}
