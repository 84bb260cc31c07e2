package loader

import "encoding/binary"

// App is one program to pack into a catalog image.
type App struct {
	Name string
	Data []byte
}

// BuildImage packs programs into the catalog's on-disk form. It is
// the build-time half of the catalog: tools/mkapps calls it to produce
// the image that gets embedded into the kernel.
func BuildImage(apps []App) []byte {
	var out []byte
	var word [8]byte

	put := func(v uint64) {
		binary.LittleEndian.PutUint64(word[:], v)
		out = append(out, word[:]...)
	}

	put(uint64(len(apps)))

	off := uint64(0)
	for _, a := range apps {
		put(off)
		off += uint64(len(a.Data))
	}
	put(off)

	for _, a := range apps {
		out = append(out, a.Name...)
		out = append(out, 0)
	}

	for _, a := range apps {
		out = append(out, a.Data...)
	}

	return out
}
