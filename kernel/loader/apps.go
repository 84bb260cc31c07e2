package loader

import (
	_ "embed"

	"rvos-in-go/kernel/kerror"
)

// appsImage is produced by tools/mkapps from the programs under
// user/bin and linked straight into the kernel, the moral equivalent
// of link_app.S.
//
//go:embed apps.bin
var appsImage []byte

// Default returns the catalog of programs embedded at build time.
func Default() (*Catalog, *kerror.Error) {
	return ParseImage(appsImage)
}
