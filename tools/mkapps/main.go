// mkapps packs the pre-built user programs into the catalog image the
// kernel embeds. Run it whenever user/bin changes:
//
//	go run ./tools/mkapps -o kernel/loader/apps.bin user/bin
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rvos-in-go/kernel/loader"
)

func main() {
	out := flag.String("o", "kernel/loader/apps.bin", "output image path")
	flag.Parse()

	dir := "user/bin"
	if flag.NArg() > 0 {
		dir = flag.Arg(0)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mkapps:", err)
		os.Exit(1)
	}

	var apps []loader.App
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".bin") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			fmt.Fprintln(os.Stderr, "mkapps:", err)
			os.Exit(1)
		}
		apps = append(apps, loader.App{
			Name: strings.TrimSuffix(e.Name(), ".bin"),
			Data: data,
		})
	}
	if len(apps) == 0 {
		fmt.Fprintln(os.Stderr, "mkapps: no programs under", dir)
		os.Exit(1)
	}

	sort.Slice(apps, func(i, j int) bool { return apps[i].Name < apps[j].Name })

	if err := os.WriteFile(*out, loader.BuildImage(apps), 0644); err != nil {
		fmt.Fprintln(os.Stderr, "mkapps:", err)
		os.Exit(1)
	}
	fmt.Printf("mkapps: packed %d programs into %s\n", len(apps), *out)
}
