package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"

	"github.com/npiolab/npio"
)

func main() {
	output := flag.String("o", "out.npz", "Output archive")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: npzpack [-o out.npz] <file.npy>...")
		os.Exit(2)
	}

	arrays := make(npio.Arrays, flag.NArg())
	for _, path := range flag.Args() {
		arr, err := npio.NpyLoad(path)
		if err != nil {
			glog.Exit(err)
		}
		name := strings.TrimSuffix(filepath.Base(path), ".npy")
		if _, ok := arrays[name]; ok {
			glog.Exitf("duplicate entry name %q from %v", name, path)
		}
		arrays[name] = arr
	}

	if err := npio.WriteNPZ(*output, arrays); err != nil {
		glog.Exit(err)
	}
	glog.Infof("Packed %d arrays into %v", len(arrays), *output)
}
