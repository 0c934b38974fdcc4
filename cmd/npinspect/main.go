package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/golang/glog"

	"github.com/npiolab/npio"
)

type arrayInfo struct {
	Name     string `json:"name,omitempty"`
	Dtype    string `json:"dtype"`
	WordSize int    `json:"word_size"`
	Shape    []int  `json:"shape"`
	Fortran  bool   `json:"fortran_order"`
	Bytes    int    `json:"bytes"`
}

func main() {
	jsonOut := flag.Bool("json", false, "Emit metadata as JSON")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: npinspect [-json] <file.npy|file.npz>...")
		os.Exit(2)
	}

	for _, path := range flag.Args() {
		infos, err := inspect(path)
		if err != nil {
			glog.Exit(err)
		}

		if *jsonOut {
			buf, err := json.MarshalIndent(infos, "", "  ")
			if err != nil {
				glog.Exit(err)
			}
			fmt.Printf("%s\n", buf)
			continue
		}

		fmt.Printf("%s:\n", path)
		for _, info := range infos {
			name := info.Name
			if name == "" {
				name = "-"
			}
			fmt.Printf("  %-20s %s shape=%v fortran=%v (%d bytes)\n",
				name, info.Dtype, info.Shape, info.Fortran, info.Bytes)
		}
	}
}

func inspect(path string) ([]arrayInfo, error) {
	if strings.HasSuffix(path, ".npz") {
		arrays, err := npio.NpzLoad(path)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(arrays))
		for name := range arrays {
			names = append(names, name)
		}
		sort.Strings(names)

		infos := make([]arrayInfo, 0, len(arrays))
		for _, name := range names {
			infos = append(infos, infoFor(name, arrays[name]))
		}
		return infos, nil
	}

	arr, err := npio.NpyLoad(path)
	if err != nil {
		return nil, err
	}
	return []arrayInfo{infoFor("", arr)}, nil
}

func infoFor(name string, arr *npio.Array) arrayInfo {
	return arrayInfo{
		Name:     name,
		Dtype:    arr.Kind().String(),
		WordSize: arr.WordSize(),
		Shape:    arr.Shape(),
		Fortran:  arr.FortranOrder(),
		Bytes:    arr.Size(),
	}
}
