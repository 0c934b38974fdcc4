// npserve exposes the entries of one npz archive over HTTP, read-only.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"

	"github.com/goccy/go-json"
	"github.com/golang/glog"
	"github.com/labstack/echo/v5"

	"github.com/npiolab/npio"
)

type server struct {
	arrays npio.Arrays
}

type entryInfo struct {
	Name     string `json:"name"`
	Dtype    string `json:"dtype"`
	WordSize int    `json:"word_size"`
	Shape    []int  `json:"shape"`
	Bytes    int    `json:"bytes"`
}

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "Listen address")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: npserve [-addr host:port] <file.npz>")
		os.Exit(2)
	}

	arrays, err := npio.NpzLoad(flag.Arg(0))
	if err != nil {
		glog.Exit(err)
	}

	s := &server{arrays: arrays}
	e := echo.New()
	e.GET("/entries", s.handleList)
	e.GET("/entries/:name", s.handleEntry)
	e.GET("/entries/:name/data", s.handleData)

	glog.Infof("Serving %d arrays from %v on %v", len(arrays), flag.Arg(0), *addr)
	sc := echo.StartConfig{Address: *addr}
	if err := sc.Start(context.Background(), e); err != nil {
		glog.Exit(err)
	}
}

func (s *server) handleList(c *echo.Context) error {
	infos := make([]entryInfo, 0, len(s.arrays))
	for name, arr := range s.arrays {
		infos = append(infos, infoFor(name, arr))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return writeJSON(c, infos)
}

func (s *server) handleEntry(c *echo.Context) error {
	name := c.Param("name")
	arr, ok := s.arrays[name]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no entry "+name)
	}
	return writeJSON(c, infoFor(name, arr))
}

func (s *server) handleData(c *echo.Context) error {
	name := c.Param("name")
	arr, ok := s.arrays[name]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no entry "+name)
	}
	data, err := arr.Data()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.Blob(http.StatusOK, "application/octet-stream", data)
}

func writeJSON(c *echo.Context, v interface{}) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.Blob(http.StatusOK, "application/json", buf)
}

func infoFor(name string, arr *npio.Array) entryInfo {
	return entryInfo{
		Name:     name,
		Dtype:    arr.Kind().String(),
		WordSize: arr.WordSize(),
		Shape:    arr.Shape(),
		Bytes:    arr.Size(),
	}
}
