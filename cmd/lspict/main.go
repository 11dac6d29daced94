package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/juju/errors"

	"github.com/ysh86/pictdec/internal/convert"
	"github.com/ysh86/pictdec/jpeg"
	"github.com/ysh86/pictdec/mohawk"
	"github.com/ysh86/pictdec/pict"
)

func main() {
	// args
	var (
		srcFile  string
		qtDir    string
		typeName string
		id       int
		outFile  string
	)
	flag.StringVar(&qtDir, "qt", "", "write QuickTime payloads to this directory")
	flag.StringVar(&typeName, "type", mohawk.PICT.String(), "resource type to extract from an archive")
	flag.IntVar(&id, "id", -1, "resource ID to extract from an archive")
	flag.StringVar(&outFile, "o", "", "write the extracted resource to this file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s: [-qt dir] src.pict\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "       %s [-type PICT -id n [-o file]] src.mhk\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	srcFile = flag.Arg(0)

	var err error
	if convert.IsArchive(srcFile) {
		err = archive(srcFile, typeName, id, outFile, qtDir)
	} else {
		var data []byte
		if data, err = convert.Load(srcFile); err == nil {
			err = list(data, srcFile, qtDir)
		}
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, errors.ErrorStack(err))
		os.Exit(1)
	}
}

// archive lists the resources of an archive, or extracts one of them.
func archive(srcFile, typeName string, id int, outFile, qtDir string) error {
	a, f, err := convert.OpenArchive(srcFile)
	if err != nil {
		return errors.Annotatef(err, "archive %s", srcFile)
	}
	defer f.Close()
	if id < 0 {
		a.DumpTo(os.Stdout)
		return nil
	}

	t, err := mohawk.ParseTypeID(typeName)
	if err != nil {
		return errors.Trace(err)
	}
	if id > 0xffff {
		return errors.NotValidf("resource ID %d", id)
	}
	data, err := a.Extract(t, uint16(id))
	if err != nil {
		return errors.Trace(err)
	}
	if outFile != "" {
		if err := os.WriteFile(outFile, data, 0644); err != nil {
			return errors.Trace(err)
		}
		fmt.Printf("wrote %s (%d bytes)\n", outFile, len(data))
	}
	if t != mohawk.PICT {
		return nil
	}
	base := strings.TrimSuffix(srcFile, filepath.Ext(srcFile))
	return list(data, fmt.Sprintf("%s_%d", base, id), qtDir)
}

func list(data []byte, srcFile, qtDir string) error {
	pictFile, err := pict.NewFile(data)
	if err != nil {
		return errors.Trace(err)
	}
	parseErr := pictFile.Parse()

	// dump
	fmt.Printf("file: frame %+v, version %d, prefix %v, %d bytes\n",
		pictFile.Frame, pictFile.Version, pictFile.Prefix, len(data))
	for i, r := range pictFile.Records {
		fmt.Printf("%6x", r.Pos())
		r.Dump(os.Stdout)
		q, ok := r.(*pict.OpQTcomp)
		if !ok {
			continue
		}
		if q.Compressor == "jpeg" {
			segments(q)
		}
		if qtDir == "" {
			continue
		}
		if err := extract(q, qtDir, srcFile, i); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Annotatef(parseErr, "parse %s", srcFile)
}

// segments lists the JFIF segments of a QuickTime payload.
func segments(q *pict.OpQTcomp) {
	jpegFile := jpeg.NewFile(io.NewSectionReader(bytes.NewReader(q.Data), 0, int64(len(q.Data))))
	err := jpegFile.Parse()
	for _, s := range jpegFile.Segments {
		fmt.Printf("        %v\n", s)
	}
	if err != nil {
		fmt.Printf("        %v\n", err)
	}
}

func extract(q *pict.OpQTcomp, dir, srcFile string, index int) error {
	base := strings.TrimSuffix(filepath.Base(srcFile), filepath.Ext(srcFile))
	name := filepath.Join(dir, fmt.Sprintf("%s_%03d.%s", base, index, strings.TrimSpace(q.Compressor)))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Trace(err)
	}
	f, err := os.Create(name)
	if err != nil {
		return errors.Trace(err)
	}
	defer f.Close()
	n, err := q.DumpTo(f)
	if err != nil {
		return errors.Annotatef(err, "write %s", name)
	}
	fmt.Printf("      wrote %s (%d bytes)\n", name, n)
	return nil
}
