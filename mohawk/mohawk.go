// Package mohawk reads Mohawk archives, the resource containers of the
// Myst-era games, and extracts their resources by type and ID.
package mohawk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"slices"

	"github.com/juju/errors"
	"golang.org/x/text/encoding/charmap"

	"github.com/ysh86/pictdec/internal/logging"
)

const (
	headerSize    = 28
	rsrcVersion   = 0x100
	compaction    = 1
	fileEntrySize = 10
)

var (
	iffSignature  = []byte("MHWK")
	rsrcSignature = []byte("RSRC")
)

// TypeID is a four character resource type.
type TypeID [4]byte

// PICT is the type of picture resources.
var PICT = TypeID{'P', 'I', 'C', 'T'}

// ParseTypeID reads a four character type such as "PICT".
func ParseTypeID(s string) (TypeID, error) {
	var t TypeID
	if len(s) != len(t) {
		return t, errors.NotValidf("resource type %q", s)
	}
	copy(t[:], s)
	return t, nil
}

func (t TypeID) String() string { return string(t[:]) }

// Resource is one entry of the resource directory. Offset and Size locate
// its data in the archive.
type Resource struct {
	Type    TypeID
	ID      uint16
	Name    string
	Offset  int64
	Size    int64
	Flags   uint8
	Unknown uint16
}

// Section returns the data of r read through ra, the archive it came from.
func (r *Resource) Section(ra io.ReaderAt) *io.SectionReader {
	return io.NewSectionReader(ra, r.Offset, r.Size)
}

// IsArchive reports whether data starts with the Mohawk signature.
func IsArchive(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[0:4], iffSignature) && bytes.Equal(data[8:12], rsrcSignature)
}

// Archive is a parsed Mohawk archive.
type Archive struct {
	// Size is the archive length recorded in its header.
	Size int64

	types  map[TypeID][]*Resource
	reader *io.SectionReader
}

// NewArchive creates an archive reading from sr. Call Parse before use.
func NewArchive(sr *io.SectionReader) *Archive {
	return &Archive{reader: sr, types: map[TypeID][]*Resource{}}
}

type file struct {
	offset  int64
	size    int64
	flags   uint8
	unknown uint16
	used    bool
}

// Parse reads the headers and the resource directory.
func (a *Archive) Parse() error {
	var h [headerSize]byte
	if _, err := a.reader.ReadAt(h[:], 0); err != nil {
		return errors.NewNotValid(err, "mohawk header")
	}
	be := binary.BigEndian
	if !bytes.Equal(h[0:4], iffSignature) {
		return errors.NotValidf("IFF signature %q", h[0:4])
	}
	total := int64(be.Uint32(h[4:])) + 8
	if !bytes.Equal(h[8:12], rsrcSignature) {
		return errors.NotValidf("RSRC signature %q", h[8:12])
	}
	if v := be.Uint16(h[12:]); v != rsrcVersion {
		return errors.NotSupportedf("RSRC version %#x", v)
	}
	if c := be.Uint16(h[14:]); c != compaction {
		return errors.NotSupportedf("compaction %d", c)
	}
	if n := int64(be.Uint32(h[16:])); n != total {
		return errors.NotValidf("RSRC file size %d with IFF size %d", n, total)
	}
	if total > a.reader.Size() {
		return errors.NotValidf("archive of %d bytes truncated to %d", total, a.reader.Size())
	}
	a.Size = total

	dirOffset := int64(be.Uint32(h[20:]))
	if dirOffset < headerSize || dirOffset >= total {
		return errors.NotValidf("resource directory at %d", dirOffset)
	}
	d := make(directory, total-dirOffset)
	if _, err := a.reader.ReadAt(d, dirOffset); err != nil {
		return errors.Annotate(err, "resource directory")
	}

	files, err := d.files(int(be.Uint16(h[24:])), int(be.Uint16(h[26:])), total)
	if err != nil {
		return errors.Trace(err)
	}
	nameList, err := d.u16(0)
	if err != nil {
		return errors.Trace(err)
	}
	typeCount, err := d.u16(2)
	if err != nil {
		return errors.Trace(err)
	}
	for i := 0; i < int(typeCount); i++ {
		e := 4 + 8*i
		tag, err := d.bytes(e, 4)
		if err != nil {
			return errors.Trace(err)
		}
		var t TypeID
		copy(t[:], tag)
		resTable, err := d.u16(e + 4)
		if err != nil {
			return errors.Trace(err)
		}
		nameTable, err := d.u16(e + 6)
		if err != nil {
			return errors.Trace(err)
		}
		names, err := d.names(int(nameTable), int(nameList))
		if err != nil {
			return errors.Annotatef(err, "names of %s", t)
		}
		if err := a.addResources(d, t, int(resTable), files, names); err != nil {
			return errors.Annotatef(err, "resources of %s", t)
		}
	}

	unused := 0
	for _, f := range files {
		if !f.used {
			unused++
		}
	}
	if unused > 0 {
		logging.Warn("%d of %d mohawk files are not referenced by any resource", unused, len(files))
	}
	logging.Debug("mohawk archive of %d bytes: %d types, %d files", total, len(a.types), len(files))
	return nil
}

func (a *Archive) addResources(d directory, t TypeID, off int, files []*file, names map[uint16]string) error {
	if _, dup := a.types[t]; dup {
		return errors.NotValidf("repeated type")
	}
	count, err := d.u16(off)
	if err != nil {
		return errors.Trace(err)
	}
	seen := map[uint16]bool{}
	var list []*Resource
	for i := 0; i < int(count); i++ {
		id, err := d.u16(off + 2 + 4*i)
		if err != nil {
			return errors.Trace(err)
		}
		index, err := d.u16(off + 4 + 4*i)
		if err != nil {
			return errors.Trace(err)
		}
		// file table indices start at 1
		if index == 0 || int(index) > len(files) {
			return errors.NotValidf("resource %d in file %d of %d", id, index, len(files))
		}
		if seen[id] {
			return errors.NotValidf("repeated resource %d", id)
		}
		seen[id] = true
		f := files[index-1]
		f.used = true
		name, named := names[index]
		if named {
			delete(names, index)
		}
		list = append(list, &Resource{
			Type:    t,
			ID:      id,
			Name:    name,
			Offset:  f.offset,
			Size:    f.size,
			Flags:   f.flags,
			Unknown: f.unknown,
		})
	}
	if len(names) > 0 {
		logging.Warn("%d names of %s match no resource", len(names), t)
	}
	slices.SortFunc(list, func(x, y *Resource) int { return int(x.ID) - int(y.ID) })
	a.types[t] = list
	return nil
}

// Types lists the resource types in byte order.
func (a *Archive) Types() []TypeID {
	var types []TypeID
	for t := range a.types {
		types = append(types, t)
	}
	slices.SortFunc(types, func(x, y TypeID) int { return bytes.Compare(x[:], y[:]) })
	return types
}

// Resources lists the resources of type t by increasing ID.
func (a *Archive) Resources(t TypeID) []*Resource {
	return a.types[t]
}

// Lookup finds resource id of type t.
func (a *Archive) Lookup(t TypeID, id uint16) (*Resource, error) {
	list, ok := a.types[t]
	if !ok {
		return nil, errors.NotFoundf("resource type %s", t)
	}
	i, found := slices.BinarySearchFunc(list, id, func(r *Resource, id uint16) int { return int(r.ID) - int(id) })
	if !found {
		return nil, errors.NotFoundf("resource %s %d", t, id)
	}
	return list[i], nil
}

// Extract returns the data of resource id of type t.
func (a *Archive) Extract(t TypeID, id uint16) ([]byte, error) {
	r, err := a.Lookup(t, id)
	if err != nil {
		return nil, errors.Trace(err)
	}
	data, err := io.ReadAll(r.Section(a.reader))
	if err != nil {
		return nil, errors.Annotatef(err, "read %s %d", t, id)
	}
	return data, nil
}

// DumpTo prints the resources of every type.
func (a *Archive) DumpTo(w io.Writer) {
	for _, t := range a.Types() {
		fmt.Fprintln(w, t)
		fmt.Fprintln(w, "   id      name     size flag unknown")
		for _, r := range a.types[t] {
			fmt.Fprintf(w, "%5d %-9s %8d   %02X    %04X\n", r.ID, r.Name, r.Size, r.Flags, r.Unknown)
		}
	}
}

// directory is the resource directory; offsets are relative to its start.
type directory []byte

func (d directory) bytes(off, n int) ([]byte, error) {
	if off < 0 || n < 0 || off+n > len(d) {
		return nil, errors.NotValidf("directory entry at %d of %d bytes", off, len(d))
	}
	return d[off : off+n], nil
}

func (d directory) u16(off int) (uint16, error) {
	b, err := d.bytes(off, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// files reads the file table.
func (d directory) files(off, size int, total int64) ([]*file, error) {
	b, err := d.bytes(off, 4)
	if err != nil {
		return nil, errors.Annotate(err, "file table")
	}
	count := int64(binary.BigEndian.Uint32(b))
	if 4+count*fileEntrySize != int64(size) {
		return nil, errors.NotValidf("file table of %d bytes for %d files", size, count)
	}
	b, err = d.bytes(off+4, int(count)*fileEntrySize)
	if err != nil {
		return nil, errors.Annotate(err, "file table")
	}
	files := make([]*file, count)
	for i := range files {
		e := b[i*fileEntrySize:]
		f := &file{
			offset:  int64(binary.BigEndian.Uint32(e[0:])),
			flags:   e[7],
			unknown: binary.BigEndian.Uint16(e[8:]),
		}
		// 24 size bits, and three more in the flags
		f.size = int64(binary.BigEndian.Uint16(e[4:])) | int64(e[6])<<16 | int64(f.flags&7)<<24
		if f.offset < headerSize || f.offset+f.size > total {
			return nil, errors.NotValidf("file %d at %d of %d bytes", i+1, f.offset, f.size)
		}
		files[i] = f
	}
	return files, nil
}

// names reads a name table into names by file index.
func (d directory) names(off, nameList int) (map[uint16]string, error) {
	count, err := d.u16(off)
	if err != nil {
		return nil, err
	}
	names := make(map[uint16]string, count)
	for i := 0; i < int(count); i++ {
		nameOff, err := d.u16(off + 2 + 4*i)
		if err != nil {
			return nil, err
		}
		index, err := d.u16(off + 4 + 4*i)
		if err != nil {
			return nil, err
		}
		start := nameList + int(nameOff)
		if start >= len(d) {
			return nil, errors.NotValidf("name at %d", start)
		}
		n := bytes.IndexByte(d[start:], 0)
		if n < 0 {
			return nil, errors.NotValidf("unterminated name at %d", start)
		}
		name, err := charmap.Macintosh.NewDecoder().Bytes(d[start : start+n])
		if err != nil {
			return nil, errors.Annotatef(err, "name at %d", start)
		}
		names[index] = string(name)
	}
	return names, nil
}
