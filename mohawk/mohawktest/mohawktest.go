// Package mohawktest builds small Mohawk archives for tests.
package mohawktest

import (
	"bytes"
	"encoding/binary"
)

// Entry is one resource of a built archive.
type Entry struct {
	Type string
	ID   uint16
	Name string
	Data []byte
}

type typeTables struct {
	tag                 [4]byte
	resources, names    bytes.Buffer
	resCount, nameCount uint16
}

// Build lays out a header, the resource data in entry order and then the
// resource directory. Files are numbered in entry order.
func Build(entries ...Entry) []byte {
	be := binary.BigEndian
	u16 := func(b *bytes.Buffer, v uint16) { binary.Write(b, be, v) }
	u32 := func(b *bytes.Buffer, v uint32) { binary.Write(b, be, v) }

	const headerSize = 28
	var data bytes.Buffer
	var files bytes.Buffer
	var nameList bytes.Buffer
	var types []*typeTables
	byTag := map[string]*typeTables{}
	for i, e := range entries {
		tt, ok := byTag[e.Type]
		if !ok {
			tt = &typeTables{}
			copy(tt.tag[:], e.Type)
			byTag[e.Type] = tt
			types = append(types, tt)
		}
		index := uint16(i + 1)
		u16(&tt.resources, e.ID)
		u16(&tt.resources, index)
		tt.resCount++
		if e.Name != "" {
			u16(&tt.names, uint16(nameList.Len()))
			u16(&tt.names, index)
			tt.nameCount++
			nameList.WriteString(e.Name)
			nameList.WriteByte(0)
		}

		u32(&files, uint32(headerSize+data.Len()))
		size := len(e.Data)
		u16(&files, uint16(size))
		files.WriteByte(byte(size >> 16))
		files.WriteByte(byte(size>>24) & 7)
		u16(&files, 0)
		data.Write(e.Data)
	}

	// directory: name list offset, type table, per type resource and name
	// tables, name list, file table
	off := 4 + 8*len(types)
	var dir, tables bytes.Buffer
	u16(&dir, 0) // patched below
	u16(&dir, uint16(len(types)))
	for _, tt := range types {
		dir.Write(tt.tag[:])
		u16(&dir, uint16(off+tables.Len()))
		u16(&tables, tt.resCount)
		tables.Write(tt.resources.Bytes())
		u16(&dir, uint16(off+tables.Len()))
		u16(&tables, tt.nameCount)
		tables.Write(tt.names.Bytes())
	}
	dir.Write(tables.Bytes())
	nameListOffset := dir.Len()
	dir.Write(nameList.Bytes())
	fileTableOffset := dir.Len()
	u32(&dir, uint32(len(entries)))
	dir.Write(files.Bytes())
	d := dir.Bytes()
	be.PutUint16(d, uint16(nameListOffset))

	total := headerSize + data.Len() + len(d)
	var out bytes.Buffer
	out.WriteString("MHWK")
	u32(&out, uint32(total-8))
	out.WriteString("RSRC")
	u16(&out, 0x100)
	u16(&out, 1)
	u32(&out, uint32(total))
	u32(&out, uint32(headerSize+data.Len()))
	u16(&out, uint16(fileTableOffset))
	u16(&out, uint16(4+10*len(entries)))
	out.Write(data.Bytes())
	out.Write(d)
	return out.Bytes()
}
