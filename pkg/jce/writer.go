// Package jce writes the Tars/JCE tagged encoding used by the service
// registration commands.
package jce

import (
	"bytes"
	"encoding/binary"
	"sort"
)

// Field type codes
const (
	typeInt8        byte = 0
	typeInt16       byte = 1
	typeInt32       byte = 2
	typeInt64       byte = 3
	typeString1     byte = 6
	typeString4     byte = 7
	typeMap         byte = 8
	typeList        byte = 9
	typeStructBegin byte = 10
	typeStructEnd   byte = 11
	typeZero        byte = 12
	typeSimpleList  byte = 13
)

// Writer appends tagged JCE fields. Integers use the narrowest encoding.
type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) head(t byte, tag int) {
	if tag < 15 {
		w.buf.WriteByte(byte(tag)<<4 | t)
		return
	}
	w.buf.WriteByte(0xF0 | t)
	w.buf.WriteByte(byte(tag))
}

func (w *Writer) WriteInt64(v int64, tag int) *Writer {
	switch {
	case v == 0:
		w.head(typeZero, tag)
	case v >= -128 && v <= 127:
		w.head(typeInt8, tag)
		w.buf.WriteByte(byte(v))
	case v >= -32768 && v <= 32767:
		w.head(typeInt16, tag)
		w.buf.Write(binary.BigEndian.AppendUint16(nil, uint16(v)))
	case v >= -2147483648 && v <= 2147483647:
		w.head(typeInt32, tag)
		w.buf.Write(binary.BigEndian.AppendUint32(nil, uint32(v)))
	default:
		w.head(typeInt64, tag)
		w.buf.Write(binary.BigEndian.AppendUint64(nil, uint64(v)))
	}
	return w
}

func (w *Writer) WriteInt32(v int32, tag int) *Writer {
	return w.WriteInt64(int64(v), tag)
}

func (w *Writer) WriteInt16(v int16, tag int) *Writer {
	return w.WriteInt64(int64(v), tag)
}

func (w *Writer) WriteUint8(v byte, tag int) *Writer {
	return w.WriteInt64(int64(int8(v)), tag)
}

func (w *Writer) WriteBool(v bool, tag int) *Writer {
	if v {
		return w.WriteUint8(1, tag)
	}
	return w.WriteUint8(0, tag)
}

// WriteString picks the 1 or 4 byte length form
func (w *Writer) WriteString(s string, tag int) *Writer {
	if len(s) > 255 {
		w.head(typeString4, tag)
		w.buf.Write(binary.BigEndian.AppendUint32(nil, uint32(len(s))))
	} else {
		w.head(typeString1, tag)
		w.buf.WriteByte(byte(len(s)))
	}
	w.buf.WriteString(s)
	return w
}

// WriteBytes writes a simple list of bytes
func (w *Writer) WriteBytes(b []byte, tag int) *Writer {
	w.head(typeSimpleList, tag)
	w.head(typeInt8, 0)
	w.WriteInt32(int32(len(b)), 0)
	w.buf.Write(b)
	return w
}

func (w *Writer) WriteInt64List(l []int64, tag int) *Writer {
	w.head(typeList, tag)
	w.WriteInt32(int32(len(l)), 0)
	for _, v := range l {
		w.WriteInt64(v, 0)
	}
	return w
}

// WriteBytesMap writes keys in sorted order so output is stable
func (w *Writer) WriteBytesMap(m map[string][]byte, tag int) *Writer {
	w.head(typeMap, tag)
	w.WriteInt32(int32(len(m)), 0)
	for _, k := range sortedKeys(m) {
		w.WriteString(k, 0)
		w.WriteBytes(m[k], 1)
	}
	return w
}

func (w *Writer) WriteStringMap(m map[string]string, tag int) *Writer {
	w.head(typeMap, tag)
	w.WriteInt32(int32(len(m)), 0)
	for _, k := range sortedKeys(m) {
		w.WriteString(k, 0)
		w.WriteString(m[k], 1)
	}
	return w
}

// WriteStruct wraps whatever fn writes in struct begin and end markers
func (w *Writer) WriteStruct(fn func(*Writer), tag int) *Writer {
	w.head(typeStructBegin, tag)
	fn(w)
	w.head(typeStructEnd, 0)
	return w
}

func (w *Writer) Bytes() []byte {
	return append([]byte(nil), w.buf.Bytes()...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
