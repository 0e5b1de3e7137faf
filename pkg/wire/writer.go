// Package wire holds the big-endian building blocks shared by every layer of
// the OICQ protocol: a fluent writer, length-prefixed readers and TLV maps.
package wire

import (
	"bytes"
	"encoding/binary"
)

// Writer builds a big-endian byte buffer. Methods return the writer so calls
// can be chained.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter creates an empty Writer
func NewWriter() *Writer {
	return &Writer{}
}

// U8 writes a single byte
func (w *Writer) U8(v uint8) *Writer {
	w.buf.WriteByte(v)
	return w
}

func (w *Writer) U16(v uint16) *Writer {
	w.buf.Write(binary.BigEndian.AppendUint16(nil, v))
	return w
}

func (w *Writer) U32(v uint32) *Writer {
	w.buf.Write(binary.BigEndian.AppendUint32(nil, v))
	return w
}

func (w *Writer) I32(v int32) *Writer {
	return w.U32(uint32(v))
}

func (w *Writer) U64(v uint64) *Writer {
	w.buf.Write(binary.BigEndian.AppendUint64(nil, v))
	return w
}

// Bool writes 1 or 0
func (w *Writer) Bool(v bool) *Writer {
	if v {
		return w.U8(1)
	}
	return w.U8(0)
}

// Bytes writes raw bytes with no prefix
func (w *Writer) Bytes(data []byte) *Writer {
	w.buf.Write(data)
	return w
}

// String writes raw string bytes with no prefix
func (w *Writer) String(s string) *Writer {
	w.buf.WriteString(s)
	return w
}

// BytesU16 writes data behind a u16 length that excludes the prefix
func (w *Writer) BytesU16(data []byte) *Writer {
	w.U16(uint16(len(data)))
	return w.Bytes(data)
}

// StringU16 writes s behind a u16 length that excludes the prefix
func (w *Writer) StringU16(s string) *Writer {
	w.U16(uint16(len(s)))
	return w.String(s)
}

// BytesU32 writes data behind a u32 length that excludes the prefix
func (w *Writer) BytesU32(data []byte) *Writer {
	w.U32(uint32(len(data)))
	return w.Bytes(data)
}

// BytesU32Incl writes data behind a u32 length that counts the prefix itself
func (w *Writer) BytesU32Incl(data []byte) *Writer {
	w.U32(uint32(len(data) + 4))
	return w.Bytes(data)
}

// StringU32Incl writes s behind a u32 length that counts the prefix itself
func (w *Writer) StringU32Incl(s string) *Writer {
	w.U32(uint32(len(s) + 4))
	return w.String(s)
}

// BytesU16Incl writes data behind a u16 length that counts the prefix itself
func (w *Writer) BytesU16Incl(data []byte) *Writer {
	w.U16(uint16(len(data) + 2))
	return w.Bytes(data)
}

// BlockU32Incl writes whatever fn writes behind a self-inclusive u32 length
func (w *Writer) BlockU32Incl(fn func(*Writer)) *Writer {
	inner := NewWriter()
	fn(inner)
	return w.BytesU32Incl(inner.Build())
}

// BlockU16 writes whatever fn writes behind an exclusive u16 length
func (w *Writer) BlockU16(fn func(*Writer)) *Writer {
	inner := NewWriter()
	fn(inner)
	return w.BytesU16(inner.Build())
}

// TLV writes a tag, a u16 value length and the value produced by fn
func (w *Writer) TLV(tag uint16, fn func(*Writer)) *Writer {
	w.U16(tag)
	return w.BlockU16(fn)
}

// Len returns the number of bytes written so far
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Build returns a copy of the written bytes
func (w *Writer) Build() []byte {
	out := make([]byte, w.buf.Len())
	copy(out, w.buf.Bytes())
	return out
}
