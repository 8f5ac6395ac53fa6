package daemon

import (
	"encoding/binary"
	"fmt"
)

// FuncTag selects the operation a request carries. Tag values are part of
// the client contract and must not be reordered.
type FuncTag int32

const (
	FuncAddUser FuncTag = iota
	FuncLoad
	FuncUnload
	FuncKernelCreate
	FuncKernelRelease
	FuncKernelExecute
	FuncKernelWait
	FuncKernelReset
	FuncKernelWCfg
	FuncKernelRCfg
	FuncAlloc
	FuncFree
	FuncRemoveUser
	FuncGetNaccs
)

// Request is one client command: the issuing client, the channel the
// response must come back on, the operation and its packed arguments.
type Request struct {
	UserID    int32
	ChannelID int32
	Func      FuncTag
	Args      []byte
}

// Response carries the integer result code of an operation plus an optional
// payload (configuration readbacks). Negative codes are errno-style errors.
type Response struct {
	Code    int32
	Payload []byte
}

// ArgWriter packs request arguments in wire order: strings are
// NUL-terminated, integers are little-endian. Clients and tests build
// argument buffers with it; the dispatch side decodes with argReader.
type ArgWriter struct {
	buf []byte
}

// Str appends a NUL-terminated string.
func (this *ArgWriter) Str(s string) *ArgWriter {
	this.buf = append(this.buf, s...)
	this.buf = append(this.buf, 0)
	return this
}

// U8 appends one byte.
func (this *ArgWriter) U8(v uint8) *ArgWriter {
	this.buf = append(this.buf, v)
	return this
}

// U16 appends a 16-bit little-endian value.
func (this *ArgWriter) U16(v uint16) *ArgWriter {
	this.buf = binary.LittleEndian.AppendUint16(this.buf, v)
	return this
}

// U32 appends a 32-bit little-endian value.
func (this *ArgWriter) U32(v uint32) *ArgWriter {
	this.buf = binary.LittleEndian.AppendUint32(this.buf, v)
	return this
}

// U64 appends a 64-bit little-endian value.
func (this *ArgWriter) U64(v uint64) *ArgWriter {
	this.buf = binary.LittleEndian.AppendUint64(this.buf, v)
	return this
}

// I32 appends a signed 32-bit little-endian value.
func (this *ArgWriter) I32(v int32) *ArgWriter {
	return this.U32(uint32(v))
}

// Bytes returns the packed argument buffer.
func (this *ArgWriter) Bytes() []byte {
	return this.buf
}

// argReader unpacks an argument buffer in the same order it was written.
// Decoding errors are sticky; callers check err once after the last field.
type argReader struct {
	buf []byte
	off int
	err error
}

func (this *argReader) fail(what string) {
	if this.err == nil {
		this.err = fmt.Errorf("truncated arguments at %s (offset %d)", what, this.off)
	}
}

func (this *argReader) str() string {
	if this.err != nil {
		return ""
	}
	for i := this.off; i < len(this.buf); i++ {
		if this.buf[i] == 0 {
			s := string(this.buf[this.off:i])
			this.off = i + 1
			return s
		}
	}
	this.fail("string")
	return ""
}

func (this *argReader) u8() uint8 {
	if this.err != nil {
		return 0
	}
	if this.off+1 > len(this.buf) {
		this.fail("uint8")
		return 0
	}
	v := this.buf[this.off]
	this.off++
	return v
}

func (this *argReader) u16() uint16 {
	if this.err != nil {
		return 0
	}
	if this.off+2 > len(this.buf) {
		this.fail("uint16")
		return 0
	}
	v := binary.LittleEndian.Uint16(this.buf[this.off:])
	this.off += 2
	return v
}

func (this *argReader) u32() uint32 {
	if this.err != nil {
		return 0
	}
	if this.off+4 > len(this.buf) {
		this.fail("uint32")
		return 0
	}
	v := binary.LittleEndian.Uint32(this.buf[this.off:])
	this.off += 4
	return v
}

func (this *argReader) u64() uint64 {
	if this.err != nil {
		return 0
	}
	if this.off+8 > len(this.buf) {
		this.fail("uint64")
		return 0
	}
	v := binary.LittleEndian.Uint64(this.buf[this.off:])
	this.off += 8
	return v
}

func (this *argReader) i32() int32 {
	return int32(this.u32())
}

// rest returns the unread tail of the buffer.
func (this *argReader) rest() []byte {
	if this.err != nil {
		return nil
	}
	tail := this.buf[this.off:]
	this.off = len(this.buf)
	return tail
}
