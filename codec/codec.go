// Package codec implements the self-describing canonical binary wire
// format shared by every content-addressed type in the store: the bytes
// hashed to name a Change (its parents and content) and the content bytes
// written to and read back from storage are both built from these
// primitives, rather than from a generic serialization library.
package codec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
	"unicode/utf8"

	"github.com/antgroup/valuestore/plumbing"
	"github.com/antgroup/valuestore/value"
)

// Value kind tags.
const (
	tagInteger byte = 0x01
	tagFloat   byte = 0x02
	tagBool    byte = 0x03
	tagString  byte = 0x04
	tagBlob    byte = 0x05
	tagArray   byte = 0x06
	tagMap     byte = 0x07
)

// PathElement tags.
const (
	tagField byte = 0x10
	tagIndex byte = 0x11
)

// DecodeError wraps a failure to parse an encoded byte stream.
type DecodeError struct {
	Context string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec: decode %s: %v", e.Context, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err is a *DecodeError.
func IsDecodeError(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*DecodeError)
	return ok
}

func decErr(context string, err error) error {
	return &DecodeError{Context: context, Err: err}
}

// EncodeError wraps a value that cannot be encoded: a blob MIME type longer
// than value.MaxMimeLen, or a kind or content variant the encoder does not
// know. Writes to the bytes.Buffer itself never fail.
type EncodeError struct {
	Context string
	Err     error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("codec: encode %s: %v", e.Context, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// IsEncodeError reports whether err is an *EncodeError.
func IsEncodeError(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*EncodeError)
	return ok
}

func writeUvarint(w *bytes.Buffer, v uint64) {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	w.Write(buf[:n])
}

func readUvarint(r *bufio.Reader, context string) (uint64, error) {
	v, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, decErr(context, err)
	}
	return v, nil
}

// EncodeUvarint appends v to w as an unsigned varint. It is exported so
// that higher-level packages (such as change, which frames a content-count
// prefix around its own encoded values) can reuse the same integer framing
// instead of inventing another one.
func EncodeUvarint(w *bytes.Buffer, v uint64) { writeUvarint(w, v) }

// DecodeUvarint reads an unsigned varint written by EncodeUvarint.
func DecodeUvarint(r *bufio.Reader) (uint64, error) { return readUvarint(r, "uvarint") }

func writeBytes(w *bytes.Buffer, b []byte) {
	writeUvarint(w, uint64(len(b)))
	w.Write(b)
}

func readBytes(r *bufio.Reader, context string) ([]byte, error) {
	n, err := readUvarint(r, context)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, decErr(context, err)
	}
	return buf, nil
}

// EncodeValue appends the canonical encoding of v to w. Map entries are
// written in ascending key order so that two structurally equal maps
// always produce identical bytes regardless of Go map iteration order.
func EncodeValue(w *bytes.Buffer, v value.Value) error {
	switch v.Kind() {
	case value.Integer:
		i, _ := v.AsInteger()
		w.WriteByte(tagInteger)
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(i))
		w.Write(buf[:])
	case value.Float:
		f, _ := v.AsFloat()
		w.WriteByte(tagFloat)
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(f))
		w.Write(buf[:])
	case value.Bool:
		b, _ := v.AsBool()
		w.WriteByte(tagBool)
		if b {
			w.WriteByte(1)
		} else {
			w.WriteByte(0)
		}
	case value.String:
		s, _ := v.AsString()
		w.WriteByte(tagString)
		writeBytes(w, []byte(s))
	case value.Blob:
		b, _ := v.AsBlob()
		w.WriteByte(tagBlob)
		if len(b.Mime) > value.MaxMimeLen {
			return &EncodeError{Context: "blob mime", Err: fmt.Errorf("mime too long: %d bytes", len(b.Mime))}
		}
		w.WriteByte(byte(len(b.Mime)))
		w.WriteString(b.Mime)
		writeBytes(w, b.Data)
	case value.Array:
		items, _ := v.ArrayItems()
		w.WriteByte(tagArray)
		writeUvarint(w, uint64(len(items)))
		for _, item := range items {
			if err := EncodeValue(w, item); err != nil {
				return err
			}
		}
	case value.Map:
		fields, _ := v.MapFields()
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		w.WriteByte(tagMap)
		writeUvarint(w, uint64(len(keys)))
		for _, k := range keys {
			writeBytes(w, []byte(k))
			if err := EncodeValue(w, fields[k]); err != nil {
				return err
			}
		}
	default:
		return &EncodeError{Context: "value", Err: fmt.Errorf("unknown kind %v", v.Kind())}
	}
	return nil
}

// DecodeValue reads one canonically-encoded Value from r.
func DecodeValue(r *bufio.Reader) (value.Value, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return value.Value{}, decErr("value tag", err)
	}
	switch tag {
	case tagInteger:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return value.Value{}, decErr("integer", err)
		}
		return value.NewInteger(int64(binary.BigEndian.Uint64(buf[:]))), nil
	case tagFloat:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return value.Value{}, decErr("float", err)
		}
		return value.NewFloat(math.Float64frombits(binary.BigEndian.Uint64(buf[:]))), nil
	case tagBool:
		b, err := r.ReadByte()
		if err != nil {
			return value.Value{}, decErr("bool", err)
		}
		return value.NewBool(b != 0), nil
	case tagString:
		b, err := readBytes(r, "string")
		if err != nil {
			return value.Value{}, err
		}
		return value.NewString(string(b)), nil
	case tagBlob:
		mimeLen, err := r.ReadByte()
		if err != nil {
			return value.Value{}, decErr("blob mime len", err)
		}
		mimeBuf := make([]byte, mimeLen)
		if _, err := io.ReadFull(r, mimeBuf); err != nil {
			return value.Value{}, decErr("blob mime", err)
		}
		if !utf8.Valid(mimeBuf) {
			return value.Value{}, decErr("blob mime", fmt.Errorf("mime is not valid UTF-8"))
		}
		data, err := readBytes(r, "blob data")
		if err != nil {
			return value.Value{}, err
		}
		v, err := value.NewBlob(string(mimeBuf), data)
		if err != nil {
			return value.Value{}, decErr("blob", err)
		}
		return v, nil
	case tagArray:
		n, err := readUvarint(r, "array len")
		if err != nil {
			return value.Value{}, err
		}
		items := make([]value.Value, 0, n)
		for i := uint64(0); i < n; i++ {
			item, err := DecodeValue(r)
			if err != nil {
				return value.Value{}, err
			}
			items = append(items, item)
		}
		return value.NewArray(items), nil
	case tagMap:
		n, err := readUvarint(r, "map len")
		if err != nil {
			return value.Value{}, err
		}
		fields := make(map[string]value.Value, n)
		for i := uint64(0); i < n; i++ {
			key, err := readBytes(r, "map key")
			if err != nil {
				return value.Value{}, err
			}
			val, err := DecodeValue(r)
			if err != nil {
				return value.Value{}, err
			}
			fields[string(key)] = val
		}
		return value.NewMap(fields), nil
	default:
		return value.Value{}, decErr("value tag", fmt.Errorf("unknown tag 0x%02x", tag))
	}
}

// EncodePathElement appends the canonical encoding of e to w.
func EncodePathElement(w *bytes.Buffer, e value.PathElement) {
	if name, ok := e.FieldName(); ok {
		w.WriteByte(tagField)
		writeBytes(w, []byte(name))
		return
	}
	idx, _ := e.IndexValue()
	w.WriteByte(tagIndex)
	writeUvarint(w, uint64(idx))
}

// DecodePathElement reads one canonically-encoded PathElement from r.
func DecodePathElement(r *bufio.Reader) (value.PathElement, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return value.PathElement{}, decErr("path element tag", err)
	}
	switch tag {
	case tagField:
		b, err := readBytes(r, "path field")
		if err != nil {
			return value.PathElement{}, err
		}
		return value.Field(string(b)), nil
	case tagIndex:
		n, err := readUvarint(r, "path index")
		if err != nil {
			return value.PathElement{}, err
		}
		return value.Index(uint32(n)), nil
	default:
		return value.PathElement{}, decErr("path element tag", fmt.Errorf("unknown tag 0x%02x", tag))
	}
}

// EncodePath appends the canonical encoding of p to w.
func EncodePath(w *bytes.Buffer, p value.Path) {
	writeUvarint(w, uint64(len(p)))
	for _, e := range p {
		EncodePathElement(w, e)
	}
}

// DecodePath reads one canonically-encoded Path from r.
func DecodePath(r *bufio.Reader) (value.Path, error) {
	n, err := readUvarint(r, "path len")
	if err != nil {
		return nil, err
	}
	p := make(value.Path, 0, n)
	for i := uint64(0); i < n; i++ {
		e, err := DecodePathElement(r)
		if err != nil {
			return nil, err
		}
		p = append(p, e)
	}
	return p, nil
}

// EncodeParents appends the canonical encoding of p to w.
func EncodeParents(w *bytes.Buffer, p plumbing.Parents) {
	hashes := p.Slice()
	w.WriteByte(byte(len(hashes)))
	for _, h := range hashes {
		w.Write(h[:])
	}
}

// DecodeParents reads one canonically-encoded Parents from r. It rejects a
// two-parent encoding whose hashes are not in strict ascending order,
// since that can never have been produced by plumbing.TwoParents.
func DecodeParents(r *bufio.Reader) (plumbing.Parents, error) {
	count, err := r.ReadByte()
	if err != nil {
		return plumbing.Parents{}, decErr("parents count", err)
	}
	if count != 1 && count != 2 {
		return plumbing.Parents{}, decErr("parents count", fmt.Errorf("must be 1 or 2, got %d", count))
	}
	var first plumbing.Hash
	if _, err := io.ReadFull(r, first[:]); err != nil {
		return plumbing.Parents{}, decErr("first parent", err)
	}
	if count == 1 {
		return plumbing.OneParent(first), nil
	}
	var second plumbing.Hash
	if _, err := io.ReadFull(r, second[:]); err != nil {
		return plumbing.Parents{}, decErr("second parent", err)
	}
	if first.Compare(second) >= 0 {
		return plumbing.Parents{}, decErr("parents order", fmt.Errorf("parents not in strict ascending order"))
	}
	return plumbing.TwoParents(first, second)
}

// NewReader wraps r (or reuses it, if already buffered) for decoding.
func NewReader(r io.Reader) *bufio.Reader {
	if br, ok := r.(*bufio.Reader); ok {
		return br
	}
	return bufio.NewReader(r)
}
