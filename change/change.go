package change

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/antgroup/valuestore/codec"
	"github.com/antgroup/valuestore/plumbing"
)

const (
	contentTagInsert  byte = 0x20
	contentTagReplace byte = 0x21
	contentTagDelete  byte = 0x22
)

// Encode appends the canonical encoding of c to w.
func (c Content) Encode(w *bytes.Buffer) error {
	codec.EncodePath(w, c.path)
	switch c.kind {
	case Insert:
		w.WriteByte(contentTagInsert)
		return codec.EncodeValue(w, c.value)
	case Replace:
		w.WriteByte(contentTagReplace)
		if err := codec.EncodeValue(w, c.old); err != nil {
			return err
		}
		return codec.EncodeValue(w, c.value)
	case Delete:
		w.WriteByte(contentTagDelete)
		return codec.EncodeValue(w, c.old)
	default:
		return &codec.EncodeError{Context: "change content", Err: fmt.Errorf("unknown kind %v", c.kind)}
	}
}

// DecodeContent reads one canonically-encoded Content from r. The path is
// read before the variant tag, mirroring Encode.
func DecodeContent(r *bufio.Reader) (Content, error) {
	path, err := codec.DecodePath(r)
	if err != nil {
		return Content{}, err
	}
	tag, err := r.ReadByte()
	if err != nil {
		return Content{}, &codec.DecodeError{Context: "change content tag", Err: err}
	}
	switch tag {
	case contentTagInsert:
		val, err := codec.DecodeValue(r)
		if err != nil {
			return Content{}, err
		}
		return Content{kind: Insert, path: path, value: val}, nil
	case contentTagReplace:
		old, err := codec.DecodeValue(r)
		if err != nil {
			return Content{}, err
		}
		newVal, err := codec.DecodeValue(r)
		if err != nil {
			return Content{}, err
		}
		return Content{kind: Replace, path: path, old: old, value: newVal}, nil
	case contentTagDelete:
		old, err := codec.DecodeValue(r)
		if err != nil {
			return Content{}, err
		}
		return Content{kind: Delete, path: path, old: old}, nil
	default:
		return Content{}, &codec.DecodeError{Context: "change content tag", Err: fmt.Errorf("unknown tag 0x%02x", tag)}
	}
}

// Change is a single content-addressed node in the mutation graph: a set of
// primitive edits applied together, identified by the BLAKE3 hash of its
// own parents and content, and naming the 1 or 2 Changes it descends from.
type Change struct {
	Hash    plumbing.Hash
	Parents plumbing.Parents
	Content []Content
}

// payload appends the bytes that are hashed to name a Change: its parents
// followed by its content list, in order. Storage receives only the content
// list (EncodeContent); the parents are persisted as separate edges.
func payload(w *bytes.Buffer, parents plumbing.Parents, content []Content) error {
	codec.EncodeParents(w, parents)
	codec.EncodeUvarint(w, uint64(len(content)))
	for _, c := range content {
		if err := c.Encode(w); err != nil {
			return err
		}
	}
	return nil
}

// New builds a Change from its parents and content, computing its hash
// over the canonical encoding of both.
func New(parents plumbing.Parents, content []Content) (Change, error) {
	var buf bytes.Buffer
	if err := payload(&buf, parents, content); err != nil {
		return Change{}, err
	}
	h := plumbing.SumBytes(buf.Bytes())
	return Change{Hash: h, Parents: parents, Content: content}, nil
}

// EncodeContent appends the canonical encoding of a content list alone
// (without a hash or parents), the form a Storage backend persists as a
// Change's opaque content column alongside its hash and parent edges as
// separate fields.
func EncodeContent(w *bytes.Buffer, content []Content) error {
	codec.EncodeUvarint(w, uint64(len(content)))
	for _, c := range content {
		if err := c.Encode(w); err != nil {
			return err
		}
	}
	return nil
}

// DecodeContentList reads a content list written by EncodeContent.
func DecodeContentList(r *bufio.Reader) ([]Content, error) {
	n, err := codec.DecodeUvarint(r)
	if err != nil {
		return nil, err
	}
	content := make([]Content, 0, n)
	for i := uint64(0); i < n; i++ {
		c, err := DecodeContent(r)
		if err != nil {
			return nil, err
		}
		content = append(content, c)
	}
	return content, nil
}

// Encode appends the canonical encoding of ch, including its hash, to w.
func (ch Change) Encode(w *bytes.Buffer) error {
	w.Write(ch.Hash[:])
	return payload(w, ch.Parents, ch.Content)
}

// Decode reads one canonically-encoded Change from r and verifies that its
// stored hash matches the hash of its own payload, rejecting any record
// that was corrupted or hand-tampered in storage.
func Decode(r *bufio.Reader) (Change, error) {
	var hash plumbing.Hash
	if _, err := io.ReadFull(r, hash[:]); err != nil {
		return Change{}, &codec.DecodeError{Context: "change hash", Err: err}
	}
	parents, err := codec.DecodeParents(r)
	if err != nil {
		return Change{}, err
	}
	n, err := codec.DecodeUvarint(r)
	if err != nil {
		return Change{}, err
	}
	content := make([]Content, 0, n)
	for i := uint64(0); i < n; i++ {
		c, err := DecodeContent(r)
		if err != nil {
			return Change{}, err
		}
		content = append(content, c)
	}
	var buf bytes.Buffer
	if err := payload(&buf, parents, content); err != nil {
		return Change{}, err
	}
	if plumbing.SumBytes(buf.Bytes()) != hash {
		return Change{}, &codec.DecodeError{Context: "change hash", Err: fmt.Errorf("stored hash does not match content")}
	}
	return Change{Hash: hash, Parents: parents, Content: content}, nil
}
