package model

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"google.golang.org/protobuf/encoding/protowire"
)

// Validator checks the content of a model file that already passed the size check.
type Validator interface {
	Validate(path string) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(path string) error

// Validate calls f(path).
func (f ValidatorFunc) Validate(path string) error { return f(path) }

// ModelProto field numbers from onnx.proto.
const (
	fieldIRVersion protowire.Number = 1
	fieldGraph     protowire.Number = 7
)

// StructuralValidator walks the top-level fields of an ONNX ModelProto
// without decoding the graph. It catches truncated downloads and files that
// are not protobuf at all.
type StructuralValidator struct{}

// Validate implements Validator.
func (StructuralValidator) Validate(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	s := &protoScanner{f: f, r: bufio.NewReader(f), size: info.Size()}

	var hasIR, hasGraph bool
	for s.off < s.size {
		tag, err := s.uvarint()
		if err != nil {
			return fmt.Errorf("truncated field tag at offset %d", s.off)
		}

		num, typ := protowire.DecodeTag(tag)
		if !num.IsValid() {
			return fmt.Errorf("invalid field number %d at offset %d", num, s.off)
		}

		switch typ {
		case protowire.VarintType:
			if _, err := s.uvarint(); err != nil {
				return fmt.Errorf("truncated varint field %d", num)
			}
			if num == fieldIRVersion {
				hasIR = true
			}

		case protowire.Fixed32Type:
			if err := s.skip(4); err != nil {
				return fmt.Errorf("truncated fixed32 field %d", num)
			}

		case protowire.Fixed64Type:
			if err := s.skip(8); err != nil {
				return fmt.Errorf("truncated fixed64 field %d", num)
			}

		case protowire.BytesType:
			n, err := s.uvarint()
			if err != nil {
				return fmt.Errorf("truncated length of field %d", num)
			}
			if n > uint64(s.size-s.off) {
				return fmt.Errorf("field %d declares %d bytes but only %d remain", num, n, s.size-s.off)
			}
			if num == fieldGraph && n > 0 {
				hasGraph = true
			}
			if err := s.skip(int64(n)); err != nil {
				return fmt.Errorf("truncated field %d", num)
			}

		default:
			return fmt.Errorf("unexpected wire type %d for field %d", typ, num)
		}
	}

	switch {
	case !hasIR:
		return errors.New("missing ir_version")
	case !hasGraph:
		return errors.New("missing graph")
	}

	return nil
}

// protoScanner reads varints through a buffer and seeks past large fields.
type protoScanner struct {
	f    *os.File
	r    *bufio.Reader
	off  int64
	size int64
}

func (s *protoScanner) ReadByte() (byte, error) {
	b, err := s.r.ReadByte()
	if err == nil {
		s.off++
	}
	return b, err
}

func (s *protoScanner) uvarint() (uint64, error) {
	v, err := binary.ReadUvarint(s)
	if errors.Is(err, io.EOF) {
		return 0, io.ErrUnexpectedEOF
	}
	return v, err
}

func (s *protoScanner) skip(n int64) error {
	if s.off+n > s.size {
		return io.ErrUnexpectedEOF
	}

	if n <= int64(s.r.Buffered()) {
		if _, err := s.r.Discard(int(n)); err != nil {
			return err
		}
	} else {
		if _, err := s.f.Seek(s.off+n, io.SeekStart); err != nil {
			return err
		}
		s.r.Reset(s.f)
	}

	s.off += n
	return nil
}
