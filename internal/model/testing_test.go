package model

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

// onnxBytes builds a minimal ModelProto envelope with a padded graph field.
func onnxBytes(graphSize int) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldIRVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, 8)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, "swapface-test")
	b = protowire.AppendTag(b, fieldGraph, protowire.BytesType)
	b = protowire.AppendBytes(b, bytes.Repeat([]byte{0x0a}, graphSize))
	b = protowire.AppendTag(b, 8, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte{0x10, 0x11})
	return b
}

func writeFile(t *testing.T, path string, data []byte) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}
