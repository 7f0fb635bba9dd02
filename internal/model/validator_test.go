package model

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestStructuralValidator(t *testing.T) {
	dir := t.TempDir()
	valid := onnxBytes(64 << 10)

	noGraph := protowire.AppendTag(nil, fieldIRVersion, protowire.VarintType)
	noGraph = protowire.AppendVarint(noGraph, 7)

	noIR := protowire.AppendTag(nil, fieldGraph, protowire.BytesType)
	noIR = protowire.AppendBytes(noIR, []byte{1, 2, 3})

	tests := []struct {
		name    string
		data    []byte
		wantErr string
	}{
		{"valid", valid, ""},
		{"truncated", valid[:len(valid)-100], "declares"},
		{"truncated inside trailing field", valid[:len(valid)-1], ""},
		{"html error page", []byte("<!DOCTYPE html><html><body>rate limited</body></html>"), ""},
		{"missing graph", noGraph, "missing graph"},
		{"missing ir_version", noIR, "missing ir_version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, filepath.Join(dir, tt.name+".onnx"), tt.data)
			err := StructuralValidator{}.Validate(path)

			if tt.name == "valid" {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}
