// Copyright (C) 2026 Wasmforge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wasmforge/wasmforge/internal/config"
)

// wasmModule builds a structurally valid module of exactly size bytes: the
// 8-byte header followed by a single custom section whose length is encoded
// as a fixed-width 4-byte LEB128 value.
func wasmModule(t *testing.T, size int) []byte {
	t.Helper()
	require.GreaterOrEqual(t, size, 13, "need room for header, section id and length")

	payload := size - 13
	buf := make([]byte, 0, size)
	buf = append(buf, 0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00)
	buf = append(buf, 0x00) // custom section
	buf = append(buf,
		byte(0x80|payload&0x7f),
		byte(0x80|(payload>>7)&0x7f),
		byte(0x80|(payload>>14)&0x7f),
		byte((payload>>21)&0x7f))
	buf = append(buf, make([]byte, payload)...)
	return buf
}

func writeArtifact(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contract.wasm")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func newTestVerifier(minSize int64) *Verifier {
	return NewVerifier(config.VerifyConfig{MinSizeBytes: minSize})
}

func TestVerifyValidModule(t *testing.T) {
	path := writeArtifact(t, wasmModule(t, 50000))

	outcome := newTestVerifier(1024).Verify(path)

	require.True(t, outcome.Success)
	assert.Empty(t, outcome.FailedChecks)
	assert.Empty(t, outcome.ErrorMessage)
	for _, check := range []string{CheckMagic, CheckVersion, CheckMinSize, CheckSections} {
		assert.Contains(t, outcome.RawOutput, check)
	}
}

func TestVerifyBadMagic(t *testing.T) {
	data := wasmModule(t, 50000)
	data[0] = 0x7f

	outcome := newTestVerifier(1024).Verify(writeArtifact(t, data))

	require.False(t, outcome.Success)
	assert.Contains(t, outcome.FailedChecks, CheckMagic)
	assert.NotContains(t, outcome.FailedChecks, CheckVersion)
}

func TestVerifyBadVersion(t *testing.T) {
	data := wasmModule(t, 50000)
	data[4] = 0x02

	outcome := newTestVerifier(1024).Verify(writeArtifact(t, data))

	require.False(t, outcome.Success)
	assert.Contains(t, outcome.FailedChecks, CheckVersion)
	assert.NotContains(t, outcome.FailedChecks, CheckMagic)
}

func TestVerifyBelowMinimumSize(t *testing.T) {
	outcome := newTestVerifier(1024).Verify(writeArtifact(t, wasmModule(t, 100)))

	require.False(t, outcome.Success)
	assert.Contains(t, outcome.FailedChecks, CheckMinSize)
	// The size check failing does not hide the structural ones.
	assert.NotContains(t, outcome.FailedChecks, CheckSections)
}

func TestVerifyRecordsEveryFailedCheck(t *testing.T) {
	// Garbage that fails magic, version, size and section structure at once.
	garbage := []byte("definitely not a wasm module")

	outcome := newTestVerifier(1024).Verify(writeArtifact(t, garbage))

	require.False(t, outcome.Success)
	assert.ElementsMatch(t,
		[]string{CheckMagic, CheckVersion, CheckMinSize, CheckSections},
		outcome.FailedChecks)
}

func TestVerifyMalformedSections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(data []byte) []byte
	}{
		{
			name: "header only, no sections",
			mutate: func(data []byte) []byte {
				return data[:8]
			},
		},
		{
			name: "section id out of range",
			mutate: func(data []byte) []byte {
				data[8] = 0x3f
				return data
			},
		},
		{
			name: "section length overruns file",
			mutate: func(data []byte) []byte {
				return data[:len(data)-1]
			},
		},
		{
			name: "truncated length varint",
			mutate: func(data []byte) []byte {
				return data[:10]
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mutate(wasmModule(t, 50000))
			outcome := newTestVerifier(1024).Verify(writeArtifact(t, data))

			require.False(t, outcome.Success)
			assert.Contains(t, outcome.FailedChecks, CheckSections)
		})
	}
}

func TestVerifyIsDeterministic(t *testing.T) {
	data := wasmModule(t, 50000)
	data[0] = 0x7f
	path := writeArtifact(t, data)
	v := newTestVerifier(1024)

	first := v.Verify(path)
	second := v.Verify(path)

	assert.Equal(t, first.Success, second.Success)
	assert.Equal(t, first.FailedChecks, second.FailedChecks)
	assert.Equal(t, first.RawOutput, second.RawOutput)
}

func TestVerifyUnreadableArtifact(t *testing.T) {
	v := newTestVerifier(1024)
	v.readFile = func(path string) ([]byte, error) {
		return nil, fmt.Errorf("open %s: permission denied", path)
	}

	outcome := v.Verify("/builds/contract.wasm")

	require.False(t, outcome.Success)
	assert.Empty(t, outcome.FailedChecks)
	assert.Contains(t, outcome.ErrorMessage, "failed to read artifact")
	assert.Contains(t, outcome.ErrorMessage, "/builds/contract.wasm")
}

func TestVerifyMissingArtifact(t *testing.T) {
	outcome := newTestVerifier(1024).Verify(filepath.Join(t.TempDir(), "absent.wasm"))

	require.False(t, outcome.Success)
	assert.Contains(t, outcome.ErrorMessage, "failed to read artifact")
}

func TestReadVarUint32(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		value    uint32
		consumed int
	}{
		{"single byte", []byte{0x08}, 8, 1},
		{"three bytes", []byte{0xe5, 0x8e, 0x26}, 624485, 3},
		{"padded encoding", []byte{0x80, 0x80, 0x80, 0x00}, 0, 4},
		{"empty input", nil, 0, 0},
		{"unterminated", []byte{0x80, 0x80}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, consumed := readVarUint32(tt.input)
			assert.Equal(t, tt.value, value)
			assert.Equal(t, tt.consumed, consumed)
		})
	}
}
