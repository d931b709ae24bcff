// Copyright (C) 2026 Wasmforge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/wasmforge/wasmforge/internal/config"
	"github.com/wasmforge/wasmforge/internal/logger"
)

// Check names recorded in VerifyOutcome.FailedChecks.
const (
	CheckMagic    = "magic_number"
	CheckVersion  = "version"
	CheckMinSize  = "min_size"
	CheckSections = "sections"
)

// wasmHeaderSize is the magic number plus the version word.
const wasmHeaderSize = 8

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d} // "\0asm"
var wasmVersion = []byte{0x01, 0x00, 0x00, 0x00}

// maxSectionID is the highest section id defined by the WASM binary format.
const maxSectionID = 12

var (
	verifyLog     *zerolog.Logger
	verifyLogOnce sync.Once
)

func getVerifyLog() *zerolog.Logger {
	verifyLogOnce.Do(func() {
		l := logger.GetVerifyLogger()
		verifyLog = &l
	})
	return verifyLog
}

// Verifier performs structural validation of a built WASM artifact without
// executing it. The verdict is a pure function of the artifact bytes: the same
// bytes always yield the same success flag and the same failed checks.
type Verifier struct {
	minSize int64

	// readFile is swappable for tests exercising the unreadable-artifact path.
	readFile func(path string) ([]byte, error)
}

// NewVerifier creates a verifier with the configured size threshold.
func NewVerifier(cfg config.VerifyConfig) *Verifier {
	return &Verifier{
		minSize:  cfg.MinSizeBytes,
		readFile: os.ReadFile,
	}
}

// Verify runs all structural checks over the artifact. Every failed check is
// recorded by name; only an unreadable file short-circuits, reported via
// ErrorMessage rather than FailedChecks. The artifact is never mutated.
func (v *Verifier) Verify(artifactPath string) VerifyOutcome {
	data, err := v.readFile(artifactPath)
	if err != nil {
		getVerifyLog().Error().Err(err).Str("artifact", artifactPath).Msg("Artifact unreadable")
		return VerifyOutcome{
			Success:      false,
			ErrorMessage: fmt.Sprintf("failed to read artifact %s: %v", artifactPath, err),
		}
	}

	var failed []string
	var lines []string

	record := func(name string, ok bool, detail string) {
		status := "ok"
		if !ok {
			status = "FAILED"
			failed = append(failed, name)
		}
		lines = append(lines, fmt.Sprintf("%-12s %s  %s", name, status, detail))
	}

	record(CheckMagic,
		len(data) >= len(wasmMagic) && bytes.Equal(data[:len(wasmMagic)], wasmMagic),
		`expected "\0asm" magic bytes`)

	record(CheckVersion,
		len(data) >= wasmHeaderSize && bytes.Equal(data[4:wasmHeaderSize], wasmVersion),
		"expected binary format version 1")

	record(CheckMinSize,
		int64(len(data)) >= v.minSize,
		fmt.Sprintf("%d bytes, minimum %d", len(data), v.minSize))

	record(CheckSections,
		wellFormedSections(data),
		"section ids and lengths must be well formed")

	outcome := VerifyOutcome{
		Success:      len(failed) == 0,
		RawOutput:    strings.Join(lines, "\n"),
		FailedChecks: failed,
	}

	if outcome.Success {
		getVerifyLog().Info().Str("artifact", artifactPath).Int("size", len(data)).Msg("Artifact verified")
	} else {
		getVerifyLog().Error().
			Str("artifact", artifactPath).
			Strs("failed_checks", failed).
			Msg("Artifact verification failed")
	}
	return outcome
}

// wellFormedSections walks the section table after the header: each section is
// an id byte (0..12) followed by a LEB128-encoded length that must not overrun
// the file. At least one section must be present.
func wellFormedSections(data []byte) bool {
	if len(data) <= wasmHeaderSize {
		return false
	}

	offset := wasmHeaderSize
	for offset < len(data) {
		id := data[offset]
		if id > maxSectionID {
			return false
		}
		offset++

		size, n := readVarUint32(data[offset:])
		if n == 0 {
			return false
		}
		offset += n

		if uint64(offset)+uint64(size) > uint64(len(data)) {
			return false
		}
		offset += int(size)
	}
	return true
}

// readVarUint32 decodes an unsigned LEB128 value, returning the value and the
// number of bytes consumed (0 on malformed input).
func readVarUint32(data []byte) (uint32, int) {
	var result uint32
	var shift uint
	for i := 0; i < len(data) && i < 5; i++ {
		b := data[i]
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, i + 1
		}
		shift += 7
	}
	return 0, 0
}
