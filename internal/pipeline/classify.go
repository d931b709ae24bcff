// Copyright (C) 2026 Wasmforge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"errors"
	"strings"

	"github.com/wasmforge/wasmforge/internal/rpc"
)

// Classification partitions submission errors into those worth retrying and
// those that retrying cannot fix.
type Classification int

const (
	// ClassTransient marks an error expected to resolve with time, such as
	// node clock skew or temporary unavailability.
	ClassTransient Classification = iota
	// ClassTerminal marks an error that retrying cannot fix, such as a
	// malformed payload or insufficient funds.
	ClassTerminal
)

func (c Classification) String() string {
	if c == ClassTransient {
		return "transient"
	}
	return "terminal"
}

// Classifier decides whether a submission error is transient or terminal.
// It must be exhaustive by default: anything it does not recognize is
// terminal, never retried indefinitely.
type Classifier func(err error) Classification

// transientCodes maps structured endpoint error codes to retryable conditions.
var transientCodes = map[int64]bool{
	-32603: true, // internal error on the node
	429:    true, // rate limited
	503:    true, // temporarily unavailable
}

// transientPhrases are message fragments observed from nodes for conditions
// that resolve on their own. Matching is case-insensitive over the structured
// error's message and data fields.
var transientPhrases = []string{
	"timestamp is in the future",
	"temporarily unavailable",
	"too many requests",
	"rate limit",
	"node is syncing",
}

// DefaultClassifier classifies submission errors using the structured error
// code table first, then the known transient phrases. Per-attempt timeouts
// and transport-level failures are transient (the endpoint may simply be
// unreachable right now); everything unrecognized is terminal.
func DefaultClassifier(err error) Classification {
	if err == nil {
		return ClassTerminal
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	if errors.Is(err, context.Canceled) {
		return ClassTerminal
	}

	var rpcErr *rpc.Error
	if errors.As(err, &rpcErr) {
		if transientCodes[rpcErr.Code] {
			return ClassTransient
		}
		text := strings.ToLower(rpcErr.Message + " " + rpcErr.Data)
		for _, phrase := range transientPhrases {
			if strings.Contains(text, phrase) {
				return ClassTransient
			}
		}
		return ClassTerminal
	}

	var transportErr *rpc.TransportError
	if errors.As(err, &transportErr) {
		return ClassTransient
	}

	return ClassTerminal
}
