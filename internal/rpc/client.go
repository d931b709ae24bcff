// Copyright (C) 2026 Wasmforge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package rpc implements the JSON-RPC submission client for the deployment
// endpoint. The endpoint is opaque: the client only distinguishes a structured
// success (carrying a deploy hash) from a structured error (carrying a
// machine-classifiable code/message) and from transport failures.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/wasmforge/wasmforge/internal/logger"
)

// putDeployMethod is the JSON-RPC method accepting a signed deploy payload.
const putDeployMethod = "account_put_deploy"

// maxResponseBytes bounds how much of a response body is read (1MB).
const maxResponseBytes = 1 << 20

// Error is a structured error returned by the submission endpoint. It carries
// the machine-classifiable code and text the retry classifier inspects.
type Error struct {
	Code    int64
	Message string
	Data    string
}

func (e *Error) Error() string {
	if e.Data != "" {
		return fmt.Sprintf("rpc error %d: %s (%s)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// TransportError wraps failures reaching the endpoint at all (connection
// refused, DNS, unexpected HTTP status). These never carry a structured code.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Client submits signed deploy payloads to a node's JSON-RPC endpoint.
type Client struct {
	url        string
	authToken  string
	httpClient *http.Client
}

// NewClient creates a client for the given endpoint URL. When authToken is
// non-empty it is sent as the Authorization header on every request.
func NewClient(nodeURL, authToken string) *Client {
	return &Client{
		url:       nodeURL,
		authToken: authToken,
		// Per-attempt deadlines come from the caller's context; the transport
		// timeout is a safety net for stuck connections.
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

type rpcRequest struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rpcResponse struct {
	Result *struct {
		DeployHash string `json:"deploy_hash"`
	} `json:"result"`
	Error *struct {
		Code    int64           `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	} `json:"error"`
}

// PutDeploy reads the signed payload file and submits it, returning the deploy
// hash acknowledged by the endpoint. Structured endpoint errors are returned
// as *Error; anything else as *TransportError or a wrapped local error.
// The payload body is never logged.
func (c *Client) PutDeploy(ctx context.Context, payloadPath string) (string, error) {
	log := logger.GetRPCLogger()

	payload, err := os.ReadFile(payloadPath)
	if err != nil {
		return "", fmt.Errorf("failed to read payload file: %w", err)
	}

	params, err := json.Marshal(map[string]json.RawMessage{"deploy": payload})
	if err != nil {
		return "", fmt.Errorf("failed to encode params: %w", err)
	}

	body, err := json.Marshal(rpcRequest{
		Jsonrpc: "2.0",
		ID:      1,
		Method:  putDeployMethod,
		Params:  params,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", c.authToken)
	}

	log.Debug().Str("url", c.url).Int("payload_bytes", len(payload)).Msg("Submitting deploy")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Preserve context errors so the caller can distinguish its own
		// deadline from endpoint unreachability.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", &TransportError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &TransportError{Err: fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)}
	}

	var parsed rpcResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &TransportError{Err: fmt.Errorf("malformed response: %w", err)}
	}

	if parsed.Error != nil {
		rpcErr := &Error{
			Code:    parsed.Error.Code,
			Message: parsed.Error.Message,
			Data:    rawToString(parsed.Error.Data),
		}
		log.Warn().Int64("code", rpcErr.Code).Str("message", rpcErr.Message).Msg("Endpoint returned error")
		return "", rpcErr
	}

	if parsed.Result == nil || parsed.Result.DeployHash == "" {
		return "", &TransportError{Err: fmt.Errorf("response carried neither result nor error")}
	}

	log.Info().Str("deploy_hash", parsed.Result.DeployHash).Msg("Deploy accepted")
	return parsed.Result.DeployHash, nil
}

// rawToString flattens the free-form error data field (string or object) into
// text for phrase classification.
func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
