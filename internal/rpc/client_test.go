// Copyright (C) 2026 Wasmforge
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePayload(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deploy.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"deploy":{"approvals":[]}}`), 0644))
	return path
}

func TestPutDeploySuccess(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotContentType = r.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"deploy_hash":"f00dfeed"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	hash, err := client.PutDeploy(context.Background(), writePayload(t))

	require.NoError(t, err)
	assert.Equal(t, "f00dfeed", hash)
	assert.Equal(t, "application/json", gotContentType)

	var req struct {
		Jsonrpc string `json:"jsonrpc"`
		Method  string `json:"method"`
		Params  struct {
			Deploy json.RawMessage `json:"deploy"`
		} `json:"params"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &req))
	assert.Equal(t, "2.0", req.Jsonrpc)
	assert.Equal(t, "account_put_deploy", req.Method)
	assert.JSONEq(t, `{"approvals":[]}`, string(req.Params.Deploy))
}

func TestPutDeploySendsAuthorizationHeader(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"result":{"deploy_hash":"aa"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "Bearer s3cret")
	_, err := client.PutDeploy(context.Background(), writePayload(t))

	require.NoError(t, err)
	assert.Equal(t, "Bearer s3cret", gotAuth)
}

func TestPutDeployOmitsAuthorizationWhenUnset(t *testing.T) {
	var hasAuth bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasAuth = r.Header["Authorization"]
		w.Write([]byte(`{"result":{"deploy_hash":"aa"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	_, err := client.PutDeploy(context.Background(), writePayload(t))

	require.NoError(t, err)
	assert.False(t, hasAuth)
}

func TestPutDeployStructuredError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32001,"message":"deploy received","data":"the deploy timestamp is in the future"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	_, err := client.PutDeploy(context.Background(), writePayload(t))

	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, int64(-32001), rpcErr.Code)
	assert.Equal(t, "deploy received", rpcErr.Message)
	assert.Equal(t, "the deploy timestamp is in the future", rpcErr.Data)
	assert.Contains(t, rpcErr.Error(), "-32001")
}

func TestPutDeployStructuredErrorObjectData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":-32008,"message":"invalid deploy","data":{"reason":"bad signature"}}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	_, err := client.PutDeploy(context.Background(), writePayload(t))

	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Contains(t, rpcErr.Data, "bad signature")
}

func TestPutDeployUnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	_, err := client.PutDeploy(context.Background(), writePayload(t))

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Contains(t, err.Error(), "502")
}

func TestPutDeployUnreachableEndpoint(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "")
	_, err := client.PutDeploy(context.Background(), writePayload(t))

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
}

func TestPutDeployMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway</html>`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	_, err := client.PutDeploy(context.Background(), writePayload(t))

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Contains(t, err.Error(), "malformed response")
}

func TestPutDeployEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	_, err := client.PutDeploy(context.Background(), writePayload(t))

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Contains(t, err.Error(), "neither result nor error")
}

func TestPutDeployMissingPayloadFile(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "")
	_, err := client.PutDeploy(context.Background(), filepath.Join(t.TempDir(), "absent.json"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read payload file")
}

func TestPutDeployContextDeadlinePreserved(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		w.Write([]byte(`{"result":{"deploy_hash":"aa"}}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(server.URL, "")
	_, err := client.PutDeploy(ctx, writePayload(t))

	// The caller's deadline surfaces as-is so the retry classifier can treat
	// it as transient.
	require.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestRawToString(t *testing.T) {
	assert.Equal(t, "", rawToString(nil))
	assert.Equal(t, "plain text", rawToString(json.RawMessage(`"plain text"`)))
	assert.Equal(t, `{"k":"v"}`, rawToString(json.RawMessage(`{"k":"v"}`)))
}
