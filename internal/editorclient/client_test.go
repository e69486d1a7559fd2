package editorclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeglide/sidecar/internal/editorclient"
)

func TestOpenFile_RoundTrips(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/open_file", r.URL.Path)
		var req editorclient.OpenFileRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "main.go", req.FSPath)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(editorclient.OpenFileResponse{
			ActedPath: editorclient.ActedPath{FSPath: req.FSPath},
			Content:   "package main\n",
		})
	}))
	defer srv.Close()

	c := editorclient.New(srv.URL, "")
	resp, err := c.OpenFile(context.Background(), editorclient.OpenFileRequest{FSPath: "main.go"})
	require.NoError(t, err)
	assert.Equal(t, "main.go", resp.FSPath)
	assert.Equal(t, "package main\n", resp.Content)
}

func TestPost_NonOKStatus_BecomesWorkspaceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"boom"}`))
	}))
	defer srv.Close()

	c := editorclient.New(srv.URL, "")
	_, err := c.OpenFile(context.Background(), editorclient.OpenFileRequest{FSPath: "x.go"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workspace error")
}

func TestTeeMirror_NeverBlocksOrSurfacesFailure(t *testing.T) {
	var calls int32
	editorSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(editorclient.OpenFileResponse{Content: "ok"})
	}))
	defer editorSrv.Close()

	teeSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer teeSrv.Close()

	c := editorclient.New(editorSrv.URL, teeSrv.URL)
	resp, err := c.OpenFile(context.Background(), editorclient.OpenFileRequest{FSPath: "x.go"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestTeeMirror_UnreachableDoesNotFailRequest(t *testing.T) {
	editorSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(editorclient.OpenFileResponse{Content: "ok"})
	}))
	defer editorSrv.Close()

	c := editorclient.New(editorSrv.URL, "http://127.0.0.1:1")
	resp, err := c.OpenFile(context.Background(), editorclient.OpenFileRequest{FSPath: "x.go"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
}
