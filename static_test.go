package brisa

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestStaticServesFile(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "hello.txt", "hello world")

	s := newTestServer(t)
	s.Static("/assets", StaticFS{Root: dir})

	fctx := newTestCtx("GET", "/assets/hello.txt")
	s.handleFastHTTP(fctx)

	assert.Equal(t, 200, fctx.Response.StatusCode())
	assert.Equal(t, "hello world", string(fctx.Response.Body()))
}

func TestStaticRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "secret.txt", "nope")
	outside := t.TempDir()
	writeTestFile(t, outside, "leak.txt", "leaked")

	s := newTestServer(t)
	s.Static("/assets", StaticFS{Root: dir})

	fctx := newTestCtx("GET", "/assets/../../"+filepath.Base(outside)+"/leak.txt")
	s.handleFastHTTP(fctx)

	assert.NotEqual(t, 200, fctx.Response.StatusCode())
	assert.NotEqual(t, "leaked", string(fctx.Response.Body()))
}

func TestStaticMissingFileNotFound(t *testing.T) {
	dir := t.TempDir()

	s := newTestServer(t)
	s.Static("/assets", StaticFS{Root: dir})

	fctx := newTestCtx("GET", "/assets/missing.txt")
	s.handleFastHTTP(fctx)

	assert.Equal(t, 404, fctx.Response.StatusCode())
}

func TestStaticConditionalGetReturns304(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "hello.txt", "hello world")

	s := newTestServer(t)
	s.Static("/assets", StaticFS{Root: dir})

	fctx := newTestCtx("GET", "/assets/hello.txt")
	s.handleFastHTTP(fctx)
	etag := string(fctx.Response.Header.Peek("ETag"))
	require.NotEmpty(t, etag)

	fctx2 := newTestCtx("GET", "/assets/hello.txt")
	fctx2.Request.Header.Set("If-None-Match", etag)
	s.handleFastHTTP(fctx2)

	assert.Equal(t, 304, fctx2.Response.StatusCode())
}

func TestStaticRangeRequest(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "hello.txt", "hello world")

	s := newTestServer(t)
	s.Static("/assets", StaticFS{Root: dir})

	fctx := newTestCtx("GET", "/assets/hello.txt")
	fctx.Request.Header.Set("Range", "bytes=0-4")
	s.handleFastHTTP(fctx)

	assert.Equal(t, 206, fctx.Response.StatusCode())
	assert.Equal(t, "hello", string(fctx.Response.Body()))
	assert.Equal(t, "bytes 0-4/11", string(fctx.Response.Header.Peek("Content-Range")))
}

func TestStaticMalformedRangeReturns416(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "hello.txt", "hello world")

	s := newTestServer(t)
	s.Static("/assets", StaticFS{Root: dir})

	fctx := newTestCtx("GET", "/assets/hello.txt")
	fctx.Request.Header.Set("Range", "bytes=50-60")
	s.handleFastHTTP(fctx)

	assert.Equal(t, 416, fctx.Response.StatusCode())
	assert.Equal(t, "bytes */11", string(fctx.Response.Header.Peek("Content-Range")))
}

func TestStaticHiddenFileRejected(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, ".secret", "hidden")

	s := newTestServer(t)
	s.Static("/assets", StaticFS{Root: dir})

	fctx := newTestCtx("GET", "/assets/.secret")
	s.handleFastHTTP(fctx)

	assert.Equal(t, 404, fctx.Response.StatusCode())
}
