package tool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, tl Tool, args string) (*Result, error) {
	t.Helper()
	return tl.Execute(context.Background(), json.RawMessage(args), &Context{})
}

func TestReadFileTool(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\ntwo\nthree"), 0o644))

	tl := NewReadFileTool(dir)
	res, err := execute(t, tl, `{"path": "a.txt"}`)
	require.NoError(t, err)
	assert.Contains(t, res.Output, "1\tone")
	assert.Contains(t, res.Output, "3\tthree")

	res, err = execute(t, tl, `{"path": "a.txt", "offset": 2, "limit": 1}`)
	require.NoError(t, err)
	assert.Contains(t, res.Output, "2\ttwo")
	assert.NotContains(t, res.Output, "three")

	_, err = execute(t, tl, `{"path": "missing.txt"}`)
	assert.Error(t, err)
}

func TestReadFileTool_RejectsEscape(t *testing.T) {
	tl := NewReadFileTool(t.TempDir())
	_, err := execute(t, tl, `{"path": "../../etc/passwd"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes the workspace")
}

func TestWriteFileTool(t *testing.T) {
	dir := t.TempDir()
	tl := NewWriteFileTool(dir)

	res, err := execute(t, tl, `{"path": "sub/new.txt", "content": "hello"}`)
	require.NoError(t, err)
	assert.Contains(t, res.Output, "5 bytes")

	data, err := os.ReadFile(filepath.Join(dir, "sub", "new.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestListDirTool(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.go"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "pkg"), 0o755))

	tl := NewListDirTool(dir)
	res, err := execute(t, tl, `{}`)
	require.NoError(t, err)
	assert.Contains(t, res.Output, "file.go")
	assert.Contains(t, res.Output, "pkg/")
}

func TestGlobTool(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src", "deep"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src", "deep", "util.go"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), nil, 0o644))

	tl := NewGlobTool(dir)
	res, err := execute(t, tl, `{"pattern": "**/*.go"}`)
	require.NoError(t, err)
	assert.Contains(t, res.Output, "main.go")
	assert.Contains(t, res.Output, filepath.Join("src", "deep", "util.go"))
	assert.NotContains(t, res.Output, "readme.md")

	res, err = execute(t, tl, `{"pattern": "*.rs"}`)
	require.NoError(t, err)
	assert.Equal(t, "No files matched the pattern", res.Output)
}

func TestFetchTool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><script>evil()</script></head><body><h1>Title</h1><p>Body text</p></body></html>`))
	}))
	defer srv.Close()

	tl := NewFetchTool()

	res, err := execute(t, tl, `{"url": "`+srv.URL+`", "format": "markdown"}`)
	require.NoError(t, err)
	assert.Contains(t, res.Output, "# Title")
	assert.NotContains(t, res.Output, "evil")

	res, err = execute(t, tl, `{"url": "`+srv.URL+`", "format": "text"}`)
	require.NoError(t, err)
	assert.Contains(t, res.Output, "Body text")
	assert.NotContains(t, res.Output, "<p>")

	_, err = execute(t, tl, `{"url": "ftp://nope"}`)
	assert.Error(t, err)
}

func TestHashTool(t *testing.T) {
	tl := NewHashTool()

	res, err := execute(t, tl, `{"input": "abc"}`)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", res.Output)

	res, err = execute(t, tl, `{"input": "abc", "algorithm": "md5"}`)
	require.NoError(t, err)
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", res.Output)

	_, err = execute(t, tl, `{"input": "abc", "algorithm": "crc32"}`)
	assert.Error(t, err)
}

func TestBase64Tool(t *testing.T) {
	tl := NewBase64Tool()

	res, err := execute(t, tl, `{"input": "hi"}`)
	require.NoError(t, err)
	assert.Equal(t, "aGk=", res.Output)

	res, err = execute(t, tl, `{"input": "aGk=", "decode": true}`)
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Output)

	_, err = execute(t, tl, `{"input": "!!!", "decode": true}`)
	assert.Error(t, err)
}

func TestUUIDTool(t *testing.T) {
	tl := NewUUIDTool()

	res, err := execute(t, tl, `{"count": 3}`)
	require.NoError(t, err)
	ids := strings.Split(res.Output, "\n")
	require.Len(t, ids, 3)
	assert.NotEqual(t, ids[0], ids[1])
	for _, id := range ids {
		assert.Len(t, id, 36)
	}
}
