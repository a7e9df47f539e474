package daemon

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openrecovery/blkmap/api"
	"github.com/openrecovery/blkmap/sysmap"
)

func testDaemon(t *testing.T, content []byte) (*daemon, string) {
	path := filepath.Join(t.TempDir(), "image")
	require.NoError(t, os.WriteFile(path, content, 0600))

	mapping, err := sysmap.MapFile(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mapping.Release())
	})

	s := &daemon{
		Mappings: map[string]*mappedFile{
			"abc": {UUID: "abc", Path: path, mapping: mapping},
		},
	}
	s.Router = createRouter(s)
	return s, path
}

func TestMappingContent(t *testing.T) {
	content := []byte("mapped image content")
	s, _ := testDaemon(t, content)

	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/mappings/abc/content", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, content, w.Body.Bytes())
}

func TestMappingInspect(t *testing.T) {
	content := []byte("mapped image content")
	s, path := testDaemon(t, content)

	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/mappings/abc", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.MappingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "abc", resp.UUID)
	require.Equal(t, path, resp.Path)
	require.Equal(t, int64(len(content)), resp.Length)
	require.Equal(t, 1, resp.RangeCount)
}

func TestMappingList(t *testing.T) {
	s, path := testDaemon(t, []byte("mapped image content"))

	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/mappings", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.MappingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Mappings, 1)
	require.Equal(t, path, resp.Mappings["abc"].Path)
}

func TestMappingNotFound(t *testing.T) {
	s, _ := testDaemon(t, []byte("mapped image content"))

	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, httptest.NewRequest("GET", "/v1/mappings/nope", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}
