package adapter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"migration-auditor/internal/probe"
)

func newTestHTTPSource(t *testing.T, handler http.HandlerFunc) *HTTPSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := NewHTTPSource(probe.New(probe.Config{}), HTTPConfig{
		ContentURL: srv.URL + "/table/{table_id}/content",
		Token:      "meta-token",
	})
	require.NoError(t, err)
	return s
}

func TestHTTPSource_SampleRows(t *testing.T) {
	s := newTestHTTPSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/table/102/content", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("per_page"))
		assert.Equal(t, "Bearer meta-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"items":[{"id":7,"user_id":1000000}],"itemsTotal":42}`))
	})

	page, err := s.SampleRows(context.Background(), TableRef{ID: 102, Name: "user_credentials"}, 1)
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "7", page.Rows[0].ID())
	assert.Equal(t, "1000000", FormatValue(page.Rows[0]["user_id"]))
	assert.Equal(t, int64(42), page.RecordCount())
	assert.Equal(t, http.StatusOK, page.StatusCode)
}

func TestHTTPSource_SampleRowsBareArray(t *testing.T) {
	s := newTestHTTPSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	page, err := s.SampleRows(context.Background(), TableRef{ID: 1}, 1)
	require.NoError(t, err)
	assert.Empty(t, page.Rows)
	assert.False(t, page.TotalKnown)
	assert.Equal(t, int64(0), page.RecordCount())
}

func TestHTTPSource_SampleRowsRemoteError(t *testing.T) {
	s := newTestHTTPSource(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"table not found"}`, http.StatusNotFound)
	})

	_, err := s.SampleRows(context.Background(), TableRef{ID: 1}, 1)
	var remote *probe.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusNotFound, remote.StatusCode)
}

func TestHTTPSource_Exists(t *testing.T) {
	s := newTestHTTPSource(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/table/101/content/5":
			_, _ = w.Write([]byte(`{"id":5}`))
		case r.URL.Path == "/table/101/content/6":
			http.NotFound(w, r)
		case r.URL.Path == "/table/101/content/search":
			body, _ := io.ReadAll(r.Body)
			if strings.Contains(string(body), `"email":"a@b.c"`) {
				_, _ = w.Write([]byte(`{"items":[{"id":1}],"itemsTotal":1}`))
				return
			}
			_, _ = w.Write([]byte(`{"items":[],"itemsTotal":0}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	ctx := context.Background()
	parent := TableRef{ID: 101, Name: "user"}

	ok, err := s.Exists(ctx, parent, "id", float64(5))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, parent, "id", 6)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Exists(ctx, parent, "email", "a@b.c")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, parent, "email", "x@y.z")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Exists(ctx, parent, "id", 99)
	assert.Error(t, err)
}

func TestNewHTTPSource_RequiresTablePlaceholder(t *testing.T) {
	_, err := NewHTTPSource(probe.New(probe.Config{}), HTTPConfig{ContentURL: "http://x/content"})
	assert.Error(t, err)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "12", FormatValue(float64(12)))
	assert.Equal(t, "1.5", FormatValue(1.5))
	assert.Equal(t, "abc", FormatValue([]byte("abc")))
	assert.Equal(t, "42", FormatValue(int64(42)))
}
