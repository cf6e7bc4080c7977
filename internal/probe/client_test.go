package probe

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientDo_CapturesStatusAndBody(t *testing.T) {
	var gotQuery, gotContentType, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotContentType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		if r.Body != nil {
			data, _ := io.ReadAll(r.Body)
			if len(data) > 0 {
				_ = json.Unmarshal(data, &gotBody)
			}
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(Config{Timeout: time.Second})

	resp, err := c.Do(context.Background(), Request{
		Method:  "post",
		URL:     srv.URL + "/run?x=1",
		Query:   url.Values{"user_id": {"1"}},
		Headers: map[string]string{"Authorization": "Bearer abc"},
		Body:    map[string]any{"team_id": 1},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, resp.Success())
	assert.Equal(t, `{"ok":true}`, string(resp.Body))
	assert.Contains(t, gotQuery, "user_id=1")
	assert.Contains(t, gotQuery, "x=1")
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "Bearer abc", gotAuth)
	assert.Equal(t, float64(1), gotBody["team_id"])
}

func TestClientDo_NonSuccessIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := New(Config{}).Do(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, resp.Success())

	remote := NewRemoteError(resp)
	assert.Equal(t, 404, remote.StatusCode)
	assert.Contains(t, remote.Error(), "HTTP 404")
}

func TestClientDo_TimeoutIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := New(Config{Timeout: 50 * time.Millisecond}).Do(context.Background(), Request{URL: srv.URL})
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.True(t, te.Timeout)
	assert.True(t, IsTimeout(err))
	assert.True(t, strings.HasPrefix(err.Error(), "TIMEOUT"))
}

func TestClientDo_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := New(Config{Timeout: time.Second}).Do(context.Background(), Request{URL: addr})
	require.Error(t, err)
	assert.False(t, IsTimeout(err))
}

func TestResponsePreview(t *testing.T) {
	r := &Response{Body: []byte(strings.Repeat("a", 300))}
	assert.Len(t, r.Preview(10), 13)
	assert.Equal(t, "short", (&Response{Body: []byte(" short ")}).Preview(10))
}
