package http_utils

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultipartBody(t *testing.T) {
	var gotField, gotName, gotType string
	var gotData []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotField = r.FormValue("deviceId")
		f, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer f.Close()
		gotName = header.Filename
		gotType = header.Header.Get("Content-Type")
		gotData, _ = io.ReadAll(f)
	}))
	defer server.Close()

	body, contentType, err := MultipartBody(map[string]string{"deviceId": "dev-1"},
		FormFile{Field: "image", FileName: "frame.jpg", ContentType: "image/jpeg", Data: []byte{0xff, 0xd8}})
	require.NoError(t, err)

	resp, err := http.Post(server.URL, contentType, body)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "dev-1", gotField)
	assert.Equal(t, "frame.jpg", gotName)
	assert.Equal(t, "image/jpeg", gotType)
	assert.Equal(t, []byte{0xff, 0xd8}, gotData)
}

func TestCheckStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/created" {
			w.WriteHeader(http.StatusCreated)
			return
		}
		http.Error(w, "backend exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	resp, err := http.Get(server.URL + "/created")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.NoError(t, CheckStatus(resp, http.StatusOK, http.StatusCreated))
	assert.Error(t, CheckStatus(resp))

	resp2, err := http.Get(server.URL + "/fail")
	require.NoError(t, err)
	defer resp2.Body.Close()
	err = CheckStatus(resp2)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Equal(t, "backend exploded", statusErr.Body)
}
