package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/heartline/internal/app"
	"github.com/oggyb/heartline/internal/db"
	"github.com/oggyb/heartline/internal/metrics"
	"github.com/oggyb/heartline/internal/realtime"
	"github.com/oggyb/heartline/internal/server"
	"github.com/oggyb/heartline/internal/session"
	"github.com/oggyb/heartline/internal/storage"
	tu "github.com/oggyb/heartline/internal/testutil"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newHTTPServer(t *testing.T) (*httptest.Server, *app.AppContext) {
	t.Helper()
	bucket, err := storage.NewFSBucket(t.TempDir(), "http://localhost/photos")
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	appCtx := tu.NewAppContext(t, app.WithBucket(bucket), app.WithMetrics(metrics.New(reg)))

	ts := httptest.NewServer(server.NewHTTPHandler(appCtx, server.NewAuthenticator(appCtx), reg))
	t.Cleanup(ts.Close)
	return ts, appCtx
}

func tokenOf(t *testing.T, appCtx *app.AppContext, userID string) string {
	t.Helper()
	tok, _, err := appCtx.Issuer.Issue(session.Session{UserID: userID, Email: userID + "@example.com"})
	require.NoError(t, err)
	return tok
}

func upload(t *testing.T, ts *httptest.Server, token string, body []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("photo", "me.png")
	require.NoError(t, err)
	_, err = fw.Write(body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/v1/photos", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHTTP_HealthAndMetrics(t *testing.T) {
	ts, _ := newHTTPServer(t)

	resp, err := ts.Client().Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ts.Client().Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func TestHTTP_PhotoUploadAndServe(t *testing.T) {
	ts, appCtx := newHTTPServer(t)
	tok := tokenOf(t, appCtx, "u1")
	photo := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 64)...)

	resp := upload(t, ts, "", photo)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = upload(t, ts, tok, []byte("definitely not an image"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var keys []string
	for i := 0; i < 2; i++ {
		resp = upload(t, ts, tok, photo)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var out struct {
			Key string `json:"key"`
			URL string `json:"url"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.True(t, strings.HasPrefix(out.Key, "u1/photo_"), out.Key)
		assert.True(t, strings.HasSuffix(out.Key, ".jpg"), out.Key)
		assert.Equal(t, "http://localhost/photos/"+out.Key, out.URL)
		keys = append(keys, out.Key)
	}
	assert.True(t, strings.HasPrefix(keys[0], "u1/photo_1_"))
	assert.True(t, strings.HasPrefix(keys[1], "u1/photo_2_"))

	got, err := ts.Client().Get(ts.URL + "/photos/" + keys[0])
	require.NoError(t, err)
	defer got.Body.Close()
	assert.Equal(t, http.StatusOK, got.StatusCode)
	assert.Equal(t, "image/png", got.Header.Get("Content-Type"))
	data, _ := io.ReadAll(got.Body)
	assert.Equal(t, photo, data)

	missing, err := ts.Client().Get(ts.URL + "/photos/u1/nope.jpg")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestHTTP_PhotoTooLarge(t *testing.T) {
	ts, appCtx := newHTTPServer(t)
	appCtx.Config.Storage.MaxUploadBytes = 1024

	photo := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 4096)...)
	resp := upload(t, ts, tokenOf(t, appCtx, "u1"), photo)
	assert.GreaterOrEqual(t, resp.StatusCode, 400)
	assert.NotEqual(t, http.StatusCreated, resp.StatusCode)
}

func wsURL(ts *httptest.Server, token, filter string) string {
	q := url.Values{}
	if token != "" {
		q.Set("token", token)
	}
	q.Set("filter", filter)
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/realtime?" + q.Encode()
}

func TestHTTP_WebsocketFeed(t *testing.T) {
	ts, appCtx := newHTTPServer(t)
	tu.SeedProfiles(t, appCtx.DB, "Ana", "Ben")

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, tokenOf(t, appCtx, "u1"), "likes:liked_id=eq.u1"), nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()
	require.Eventually(t, func() bool { return appCtx.Hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err = appCtx.Pipeline.Like(context.Background(), "u2", "u1", false)
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var c realtime.Change
	require.NoError(t, conn.ReadJSON(&c))
	assert.Equal(t, realtime.TableLikes, c.Table)
	assert.Equal(t, realtime.OpInsert, c.Op)
	l, err := realtime.Decode[db.Like](c)
	require.NoError(t, err)
	assert.Equal(t, "u2", l.LikerID)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return appCtx.Hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHTTP_WebsocketRejects(t *testing.T) {
	ts, appCtx := newHTTPServer(t)

	tests := []struct {
		name   string
		token  string
		filter string
		code   int
	}{
		{"no token", "", "likes:liked_id=eq.u1", http.StatusUnauthorized},
		{"bad filter", tokenOf(t, appCtx, "u1"), "likes", http.StatusBadRequest},
		{"other user", tokenOf(t, appCtx, "u1"), "likes:liked_id=eq.u2", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts, tt.token, tt.filter), nil)
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			defer resp.Body.Close()
			assert.Equal(t, tt.code, resp.StatusCode)
		})
	}
}
