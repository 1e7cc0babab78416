package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ButyrinIA/postadmin/internal/config"
	"github.com/ButyrinIA/postadmin/internal/gateway"
	"github.com/ButyrinIA/postadmin/internal/metrics"
	"github.com/ButyrinIA/postadmin/internal/models"
	"github.com/ButyrinIA/postadmin/internal/storage/memory"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Host: "127.0.0.1", Port: "0"},
		Gateway: config.GatewayConfig{Timeout: 2 * time.Second},
		List:    config.ListConfig{DefaultPageSize: 20},
	}
}

func seedPosts(n int) []models.Post {
	out := make([]models.Post, 0, n)
	for id := int64(n); id >= 1; id-- {
		out = append(out, models.Post{ID: id, Title: "post", Content: "c", Order: int(id)})
	}
	return out
}

func newTestServer(t *testing.T, n int) (*Server, *httptest.Server) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	gw := gateway.Instrument(gateway.NewService(memory.New(seedPosts(n)...), gateway.Options{}), m)

	s := New(testConfig(), gw, m, reg)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func do(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestNewServer(t *testing.T) {
	s, _ := newTestServer(t, 0)
	assert.NotNil(t, s.Handler())
	assert.Equal(t, "127.0.0.1:0", s.http.Addr)
}

func TestHealthAndMetrics(t *testing.T) {
	_, ts := newTestServer(t, 1)

	resp := do(t, http.MethodGet, ts.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	do(t, http.MethodGet, ts.URL+"/api/posts", nil)

	resp = do(t, http.MethodGet, ts.URL+"/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "postadmin_gateway_request_duration_seconds")
}

func TestListPosts(t *testing.T) {
	_, ts := newTestServer(t, 45)

	resp := do(t, http.MethodGet, ts.URL+"/api/posts?page=2&pageSize=10&order=1&status=0&junk=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res models.ListResponse[models.Post]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, models.Pagination{Page: 2, PageSize: 10, Total: 45}, res.Pagination)
	require.Len(t, res.List, 10)
	assert.Equal(t, int64(35), res.List[0].ID, "sorted by order descending")
}

func TestPostCRUD(t *testing.T) {
	_, ts := newTestServer(t, 2)

	resp := do(t, http.MethodPost, ts.URL+"/api/posts", models.CreatePostDto{Title: "Тестовый пост", Content: "Содержимое", Order: 1})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created models.CreatePostResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, int64(3), created.ID)

	resp = do(t, http.MethodPut, ts.URL+"/api/posts/3", map[string]any{"status": 1})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, ts.URL+"/api/posts/3", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var post models.Post
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&post))
	assert.Equal(t, models.PostStatusPublished, post.Status)
	assert.Equal(t, "Тестовый пост", post.Title)

	resp = do(t, http.MethodPost, ts.URL+"/api/posts/batch-status", models.BatchUpdatePostsStatusDto{
		IDs: []int64{1, 2}, Status: models.PostStatusPublished, Remark: "publish",
	})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodDelete, ts.URL+"/api/posts/3", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodDelete, ts.URL+"/api/posts/3", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestErrorMapping(t *testing.T) {
	_, ts := newTestServer(t, 1)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		code   int
	}{
		{"invalid id", http.MethodGet, "/api/posts/abc", nil, http.StatusBadRequest},
		{"missing post", http.MethodGet, "/api/posts/99", nil, http.StatusNotFound},
		{"validation", http.MethodPost, "/api/posts", models.CreatePostDto{Title: "t"}, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/posts/batch-status", "not an object", http.StatusBadRequest},
		{"update missing", http.MethodPut, "/api/posts/99", map[string]any{"title": "x"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, tc.method, ts.URL+tc.path, tc.body)
			assert.Equal(t, tc.code, resp.StatusCode)

			var payload map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
			assert.NotEmpty(t, payload["error"])
		})
	}
}

// wsClient reads server messages until one matches.
type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, ts *httptest.Server, query string) *wsClient {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/posts" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, http.Header{"Origin": []string{"http://admin.local"}})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(msg map[string]any) {
	require.NoError(c.t, c.conn.WriteJSON(msg))
}

func (c *wsClient) await(match func(serverMessage) bool) serverMessage {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg serverMessage
		require.NoError(c.t, c.conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func settled(msg serverMessage) bool {
	return msg.Type == typeState && !msg.State.Loading
}

func TestSessionWebsocket(t *testing.T) {
	_, ts := newTestServer(t, 41)
	c := dial(t, ts, "?page=3")

	addr := c.await(func(m serverMessage) bool { return m.Type == typeReplaceState })
	assert.Equal(t, "http://admin.local/posts?page=3&pageSize=20", addr.URL)

	st := c.await(settled).State
	require.Len(t, st.List, 1)
	assert.Equal(t, "page size 20, total 41", st.Summary)
	assert.Equal(t, 3, st.TotalPages)

	c.send(map[string]any{"action": actionDelete, "id": st.List[0].ID})
	addr = c.await(func(m serverMessage) bool { return m.Type == typeReplaceState })
	assert.Equal(t, "http://admin.local/posts?page=2&pageSize=20", addr.URL)
	note := c.await(func(m serverMessage) bool { return m.Type == typeNotification })
	assert.Equal(t, "success", note.Notification.Level)

	c.send(map[string]any{"action": actionRefresh})
	st = c.await(settled).State
	assert.Len(t, st.List, 20)
	assert.Equal(t, 2, st.Pagination.Current)
	assert.Equal(t, 40, st.Pagination.Total)

	c.send(map[string]any{"action": actionSearch, "title": "nothing matches"})
	st = c.await(func(m serverMessage) bool { return settled(m) && m.State.Query.Title != nil }).State
	assert.Empty(t, st.List)
	assert.Equal(t, "nothing matches", *st.Query.Title)
	assert.Equal(t, 1, *st.Query.Page)
}

func TestSessionWebsocketMutationFailure(t *testing.T) {
	_, ts := newTestServer(t, 3)
	c := dial(t, ts, "")
	before := c.await(settled).State

	c.send(map[string]any{"action": actionCreate, "payload": map[string]any{"title": ""}})
	note := c.await(func(m serverMessage) bool { return m.Type == typeNotification })
	assert.Equal(t, "error", note.Notification.Level)

	c.send(map[string]any{"action": actionRefresh})
	after := c.await(settled).State
	assert.Equal(t, before.List, after.List)
}

func TestSessionWebsocketGetAndUnknown(t *testing.T) {
	_, ts := newTestServer(t, 3)
	c := dial(t, ts, "")
	c.await(settled)

	c.send(map[string]any{"action": actionGet, "id": 2})
	msg := c.await(func(m serverMessage) bool { return m.Type == typePost })
	assert.Equal(t, int64(2), msg.Post.ID)

	c.send(map[string]any{"action": "explode"})
	note := c.await(func(m serverMessage) bool { return m.Type == typeNotification })
	assert.Equal(t, "error", note.Notification.Level)
	assert.Equal(t, "unknown action", note.Notification.Message)
}

func TestShutdown(t *testing.T) {
	s, _ := newTestServer(t, 0)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Shutdown(ctx))
}
