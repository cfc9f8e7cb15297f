package server

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/scythe504/linkrace-backend/internal"
	"github.com/scythe504/linkrace-backend/internal/config"
	"github.com/scythe504/linkrace-backend/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
}

type createResponse struct {
	Room    internal.RoomSummary `json:"room"`
	JoinURL string               `json:"join_url"`
}

func newTestServer(t *testing.T, tweak func(*config.Config, *game.Options)) (*httptest.Server, *game.Registry) {
	t.Helper()
	cfg := config.Default()
	cfg.PublicURL = "https://race.example.com/"
	opts := game.DefaultOptions()
	if tweak != nil {
		tweak(&cfg, &opts)
	}

	registry := game.NewRegistry(opts, game.Deps{})
	t.Cleanup(registry.Shutdown)

	srv := httptest.NewServer(New(cfg, registry).RegisterRoutes())
	t.Cleanup(srv.Close)
	return srv, registry
}

func decode(t *testing.T, resp *http.Response, out any) envelope {
	t.Helper()
	defer resp.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env
}

func createRoom(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/rooms", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestHealthHandler(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var data map[string]any
	env := decode(t, resp, &data)
	assert.Equal(t, http.StatusOK, env.StatusCode)
	assert.Equal(t, "ok", data["status"])
	assert.EqualValues(t, 0, data["rooms"])
}

func TestCreateRoomHandler(t *testing.T) {
	srv, registry := newTestServer(t, nil)

	resp := createRoom(t, srv, `{"start":"Alpha","end":"Omega","creator":"alice","config":{"countdown_seconds":30}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out createResponse
	decode(t, resp, &out)
	assert.Equal(t, "alice's room", out.Room.Name)
	assert.Equal(t, internal.PhaseLobby, out.Room.Phase)
	assert.Equal(t, "https://race.example.com/join/"+out.Room.RoomID, out.JoinURL)
	assert.Equal(t, 1, registry.Count())

	room, err := registry.GetRoom(out.Room.RoomID)
	require.NoError(t, err)
	snap, err := room.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 30, snap.Config.CountdownSeconds)
	assert.Equal(t, internal.ChooserRandom, snap.Config.LinkChooser)
}

func TestCreateRoomHandlerRejects(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"unknown field", `{"start":"A","end":"B","creator":"alice","colour":"red"}`},
		{"missing end", `{"start":"A","creator":"alice"}`},
		{"same refs", `{"start":"Rome","end":"rome","creator":"alice"}`},
		{"bad config", `{"start":"A","end":"B","creator":"alice","config":{"countdown_seconds":-1}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := createRoom(t, srv, tt.body)
			env := decode(t, resp, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, http.StatusBadRequest, env.StatusCode)
		})
	}
}

func TestCreateRoomHandlerLimit(t *testing.T) {
	srv, _ := newTestServer(t, func(_ *config.Config, opts *game.Options) {
		opts.MaxRooms = 1
	})

	first := createRoom(t, srv, `{"start":"A","end":"B","creator":"alice"}`)
	decode(t, first, nil)
	require.Equal(t, http.StatusCreated, first.StatusCode)

	second := createRoom(t, srv, `{"start":"A","end":"B","creator":"bob"}`)
	decode(t, second, nil)
	assert.Equal(t, http.StatusServiceUnavailable, second.StatusCode)
}

func TestGetRoomHandler(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var created createResponse
	decode(t, createRoom(t, srv, `{"name":"Friday","start":"A","end":"B","creator":"alice"}`), &created)

	resp, err := http.Get(srv.URL + "/rooms/" + strings.ToLower(created.Room.RoomID))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary internal.RoomSummary
	decode(t, resp, &summary)
	assert.Equal(t, created.Room.RoomID, summary.RoomID)
	assert.Equal(t, "Friday", summary.Name)

	missing, err := http.Get(srv.URL + "/rooms/NOPE42")
	require.NoError(t, err)
	decode(t, missing, nil)
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestRoomQRHandler(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var created createResponse
	decode(t, createRoom(t, srv, `{"start":"A","end":"B","creator":"alice"}`), &created)

	resp, err := http.Get(srv.URL + "/rooms/" + created.Room.RoomID + "/qr")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, qrSize, img.Bounds().Dx())
}

func TestCORS(t *testing.T) {
	srv, _ := newTestServer(t, func(cfg *config.Config, _ *game.Options) {
		cfg.AllowedOrigins = []string{"https://app.example.com"}
	})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/rooms", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "https://evil.example.com")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}
