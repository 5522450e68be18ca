package signal

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	echo "github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	srv      *httptest.Server
	registry *Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	registry := newTestRegistry()
	ctrl := NewSignalController(newSignalController_Params{
		Logger:   testLogger(),
		Registry: registry,
		Notifier: NewNotifier(),
		Metrics:  NewMetrics(newMetrics_Params{Rooms: registry}),
	})

	router := echo.New()
	router.HideBanner = true
	require.NoError(t, ctrl.Resolve(router))

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, registry: registry}
}

func (s *testServer) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func readEnvelope(t *testing.T, conn *websocket.Conn) *Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := DecodeMessage(frame)
	require.NoError(t, err)
	return msg
}

// Full negotiation walkthrough: pairing, offer relay, departure, teardown.
func TestSignaling_EndToEnd(t *testing.T) {
	server := newTestServer(t)

	a := server.dial(t, "/ws/video")
	writeFrame(t, a, `{"type":"join","roomId":"r1","userId":"a"}`)

	joined := readEnvelope(t, a)
	require.Equal(t, KindJoined, joined.Kind)
	assert.Equal(t, "r1", joined.RoomID)
	assert.Equal(t, "a", joined.UserID)

	b := server.dial(t, "/ws/video")
	writeFrame(t, b, `{"type":"join","roomId":"r1","userId":"b","role":"DOCTOR","displayName":"Dr. B"}`)

	joined = readEnvelope(t, b)
	require.Equal(t, KindJoined, joined.Kind)

	intro := readEnvelope(t, a)
	require.Equal(t, KindParticipantJoined, intro.Kind)
	assert.Equal(t, "b", intro.UserID)
	assert.Equal(t, "DOCTOR", intro.Role)

	intro = readEnvelope(t, b)
	require.Equal(t, KindParticipantJoined, intro.Kind)
	assert.Equal(t, "a", intro.UserID)

	writeFrame(t, a, `{"type":"offer","sdp":"X"}`)
	offer := readEnvelope(t, b)
	require.Equal(t, KindOffer, offer.Kind)
	assert.Equal(t, "a", offer.FromUserID)
	assert.JSONEq(t, `"X"`, string(offer.SDP))

	writeFrame(t, b, `{"type":"answer","sdp":"Y"}`)
	answer := readEnvelope(t, a)
	require.Equal(t, KindAnswer, answer.Kind)
	assert.Equal(t, "b", answer.FromUserID)

	writeFrame(t, b, `{"type":"leave"}`)
	left := readEnvelope(t, a)
	require.Equal(t, KindParticipantLeft, left.Kind)
	assert.Equal(t, "b", left.UserID)

	room, exist := server.registry.Get("r1")
	require.True(t, exist)
	assert.Equal(t, 1, room.Count())

	// Transport close of the last member reaps the room.
	require.NoError(t, a.Close())
	require.Eventually(t, func() bool {
		return server.registry.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSignaling_RoomFull(t *testing.T) {
	server := newTestServer(t)

	a := server.dial(t, "/ws/video")
	writeFrame(t, a, `{"type":"join","roomId":"r1","userId":"a"}`)
	require.Equal(t, KindJoined, readEnvelope(t, a).Kind)

	b := server.dial(t, "/ws/video")
	writeFrame(t, b, `{"type":"join","roomId":"r1","userId":"b"}`)
	require.Equal(t, KindJoined, readEnvelope(t, b).Kind)

	c := server.dial(t, "/ws/video")
	writeFrame(t, c, `{"type":"join","roomId":"r1","userId":"c"}`)

	errMsg := readEnvelope(t, c)
	require.Equal(t, KindError, errMsg.Kind)
	assert.Equal(t, CodeRoomFull, errMsg.Code)

	room, exist := server.registry.Get("r1")
	require.True(t, exist)
	assert.Equal(t, 2, room.Count())
}

func TestSignaling_OfferBeforeJoin(t *testing.T) {
	server := newTestServer(t)

	d := server.dial(t, "/ws/video")
	writeFrame(t, d, `{"type":"offer","sdp":"X"}`)

	errMsg := readEnvelope(t, d)
	require.Equal(t, KindError, errMsg.Kind)
	assert.Equal(t, CodeRoomNotFound, errMsg.Code)
}

func TestSignaling_PingPong(t *testing.T) {
	server := newTestServer(t)

	conn := server.dial(t, "/ws/video")
	writeFrame(t, conn, `{"type":"ping"}`)
	assert.Equal(t, KindPong, readEnvelope(t, conn).Kind)
}

func TestSignaling_RoomEventsNotifier(t *testing.T) {
	server := newTestServer(t)

	observer := server.dial(t, "/ws/rooms")
	// Give the observer handler a beat to register its listener.
	time.Sleep(100 * time.Millisecond)

	a := server.dial(t, "/ws/video")
	writeFrame(t, a, `{"type":"join","roomId":"r1","userId":"a"}`)
	require.Equal(t, KindJoined, readEnvelope(t, a).Kind)

	update := readEnvelope(t, observer)
	assert.Equal(t, Kind("rooms-updated"), update.Kind)
}

func TestHTTPSurface(t *testing.T) {
	server := newTestServer(t)

	a := server.dial(t, "/ws/video")
	writeFrame(t, a, `{"type":"join","roomId":"r1","userId":"a","displayName":"Alice"}`)
	require.Equal(t, KindJoined, readEnvelope(t, a).Kind)

	resp, err := http.Get(server.srv.URL + "/api/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rooms roomListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rooms))
	require.Len(t, rooms.Rooms, 1)
	assert.Equal(t, "r1", rooms.Rooms[0].RoomID)
	require.Len(t, rooms.Rooms[0].Participants, 1)
	assert.Equal(t, "a", rooms.Rooms[0].Participants[0].UserID)
	assert.Equal(t, "Alice", rooms.Rooms[0].Participants[0].DisplayName)

	health, err := http.Get(server.srv.URL + "/api/health")
	require.NoError(t, err)
	defer health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)

	metrics, err := http.Get(server.srv.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	require.Equal(t, http.StatusOK, metrics.StatusCode)

	body, err := io.ReadAll(metrics.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "signaling_active_rooms 1")
}
