package server_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/internal/assert/helpers"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
)

const (
	wsWaitTimeout = 2 * time.Second
	wsPollEvery   = 10 * time.Millisecond
)

func dialProgress(t *testing.T, env *testServerEnv) *websocket.Conn {
	t.Helper()
	hs := httptest.NewServer(env.Router)
	t.Cleanup(hs.Close)

	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/ws/flash-progress"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	t.Cleanup(func() { _ = conn.Close() })

	assert.Eventually(t, func() bool {
		return env.Progress.Subscribers() == 1
	}, wsWaitTimeout, wsPollEvery)
	return conn
}

func readProgress(t *testing.T, conn *websocket.Conn) *api.ProgressMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(wsWaitTimeout))
	var msg api.ProgressMessage
	if !assert.NoError(t, conn.ReadJSON(&msg)) {
		t.FailNow()
	}
	return &msg
}

func TestWebSocketProgressFeed(t *testing.T) {
	env := testServer(t)
	defer env.Cleanup()
	conn := dialProgress(t, env)

	_, err := env.Progress.Start(&api.FlashStartRequest{
		JobID:        "job_1",
		DeviceSerial: "SN123",
		TotalBytes:   1000,
	})
	assert.NoError(t, err)
	for _, n := range []int64{100, 500, 1000} {
		_, err := env.Progress.Progress("job_1", &api.JobUpdate{
			BytesTransferred: n,
		})
		assert.NoError(t, err)
	}

	var types []api.MessageType
	for range 5 {
		msg := readProgress(t, conn)
		assert.Equal(t, api.JobID("job_1"), msg.JobID)
		assert.Equal(t, api.Serial("SN123"), msg.DeviceID)
		assert.NotZero(t, msg.Timestamp)
		types = append(types, msg.Type)
	}
	assert.Equal(t, []api.MessageType{
		api.MessageFlashStarted,
		api.MessageFlashProgress,
		api.MessageFlashProgress,
		api.MessageFlashProgress,
		api.MessageFlashCompleted,
	}, types)
}

func TestWebSocketPing(t *testing.T) {
	env := testServer(t)
	defer env.Cleanup()
	conn := dialProgress(t, env)

	assert.NoError(t, conn.WriteJSON(api.ClientMessage{Type: api.MessagePing}))

	_ = conn.SetReadDeadline(time.Now().Add(wsWaitTimeout))
	var pong api.PongMessage
	assert.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, api.MessagePong, pong.Type)
	assert.NotZero(t, pong.Timestamp)
	assert.Empty(t, env.Progress.List())
}

func TestWebSocketIgnoresOtherFrames(t *testing.T) {
	env := testServer(t)
	defer env.Cleanup()
	conn := dialProgress(t, env)

	assert.NoError(t, conn.WriteMessage(
		websocket.TextMessage, []byte(`{"type":"flash_started","jobId":"x"}`),
	))
	assert.NoError(t, conn.WriteMessage(
		websocket.TextMessage, []byte(`garbage`),
	))
	assert.NoError(t, conn.WriteJSON(api.ClientMessage{Type: api.MessagePing}))

	_ = conn.SetReadDeadline(time.Now().Add(wsWaitTimeout))
	var pong api.PongMessage
	assert.NoError(t, conn.ReadJSON(&pong))
	assert.Equal(t, api.MessagePong, pong.Type)
	assert.Empty(t, env.Progress.List())
}

func TestWebSocketHealthCountsSubscribers(t *testing.T) {
	env := testServer(t)
	defer env.Cleanup()
	dialProgress(t, env)

	res := decode[api.HealthResponse](t, env.do("GET", "/health", nil))
	assert.Equal(t, 1, res.Subscribers)
}

func TestCloseWebSockets(t *testing.T) {
	env := testServer(t)
	defer env.Cleanup()
	conn := dialProgress(t, env)

	env.Server.CloseWebSockets()

	_ = conn.SetReadDeadline(time.Now().Add(helpers.DefaultWaitTimeout))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	assert.Eventually(t, func() bool {
		return env.Progress.Subscribers() == 0
	}, wsWaitTimeout, wsPollEvery)
}

func TestWebSocketClientDisconnect(t *testing.T) {
	env := testServer(t)
	defer env.Cleanup()
	conn := dialProgress(t, env)

	assert.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		return env.Progress.Subscribers() == 0
	}, wsWaitTimeout, wsPollEvery)

	_, err := env.Progress.Start(&api.FlashStartRequest{DeviceSerial: "SN1"})
	assert.NoError(t, err)
}
