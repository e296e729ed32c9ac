package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"attendance-service/internal/domain/attendance"
	wstypes "attendance-service/internal/domain/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := NewHub(zap.NewNop())
	go h.Run(ctx)
	return h
}

func connect(t *testing.T, h *Hub, userID, role string) *Client {
	t.Helper()
	c := NewClient(h, nil, &ClientAuth{UserID: userID, SessionID: "sess-" + userID, Role: role})
	h.Register(context.Background(), c)

	// The welcome message confirms registration.
	msg := next(t, c)
	require.Equal(t, wstypes.EventTypeConnected, msg.Type)
	return c
}

func next(t *testing.T, c *Client) *wstypes.WSMessage {
	t.Helper()
	select {
	case raw := <-c.send:
		msg, err := wstypes.ParseMessage(raw)
		require.NoError(t, err)
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return nil
	}
}

func nothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("unexpected message %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func eventData(t *testing.T, msg *wstypes.WSMessage) wstypes.SessionEventData {
	t.Helper()
	var d wstypes.SessionEventData
	require.NoError(t, decodeData(msg.Data, &d))
	return d
}

func TestSessionClosedReachesOwnerAndAdmins(t *testing.T) {
	h := startHub(t)
	owner := connect(t, h, "u1", "employee")
	other := connect(t, h, "u2", "employee")
	admin := connect(t, h, "a1", "admin")
	require.True(t, admin.Subscribe(wstypes.ChannelAdmin))

	h.SessionClosed("u1", "s1", attendance.StatusHeartbeatTimeout)

	msg := next(t, owner)
	assert.Equal(t, wstypes.EventTypeForceLogout, msg.Type)
	d := eventData(t, msg)
	assert.Equal(t, "s1", d.SessionID)
	assert.Equal(t, "heartbeat_timeout", d.Status)

	msg = next(t, admin)
	assert.Equal(t, wstypes.EventTypeSessionClosed, msg.Type)
	assert.Equal(t, "u1", eventData(t, msg).UserID)

	nothing(t, other)
}

func TestSessionSuspectNotifiesOwner(t *testing.T) {
	h := startHub(t)
	owner := connect(t, h, "u1", "employee")

	h.SessionSuspect("u1", "s1", 6)

	msg := next(t, owner)
	assert.Equal(t, wstypes.EventTypeSessionSuspect, msg.Type)
	assert.Equal(t, 6, eventData(t, msg).PoorHeartbeats)
}

func TestEmployeesCannotJoinAdminChannel(t *testing.T) {
	h := NewHub(zap.NewNop())
	c := NewClient(h, nil, &ClientAuth{UserID: "u1", Role: "employee"})

	assert.True(t, c.IsSubscribed(wstypes.ChannelSession))
	assert.False(t, c.Subscribe(wstypes.ChannelAdmin))
	assert.False(t, c.Subscribe("audit"))
}

func TestClientMessages(t *testing.T) {
	h := startHub(t)
	c := connect(t, h, "a1", "admin")

	c.handleMessage([]byte(`{"type":"ping"}`))
	assert.Equal(t, wstypes.EventTypePong, next(t, c).Type)

	c.handleMessage([]byte(`{"type":"subscribe","data":{"channels":["admin","bogus"]}}`))
	msg := next(t, c)
	assert.Equal(t, wstypes.EventTypeSubscribe, msg.Type)
	raw, err := json.Marshal(msg.Data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"channels":["admin"],"status":"subscribed"}`, string(raw))

	c.handleMessage([]byte(`not json`))
	assert.Equal(t, wstypes.EventTypeError, next(t, c).Type)
}

type stubVerifier struct {
	resp *attendance.VerifySessionResponse
	err  error
}

func (s stubVerifier) VerifySession(context.Context, string) (*attendance.VerifySessionResponse, error) {
	return s.resp, s.err
}

func TestSessionStatusHandler(t *testing.T) {
	h := startHub(t)
	h.RegisterHandler(NewSessionStatusHandler(stubVerifier{resp: &attendance.VerifySessionResponse{
		OK: true, Valid: true, SessionID: "sess-u1", Status: attendance.StatusActive,
	}}))
	c := connect(t, h, "u1", "employee")

	c.handleMessage([]byte(`{"type":"session:status"}`))
	msg := next(t, c)
	assert.Equal(t, wstypes.EventTypeSessionStatus, msg.Type)

	var resp attendance.VerifySessionResponse
	require.NoError(t, decodeData(msg.Data, &resp))
	assert.True(t, resp.Valid)
}

func TestUnregisterRemovesClient(t *testing.T) {
	h := startHub(t)
	c := connect(t, h, "u1", "employee")
	require.Equal(t, 1, h.ConnectedClients("u1"))

	h.unregister <- c
	assert.Eventually(t, func() bool { return h.TotalClients() == 0 }, time.Second, 10*time.Millisecond)

	// A closed client drops further messages.
	c.SendMessage(wstypes.NewMessage(wstypes.EventTypePing, nil))
	nothing(t, c)
}
