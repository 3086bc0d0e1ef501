package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"collab-hub/auth"
	"collab-hub/domain"
	"collab-hub/repositories"
	"collab-hub/runtime"
	"collab-hub/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// testEnv wires the whole stack onto a throwaway badger directory, the
// way main does, so socket tests exercise the real frame path.
type testEnv struct {
	server     *httptest.Server
	issuer     *auth.HandshakeIssuer
	membership repositories.MembershipRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.Default()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	messages := repositories.NewMessageRepository(db, log, nil)
	membership := repositories.NewMembershipRepository(db)
	users := repositories.NewUserRepository(db)

	issuer := auth.NewHandshakeIssuer(log, time.Minute)
	registry := runtime.NewRegistry()
	scheduler := runtime.NewScheduler(log, registry, 20*time.Millisecond, 500)
	broker := runtime.NewBroker(log, issuer, membership, messages, registry, scheduler)

	handler := NewHandler(log,
		services.NewAuthService(log, users, time.Hour),
		services.NewChatService(messages),
		issuer, broker, 16)

	server := httptest.NewServer(handler.Mux())
	t.Cleanup(server.Close)
	return &testEnv{server: server, issuer: issuer, membership: membership}
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

// register creates a user over HTTP and returns its id and API token.
func (e *testEnv) register(t *testing.T, username string) (string, string) {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"password":"Str0ng&Secret!pw"}`, username)
	resp, err := http.Post(e.server.URL+"/api/auth/register", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var session services.Session
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&session))
	return session.UserID, session.Token
}

// wsToken fetches a single-use handshake token over the API channel.
func (e *testEnv) wsToken(t *testing.T, apiToken string) string {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/api/ws-token", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+apiToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out["token"]
}

// serverEnvelope is the superset of outbound frame fields, mirroring
// what a browser client would see on the wire. The "message" key is a
// string on error frames and an object on new_message frames, so it is
// kept raw and decoded per type.
type serverEnvelope struct {
	Type    string          `json:"type"`
	UserID  string          `json:"userId"`
	RoomID  *int            `json:"roomId"`
	GroupID *int            `json:"groupId"`
	Message json.RawMessage `json:"message"`
}

func (e serverEnvelope) errorMessage(t *testing.T) string {
	t.Helper()
	var out string
	require.NoError(t, json.Unmarshal(e.Message, &out))
	return out
}

type deliveredMessage struct {
	SenderID string `json:"senderId"`
	Content  string `json:"content"`
}

func (e serverEnvelope) message(t *testing.T) deliveredMessage {
	t.Helper()
	var out deliveredMessage
	require.NoError(t, json.Unmarshal(e.Message, &out))
	return out
}

func readFrame(t *testing.T, ws *websocket.Conn) serverEnvelope {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := ws.ReadMessage()
	require.NoError(t, err)

	var env serverEnvelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func writeFrame(t *testing.T, ws *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func TestWebSocket_Invalid_Token_Closes_Socket(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	ws := env.dial(t)

	// When the client authenticates with garbage
	writeFrame(t, ws, `{"type":"auth","token":"garbage"}`)

	// Then it gets the error frame and the server hangs up
	frame := readFrame(t, ws)
	req.Equal("error", frame.Type)
	req.Equal("Invalid or expired token", frame.errorMessage(t))

	req.NoError(ws.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err := ws.ReadMessage()
	req.Error(err)
}

func TestWebSocket_Handshake_Token_Is_Single_Use(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	_, apiToken := env.register(t, "alice")
	token := env.wsToken(t, apiToken)

	// First socket consumes the token
	ws := env.dial(t)
	writeFrame(t, ws, fmt.Sprintf(`{"type":"auth","token":%q}`, token))
	req.Equal("auth_success", readFrame(t, ws).Type)

	// A replay on a second socket is rejected
	ws2 := env.dial(t)
	writeFrame(t, ws2, fmt.Sprintf(`{"type":"auth","token":%q}`, token))
	frame := readFrame(t, ws2)
	req.Equal("error", frame.Type)
	req.Equal("Invalid or expired token", frame.errorMessage(t))
}

func TestWebSocket_Full_Chat_Flow(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	userID, apiToken := env.register(t, "alice")
	req.NoError(env.membership.AddMember(domain.RoomChannel(5), userID))

	ws := env.dial(t)

	// Authenticate
	writeFrame(t, ws, fmt.Sprintf(`{"type":"auth","token":%q}`, env.wsToken(t, apiToken)))
	authFrame := readFrame(t, ws)
	req.Equal("auth_success", authFrame.Type)
	req.Equal(userID, authFrame.UserID)

	// Join room 5
	writeFrame(t, ws, `{"type":"join","roomId":5}`)
	joinFrame := readFrame(t, ws)
	req.Equal("join_success", joinFrame.Type)
	req.NotNil(joinFrame.RoomID)
	req.Equal(5, *joinFrame.RoomID)

	// Post to the bound channel and receive the batched fan-out
	writeFrame(t, ws, `{"type":"message","content":"hello room"}`)
	messageFrame := readFrame(t, ws)
	req.Equal("new_message", messageFrame.Type)
	delivered := messageFrame.message(t)
	req.Equal("hello room", delivered.Content)
	req.Equal(userID, delivered.SenderID)
}

func TestWebSocket_Join_Without_Membership(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	_, apiToken := env.register(t, "mallory")

	ws := env.dial(t)
	writeFrame(t, ws, fmt.Sprintf(`{"type":"auth","token":%q}`, env.wsToken(t, apiToken)))
	req.Equal("auth_success", readFrame(t, ws).Type)

	writeFrame(t, ws, `{"type":"join","groupId":9}`)
	frame := readFrame(t, ws)
	req.Equal("error", frame.Type)
	req.Equal("Not a group member", frame.errorMessage(t))

	// The socket survives the refusal: a later valid frame still works
	writeFrame(t, ws, `{"type":"join"}`)
	req.Equal("join_success", readFrame(t, ws).Type)
}

func TestWebSocket_Message_Before_Auth_Is_Fatal(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	ws := env.dial(t)

	writeFrame(t, ws, `{"type":"message","content":"sneaky","roomId":1}`)

	frame := readFrame(t, ws)
	req.Equal("error", frame.Type)
	req.Equal("Not authenticated", frame.errorMessage(t))

	req.NoError(ws.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err := ws.ReadMessage()
	req.Error(err)
}

func TestWsToken_Requires_API_Auth(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	resp, err := http.Post(env.server.URL+"/api/ws-token", "application/json", bytes.NewReader(nil))
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}
