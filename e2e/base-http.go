package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type BaseHTTPSuite struct {
	suite.Suite
	Config Config
	client *http.Client
}

// SetupSuite loads the environment configuration before running tests.
// Without SERVER_ADDR there is nothing to talk to, so the suite skips.
func (s *BaseHTTPSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	if s.Config.ServerAddr == "" {
		s.T().Skip("SERVER_ADDR not set, skipping e2e suite")
	}
	s.client = &http.Client{Timeout: 10 * time.Second}
}

// Step prints a colorized header so multi-step scenarios stay readable
// in the logs.
func (s *BaseHTTPSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// DoJSON sends a JSON request with an optional bearer token and decodes
// the response into out (skipped when out is nil).
func (s *BaseHTTPSuite) DoJSON(method, path, token string, body any, out any) int {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		s.Require().NoError(err)
	}

	req, err := http.NewRequest(method, s.Config.ServerAddr+path, bytes.NewReader(payload))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	s.Require().NoError(err, "Failed to reach server at "+s.Config.ServerAddr)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		fmt.Fprintln(&logBuilder, "\nREQUEST:")
		fmt.Fprintln(&logBuilder, string(payload))
		fmt.Fprintln(&logBuilder, "RESPONSE:")
		fmt.Fprintln(&logBuilder, string(raw))
	}
	s.T().Log(logBuilder.String())

	if out != nil && len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, out))
	}
	return resp.StatusCode
}

// DialWS opens the realtime socket against the target instance.
func (s *BaseHTTPSuite) DialWS() *websocket.Conn {
	url := strings.Replace(s.Config.ServerAddr, "http", "ws", 1) + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err, "Failed to open websocket at "+url)
	s.T().Cleanup(func() { _ = ws.Close() })
	return ws
}

// ReadWS reads one frame and decodes it into the field superset shared
// by every server frame type.
func (s *BaseHTTPSuite) ReadWS(ws *websocket.Conn) map[string]json.RawMessage {
	s.Require().NoError(ws.SetReadDeadline(time.Now().Add(5 * time.Second)))
	_, raw, err := ws.ReadMessage()
	s.Require().NoError(err)

	var frame map[string]json.RawMessage
	s.Require().NoError(json.Unmarshal(raw, &frame))
	return frame
}

func (s *BaseHTTPSuite) FrameType(frame map[string]json.RawMessage) string {
	var out string
	s.Require().NoError(json.Unmarshal(frame["type"], &out))
	return out
}
