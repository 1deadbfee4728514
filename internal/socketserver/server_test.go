package socketserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rhinos0608/rhythm-chamber-sub002/internal/config"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/dataset"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/llm"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/orchestrator"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/session"
	"github.com/rhinos0608/rhythm-chamber-sub002/internal/tools"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// cannedClient answers every completion with the same content.
type cannedClient struct {
	mu      sync.Mutex
	content string
	calls   int
}

func (c *cannedClient) CompleteWithRequest(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return &llm.CompletionResponse{Content: c.content}, nil
}

func (c *cannedClient) Complete(ctx context.Context, prompt string) (string, error) {
	return c.content, nil
}

func (c *cannedClient) Stream(ctx context.Context, req *llm.CompletionRequest, onToken func(string) error) (*llm.CompletionResponse, error) {
	if onToken != nil {
		if err := onToken(c.content); err != nil {
			return nil, err
		}
	}
	return c.CompleteWithRequest(ctx, req)
}

func (c *cannedClient) GetModelName() string { return "canned" }

const bridgePlaysJSON = `[
	{"ts":"2023-01-05T09:00:00Z","ms_played":240000,"master_metadata_track_name":"Dawn","master_metadata_album_artist_name":"Aurora Fields","master_metadata_album_album_name":"First Light"},
	{"ts":"2023-02-10T22:30:00Z","ms_played":180000,"master_metadata_track_name":"Dusk","master_metadata_album_artist_name":"Aurora Fields","master_metadata_album_album_name":"First Light"}
]`

func newTestServer(t *testing.T, content string) *Server {
	t.Helper()

	ds, err := dataset.Load([]byte(bridgePlaysJSON))
	require.NoError(t, err)
	snapshot := func() *dataset.Dataset { return ds }

	registry, err := tools.DefaultRegistry(snapshot, func() string { return "" })
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Provider = llm.ProviderOpenAI
	cfg.Model = "gpt-4o"
	cfg.ListenAddr = "127.0.0.1:0"

	ctrl := orchestrator.NewController(cfg, &cannedClient{content: content}, registry, session.NewSession(), snapshot, nil)
	return NewServer(cfg, ctrl, snapshot)
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t, "hello")
	ts := httptest.NewServer(server.Router())
	defer ts.Close()
	defer http.DefaultClient.CloseIdleConnections()

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, llm.ProviderOpenAI, health.Provider)
	assert.Equal(t, "gpt-4o", health.Model)
	assert.Contains(t, health.Dataset, "plays")
	assert.False(t, health.SessionStarted.IsZero())
}

func TestChatEndpoint(t *testing.T) {
	server := newTestServer(t, "You love Aurora Fields.")
	ts := httptest.NewServer(server.Router())
	defer ts.Close()
	defer http.DefaultClient.CloseIdleConnections()

	body, _ := json.Marshal(ChatRequest{Message: "who do I love?"})
	resp, err := http.Post(ts.URL+"/api/chat", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reply orchestrator.Reply
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reply))
	assert.Equal(t, "success", reply.Status)
	assert.Equal(t, "You love Aurora Fields.", reply.Content)
}

func TestChatEndpointRejectsBadBody(t *testing.T) {
	server := newTestServer(t, "hello")
	ts := httptest.NewServer(server.Router())
	defer ts.Close()
	defer http.DefaultClient.CloseIdleConnections()

	resp, err := http.Post(ts.URL+"/api/chat", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProgressReachesWebSocketClients(t *testing.T) {
	server := newTestServer(t, "All done.")
	require.NoError(t, server.Start(context.Background()))
	defer server.Stop()

	defer http.DefaultClient.CloseIdleConnections()
	base := "http://" + server.Addr()
	wsURL := "ws://" + server.Addr() + "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Registration runs through the hub loop; wait for it to land.
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/api/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var health HealthResponse
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			return false
		}
		return health.Clients == 1
	}, 2*time.Second, 10*time.Millisecond)

	body, _ := json.Marshal(ChatRequest{Message: "hello"})
	resp, err := http.Post(base+"/api/chat", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()

	sawProgress := false
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		var frame Frame
		err := conn.ReadJSON(&frame)
		require.NoError(t, err, "expected a reply frame before the deadline")

		switch frame.Type {
		case MessageTypeProgress:
			sawProgress = true
		case MessageTypeReply:
			require.NotNil(t, frame.Reply)
			assert.Equal(t, "All done.", frame.Reply.Content)
			assert.True(t, sawProgress, "progress frames should precede the reply")
			return
		}
	}
}

func TestStartRejectsDoubleStart(t *testing.T) {
	server := newTestServer(t, "hi")
	require.NoError(t, server.Start(context.Background()))
	defer server.Stop()

	assert.Error(t, server.Start(context.Background()))
}

func TestServerStopIsIdempotent(t *testing.T) {
	server := newTestServer(t, "hi")
	require.NoError(t, server.Start(context.Background()))
	server.Stop()
	server.Stop()
}

func TestAddrIsEmptyBeforeStart(t *testing.T) {
	server := newTestServer(t, "hi")
	assert.Equal(t, "", server.Addr())
}
