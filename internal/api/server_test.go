package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-city/internal/agents"
	"github.com/talgya/mini-city/internal/engine"
	"github.com/talgya/mini-city/internal/tuning"
)

const population = 20

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := tuning.Defaults()
	cfg.World.Width, cfg.World.Height = 48, 48
	cfg.World.FoodStalls, cfg.World.Workplaces, cfg.World.Homes, cfg.World.Parks = 4, 5, 20, 2
	cfg.Population.Count = population

	rec := engine.NewRecorder(5000)
	sim, err := engine.NewCity(cfg, rec)
	require.NoError(t, err)
	eng := engine.NewEngine()
	eng.OnTick = sim.Step
	eng.Advance(30)

	srv := &Server{Sim: sim, Eng: eng, Events: rec, RunID: "test-run", AdminKey: "secret", StreamLimit: 2}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func postSpeed(t *testing.T, url, key, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+"/api/v1/speed", strings.NewReader(body))
	require.NoError(t, err)
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestStatus(t *testing.T) {
	_, ts := newTestServer(t)
	var status map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/status", &status))
	assert.EqualValues(t, 30, status["tick"])
	assert.EqualValues(t, population, status["population"])
	assert.Equal(t, "test-run", status["run_id"])
	assert.Equal(t, engine.SimTime(30), status["sim_time"])
}

func TestAgentsAndDetail(t *testing.T) {
	_, ts := newTestServer(t)
	var poses []agents.Pose
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/agents", &poses))
	require.Len(t, poses, population)
	for i := 1; i < len(poses); i++ {
		assert.Less(t, poses[i-1].ID, poses[i].ID)
	}

	var detail struct {
		Agent engine.AgentDetail `json:"agent"`
	}
	id := poses[0].ID
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/agent/"+itoa(uint64(id)), &detail))
	assert.Equal(t, id, detail.Agent.Agent.ID)
	assert.Equal(t, poses[0].State, detail.Agent.Label)
	assert.Len(t, detail.Agent.Urgency, agents.NumNeeds)

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/v1/agent/999999", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/v1/agent/abc", nil))
}

func TestEvents(t *testing.T) {
	_, ts := newTestServer(t)
	var events []engine.Event
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/events?since=0&kind=spawn&limit=500", &events))
	assert.Len(t, events, population)

	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/events?since=5&limit=3", &events))
	require.Len(t, events, 3)
	assert.Equal(t, uint64(6), events[0].Seq)
	assert.Equal(t, uint64(8), events[2].Seq)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/v1/events?since=x", nil))
}

func TestSpeedRequiresAdmin(t *testing.T) {
	srv, ts := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, postSpeed(t, ts.URL, "", `{"speed": 5}`).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, postSpeed(t, ts.URL, "wrong", `{"speed": 5}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, postSpeed(t, ts.URL, "secret", `{"speed": 500}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, postSpeed(t, ts.URL, "secret", `nope`).StatusCode)
	assert.Equal(t, 1.0, srv.Eng.Speed())

	resp := postSpeed(t, ts.URL, "secret", `{"speed": 5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 5.0, srv.Eng.Speed())

	var got map[string]float64
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/speed", &got))
	assert.Equal(t, 5.0, got["speed"])

	srv.AdminKey = ""
	assert.Equal(t, http.StatusForbidden, postSpeed(t, ts.URL, "secret", `{"speed": 2}`).StatusCode)
}

func TestSnapshotWithoutDB(t *testing.T) {
	_, ts := newTestServer(t)
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/snapshot", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStreamDeliversPoseFrames(t *testing.T) {
	srv, ts := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	srv.Publish(30)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame Frame
	require.NoError(t, json.Unmarshal(payload, &frame))
	assert.Equal(t, uint64(30), frame.Tick)
	assert.Len(t, frame.Poses, population)

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	assert.Eventually(t, func() bool { return srv.hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamConnectsAreRateLimited(t *testing.T) {
	_, ts := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"

	for i := 0; i < 2; i++ {
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		resp.Body.Close()
		conn.Close()
	}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}

func itoa(n uint64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
