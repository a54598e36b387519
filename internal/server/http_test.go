package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/alteredfree/altered-server-go/internal/config"
	"github.com/alteredfree/altered-server-go/internal/game"
	"github.com/alteredfree/altered-server-go/internal/snapshot"
)

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

type testPlayerData struct {
	GameID string       `json:"game_id"`
	Player *game.Player `json:"player"`
}

func newTestServer(t *testing.T, store snapshot.Store) *httptest.Server {
	t.Helper()
	logger := zaptest.NewLogger(t)
	engine := game.NewEngine(store, game.DefaultValidation(), logger)
	registry := game.NewRegistry(store, logger)
	srv := NewServer(config.ServerConfig{
		Address:     "127.0.0.1:0",
		LockTimeout: 5 * time.Second,
	}, engine, registry, logger)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, ts *httptest.Server, path string, payload interface{}) (*testEnvelope, int) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var env testEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return &env, resp.StatusCode
}

func getJSON(t *testing.T, ts *httptest.Server, path string) (*testEnvelope, int) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env testEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return &env, resp.StatusCode
}

func decodePlayer(t *testing.T, env *testEnvelope) *testPlayerData {
	t.Helper()
	var data testPlayerData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotNil(t, data.Player)
	return &data
}

func deckOf(prefix string, n int) []string {
	deck := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		deck = append(deck, fmt.Sprintf("%s%d", prefix, i))
	}
	return deck
}

// createTwoPlayerGame creates and joins a game, returning the game id.
func createTwoPlayerGame(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	env, code := postJSON(t, ts, "/game/create", map[string]interface{}{
		"name": "Alice", "deck": deckOf("a", 40),
	})
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)
	created := decodePlayer(t, env)
	require.NotEmpty(t, created.GameID)
	require.Equal(t, 1, created.Player.ID)

	env, code = postJSON(t, ts, "/game/join", map[string]interface{}{
		"game_id": created.GameID, "name": "Bob", "deck": deckOf("b", 40),
	})
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)
	require.Equal(t, 2, decodePlayer(t, env).Player.ID)

	return created.GameID
}

func TestRootEndpoint(t *testing.T) {
	ts := newTestServer(t, snapshot.NewMemoryStore())

	env, code := getJSON(t, ts, "/")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	resp, err := http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateValidation(t *testing.T) {
	ts := newTestServer(t, snapshot.NewMemoryStore())

	env, code := postJSON(t, ts, "/game/create", map[string]interface{}{
		"name": "NameThatIsTooLong", "deck": deckOf("a", 40),
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Message)

	env, code = postJSON(t, ts, "/game/create", map[string]interface{}{
		"name": "Alice", "deck": []string{},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)
}

func TestMalformedBodyAndMethod(t *testing.T) {
	ts := newTestServer(t, snapshot.NewMemoryStore())

	resp, err := http.Post(ts.URL+"/game/create", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/game/create")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestJoinUnknownGame(t *testing.T) {
	ts := newTestServer(t, snapshot.NewMemoryStore())

	env, code := postJSON(t, ts, "/game/join", map[string]interface{}{
		"game_id": "missing", "name": "Bob", "deck": deckOf("b", 40),
	})
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
}

func TestStartWaitsForPlayers(t *testing.T) {
	ts := newTestServer(t, snapshot.NewMemoryStore())

	env, code := postJSON(t, ts, "/game/create", map[string]interface{}{
		"name": "Alice", "deck": deckOf("a", 40),
	})
	require.Equal(t, http.StatusOK, code)
	gameID := decodePlayer(t, env).GameID

	env, code = postJSON(t, ts, "/game/start", map[string]interface{}{"game_id": gameID})
	assert.Equal(t, http.StatusOK, code)
	assert.False(t, env.Success)
	assert.Contains(t, env.Message, "waiting")
}

func TestJoinConflicts(t *testing.T) {
	ts := newTestServer(t, snapshot.NewMemoryStore())
	gameID := createTwoPlayerGame(t, ts)

	env, code := postJSON(t, ts, "/game/start", map[string]interface{}{"game_id": gameID})
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)

	env, code = postJSON(t, ts, "/game/join", map[string]interface{}{
		"game_id": gameID, "name": "Carol", "deck": deckOf("c", 40),
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.False(t, env.Success)
}

func TestFullGameScenario(t *testing.T) {
	ts := newTestServer(t, snapshot.NewMemoryStore())
	gameID := createTwoPlayerGame(t, ts)

	env, code := postJSON(t, ts, "/game/start", map[string]interface{}{"game_id": gameID})
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)

	// Setup: six cards in hand, all of them playable, no pass yet.
	env, code = getJSON(t, ts, fmt.Sprintf("/game/get_available_actions?game_id=%s&id=1", gameID))
	require.Equal(t, http.StatusOK, code)
	p1 := decodePlayer(t, env).Player
	require.Len(t, p1.Hand, 6)
	assert.Len(t, p1.AvailableActions, 6)
	assert.NotContains(t, p1.AvailableActions, "pass")

	// Each participant mana-discards three cards in one atomic batch.
	for id := 1; id <= 2; id++ {
		env, code = getJSON(t, ts, fmt.Sprintf("/game/get_available_actions?game_id=%s&id=%d", gameID, id))
		require.Equal(t, http.StatusOK, code)
		p := decodePlayer(t, env).Player

		actions := make([]map[string]string, 0, 3)
		for _, card := range p.Hand[:3] {
			actions = append(actions, map[string]string{
				"action": "move_card", "card": card, "from": "hand", "to": "mana_pile",
			})
		}
		env, code = postJSON(t, ts, "/game/play_actions", map[string]interface{}{
			"game_id": gameID, "id": id, "actions": actions,
		})
		require.Equal(t, http.StatusOK, code)
		require.True(t, env.Success)
		assert.Len(t, decodePlayer(t, env).Player.ManaPile, 3)
	}

	// Both mana piles are filled, so the morning draw has happened: the
	// afternoon hand is 6 - 3 + 2 and pass is on offer.
	env, code = getJSON(t, ts, fmt.Sprintf("/game/get_available_actions?game_id=%s&id=1", gameID))
	require.Equal(t, http.StatusOK, code)
	p1 = decodePlayer(t, env).Player
	assert.Len(t, p1.Hand, 5)
	assert.Contains(t, p1.AvailableActions, "pass")

	// An illegal batch is rejected wholesale.
	env, code = postJSON(t, ts, "/game/play_actions", map[string]interface{}{
		"game_id": gameID, "id": 1, "actions": []map[string]string{
			{"action": "move_card", "card": p1.Hand[0], "from": "hand", "to": "reserve"},
			{"action": "move_card", "card": "ghost", "from": "hand", "to": "reserve"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, env.Success)

	env, code = getJSON(t, ts, fmt.Sprintf("/game/get_available_actions?game_id=%s&id=1", gameID))
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodePlayer(t, env).Player.Hand, 5)

	// Both pass; the round rolls into day 2's afternoon with refreshed hands.
	for id := 1; id <= 2; id++ {
		env, code = postJSON(t, ts, "/game/play_actions", map[string]interface{}{
			"game_id": gameID, "id": id,
			"actions": []map[string]string{{"action": "pass"}},
		})
		require.Equal(t, http.StatusOK, code)
		require.True(t, env.Success)
	}

	env, code = getJSON(t, ts, fmt.Sprintf("/game/get_available_actions?game_id=%s&id=1", gameID))
	require.Equal(t, http.StatusOK, code)
	p1 = decodePlayer(t, env).Player
	assert.Len(t, p1.Hand, 7)
	assert.False(t, p1.HasPassed)
}

func TestListRunningGames(t *testing.T) {
	ts := newTestServer(t, snapshot.NewMemoryStore())
	id1 := createTwoPlayerGame(t, ts)
	id2 := createTwoPlayerGame(t, ts)

	env, code := getJSON(t, ts, "/game/get_all_running_games")
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)

	var ids []string
	require.NoError(t, json.Unmarshal(env.Data, &ids))
	assert.ElementsMatch(t, []string{id1, id2}, ids)
}

func TestSnapshotRecoveryAcrossServers(t *testing.T) {
	store := snapshot.NewMemoryStore()

	ts1 := newTestServer(t, store)
	env, code := postJSON(t, ts1, "/game/create", map[string]interface{}{
		"name": "Alice", "deck": deckOf("a", 40),
	})
	require.Equal(t, http.StatusOK, code)
	gameID := decodePlayer(t, env).GameID

	// A second server sharing the store recovers the match on demand.
	ts2 := newTestServer(t, store)
	env, code = postJSON(t, ts2, "/game/join", map[string]interface{}{
		"game_id": gameID, "name": "Bob", "deck": deckOf("b", 40),
	})
	require.Equal(t, http.StatusOK, code)
	require.True(t, env.Success)
	assert.Equal(t, 2, decodePlayer(t, env).Player.ID)
}
