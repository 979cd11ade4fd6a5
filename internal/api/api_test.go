package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/echorelay/internal/api"
	"github.com/mcoot/echorelay/internal/api/apierr"
	"github.com/mcoot/echorelay/internal/api/response"
	"github.com/mcoot/echorelay/internal/dependencies/mocks"
	"github.com/mcoot/echorelay/internal/document"
	"github.com/mcoot/echorelay/internal/factory"
	"github.com/mcoot/echorelay/internal/model"
	"github.com/mcoot/echorelay/internal/testutil"
)

// testServer creates a test server with all dependencies
type testServer struct {
	handler http.Handler
	app     *factory.App
	apiKey  string
}

type serverOption func(*api.RouterConfig)

func withAPIKey(t *testing.T, key string) serverOption {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	require.NoError(t, err)
	return func(cfg *api.RouterConfig) {
		cfg.APIKeyHash = string(hash)
	}
}

func withRateLimit(limit float64, burst int) serverOption {
	return func(cfg *api.RouterConfig) {
		cfg.RateLimit = limit
		cfg.RateBurst = burst
	}
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	logger := testutil.NopLogger()

	// API tests are integration tests - use production factory with real random/clock
	app, err := factory.New(factory.Config{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	cfg := api.RouterConfig{
		Logger:            logger,
		Metrics:           app.Metrics,
		Accounts:          app.Accounts,
		Registry:          app.Registry,
		Sessions:          app.Sessions,
		Peers:             app.Peers,
		PeerHandler:       app.PeerHandler,
		GameServerHandler: app.GameServerHandler,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &testServer{handler: api.NewRouter(cfg), app: app}
}

func (ts *testServer) request(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if ts.apiKey != "" {
		req.Header.Set("X-Api-Key", ts.apiKey)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Error.Code
}

func decodeDocument(t *testing.T, rr *httptest.ResponseRecorder) document.Value {
	t.Helper()
	v, err := document.Parse(rr.Body.Bytes())
	require.NoError(t, err)
	return v
}

const accountBody = `{"profile":{"server":{"xplatformid":"OVR-ORG-123","level":1},"client":{"displayname":"alice"}}}`

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp response.Health
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Zero(t, resp.ConnectedPeers)
	assert.Zero(t, resp.GameServers)
}

func TestSaveAndGetAccount(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/accounts", accountBody)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, document.MustParse(accountBody).Equal(decodeDocument(t, rr)))

	// Lowercase platform prefixes resolve to the same account
	rr = ts.request(http.MethodGet, "/accounts/ovr-org-123", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, accountBody+"\n", rr.Body.String())
}

func TestMergeAccount(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusOK, ts.request(http.MethodPost, "/accounts", accountBody).Code)

	rr := ts.request(http.MethodPost, "/accounts/OVR-ORG-123", `{"profile":{"server":{"level":5}}}`)
	require.Equal(t, http.StatusOK, rr.Code)

	merged := decodeDocument(t, rr)
	level, ok := merged.Path("profile", "server", "level")
	require.True(t, ok)
	assert.True(t, document.Int(5).Equal(level))
	name, ok := merged.Path("profile", "client", "displayname")
	require.True(t, ok)
	assert.True(t, document.String("alice").Equal(name))
}

func TestMergeAccountErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{"missing account", "/accounts/STM-1", `{"a":1}`, http.StatusNotFound, apierr.CodeAccountNotFound},
		{"malformed id", "/accounts/nope", `{"a":1}`, http.StatusBadRequest, apierr.CodeMalformedIdentity},
		{"changes identity", "/accounts/OVR-ORG-123", `{"profile":{"server":{"xplatformid":"STM-9"}}}`, http.StatusBadRequest, apierr.CodeIdentityMismatch},
		{"non object patch", "/accounts/OVR-ORG-123", `[1,2]`, http.StatusBadRequest, apierr.CodeInvalidRequest},
		{"invalid json", "/accounts/OVR-ORG-123", `{"a":`, http.StatusBadRequest, apierr.CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			require.Equal(t, http.StatusOK, ts.request(http.MethodPost, "/accounts", accountBody).Code)

			rr := ts.request(http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.code, errorCode(t, rr))
		})
	}
}

func TestSaveAccountWithoutIdentity(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/accounts", `{"profile":{}}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, apierr.CodeMalformedIdentity, errorCode(t, rr))
}

func TestDeleteAccount(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusOK, ts.request(http.MethodPost, "/accounts", accountBody).Code)

	rr := ts.request(http.MethodDelete, "/accounts/OVR-ORG-123", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, document.MustParse(accountBody).Equal(decodeDocument(t, rr)))

	rr = ts.request(http.MethodGet, "/accounts/OVR-ORG-123", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.request(http.MethodDelete, "/accounts/OVR-ORG-123", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListAccountsPagination(t *testing.T) {
	ts := newTestServer(t)
	for i := 1; i <= 12; i++ {
		body := `{"id":"STM-` + strconv.Itoa(i) + `"}`
		require.Equal(t, http.StatusOK, ts.request(http.MethodPost, "/accounts", body).Code)
	}

	var first []string
	rr := ts.request(http.MethodGet, "/accounts", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &first))
	assert.Len(t, first, 10)
	assert.Equal(t, "STM-1", first[0])

	var second []string
	rr = ts.request(http.MethodGet, "/accounts?pageNumber=2&pageSize=10", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &second))
	assert.Equal(t, []string{"STM-11", "STM-12"}, second)

	// Past the end is an empty array, not null
	rr = ts.request(http.MethodGet, "/accounts?pageNumber=5", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]\n", rr.Body.String())
}

func TestListAccountsFarPageIsEmpty(t *testing.T) {
	ts := newTestServer(t)
	for i := 1; i <= 3; i++ {
		body := `{"id":"OVR-ORG-` + strconv.Itoa(i) + `"}`
		require.Equal(t, http.StatusOK, ts.request(http.MethodPost, "/accounts", body).Code)
	}

	for _, pageNumber := range []string{"4611686018427387904", "4611686018427387905"} {
		rr := ts.request(http.MethodGet, "/accounts?pageSize=4&pageNumber="+pageNumber, "")
		assert.Equal(t, http.StatusOK, rr.Code, pageNumber)
		assert.Equal(t, "[]\n", rr.Body.String(), pageNumber)
	}
}

func TestListAccountsRejectsBadPage(t *testing.T) {
	ts := newTestServer(t)

	for _, query := range []string{"pageNumber=0", "pageSize=0", "pageSize=abc"} {
		rr := ts.request(http.MethodGet, "/accounts?"+query, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, query)
	}
}

func TestSessionEndpoints(t *testing.T) {
	ts := newTestServer(t)

	startedID := uuid.New()
	server := mocks.NewMockGameServer(7)
	server.StartFunc = func(context.Context, model.StartSessionCommand) (uuid.UUID, error) {
		return startedID, nil
	}
	reg := ts.app.Registry.Register(server)

	var ids []string
	rr := ts.request(http.MethodGet, "/sessions", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ids))
	assert.Equal(t, []string{reg.SessionID.String()}, ids)

	rr = ts.request(http.MethodGet, "/sessions/"+reg.SessionID.String(), "")
	require.Equal(t, http.StatusOK, rr.Code)
	var info response.Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &info))
	assert.Equal(t, uint64(7), info.ServerID)
	assert.Nil(t, info.Descriptor)

	body := `{"lobby_type":1,"channel":"` + uuid.NewString() + `","game_type":3,"level":2}`
	rr = ts.request(http.MethodPost, "/sessions/"+reg.SessionID.String(), body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var started response.StartSessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &started))
	assert.Equal(t, startedID.String(), started.SessionID)

	rr = ts.request(http.MethodGet, "/sessions/"+startedID.String(), "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &info))
	require.NotNil(t, info.Descriptor)
	assert.Equal(t, "private", info.Descriptor.LobbyType)
	assert.Equal(t, int64(3), info.Descriptor.GameType)
}

func TestStartSessionErrors(t *testing.T) {
	ts := newTestServer(t)
	reg := ts.app.Registry.Register(mocks.NewMockGameServer(1))
	channel := uuid.NewString()

	tests := []struct {
		name   string
		id     string
		body   string
		status int
		code   string
	}{
		{"unknown session", uuid.NewString(), `{"lobby_type":0,"channel":"` + channel + `"}`, http.StatusNotFound, apierr.CodeSessionNotFound},
		{"bad session id", "not-a-uuid", `{"lobby_type":0,"channel":"` + channel + `"}`, http.StatusBadRequest, apierr.CodeInvalidRequest},
		{"bad lobby type", reg.SessionID.String(), `{"lobby_type":9,"channel":"` + channel + `"}`, http.StatusBadRequest, apierr.CodeInvalidLobbyType},
		{"bad channel", reg.SessionID.String(), `{"lobby_type":0,"channel":"lobby"}`, http.StatusBadRequest, apierr.CodeInvalidChannel},
		{"bad body", reg.SessionID.String(), `{`, http.StatusBadRequest, apierr.CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.request(http.MethodPost, "/sessions/"+tt.id, tt.body)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.code, errorCode(t, rr))
		})
	}
}

func TestAPIKeyRequired(t *testing.T) {
	ts := newTestServer(t, withAPIKey(t, "s3cret"))

	rr := ts.request(http.MethodGet, "/accounts", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, apierr.CodeUnauthorized, errorCode(t, rr))

	ts.apiKey = "wrong"
	assert.Equal(t, http.StatusUnauthorized, ts.request(http.MethodGet, "/accounts", "").Code)

	ts.apiKey = "s3cret"
	assert.Equal(t, http.StatusOK, ts.request(http.MethodGet, "/accounts", "").Code)

	// Health stays open
	ts.apiKey = ""
	assert.Equal(t, http.StatusOK, ts.request(http.MethodGet, "/health", "").Code)
}

func TestWebsocketEndpointsRequireAPIKey(t *testing.T) {
	ts := newTestServer(t, withAPIKey(t, "s3cret"))
	server := httptest.NewServer(ts.handler)
	t.Cleanup(server.Close)
	wsBase := "ws" + strings.TrimPrefix(server.URL, "http")

	for _, path := range []string{"/ws/login", "/ws/serverdb"} {
		for _, key := range []string{"", "wrong"} {
			header := http.Header{}
			if key != "" {
				header.Set("X-Api-Key", key)
			}
			_, resp, err := websocket.DefaultDialer.Dial(wsBase+path, header)
			require.ErrorIs(t, err, websocket.ErrBadHandshake, path)
			require.NotNil(t, resp, path)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		}
	}
	assert.Zero(t, ts.app.Peers.Count())
	assert.Zero(t, ts.app.Registry.Count())

	header := http.Header{}
	header.Set("X-Api-Key", "s3cret")
	conn, _, err := websocket.DefaultDialer.Dial(wsBase+"/ws/login", header)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	id, err := model.ParseXPlatformID("OVR-ORG-123")
	require.NoError(t, err)
	login, err := model.NewEnvelope(model.EventLogin, "1", model.LoginPayload{UserID: id})
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(login))

	var ack model.Envelope
	require.NoError(t, conn.ReadJSON(&ack))
	require.Equal(t, model.EventLoginSuccess, ack.Type)

	ts.apiKey = "s3cret"
	require.Equal(t, http.StatusOK, ts.request(http.MethodPost, "/accounts", accountBody).Code)

	var push model.Envelope
	require.NoError(t, conn.ReadJSON(&push))
	assert.Equal(t, model.EventProfileUpdated, push.Type)
	var payload model.ProfileUpdatedPayload
	require.NoError(t, json.Unmarshal(push.Payload, &payload))
	assert.Equal(t, id, payload.UserID)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, withRateLimit(0.001, 2))

	assert.Equal(t, http.StatusOK, ts.request(http.MethodGet, "/accounts", "").Code)
	assert.Equal(t, http.StatusOK, ts.request(http.MethodGet, "/accounts", "").Code)

	rr := ts.request(http.MethodGet, "/accounts", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, apierr.CodeRateLimited, errorCode(t, rr))
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodOptions, "/accounts/OVR-ORG-1", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "X-Api-Key")
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, apierr.CodeNotFound, errorCode(t, rr))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusOK, ts.request(http.MethodPost, "/accounts", accountBody).Code)

	rr := ts.request(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `echorelay_account_writes_total{op="save",result="ok"} 1`)
	assert.Contains(t, body, `echorelay_http_requests_total{method="POST",route="/accounts",status="200"} 1`)
	assert.Contains(t, body, "echorelay_connected_peers 0")
}
