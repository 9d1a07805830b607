package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Peleke/colloquium/internal/domain"
	"github.com/Peleke/colloquium/internal/logging"
	"github.com/Peleke/colloquium/internal/session"
	"github.com/Peleke/colloquium/internal/source"
)

func silentLog() *logging.Logger {
	return logging.New(io.Discard, "silent")
}

type stubProcessor struct {
	openFunc     func(ctx context.Context, req session.OpenRequest) (string, error)
	exchangeFunc func(ctx context.Context, req session.ExchangeRequest) (*session.ExchangeResult, error)
}

func (p *stubProcessor) Open(ctx context.Context, req session.OpenRequest) (string, error) {
	if p.openFunc != nil {
		return p.openFunc(ctx, req)
	}
	return "Salve! Quid quaeris hodie?", nil
}

func (p *stubProcessor) Exchange(ctx context.Context, req session.ExchangeRequest) (*session.ExchangeResult, error) {
	if p.exchangeFunc != nil {
		return p.exchangeFunc(ctx, req)
	}
	return &session.ExchangeResult{
		Correction: domain.Correction{HasErrors: false},
		Reply:      "Optime dictum!",
	}, nil
}

type stubSynthesizer struct {
	synthFunc func(ctx context.Context, req session.ReviewRequest) (*domain.Review, error)
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, req session.ReviewRequest) (*domain.Review, error) {
	if s.synthFunc != nil {
		return s.synthFunc(ctx, req)
	}
	breakdown := make(map[domain.ErrorCategory]int, len(domain.Categories))
	for _, c := range domain.Categories {
		breakdown[c] = req.Aggregate.ByCategory[c]
	}
	return &domain.Review{
		Rating:         domain.RatingGood,
		Summary:        "Solid session with room to grow.",
		ErrorBreakdown: breakdown,
		Strengths:      []string{"vocabulary range"},
		Improvements:   []string{"verb endings"},
	}, nil
}

func newTestServer(t *testing.T, proc session.Processor, synth session.Synthesizer) (*httptest.Server, *Feed) {
	t.Helper()
	log := silentLog()
	feed := NewFeed(log)
	mgr := session.NewManager(session.Config{TurnTimeout: 5 * time.Second}, proc, synth,
		source.NewMemoryLookup(source.Seed()...), feed, log)
	s := New("127.0.0.1:0", mgr, source.NewMemoryLookup(source.Seed()...), feed, log)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, feed
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

func startSession(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp := postJSON(t, ts.URL+"/api/sessions", map[string]any{
		"sourceMaterialId": "taberna",
		"counterpartRole":  "tabernarius",
		"proficiencyLevel": "B1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var started session.StartResult
	decodeBody(t, resp, &started)
	require.NotEmpty(t, started.SessionID)
	return started.SessionID
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, &stubProcessor{}, &stubSynthesizer{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	var health map[string]any
	decodeBody(t, resp, &health)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", health["status"])
}

func TestListSources(t *testing.T) {
	ts, _ := newTestServer(t, &stubProcessor{}, &stubSynthesizer{})

	resp, err := http.Get(ts.URL + "/api/sources")
	require.NoError(t, err)
	var body struct {
		Sources []source.Material `json:"sources"`
	}
	decodeBody(t, resp, &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, body.Sources, 3)
	ids := make([]string, 0, 3)
	for _, m := range body.Sources {
		ids = append(ids, m.ID)
	}
	assert.Contains(t, ids, "taberna")
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	proc := &stubProcessor{
		exchangeFunc: func(_ context.Context, req session.ExchangeRequest) (*session.ExchangeResult, error) {
			return &session.ExchangeResult{
				Correction: domain.Correction{
					HasErrors: true,
					Errors: []domain.ErrorRecord{{
						ErrorText:   "quanta constat",
						Correction:  "quanti constat",
						Explanation: "price questions take the genitive",
						Category:    domain.CategoryGrammar,
					}},
				},
				Reply: "Quattuor sestertiis.",
			}, nil
		},
	}
	ts, _ := newTestServer(t, proc, &stubSynthesizer{})
	id := startSession(t, ts)

	resp := postJSON(t, ts.URL+"/api/sessions/"+id+"/turns", map[string]string{
		"content": "Quanta constat hoc vinum?",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var turn session.TurnResult
	decodeBody(t, resp, &turn)
	assert.Equal(t, 2, turn.TurnNumber)
	assert.True(t, turn.Correction.HasErrors)
	assert.Equal(t, "Quattuor sestertiis.", turn.CounterpartReply)

	resp = postJSON(t, ts.URL+"/api/sessions/"+id+"/end", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ended struct {
		Review *domain.Review `json:"review"`
	}
	decodeBody(t, resp, &ended)
	require.NotNil(t, ended.Review)
	assert.Equal(t, domain.RatingGood, ended.Review.Rating)
	assert.Equal(t, 1, ended.Review.ErrorBreakdown[domain.CategoryGrammar])

	resp2, err := http.Get(ts.URL + "/api/sessions/" + id)
	require.NoError(t, err)
	var snap domain.Session
	decodeBody(t, resp2, &snap)
	assert.Equal(t, domain.StateTerminal, snap.State)
	assert.Len(t, snap.Turns, 3)
}

func TestStartUnknownSource(t *testing.T) {
	ts, _ := newTestServer(t, &stubProcessor{}, &stubSynthesizer{})

	resp := postJSON(t, ts.URL+"/api/sessions", map[string]any{
		"sourceMaterialId": "forum",
		"counterpartRole":  "tabernarius",
		"proficiencyLevel": "B1",
	})
	var body errorResponse
	decodeBody(t, resp, &body)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "source_not_found", body.Error.Code)
	assert.False(t, body.Error.Retryable)
}

func TestSubmitEmptyTurn(t *testing.T) {
	ts, _ := newTestServer(t, &stubProcessor{}, &stubSynthesizer{})
	id := startSession(t, ts)

	resp := postJSON(t, ts.URL+"/api/sessions/"+id+"/turns", map[string]string{"content": "   "})
	var body errorResponse
	decodeBody(t, resp, &body)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "empty_turn", body.Error.Code)
}

func TestTurnAfterEndConflicts(t *testing.T) {
	ts, _ := newTestServer(t, &stubProcessor{}, &stubSynthesizer{})
	id := startSession(t, ts)

	resp := postJSON(t, ts.URL+"/api/sessions/"+id+"/end", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/api/sessions/"+id+"/turns", map[string]string{"content": "Salve iterum"})
	var body errorResponse
	decodeBody(t, resp, &body)

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "session_closed", body.Error.Code)
}

func TestUpstreamFailureIsRetryable(t *testing.T) {
	proc := &stubProcessor{
		exchangeFunc: func(context.Context, session.ExchangeRequest) (*session.ExchangeResult, error) {
			return nil, fmt.Errorf("provider unavailable")
		},
	}
	ts, _ := newTestServer(t, proc, &stubSynthesizer{})
	id := startSession(t, ts)

	resp := postJSON(t, ts.URL+"/api/sessions/"+id+"/turns", map[string]string{"content": "Salve"})
	var body errorResponse
	decodeBody(t, resp, &body)

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "upstream_failure", body.Error.Code)
	assert.True(t, body.Error.Retryable)
}

func TestUnknownSession(t *testing.T) {
	ts, _ := newTestServer(t, &stubProcessor{}, &stubSynthesizer{})

	resp, err := http.Get(ts.URL + "/api/sessions/nope")
	require.NoError(t, err)
	var body errorResponse
	decodeBody(t, resp, &body)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "session_not_found", body.Error.Code)
}

func TestExportWithoutStore(t *testing.T) {
	ts, _ := newTestServer(t, &stubProcessor{}, &stubSynthesizer{})
	id := startSession(t, ts)

	resp := postJSON(t, ts.URL+"/api/sessions/"+id+"/export", nil)
	var body errorResponse
	decodeBody(t, resp, &body)

	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
	assert.Equal(t, "export_disabled", body.Error.Code)
}

func TestFeedDeliversSessionEvents(t *testing.T) {
	ts, feed := newTestServer(t, &stubProcessor{}, &stubSynthesizer{})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return feed.Count() == 1 }, time.Second, 10*time.Millisecond)

	startSession(t, ts)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frame EventFrame
	require.NoError(t, conn.ReadJSON(&frame))

	assert.Equal(t, "event", frame.Type)
	assert.Equal(t, session.EventSessionStarted, frame.Event)
	assert.NotEmpty(t, frame.SessionID)
	assert.Equal(t, int64(1), frame.Seq)
}

func TestPublishDropsStalledSubscriber(t *testing.T) {
	ts, feed := newTestServer(t, &stubProcessor{}, &stubSynthesizer{})
	feed.writeWait = 50 * time.Millisecond

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return feed.Count() == 1 }, time.Second, 10*time.Millisecond)

	// The subscriber never reads. Large frames fill the socket buffers
	// until a write stalls; the deadline must then fire and the
	// subscriber be dropped instead of Publish blocking forever.
	payload := strings.Repeat("x", 64*1024)
	start := time.Now()
	for i := 0; i < 64; i++ {
		feed.Publish(session.Event{Type: session.EventTurnCompleted, SessionID: "s1", Payload: payload})
	}

	assert.Less(t, time.Since(start), 3*time.Second, "Publish must stay bounded with a stalled subscriber")
	assert.Equal(t, 0, feed.Count())
}
