package api

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anthive/worldsim/internal/eventbus"
	"github.com/anthive/worldsim/internal/sim"
)

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestWebhook_InboundPublishesToBus(t *testing.T) {
	srv, _ := newTestServer(t, sim.Options{})

	received := make(chan *eventbus.Envelope, 1)
	sub, err := srv.bus.Subscribe(context.Background(), eventbus.Filter{Types: []string{"webhook.deploy"}},
		func(_ context.Context, ev *eventbus.Envelope) {
			received <- ev
		})
	require.NoError(t, err)
	t.Cleanup(sub.Unsubscribe)

	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/webhook", "", WebhookEvent{
		EventType: "deploy",
		Data:      map[string]interface{}{"version": "1.2.3"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	select {
	case ev := <-received:
		assert.Equal(t, "webhook.deploy", ev.EventType)
		assert.Equal(t, "webhook", ev.Source)
		var data map[string]interface{}
		require.NoError(t, json.Unmarshal(ev.Payload, &data))
		assert.Equal(t, "1.2.3", data["version"])
	case <-time.After(3 * time.Second):
		t.Fatal("событие не дошло до шины")
	}
}

func TestWebhook_InboundValidation(t *testing.T) {
	srv, _ := newTestServer(t, sim.Options{})

	// Без Content-Type: application/json
	req := httptest.NewRequest(http.MethodPost, "/api/webhook", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Без event_type
	rec = doJSON(t, srv.Router(), http.MethodPost, "/api/webhook", "", map[string]interface{}{
		"data": map[string]interface{}{"x": 1},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_SignatureRequired(t *testing.T) {
	srv, _ := newTestServer(t, sim.Options{})
	srv.SetWebhookSecret("topsecret")

	body, err := json.Marshal(WebhookEvent{
		EventType: "alert",
		Data:      map[string]interface{}{"level": "high"},
	})
	require.NoError(t, err)

	post := func(signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/webhook", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if signature != "" {
			req.Header.Set("X-Webhook-Signature", signature)
		}
		rec := httptest.NewRecorder()
		srv.Router().ServeHTTP(rec, req)
		return rec
	}

	// Без подписи
	assert.Equal(t, http.StatusUnauthorized, post("").Code)

	// С подписью от другого секрета
	assert.Equal(t, http.StatusUnauthorized, post(signBody("wrong", body)).Code)

	// С валидной подписью
	assert.Equal(t, http.StatusOK, post(signBody("topsecret", body)).Code)
}

func TestWebhook_AdminCRUD(t *testing.T) {
	srv, _ := newTestServer(t, sim.Options{})
	adminToken := login(t, srv.Router(), "admin", "admin")

	// Создание
	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/admin/webhooks", adminToken, OutboundWebhook{
		Name:   "ci",
		URL:    "http://127.0.0.1:9/hook",
		Events: []string{eventbus.EventWorldSnapshot},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		Data OutboundWebhook `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotZero(t, created.Data.ID)
	assert.True(t, created.Data.Active)
	assert.Equal(t, 30, created.Data.Timeout, "таймаут по умолчанию")

	// Неполный webhook отклоняется
	rec = doJSON(t, srv.Router(), http.MethodPost, "/api/admin/webhooks", adminToken, map[string]interface{}{
		"name": "broken",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Список с перечнем доступных типов событий
	rec = doJSON(t, srv.Router(), http.MethodGet, "/api/admin/webhooks", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, float64(1), data["total"])
	assert.Contains(t, data["event_types"], "*")

	path := "/api/admin/webhooks/" + strconv.FormatUint(created.Data.ID, 10)

	// Чтение
	rec = doJSON(t, srv.Router(), http.MethodGet, path, adminToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Обновление
	rec = doJSON(t, srv.Router(), http.MethodPut, path, adminToken, OutboundWebhook{
		Name:   "ci-renamed",
		Events: []string{"*"},
		Active: true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated struct {
		Data OutboundWebhook `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "ci-renamed", updated.Data.Name)
	assert.Equal(t, []string{"*"}, updated.Data.Events)

	// Удаление
	rec = doJSON(t, srv.Router(), http.MethodDelete, path, adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, srv.Router(), http.MethodGet, path, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type delivered struct {
	body      []byte
	signature string
	eventType string
}

func TestWebhook_OutboundDelivery(t *testing.T) {
	srv, _ := newTestServer(t, sim.Options{})

	got := make(chan delivered, 4)
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- delivered{
			body:      body,
			signature: r.Header.Get("X-Webhook-Signature"),
			eventType: r.Header.Get("X-Event-Type"),
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(receiver.Close)

	adminToken := login(t, srv.Router(), "admin", "admin")
	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/admin/webhooks", adminToken, OutboundWebhook{
		Name:   "integration",
		URL:    receiver.URL,
		Secret: "s3cret",
		Events: []string{eventbus.EventEntitySpawned},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Шумовое событие, на которое webhook не подписан
	env, err := eventbus.NewEnvelope(eventbus.EventWorldTick, "sim", 1, eventbus.TickPayload{Tick: 1})
	require.NoError(t, err)
	require.NoError(t, srv.bus.Publish(context.Background(), env))

	// Целевое событие
	env, err = eventbus.NewEnvelope(eventbus.EventEntitySpawned, "sim", 5, eventbus.EntityPayload{ID: 7, Layer: "ants"})
	require.NoError(t, err)
	require.NoError(t, srv.bus.Publish(context.Background(), env))

	select {
	case d := <-got:
		assert.Equal(t, eventbus.EventEntitySpawned, d.eventType)
		assert.Equal(t, signBody("s3cret", d.body), d.signature, "подпись считается по доставленному телу")

		var out OutboundWebhookEvent
		require.NoError(t, json.Unmarshal(d.body, &out))
		assert.Equal(t, eventbus.EventEntitySpawned, out.EventType)
		assert.Equal(t, "worldsim_01", out.ServerID)
		assert.NotEmpty(t, out.EventID)

		var payload eventbus.EntityPayload
		require.NoError(t, json.Unmarshal(out.Data, &payload))
		assert.Equal(t, uint64(7), payload.ID)
		assert.Equal(t, "ants", payload.Layer)
	case <-time.After(5 * time.Second):
		t.Fatal("webhook не получил событие")
	}

	// Шумовое событие доставлено быть не должно
	select {
	case d := <-got:
		t.Fatalf("пришло лишнее событие: %s", d.eventType)
	case <-time.After(300 * time.Millisecond):
	}
}
