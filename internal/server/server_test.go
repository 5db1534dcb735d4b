package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stratum/internal/config"
	"github.com/roach88/stratum/internal/project"
	"github.com/roach88/stratum/internal/testutil"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	manager := project.NewManager(&config.Config{DataDir: t.TempDir()}, testutil.NewDeterministicClock(), nil)
	t.Cleanup(func() { _ = manager.Close() })
	return NewServer(manager, nil).Handler()
}

// post sends a JSON body and decodes the JSON response.
func post(t *testing.T, h http.Handler, path string, body any) (int, map[string]any) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), "body: %s", rec.Body.String())
	return rec.Code, decoded
}

// glossProject creates a project with a word type and a gloss feature.
func glossProject(t *testing.T, h http.Handler) {
	t.Helper()
	status, _ := post(t, h, "/createProject", map[string]any{"project": "corpus"})
	require.Equal(t, http.StatusOK, status)
	status, _ = post(t, h, "/createType", map[string]any{"project": "corpus", "type": "word"})
	require.Equal(t, http.StatusOK, status)
	status, _ = post(t, h, "/createFeature", map[string]any{
		"project": "corpus", "unittype": "word",
		"tier": "gloss", "feature": "primary", "valuetype": "str",
	})
	require.Equal(t, http.StatusOK, status)
}

func createWord(t *testing.T, h http.Handler) int64 {
	t.Helper()
	status, body := post(t, h, "/createUnit", map[string]any{
		"project": "corpus", "type": "word", "user": "alice",
	})
	require.Equal(t, http.StatusOK, status)
	return int64(body["id"].(float64))
}

func TestCreateProject(t *testing.T) {
	h := newTestHandler(t)

	status, body := post(t, h, "/createProject", map[string]any{"project": "corpus"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "created project corpus", body["message"])

	status, body = post(t, h, "/createProject", map[string]any{"project": "corpus"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "already exists")
}

func TestCreateProject_MissingID(t *testing.T) {
	h := newTestHandler(t)

	status, body := post(t, h, "/createProject", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "project id is required", body["error"])
}

func TestUnknownProject(t *testing.T) {
	h := newTestHandler(t)

	status, body := post(t, h, "/createType", map[string]any{"project": "nope", "type": "word"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body["error"], "does not exist")
}

func TestCreateFeature_Invalid(t *testing.T) {
	h := newTestHandler(t)
	glossProject(t, h)

	status, body := post(t, h, "/createFeature", map[string]any{
		"project": "corpus", "unittype": "word",
		"tier": "gloss", "feature": "weight", "valuetype": "float",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "invalid value kind")

	status, body = post(t, h, "/createFeature", map[string]any{
		"project": "corpus", "unittype": "word",
		"tier": "meta", "feature": "custom", "valuetype": "str",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "meta")
}

func TestCreateUnitAndGet(t *testing.T) {
	h := newTestHandler(t)
	glossProject(t, h)
	id := createWord(t, h)

	status, body := post(t, h, "/get", map[string]any{"project": "corpus", "item": id})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "word", body["type"])
	assert.Equal(t, float64(id), body["id"])

	layers := body["layers"].(map[string]any)
	active := layers["meta"].(map[string]any)["active"].(map[string]any)
	assert.Equal(t, "alice", active["user"])
	assert.Equal(t, true, active["value"])
	assert.Equal(t, map[string]any{}, body["children"])
}

func TestGet_NotFound(t *testing.T) {
	h := newTestHandler(t)
	glossProject(t, h)

	status, _ := post(t, h, "/get", map[string]any{"project": "corpus", "item": 99})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSetFeature(t *testing.T) {
	h := newTestHandler(t)
	glossProject(t, h)
	id := createWord(t, h)

	status, body := post(t, h, "/setFeature", map[string]any{
		"project": "corpus", "item": id,
		"features": []map[string]any{
			{"tier": "gloss", "feature": "primary", "value": "run"},
		},
		"user": "alice", "confidence": 5,
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["updates"])
	assert.Equal(t, "2024-01-15 10:30:00", body["time"])

	status, body = post(t, h, "/get", map[string]any{"project": "corpus", "item": id})
	require.Equal(t, http.StatusOK, status)
	layers := body["layers"].(map[string]any)
	primary := layers["gloss"].(map[string]any)["primary"].(map[string]any)
	assert.Equal(t, "run", primary["value"])
}

func TestSetFeature_UnknownFeature(t *testing.T) {
	h := newTestHandler(t)
	glossProject(t, h)
	id := createWord(t, h)

	status, body := post(t, h, "/setFeature", map[string]any{
		"project": "corpus", "item": id,
		"features": []map[string]any{
			{"tier": "gloss", "feature": "missing", "value": "x"},
		},
		"user": "alice", "confidence": 5,
	})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body["error"], "does not exist for type word")
}

func TestSetFeature_TypeMismatch(t *testing.T) {
	h := newTestHandler(t)
	glossProject(t, h)
	id := createWord(t, h)

	status, _ := post(t, h, "/setFeature", map[string]any{
		"project": "corpus", "item": id,
		"features": []map[string]any{
			{"tier": "gloss", "feature": "primary", "value": 7},
		},
		"user": "alice", "confidence": 5,
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSetFeature_MissingFields(t *testing.T) {
	h := newTestHandler(t)
	glossProject(t, h)
	id := createWord(t, h)

	status, body := post(t, h, "/setFeature", map[string]any{
		"project": "corpus", "item": id,
		"features": []map[string]any{},
		"user":     "alice",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "confidence score is required", body["error"])
}

func TestRelations(t *testing.T) {
	h := newTestHandler(t)
	glossProject(t, h)
	status, _ := post(t, h, "/createType", map[string]any{"project": "corpus", "type": "sentence"})
	require.Equal(t, http.StatusOK, status)

	status, body := post(t, h, "/createUnit", map[string]any{
		"project": "corpus", "type": "sentence", "user": "alice",
	})
	require.Equal(t, http.StatusOK, status)
	parent := int64(body["id"].(float64))
	nested := createWord(t, h)
	referred := createWord(t, h)

	status, body = post(t, h, "/setParent", map[string]any{
		"project": "corpus", "parent": parent, "child": nested,
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "parent set", body["message"])

	status, body = post(t, h, "/addParent", map[string]any{
		"project": "corpus", "parent": parent, "child": referred,
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "parent added", body["message"])

	status, body = post(t, h, "/get", map[string]any{"project": "corpus", "item": parent})
	require.Equal(t, http.StatusOK, status)
	words := body["children"].(map[string]any)["word"].([]any)
	require.Len(t, words, 2)
	_, isNode := words[0].(map[string]any)
	assert.True(t, isNode, "primary child nests")
	assert.Equal(t, float64(referred), words[1], "secondary child is a bare id")

	status, body = post(t, h, "/removeParent", map[string]any{
		"project": "corpus", "parent": parent, "child": nested,
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "parent removed", body["message"])

	status, body = post(t, h, "/get", map[string]any{"project": "corpus", "item": parent})
	require.Equal(t, http.StatusOK, status)
	words = body["children"].(map[string]any)["word"].([]any)
	assert.Len(t, words, 1)
}

func TestListType(t *testing.T) {
	h := newTestHandler(t)
	glossProject(t, h)
	first := createWord(t, h)
	second := createWord(t, h)

	status, _ := post(t, h, "/setFeature", map[string]any{
		"project": "corpus", "item": first,
		"features": []map[string]any{
			{"tier": "gloss", "feature": "primary", "value": "run"},
		},
		"user": "alice", "confidence": 5,
	})
	require.Equal(t, http.StatusOK, status)

	status, body := post(t, h, "/listType", map[string]any{
		"project": "corpus", "type": "word", "tier": "gloss", "feature": "primary",
	})
	require.Equal(t, http.StatusOK, status)
	units := body["units"].([]any)
	require.Len(t, units, 2)

	entry := units[0].(map[string]any)
	assert.Equal(t, float64(first), entry["id"])
	assert.Equal(t, "run", entry["value"])

	entry = units[1].(map[string]any)
	assert.Equal(t, float64(second), entry["id"])
	assert.Nil(t, entry["value"])
}

func TestModificationTimes(t *testing.T) {
	h := newTestHandler(t)
	glossProject(t, h)
	id := createWord(t, h)

	status, body := post(t, h, "/modificationTimes", map[string]any{
		"project": "corpus", "ids": []int64{id, 99},
	})
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body, 1)
	assert.Equal(t, "2024-01-15 10:30:00", body["1"])
}

func TestInvalidJSON(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/createProject", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid JSON")
}

func TestRequestIDHeader(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/createProject", bytes.NewReader([]byte(`{"project":"corpus"}`)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	req = httptest.NewRequest(http.MethodPost, "/createProject", bytes.NewReader([]byte(`{"project":"other"}`)))
	req.Header.Set("X-Request-Id", "fixed-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "fixed-id", rec.Header().Get("X-Request-Id"))
}
