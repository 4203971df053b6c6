package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radif/envelope/docs/swagger"
	"github.com/radif/envelope/internal/config"
	"github.com/radif/envelope/internal/response"
)

type wireEnvelope struct {
	StatusCode        int                `json:"statusCode"`
	Message           string             `json:"message"`
	Result            json.RawMessage    `json:"result"`
	ResponseException *response.APIError `json:"responseException"`
	Version           string             `json:"version"`
}

func testConfig(diagnostics bool) *config.Config {
	cfg := config.Defaults()
	cfg.Diagnostics = &diagnostics
	cfg.JWTSecret = "router-test-secret"
	return &cfg
}

func setupRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h, err := NewRouter(cfg, logger)
	require.NoError(t, err)
	return h
}

func do(h http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) wireEnvelope {
	t.Helper()
	var env wireEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestHealthIsWrapped(t *testing.T) {
	h := setupRouter(t, testConfig(false))
	rec := do(h, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, response.MessageSuccess, env.Message)
	assert.JSONEq(t, `{"status":"ok"}`, string(env.Result))
}

func TestSampleItems(t *testing.T) {
	h := setupRouter(t, testConfig(false))

	rec := do(h, http.MethodGet, "/api/v1/sample/items", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	var items []map[string]any
	require.NoError(t, json.Unmarshal(env.Result, &items))
	assert.Len(t, items, len(DefaultItems))

	rec = do(h, http.MethodGet, "/api/v1/sample/items/2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"2","name":"Fountain pen","price":32}`, string(decode(t, rec).Result))
}

func TestSampleItemNotFound(t *testing.T) {
	h := setupRouter(t, testConfig(false))
	rec := do(h, http.MethodGet, "/api/v1/sample/items/99", "", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, response.MessageException, env.Message)
	require.NotNil(t, env.ResponseException)
	assert.Equal(t, "item not found", env.ResponseException.ExceptionMessage)
	require.NotNil(t, env.ResponseException.ReferenceErrorCode)
	assert.Equal(t, "ITEM_NOT_FOUND", *env.ResponseException.ReferenceErrorCode)
}

func TestSampleCreateItem(t *testing.T) {
	h := setupRouter(t, testConfig(false))
	jsonHeader := http.Header{"Content-Type": {"application/json"}}

	rec := do(h, http.MethodPost, "/api/v1/sample/items", `{"name":"","price":1}`, jsonHeader)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec)
	require.NotNil(t, env.ResponseException)
	assert.Equal(t, []response.ValidationError{{Field: "Name", Message: "Required"}}, env.ResponseException.ValidationErrors)

	rec = do(h, http.MethodPost, "/api/v1/sample/items", `{"name":"Stapler","price":12.5}`, jsonHeader)
	assert.Equal(t, http.StatusCreated, rec.Code)
	env = decode(t, rec)
	assert.Equal(t, http.StatusCreated, env.StatusCode)
	var item map[string]any
	require.NoError(t, json.Unmarshal(env.Result, &item))
	assert.Equal(t, "Stapler", item["name"])
	assert.NotEmpty(t, item["id"])

	rec = do(h, http.MethodPost, "/api/v1/sample/items", `{`, jsonHeader)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env = decode(t, rec)
	require.Len(t, env.ResponseException.ValidationErrors, 1)
	assert.Empty(t, env.ResponseException.ValidationErrors[0].Field)
}

func TestSampleTextAndEmpty(t *testing.T) {
	h := setupRouter(t, testConfig(false))

	rec := do(h, http.MethodGet, "/api/v1/sample/text", "", nil)
	assert.Equal(t, response.ContentTypeJSON, rec.Header().Get("Content-Type"))
	assert.Equal(t, `"catalog is open"`, string(decode(t, rec).Result))

	rec = do(h, http.MethodGet, "/api/v1/sample/empty", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", string(decode(t, rec).Result))
}

func TestSampleWrappedAdoptsInnerStatus(t *testing.T) {
	h := setupRouter(t, testConfig(false))
	rec := do(h, http.MethodGet, "/api/v1/sample/wrapped", "", nil)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, http.StatusAccepted, env.StatusCode)
	assert.JSONEq(t, `{"job":"queued"}`, string(env.Result))
}

func TestSampleErrors(t *testing.T) {
	for _, path := range []string{"/api/v1/sample/error", "/api/v1/sample/panic"} {
		t.Run(path, func(t *testing.T) {
			rec := do(setupRouter(t, testConfig(false)), http.MethodGet, path, "", nil)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			env := decode(t, rec)
			assert.Equal(t, "An unhandled error occurred.", env.ResponseException.ExceptionMessage)
			assert.Nil(t, env.ResponseException.Details)
			assert.NotContains(t, rec.Body.String(), "inventory backend")

			rec = do(setupRouter(t, testConfig(true)), http.MethodGet, path, "", nil)
			env = decode(t, rec)
			require.NotNil(t, env.ResponseException.Details)
			assert.NotEmpty(t, *env.ResponseException.Details)
		})
	}
}

func TestSampleMe(t *testing.T) {
	cfg := testConfig(false)
	h := setupRouter(t, cfg)

	rec := do(h, http.MethodGet, "/api/v1/sample/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized Access", decode(t, rec).ResponseException.ExceptionMessage)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-7",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)

	rec = do(h, http.MethodGet, "/api/v1/sample/me", "", http.Header{"Authorization": {"Bearer " + token}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"subject":"user-7"}`, string(decode(t, rec).Result))
}

func TestUnknownRoute(t *testing.T) {
	h := setupRouter(t, testConfig(false))

	for _, path := range []string{"/nothing", "/api/v1/nothing", "/api/v1/sample/nothing"} {
		rec := do(h, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		env := decode(t, rec)
		assert.Equal(t, response.MessageFailure, env.Message)
		assert.Equal(t, "The specified URI does not exist. Please verify and try again.", env.ResponseException.ExceptionMessage)
	}
}

func TestMethodNotAllowedUsesProblemDetail(t *testing.T) {
	h := setupRouter(t, testConfig(false))
	rec := do(h, http.MethodDelete, "/api/v1/sample/text", "", nil)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "DELETE is not supported for /api/v1/sample/text", env.ResponseException.ExceptionMessage)
}

func TestSwaggerDocIsNotWrapped(t *testing.T) {
	h := setupRouter(t, testConfig(false))
	rec := do(h, http.MethodGet, "/swagger/doc.json", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, swagger.SwaggerInfo.ReadDoc(), rec.Body.String())
}

func TestOpenAPIDocumentIsNotWrapped(t *testing.T) {
	h := setupRouter(t, testConfig(false))
	rec := do(h, http.MethodGet, "/api/v1/openapi.json", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, swagger.SwaggerInfo.ReadDoc(), rec.Body.String())

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "2.0", doc["swagger"])
}

func TestCORSHeadersSurviveRewrite(t *testing.T) {
	h := setupRouter(t, testConfig(false))
	rec := do(h, http.MethodGet, "/api/v1/sample/items", "", http.Header{"Origin": {"https://app.example"}})

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, response.ContentTypeJSON, rec.Header().Get("Content-Type"))
}

func TestUpstreamProxy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orders/7":
			response.JSON(w, http.StatusOK, response.Success(http.StatusCreated, map[string]int{"order": 7}))
		case "/raw":
			w.Header().Set("X-Upstream", "raw")
			response.OK(w, []int{1, 2, 3})
		default:
			http.NotFound(w, r)
		}
	}))
	defer upstream.Close()

	cfg := testConfig(false)
	cfg.UpstreamURL = upstream.URL
	h := setupRouter(t, cfg)

	rec := do(h, http.MethodGet, "/api/v1/upstream/orders/7", "", nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, http.StatusCreated, env.StatusCode)
	assert.JSONEq(t, `{"order":7}`, string(env.Result))

	rec = do(h, http.MethodGet, "/api/v1/upstream/raw", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "raw", rec.Header().Get("X-Upstream"))
	assert.JSONEq(t, `[1,2,3]`, string(decode(t, rec).Result))

	rec = do(h, http.MethodGet, "/api/v1/upstream/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "The specified URI does not exist. Please verify and try again.", decode(t, rec).ResponseException.ExceptionMessage)
}

func TestUpstreamUnavailable(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	cfg := testConfig(false)
	cfg.UpstreamURL = upstream.URL
	upstream.Close()

	rec := do(setupRouter(t, cfg), http.MethodGet, "/api/v1/upstream/orders", "", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "An unspecified error occurred.", decode(t, rec).ResponseException.ExceptionMessage)
}
