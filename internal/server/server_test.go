package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/config/structs"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/server/api"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/server/middlewares"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/serving/handlers/similar"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewRouter_AuthGuardsAPIOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	querier := &similar.MockQuerier{}
	querier.On("SimilarTo", mock.Anything, "sku-1", similar.Params{}).Return(nil, similar.ErrItemNotIndexed)
	router, err := NewRouter(&structs.Configs{AppName: "catalog-sync", AppEnv: "test", AuthTokens: "secret"},
		api.NewHandler(querier, nil, nil, nil))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/items/sku-1/similar", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/items/sku-1/similar", nil)
	req.Header.Set(middlewares.CallerIdHeader, "crud")
	req.Header.Set(middlewares.AuthTokenHeader, "secret")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNewRouter_EmptyAppName(t *testing.T) {
	_, err := NewRouter(&structs.Configs{}, api.NewHandler(nil, nil, nil, nil))
	assert.Error(t, err)
}

func TestServer_StartAndShutdown(t *testing.T) {
	_, err := New(0, http.NewServeMux())
	assert.Error(t, err)

	s, err := New(18431, http.NewServeMux())
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- s.Start() }()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.NoError(t, <-done)
}
