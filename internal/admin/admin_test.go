package admin

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/config/structs"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/events"
	"github.com/Meesho/BharatMLStack/catalog-sync/internal/repositories/eventlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testStream = "catalog:updates"
	testGroup  = "catalog-indexers"
)

func memoryOpener(l eventlog.Log) LogOpener {
	cfg := &structs.Configs{StreamName: testStream, ConsumerGroup: testGroup}
	return func(context.Context) (eventlog.Log, *structs.Configs, func(), error) {
		return l, cfg, func() {}, nil
	}
}

func execute(t *testing.T, open LogOpener, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(open)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// ==================== publish ====================

func TestPublish_AppendsEvent(t *testing.T) {
	ctx := context.Background()
	l := eventlog.NewMemoryLog(1, time.Minute, 0)
	require.NoError(t, l.CreateGroup(ctx, testStream, testGroup, eventlog.StartBeginning))

	out, err := execute(t, memoryOpener(l), "publish", "--type", "create", "--item", "sku-1",
		"--payload", `{"id":"sku-1","name":"Desk lamp","category":"lighting"}`)
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))

	msgs, err := l.ReadBatch(ctx, testStream, testGroup, "reader", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, strings.TrimSpace(out), msgs[0].ID)
	assert.Equal(t, "create", msgs[0].Values[events.FieldEventType])
	assert.Equal(t, "sku-1", msgs[0].Values[events.FieldItemID])
}

func TestPublish_PayloadFromFile(t *testing.T) {
	ctx := context.Background()
	l := eventlog.NewMemoryLog(1, time.Minute, 0)
	require.NoError(t, l.CreateGroup(ctx, testStream, testGroup, eventlog.StartBeginning))
	path := filepath.Join(t.TempDir(), "item.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"sku-2","name":"Chair"}`), 0o600))

	_, err := execute(t, memoryOpener(l), "publish", "--type", "update", "--item", "sku-2", "--payload-file", path)
	require.NoError(t, err)

	msgs, err := l.ReadBatch(ctx, testStream, testGroup, "reader", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Values[events.FieldPayload], "Chair")
}

func TestPublish_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "missing type", args: []string{"publish", "--item", "sku-1"}},
		{name: "unknown type", args: []string{"publish", "--type", "upsert", "--item", "sku-1", "--payload", `{"name":"x"}`}},
		{name: "create without payload", args: []string{"publish", "--type", "create", "--item", "sku-1"}},
		{name: "both payload flags", args: []string{"publish", "--type", "create", "--item", "sku-1", "--payload", "{}", "--payload-file", "x.json"}},
		{name: "missing payload file", args: []string{"publish", "--type", "create", "--item", "sku-1", "--payload-file", "/does/not/exist.json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := eventlog.NewMemoryLog(1, time.Minute, 0)
			_, err := execute(t, memoryOpener(l), tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestPublish_OpenFailure(t *testing.T) {
	open := func(context.Context) (eventlog.Log, *structs.Configs, func(), error) {
		return nil, nil, nil, errors.New("redis down")
	}
	_, err := execute(t, open, "publish", "--type", "delete", "--item", "sku-1")
	assert.EqualError(t, err, "redis down")
}

// ==================== pending ====================

func TestPending_ListsConsumers(t *testing.T) {
	ctx := context.Background()
	l := eventlog.NewMemoryLog(1, time.Minute, 0)
	require.NoError(t, l.CreateGroup(ctx, testStream, testGroup, eventlog.StartBeginning))
	for _, item := range []string{"a", "b", "c"} {
		_, err := l.Append(ctx, testStream, item, map[string]interface{}{"item_id": item})
		require.NoError(t, err)
	}
	_, err := l.ReadBatch(ctx, testStream, testGroup, "worker-1", 2, 0)
	require.NoError(t, err)
	_, err = l.ReadBatch(ctx, testStream, testGroup, "worker-0", 1, 0)
	require.NoError(t, err)

	out, err := execute(t, memoryOpener(l), "pending")
	require.NoError(t, err)
	assert.Equal(t, "catalog:updates catalog-indexers pending=3\n  worker-0\t1\n  worker-1\t2\n", out)
}

func TestPending_GroupOverride(t *testing.T) {
	ctx := context.Background()
	l := eventlog.NewMemoryLog(1, time.Minute, 0)
	require.NoError(t, l.CreateGroup(ctx, testStream, "other", eventlog.StartBeginning))

	out, err := execute(t, memoryOpener(l), "pending", "--group", "other")
	require.NoError(t, err)
	assert.Equal(t, "catalog:updates other pending=0\n", out)
}

// ==================== similar ====================

func TestSimilar_PrintsResults(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"item_id":"sku-1","results":[{"item_id":"sku-7","score":0.91},{"item_id":"sku-3","score":0.5}]}`))
	}))
	defer srv.Close()

	out, err := execute(t, nil, "similar", "sku-1", "--api-target", srv.URL, "--k", "5", "--min-score", "0.6", "--category", "lighting")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/items/sku-1/similar", gotPath)
	assert.Equal(t, "category=lighting&k=5&min_score=0.6", gotQuery)
	assert.Equal(t, "1\tsku-7\t0.9100\n2\tsku-3\t0.5000\n", out)
}

func TestSimilar_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"item_id":"sku-1","results":[]}`))
	}))
	defer srv.Close()

	out, err := execute(t, nil, "similar", "sku-1", "--api-target", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "no similar items\n", out)
}

func TestSimilar_ApiError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"item_not_indexed","retryable":true}`))
	}))
	defer srv.Close()

	_, err := execute(t, nil, "similar", "sku-9", "--api-target", srv.URL)
	assert.EqualError(t, err, "serving API returned 404: item_not_indexed")
}

func TestSimilar_RequiresItem(t *testing.T) {
	_, err := execute(t, nil, "similar")
	assert.Error(t, err)
}
