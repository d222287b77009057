package weaviate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	weaviateclient "github.com/weaviate/weaviate-go-client/v5/weaviate"

	adapter "campaignlab/internal/adapter/weaviate"
	"campaignlab/internal/rag"
	"campaignlab/internal/retrieval"
)

func mockWeaviate(t *testing.T, handler http.HandlerFunc) (*weaviateclient.Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	cfg := weaviateclient.Config{Host: ts.Listener.Addr().String(), Scheme: "http"}
	client, err := weaviateclient.NewClient(cfg)
	require.NoError(t, err)
	return client, ts
}

func TestStore_Upsert(t *testing.T) {
	var sawDelete, sawInsert bool
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/v1/meta":
			w.Write([]byte(`{"version": "1.25.0"}`))
		case r.URL.Path == "/v1/batch/objects" && r.Method == http.MethodDelete:
			sawDelete = true
			json.NewEncoder(w).Encode(map[string]interface{}{})
		case r.URL.Path == "/v1/batch/objects" && r.Method == http.MethodPost:
			sawInsert = true
			var body map[string]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			objects := body["objects"].([]interface{})
			assert.Len(t, objects, 2)
			props := objects[0].(map[string]interface{})["properties"].(map[string]interface{})
			assert.Equal(t, "first chunk", props["content"])
			assert.Equal(t, "doc-1", props["documentId"])
			json.NewEncoder(w).Encode([]interface{}{})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})
	defer ts.Close()

	store := adapter.NewStore(client, 2, 5*time.Second)
	err := store.Upsert(context.Background(), []retrieval.Entry{
		{DocumentID: "doc-1", BrandID: "acme", Ordinal: 0, Text: "first chunk", Vector: []float32{0.1, 0.2}},
		{DocumentID: "doc-1", BrandID: "acme", Ordinal: 1, Text: "second chunk", Vector: []float32{0.3, 0.4}},
	})
	assert.NoError(t, err)
	assert.True(t, sawDelete, "upsert should replace prior chunks first")
	assert.True(t, sawInsert)
}

func TestStore_Query(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.Write([]byte(`{"version": "1.25.0"}`))
			return
		}
		assert.Equal(t, "/v1/graphql", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{
					"BrandChunk": []interface{}{
						map[string]interface{}{
							"content":    "friendly witty tone",
							"documentId": "doc-1",
							"ordinal":    0.0,
							"_additional": map[string]interface{}{
								"certainty": 0.95,
							},
						},
					},
				},
			},
		})
	})
	defer ts.Close()

	store := adapter.NewStore(client, 2, 5*time.Second)
	results, err := store.Query(context.Background(), []float32{0.6, 0.8}, 5, "acme")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "friendly witty tone", results[0].Text)
	assert.Equal(t, "doc-1", results[0].DocumentID)
	// certainty 0.95 rescales to cosine 0.9
	assert.InDelta(t, 0.9, results[0].Score, 1e-6)
}

func TestStore_Query_DimensionMismatch(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.Write([]byte(`{"version": "1.25.0"}`))
			return
		}
		t.Errorf("no query expected, got %s", r.URL.Path)
	})
	defer ts.Close()

	store := adapter.NewStore(client, 384, 5*time.Second)
	_, err := store.Query(context.Background(), make([]float32, 300), 5, "")
	assert.ErrorIs(t, err, rag.ErrSchemaMismatch)
}

func TestStore_Query_GraphQLError(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.Write([]byte(`{"version": "1.25.0"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data":   map[string]interface{}{},
			"errors": []interface{}{map[string]interface{}{"message": "shard down"}},
		})
	})
	defer ts.Close()

	store := adapter.NewStore(client, 2, 5*time.Second)
	_, err := store.Query(context.Background(), []float32{0.6, 0.8}, 5, "")
	assert.ErrorIs(t, err, rag.ErrStoreUnavailable)
}

func TestStore_Delete(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.Write([]byte(`{"version": "1.25.0"}`))
			return
		}
		assert.Equal(t, "/v1/batch/objects", r.URL.Path)
		assert.Equal(t, http.MethodDelete, r.Method)
		json.NewEncoder(w).Encode(map[string]interface{}{})
	})
	defer ts.Close()

	store := adapter.NewStore(client, 2, 5*time.Second)
	assert.NoError(t, store.Delete(context.Background(), "doc-1"))
}

func TestStore_Delete_Timeout(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.Write([]byte(`{"version": "1.25.0"}`))
			return
		}
		// Stall until the client gives up.
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	defer ts.Close()

	store := adapter.NewStore(client, 2, 50*time.Millisecond)
	start := time.Now()
	err := store.Delete(context.Background(), "doc-1")
	assert.ErrorIs(t, err, rag.ErrStoreUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second, "delete should fail within the store timeout")
}

func TestStore_CountChunks(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.Write([]byte(`{"version": "1.25.0"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"Aggregate": map[string]interface{}{
					"BrandChunk": []interface{}{
						map[string]interface{}{
							"meta": map[string]interface{}{"count": 7.0},
						},
					},
				},
			},
		})
	})
	defer ts.Close()

	store := adapter.NewStore(client, 2, 5*time.Second)
	n, err := store.CountChunks(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
