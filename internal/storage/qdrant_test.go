package storage_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/storage"
)

// newMockQdrant 启动一个模拟Qdrant API的HTTP服务器。
// record 收集所有非集合管理类请求的路径和请求体。
func newMockQdrant(t *testing.T, record *[]recordedRequest, respond func(path string) interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 集合探测请求：直接返回与测试配置一致的集合信息
		if r.Method == http.MethodGet {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"result": map[string]interface{}{
					"config": map[string]interface{}{
						"params": map[string]interface{}{
							"vectors": map[string]interface{}{"size": 4, "distance": "Cosine"},
						},
					},
				},
			})
			return
		}

		var body map[string]interface{}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		if record != nil {
			*record = append(*record, recordedRequest{Path: r.URL.Path, Body: body})
		}

		var resp interface{} = map[string]interface{}{"result": map[string]interface{}{}, "status": "ok"}
		if respond != nil {
			if custom := respond(r.URL.Path); custom != nil {
				resp = custom
			}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

type recordedRequest struct {
	Path string
	Body map[string]interface{}
}

func newTestQdrant(t *testing.T, endpoint string) *storage.Qdrant {
	t.Helper()
	q, err := storage.NewQdrant(&config.QdrantConfig{
		Endpoint:         endpoint,
		ResumeCollection: "resume_chunks",
		JobCollection:    "job_definitions",
		Dimension:        4,
	})
	require.NoError(t, err)
	return q
}

func TestQdrantPointIDsDeterministic(t *testing.T) {
	assert.Equal(t, storage.ResumePointID("r1", 0), storage.ResumePointID("r1", 0))
	assert.NotEqual(t, storage.ResumePointID("r1", 0), storage.ResumePointID("r1", 1))
	assert.NotEqual(t, storage.ResumePointID("r1", 0), storage.ResumePointID("r2", 0))
	assert.Equal(t, storage.JobPointID("j1"), storage.JobPointID("j1"))
	assert.NotEqual(t, storage.JobPointID("j1"), storage.JobPointID("j2"))
}

func TestQdrantUpsertResumeChunks(t *testing.T) {
	var requests []recordedRequest
	server := newMockQdrant(t, &requests, nil)
	defer server.Close()

	q := newTestQdrant(t, server.URL)
	createdAt := time.Now()

	ids, err := q.UpsertResumeChunks(context.Background(), "tenant-a", "r1", "张三.pdf",
		[]storage.ChunkPoint{
			{ChunkID: 0, Content: "第一段"},
			{ChunkID: 1, Content: "第二段"},
		},
		[][]float64{{1, 0, 0, 0}, {0, 1, 0, 0}},
		createdAt,
	)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, storage.ResumePointID("r1", 0), ids[0])

	require.Len(t, requests, 1)
	points, ok := requests[0].Body["points"].([]interface{})
	require.True(t, ok)
	require.Len(t, points, 2)

	payload := points[0].(map[string]interface{})["payload"].(map[string]interface{})
	assert.Equal(t, "tenant-a", payload["owner_id"])
	assert.Equal(t, "r1", payload["resume_id"])
	assert.Equal(t, "张三.pdf", payload["filename"])
}

func TestQdrantUpsertCountMismatch(t *testing.T) {
	server := newMockQdrant(t, nil, nil)
	defer server.Close()

	q := newTestQdrant(t, server.URL)
	_, err := q.UpsertResumeChunks(context.Background(), "tenant-a", "r1", "a.txt",
		[]storage.ChunkPoint{{ChunkID: 0, Content: "x"}},
		[][]float64{{1, 0, 0, 0}, {0, 1, 0, 0}},
		time.Now(),
	)
	assert.Error(t, err)
}

func TestQdrantSearchCarriesOwnerFilter(t *testing.T) {
	var requests []recordedRequest
	server := newMockQdrant(t, &requests, func(path string) interface{} {
		if path == "/collections/resume_chunks/points/search" {
			return map[string]interface{}{
				"result": []map[string]interface{}{
					{"id": "p1", "score": 0.92, "payload": map[string]interface{}{"resume_id": "r1"}},
				},
			}
		}
		return nil
	})
	defer server.Close()

	q := newTestQdrant(t, server.URL)
	points, err := q.SearchResumeChunks(context.Background(), "tenant-a", []float64{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "p1", points[0].ID)
	assert.InDelta(t, 0.92, points[0].Score, 1e-9)

	// 每个检索请求都必须带租户过滤条件
	require.Len(t, requests, 1)
	filter := requests[0].Body["filter"].(map[string]interface{})
	must := filter["must"].([]interface{})
	first := must[0].(map[string]interface{})
	assert.Equal(t, "owner_id", first["key"])
	assert.Equal(t, "tenant-a",
		first["match"].(map[string]interface{})["value"])
}

func TestQdrantSearchDimensionMismatch(t *testing.T) {
	server := newMockQdrant(t, nil, nil)
	defer server.Close()

	q := newTestQdrant(t, server.URL)
	_, err := q.SearchResumeChunks(context.Background(), "tenant-a", []float64{1, 0}, 5)
	assert.Error(t, err)
}

func TestQdrantGetResumeChunkVectorsSorted(t *testing.T) {
	server := newMockQdrant(t, nil, func(path string) interface{} {
		if path == "/collections/resume_chunks/points/scroll" {
			// 故意乱序返回，调用方应按chunk_id重排
			return map[string]interface{}{
				"result": map[string]interface{}{
					"points": []map[string]interface{}{
						{"vector": []float64{0, 1, 0, 0}, "payload": map[string]interface{}{"chunk_id": 1}},
						{"vector": []float64{1, 0, 0, 0}, "payload": map[string]interface{}{"chunk_id": 0}},
					},
				},
			}
		}
		return nil
	})
	defer server.Close()

	q := newTestQdrant(t, server.URL)
	vectors, err := q.GetResumeChunkVectors(context.Background(), "tenant-a", "r1")
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float64{1, 0, 0, 0}, vectors[0])
	assert.Equal(t, []float64{0, 1, 0, 0}, vectors[1])
}

func TestQdrantCountResumeChunks(t *testing.T) {
	var requests []recordedRequest
	server := newMockQdrant(t, &requests, func(path string) interface{} {
		if path == "/collections/resume_chunks/points/count" {
			return map[string]interface{}{"result": map[string]interface{}{"count": 7}}
		}
		return nil
	})
	defer server.Close()

	q := newTestQdrant(t, server.URL)
	count, err := q.CountResumeChunks(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}

func TestQdrantServerErrorSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"result": map[string]interface{}{
					"config": map[string]interface{}{
						"params": map[string]interface{}{
							"vectors": map[string]interface{}{"size": 4, "distance": "Cosine"},
						},
					},
				},
			})
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	q := newTestQdrant(t, server.URL)
	_, err := q.SearchResumeChunks(context.Background(), "tenant-a", []float64{1, 0, 0, 0}, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
