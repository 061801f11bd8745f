package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-agent-go/internal/types"
)

type fakeStatsProvider struct {
	stats *types.DashboardStats
	err   error
}

func (f *fakeStatsProvider) DashboardStats(_ context.Context, _ string) (*types.DashboardStats, error) {
	return f.stats, f.err
}

type fakeChunkCounter struct {
	count int64
	err   error
}

func (f *fakeChunkCounter) CountResumeChunks(_ context.Context, _ string) (int64, error) {
	return f.count, f.err
}

func TestDashboardStats(t *testing.T) {
	provider := &fakeStatsProvider{stats: &types.DashboardStats{
		TotalResumes: 3,
		AutoScreened: 2,
		HighMatches:  1,
	}}
	h := NewDashboardHandler(provider, &fakeChunkCounter{count: 42})

	c := app.NewContext(16)
	c.Set(ownerIDKey, "tenant-a")
	h.HandleStats(context.Background(), c)

	assert.Equal(t, consts.StatusOK, c.Response.StatusCode())
	var resp struct {
		Stats         types.DashboardStats `json:"stats"`
		IndexedChunks int64                `json:"indexed_chunks"`
	}
	require.NoError(t, json.Unmarshal(c.Response.Body(), &resp))
	assert.Equal(t, int64(3), resp.Stats.TotalResumes)
	assert.Equal(t, int64(42), resp.IndexedChunks)
}

func TestDashboardStatsChunkCountFailureTolerated(t *testing.T) {
	provider := &fakeStatsProvider{stats: &types.DashboardStats{TotalResumes: 1}}
	h := NewDashboardHandler(provider, &fakeChunkCounter{err: fmt.Errorf("qdrant 不可用")})

	c := app.NewContext(16)
	c.Set(ownerIDKey, "tenant-a")
	h.HandleStats(context.Background(), c)

	// 分块计数失败不该拖垮主统计
	assert.Equal(t, consts.StatusOK, c.Response.StatusCode())
	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(c.Response.Body(), &resp))
	assert.Contains(t, resp, "stats")
	assert.NotContains(t, resp, "indexed_chunks")
}

func TestDashboardStatsBackendDown(t *testing.T) {
	provider := &fakeStatsProvider{err: fmt.Errorf("%w: mysql", types.ErrRetrievalUnavailable)}
	h := NewDashboardHandler(provider, nil)

	c := app.NewContext(16)
	c.Set(ownerIDKey, "tenant-a")
	h.HandleStats(context.Background(), c)

	assert.Equal(t, consts.StatusServiceUnavailable, c.Response.StatusCode())
}
