package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/cloudwego/hertz/pkg/route/param"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-agent-go/internal/storage/models"
	"resume-agent-go/internal/types"
)

type fakeResumeStore struct {
	docs       map[string]*models.ResumeDocument
	texts      map[string]string
	searchHits []types.RankedDocument
	matchHits  []types.RankedJob
	err        error

	storedOwner    string
	storedFilename string
	storedText     string
}

func newFakeResumeStore() *fakeResumeStore {
	return &fakeResumeStore{
		docs:  make(map[string]*models.ResumeDocument),
		texts: make(map[string]string),
	}
}

func (f *fakeResumeStore) StoreResume(_ context.Context, ownerID, filename, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.storedOwner, f.storedFilename, f.storedText = ownerID, filename, text
	return "resume-1", nil
}

func (f *fakeResumeStore) GetResume(_ context.Context, _, resumeID string) (*models.ResumeDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	doc, ok := f.docs[resumeID]
	if !ok {
		return nil, types.ErrNotFound
	}
	return doc, nil
}

func (f *fakeResumeStore) GetResumeText(_ context.Context, _, resumeID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	text, ok := f.texts[resumeID]
	if !ok {
		return "", types.ErrNotFound
	}
	return text, nil
}

func (f *fakeResumeStore) ListResumes(_ context.Context, _ string, _, _ int) ([]models.ResumeDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.ResumeDocument, 0, len(f.docs))
	for _, doc := range f.docs {
		out = append(out, *doc)
	}
	return out, nil
}

func (f *fakeResumeStore) SearchResumes(_ context.Context, _, query string, _ int) ([]types.RankedDocument, error) {
	if f.err != nil {
		return nil, f.err
	}
	if query == "" {
		return nil, types.ErrInsufficientInput
	}
	return f.searchHits, nil
}

func (f *fakeResumeStore) DeleteResume(_ context.Context, _, resumeID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.docs[resumeID]
	delete(f.docs, resumeID)
	return ok, nil
}

func (f *fakeResumeStore) MatchResumeToJobs(_ context.Context, _, resumeID string, _ int) ([]types.RankedJob, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.docs[resumeID]; !ok {
		return nil, types.ErrNotFound
	}
	return f.matchHits, nil
}

func newJSONContext(owner, body string) *app.RequestContext {
	c := app.NewContext(16)
	if owner != "" {
		c.Set(ownerIDKey, owner)
	}
	if body != "" {
		c.Request.SetMethod("POST")
		c.Request.Header.SetContentTypeBytes([]byte("application/json"))
		c.Request.SetBody([]byte(body))
		c.Request.Header.SetContentLength(len(body))
	}
	return c
}

func TestHandleStoreResume(t *testing.T) {
	store := newFakeResumeStore()
	h := NewResumeHandler(nil, store, 10)

	c := newJSONContext("tenant-a", `{"filename":"张三.pdf","text":"多年Go开发经验"}`)
	h.HandleStore(context.Background(), c)

	assert.Equal(t, consts.StatusOK, c.Response.StatusCode())
	var resp storeResumeResponse
	require.NoError(t, json.Unmarshal(c.Response.Body(), &resp))
	assert.Equal(t, "resume-1", resp.ResumeID)
	assert.Equal(t, "tenant-a", store.storedOwner)
	assert.Equal(t, "张三.pdf", store.storedFilename)
}

func TestHandleStoreResumeEmptyText(t *testing.T) {
	store := newFakeResumeStore()
	store.err = types.ErrInsufficientInput
	h := NewResumeHandler(nil, store, 10)

	c := newJSONContext("tenant-a", `{"filename":"空.txt","text":""}`)
	h.HandleStore(context.Background(), c)

	assert.Equal(t, consts.StatusUnprocessableEntity, c.Response.StatusCode())
}

func TestHandleStoreResumeNoAuth(t *testing.T) {
	h := NewResumeHandler(nil, newFakeResumeStore(), 10)

	c := newJSONContext("", `{"text":"文本"}`)
	h.HandleStore(context.Background(), c)

	assert.Equal(t, consts.StatusUnauthorized, c.Response.StatusCode())
}

func TestHandleListSearchPath(t *testing.T) {
	store := newFakeResumeStore()
	store.searchHits = []types.RankedDocument{
		{DocumentID: "r1", Filename: "a.pdf", Score: 0.9, CreatedAt: time.Now()},
	}
	h := NewResumeHandler(nil, store, 10)

	c := app.NewContext(16)
	c.Set(ownerIDKey, "tenant-a")
	c.QueryArgs().Add("q", "golang 后端")
	h.HandleList(context.Background(), c)

	assert.Equal(t, consts.StatusOK, c.Response.StatusCode())
	var resp struct {
		Results []types.RankedDocument `json:"results"`
	}
	require.NoError(t, json.Unmarshal(c.Response.Body(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "r1", resp.Results[0].DocumentID)
}

func TestHandleListBackendDown(t *testing.T) {
	store := newFakeResumeStore()
	store.err = fmt.Errorf("%w: 连接失败", types.ErrRetrievalUnavailable)
	h := NewResumeHandler(nil, store, 10)

	c := app.NewContext(16)
	c.Set(ownerIDKey, "tenant-a")
	h.HandleList(context.Background(), c)

	assert.Equal(t, consts.StatusServiceUnavailable, c.Response.StatusCode())
}

func TestHandleDeleteNotFound(t *testing.T) {
	h := NewResumeHandler(nil, newFakeResumeStore(), 10)

	c := app.NewContext(16)
	c.Set(ownerIDKey, "tenant-a")
	c.Params = append(c.Params, param.Param{Key: "resume_id", Value: "missing"})
	h.HandleDelete(context.Background(), c)

	assert.Equal(t, consts.StatusNotFound, c.Response.StatusCode())
}

func TestHandleMatch(t *testing.T) {
	store := newFakeResumeStore()
	store.docs["r1"] = &models.ResumeDocument{ResumeID: "r1", OwnerID: "tenant-a"}
	store.matchHits = []types.RankedJob{
		{JobID: "j1", Title: "Go后端工程师", Score: 0.8},
	}
	h := NewResumeHandler(nil, store, 10)

	c := app.NewContext(16)
	c.Set(ownerIDKey, "tenant-a")
	c.Params = append(c.Params, param.Param{Key: "resume_id", Value: "r1"})
	h.HandleMatch(context.Background(), c)

	assert.Equal(t, consts.StatusOK, c.Response.StatusCode())
	var resp struct {
		Matches []types.RankedJob `json:"matches"`
	}
	require.NoError(t, json.Unmarshal(c.Response.Body(), &resp))
	require.Len(t, resp.Matches, 1)
	assert.Equal(t, "j1", resp.Matches[0].JobID)
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{types.ErrNotFound, consts.StatusNotFound},
		{types.ErrInsufficientInput, consts.StatusUnprocessableEntity},
		{types.ErrValidationRejected, consts.StatusUnprocessableEntity},
		{fmt.Errorf("%w: qdrant 503", types.ErrRetrievalUnavailable), consts.StatusServiceUnavailable},
		{types.ErrCredentialMissing, consts.StatusBadRequest},
		{fmt.Errorf("其他错误"), consts.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusForError(tc.err), tc.err.Error())
	}
}
