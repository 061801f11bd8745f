package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/tracing"
)

var qdrantTracer = otel.Tracer("resume-agent-go/storage/qdrant")

// QdrantPointIDNamespace 生成确定性point ID的专用命名空间。
// 同一简历的同一分块总是得到相同的point ID，重复入库覆盖旧点而不产生重复。
var QdrantPointIDNamespace = uuid.Must(uuid.FromString("fd6c72c2-5a33-4b53-8e7c-8298f3f5a7e1"))

// ScoredPoint 一条向量检索结果
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload map[string]interface{}
}

// ChunkPoint 待入库的简历分块
type ChunkPoint struct {
	ChunkID int
	Content string
}

// Qdrant 通过HTTP API提供向量数据库功能，管理简历分块和岗位两个集合
type Qdrant struct {
	endpoint         string
	resumeCollection string
	jobCollection    string
	vectorSize       int
	distanceMetric   string
	apiKey           string
	httpClient       *http.Client
}

// QdrantOption 定义Qdrant构造函数选项
type QdrantOption func(*Qdrant)

// WithDistanceMetric 设置距离度量
func WithDistanceMetric(metric string) QdrantOption {
	return func(q *Qdrant) {
		q.distanceMetric = metric
	}
}

// WithHTTPTimeout 设置HTTP客户端超时
func WithHTTPTimeout(timeout time.Duration) QdrantOption {
	return func(q *Qdrant) {
		q.httpClient = &http.Client{Timeout: timeout}
	}
}

// NewQdrant 创建Qdrant客户端并确保两个集合存在
func NewQdrant(cfg *config.QdrantConfig, opts ...QdrantOption) (*Qdrant, error) {
	if cfg == nil {
		return nil, fmt.Errorf("qdrant配置不能为空")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:6333"
	}

	resumeCollection := cfg.ResumeCollection
	if resumeCollection == "" {
		resumeCollection = "resume_chunks"
	}
	jobCollection := cfg.JobCollection
	if jobCollection == "" {
		jobCollection = "job_definitions"
	}

	vectorSize := cfg.Dimension
	if vectorSize <= 0 {
		vectorSize = 1536
	}

	q := &Qdrant{
		endpoint:         endpoint,
		resumeCollection: resumeCollection,
		jobCollection:    jobCollection,
		vectorSize:       vectorSize,
		distanceMetric:   "Cosine",
		apiKey:           cfg.APIKey,
		httpClient:       &http.Client{Timeout: 30 * time.Second},
	}

	for _, opt := range opts {
		opt(q)
	}

	for _, collection := range []string{resumeCollection, jobCollection} {
		if err := q.ensureCollectionExists(context.Background(), collection); err != nil {
			return nil, fmt.Errorf("确保集合 '%s' 存在失败: %w", collection, err)
		}
	}

	logger.Info().Str("endpoint", endpoint).
		Str("resume_collection", resumeCollection).
		Str("job_collection", jobCollection).
		Msg("成功连接到Qdrant服务器")
	return q, nil
}

// doRequest 执行Qdrant HTTP请求，统一注入追踪上下文并解码响应
func (q *Qdrant) doRequest(ctx context.Context, method, path string, reqBody interface{}, respBody interface{}) error {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("序列化请求体失败: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	url := q.endpoint + path
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("执行HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应体失败: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		httpErr := &qdrantHTTPError{StatusCode: resp.StatusCode, Body: string(body)}
		tracing.RecordHTTPError(trace.SpanFromContext(ctx), httpErr, resp.StatusCode)
		return httpErr
	}

	if respBody != nil {
		if err := json.Unmarshal(body, respBody); err != nil {
			return fmt.Errorf("解析响应体失败: %w", err)
		}
	}
	return nil
}

// qdrantHTTPError 保留状态码，便于区分404和服务故障
type qdrantHTTPError struct {
	StatusCode int
	Body       string
}

func (e *qdrantHTTPError) Error() string {
	return fmt.Sprintf("API调用失败，状态码: %d，响应: %s", e.StatusCode, e.Body)
}

// ensureCollectionExists 确保向量集合存在
func (q *Qdrant) ensureCollectionExists(ctx context.Context, collection string) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.EnsureCollectionExists",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("net.peer.name", q.endpoint),
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "check_collection"),
		attribute.String("db.collection", collection),
		attribute.Int("db.vector_size", q.vectorSize),
	)

	var collectionInfo struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size     int    `json:"size"`
						Distance string `json:"distance"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}

	err := q.doRequest(ctx, http.MethodGet, "/collections/"+collection, nil, &collectionInfo)
	if err != nil {
		var httpErr *qdrantHTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			span.AddEvent("collection_not_found")
			return q.createCollection(ctx, collection)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	existingSize := collectionInfo.Result.Config.Params.Vectors.Size
	existingDistance := collectionInfo.Result.Config.Params.Vectors.Distance
	if existingSize != q.vectorSize || existingDistance != q.distanceMetric {
		logger.Warn().
			Int("existing_size", existingSize).
			Str("existing_distance", existingDistance).
			Int("expected_size", q.vectorSize).
			Str("expected_distance", q.distanceMetric).
			Str("collection", collection).
			Msg("现有集合配置与当前配置不匹配")
		span.AddEvent("collection_config_mismatch")
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// createCollection 创建新的向量集合
func (q *Qdrant) createCollection(ctx context.Context, collection string) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.CreateCollection",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "create_collection"),
		attribute.String("db.collection", collection),
		attribute.Int("db.vector_size", q.vectorSize),
		attribute.String("db.vector.distance", q.distanceMetric),
	)

	createReqBody := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     q.vectorSize,
			"distance": q.distanceMetric,
		},
		"optimizers_config": map[string]interface{}{
			"default_segment_number": 2,
		},
	}

	if err := q.doRequest(ctx, http.MethodPut, "/collections/"+collection, createReqBody, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	logger.Info().Str("collection", collection).Int("dimension", q.vectorSize).Msg("已创建Qdrant集合")
	return nil
}

// ownerFilter 构造租户隔离过滤器。
// 所有涉及租户数据的检索、删除、统计都必须经过这里，附加条件通过extra追加。
func ownerFilter(ownerID string, extra ...map[string]interface{}) map[string]interface{} {
	must := []interface{}{
		map[string]interface{}{
			"key":   "owner_id",
			"match": map[string]interface{}{"value": ownerID},
		},
	}
	for _, cond := range extra {
		must = append(must, cond)
	}
	return map[string]interface{}{"must": must}
}

// matchCondition 构造一个字段等值匹配条件
func matchCondition(key string, value interface{}) map[string]interface{} {
	return map[string]interface{}{
		"key":   key,
		"match": map[string]interface{}{"value": value},
	}
}

// ResumePointID 计算简历分块的确定性point ID
func ResumePointID(resumeID string, chunkID int) string {
	idSource := fmt.Sprintf("resume_id:%s_chunk_id:%d", resumeID, chunkID)
	return uuid.NewV5(QdrantPointIDNamespace, idSource).String()
}

// JobPointID 计算岗位向量的确定性point ID
func JobPointID(jobID string) string {
	return uuid.NewV5(QdrantPointIDNamespace, "job_id:"+jobID).String()
}

// UpsertResumeChunks 写入简历分块向量，point ID确定性生成，重复写入幂等。
// 返回写入的point ID列表。
func (q *Qdrant) UpsertResumeChunks(ctx context.Context, ownerID, resumeID, filename string, chunks []ChunkPoint, embeddings [][]float64, createdAt time.Time) ([]string, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.UpsertResumeChunks",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "upsert_points"),
		attribute.String("db.collection", q.resumeCollection),
		attribute.String("resume.id", resumeID),
		attribute.Int("vectors.count", len(embeddings)),
	)

	if len(chunks) != len(embeddings) {
		err := fmt.Errorf("chunks数量(%d)与embeddings数量(%d)不匹配", len(chunks), len(embeddings))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if len(embeddings) == 0 {
		span.SetStatus(codes.Ok, "no vectors to store")
		return []string{}, nil
	}

	points := make([]interface{}, 0, len(chunks))
	ids := make([]string, 0, len(chunks))

	for i, embedding := range embeddings {
		if len(embedding) != q.vectorSize {
			err := fmt.Errorf("向量维度(%d)与配置维度(%d)不匹配", len(embedding), q.vectorSize)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		chunk := chunks[i]
		pointID := ResumePointID(resumeID, chunk.ChunkID)
		ids = append(ids, pointID)

		payload := map[string]interface{}{
			"resume_id":  resumeID,
			"owner_id":   ownerID,
			"filename":   filename,
			"chunk_id":   chunk.ChunkID,
			"content":    chunk.Content,
			"created_at": createdAt.Unix(),
			"source":     "resume",
		}

		points = append(points, map[string]interface{}{
			"id":      pointID,
			"vector":  embedding,
			"payload": payload,
		})
	}

	requestBody := map[string]interface{}{"points": points}
	path := fmt.Sprintf("/collections/%s/points?wait=true", q.resumeCollection)
	if err := q.doRequest(ctx, http.MethodPut, path, requestBody, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return ids, nil
}

// GetResumeChunkVectors 按chunk_id顺序取回一份简历的全部已存向量，
// 用于岗位匹配时复用入库向量而不重新嵌入
func (q *Qdrant) GetResumeChunkVectors(ctx context.Context, ownerID, resumeID string) ([][]float64, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.GetResumeChunkVectors",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "scroll_points"),
		attribute.String("db.collection", q.resumeCollection),
		attribute.String("resume.id", resumeID),
	)

	requestBody := map[string]interface{}{
		"filter":       ownerFilter(ownerID, matchCondition("resume_id", resumeID)),
		"with_vector":  true,
		"with_payload": []string{"chunk_id"},
		"limit":        1024,
	}

	var result struct {
		Result struct {
			Points []struct {
				Vector  []float64              `json:"vector"`
				Payload map[string]interface{} `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}

	path := fmt.Sprintf("/collections/%s/points/scroll", q.resumeCollection)
	if err := q.doRequest(ctx, http.MethodPost, path, requestBody, &result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	type indexedVector struct {
		chunkID int
		vector  []float64
	}
	indexed := make([]indexedVector, 0, len(result.Result.Points))
	for _, p := range result.Result.Points {
		chunkID := 0
		if v, ok := p.Payload["chunk_id"].(float64); ok {
			chunkID = int(v)
		}
		indexed = append(indexed, indexedVector{chunkID: chunkID, vector: p.Vector})
	}
	sort.Slice(indexed, func(i, j int) bool { return indexed[i].chunkID < indexed[j].chunkID })

	vectors := make([][]float64, 0, len(indexed))
	for _, iv := range indexed {
		vectors = append(vectors, iv.vector)
	}

	span.SetAttributes(attribute.Int("vectors.count", len(vectors)))
	span.SetStatus(codes.Ok, "")
	return vectors, nil
}

// SearchResumeChunks 在租户范围内检索相似简历分块
func (q *Qdrant) SearchResumeChunks(ctx context.Context, ownerID string, queryVector []float64, limit int) ([]ScoredPoint, error) {
	return q.search(ctx, q.resumeCollection, ownerID, queryVector, limit, nil)
}

// DeleteResumeChunks 删除一份简历的全部向量点
func (q *Qdrant) DeleteResumeChunks(ctx context.Context, ownerID, resumeID string) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.DeleteResumeChunks",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "delete_points"),
		attribute.String("db.collection", q.resumeCollection),
		attribute.String("resume.id", resumeID),
	)

	requestBody := map[string]interface{}{
		"filter": ownerFilter(ownerID, matchCondition("resume_id", resumeID)),
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", q.resumeCollection)
	if err := q.doRequest(ctx, http.MethodPost, path, requestBody, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// CountResumeChunks 统计租户在向量库中的分块数
func (q *Qdrant) CountResumeChunks(ctx context.Context, ownerID string) (int64, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.CountResumeChunks",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	requestBody := map[string]interface{}{
		"filter": ownerFilter(ownerID),
		"exact":  true,
	}

	var result struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
	}

	path := fmt.Sprintf("/collections/%s/points/count", q.resumeCollection)
	if err := q.doRequest(ctx, http.MethodPost, path, requestBody, &result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	span.SetStatus(codes.Ok, "")
	return result.Result.Count, nil
}

// UpsertJobPoint 写入岗位的整体向量，payload携带岗位标题和描述
func (q *Qdrant) UpsertJobPoint(ctx context.Context, ownerID, jobID string, embedding []float64, payload map[string]interface{}) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.UpsertJobPoint",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "upsert_points"),
		attribute.String("db.collection", q.jobCollection),
		attribute.String("job.id", jobID),
	)

	if len(embedding) != q.vectorSize {
		err := fmt.Errorf("向量维度(%d)与配置维度(%d)不匹配", len(embedding), q.vectorSize)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["job_id"] = jobID
	payload["owner_id"] = ownerID
	payload["source"] = "job"

	requestBody := map[string]interface{}{
		"points": []interface{}{
			map[string]interface{}{
				"id":      JobPointID(jobID),
				"vector":  embedding,
				"payload": payload,
			},
		},
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", q.jobCollection)
	if err := q.doRequest(ctx, http.MethodPut, path, requestBody, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// SearchJobPoints 在租户范围内检索相似岗位
func (q *Qdrant) SearchJobPoints(ctx context.Context, ownerID string, queryVector []float64, limit int) ([]ScoredPoint, error) {
	return q.search(ctx, q.jobCollection, ownerID, queryVector, limit, nil)
}

// DeleteJobPoint 删除岗位向量
func (q *Qdrant) DeleteJobPoint(ctx context.Context, ownerID, jobID string) error {
	requestBody := map[string]interface{}{
		"filter": ownerFilter(ownerID, matchCondition("job_id", jobID)),
	}
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", q.jobCollection)
	return q.doRequest(ctx, http.MethodPost, path, requestBody, nil)
}

// search 通用检索入口，过滤器始终经过ownerFilter构造
func (q *Qdrant) search(ctx context.Context, collection, ownerID string, queryVector []float64, limit int, extra []map[string]interface{}) ([]ScoredPoint, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.Search",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "search_points"),
		attribute.String("db.collection", collection),
		attribute.Int("search.limit", limit),
		attribute.Int("query_vector.size", len(queryVector)),
	)

	if len(queryVector) != q.vectorSize {
		err := fmt.Errorf("查询向量维度(%d)与配置维度(%d)不匹配", len(queryVector), q.vectorSize)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if limit <= 0 {
		limit = 10
	}

	searchReq := map[string]interface{}{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
		"filter":       ownerFilter(ownerID, extra...),
	}

	var result struct {
		Result []struct {
			ID      string                 `json:"id"`
			Score   float64                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
	}

	path := fmt.Sprintf("/collections/%s/points/search", collection)
	if err := q.doRequest(ctx, http.MethodPost, path, searchReq, &result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	points := make([]ScoredPoint, 0, len(result.Result))
	for _, item := range result.Result {
		points = append(points, ScoredPoint{
			ID:      item.ID,
			Score:   item.Score,
			Payload: item.Payload,
		})
	}

	span.SetAttributes(attribute.Int("search.results", len(points)))
	span.SetStatus(codes.Ok, "")
	return points, nil
}
