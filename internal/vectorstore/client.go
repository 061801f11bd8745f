package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"

	"resume-agent-go/internal/embedding"
	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/storage/models"
	"resume-agent-go/internal/tracing"
	"resume-agent-go/internal/types"
)

var vsTracer = otel.Tracer("resume-agent-go/vectorstore")

// VectorIndex 向量索引接口，由storage.Qdrant实现
type VectorIndex interface {
	UpsertResumeChunks(ctx context.Context, ownerID, resumeID, filename string, chunks []storage.ChunkPoint, embeddings [][]float64, createdAt time.Time) ([]string, error)
	SearchResumeChunks(ctx context.Context, ownerID string, queryVector []float64, limit int) ([]storage.ScoredPoint, error)
	GetResumeChunkVectors(ctx context.Context, ownerID, resumeID string) ([][]float64, error)
	DeleteResumeChunks(ctx context.Context, ownerID, resumeID string) error
	UpsertJobPoint(ctx context.Context, ownerID, jobID string, embedding []float64, payload map[string]interface{}) error
	SearchJobPoints(ctx context.Context, ownerID string, queryVector []float64, limit int) ([]storage.ScoredPoint, error)
	DeleteJobPoint(ctx context.Context, ownerID, jobID string) error
}

var _ VectorIndex = (*storage.Qdrant)(nil)

// DocumentStore 文档元数据存储接口，由storage.MySQL实现
type DocumentStore interface {
	UpsertResumeDocument(ctx context.Context, doc *models.ResumeDocument) error
	GetResumeDocument(ctx context.Context, ownerID, resumeID string) (*models.ResumeDocument, error)
	ListResumeDocuments(ctx context.Context, ownerID string, limit, offset int) ([]models.ResumeDocument, error)
	DeleteResumeDocument(ctx context.Context, ownerID, resumeID string) (bool, error)
	CountResumeDocuments(ctx context.Context, ownerID string) (int64, error)
	UpsertJobDefinition(ctx context.Context, job *models.JobDefinition) error
	GetJobDefinition(ctx context.Context, ownerID, jobID string) (*models.JobDefinition, error)
	ListJobDefinitions(ctx context.Context, ownerID string, limit, offset int) ([]models.JobDefinition, error)
	DeleteJobDefinition(ctx context.Context, ownerID, jobID string) (bool, error)
	InsertActivity(ctx context.Context, activity *models.ActivityLog) error
	ListActivities(ctx context.Context, ownerID string, limit int) ([]models.ActivityLog, error)
	CountActivitiesByType(ctx context.Context, ownerID string) ([]storage.ActivityTypeCount, error)
	CountHighScoreActivities(ctx context.Context, ownerID, activityType string, minScore int) (int64, error)
}

var _ DocumentStore = (*storage.MySQL)(nil)

// RawTextArchive 原文归档接口，由storage.MinIO实现
type RawTextArchive interface {
	ArchiveRawText(ctx context.Context, ownerID, resumeID, text string) (string, string, error)
	GetRawText(ctx context.Context, objectName string) (string, error)
	DeleteRawText(ctx context.Context, ownerID, resumeID string) error
}

var _ RawTextArchive = (*storage.MinIO)(nil)

const (
	// highMatchScore 看板"高分匹配"线，与初筛通过线(75)无关
	highMatchScore = 80
	// recentActivityLimit 看板展示的最近活动条数
	recentActivityLimit = 5
)

// Client 简历/岗位向量检索层。
// 入库时分块、嵌入并写入向量索引，检索时按文档做max-over-chunks聚合。
type Client struct {
	embedder embedding.Embedder
	index    VectorIndex
	store    DocumentStore
	archive  RawTextArchive // 可为nil，原文归档降级
	limit    int
}

// NewClient 创建检索层客户端
func NewClient(embedder embedding.Embedder, index VectorIndex, store DocumentStore, archive RawTextArchive, defaultLimit int) *Client {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &Client{
		embedder: embedder,
		index:    index,
		store:    store,
		archive:  archive,
		limit:    defaultLimit,
	}
}

func newID() string {
	return uuid.NewString()
}

// StoreResume 入库一份简历：分配新ID，分块、嵌入、写向量索引和元数据行，归档原文。
// 文本为空时不调用任何外部服务，直接返回 types.ErrInsufficientInput。
func (c *Client) StoreResume(ctx context.Context, ownerID, filename, text string) (string, error) {
	ctx, span := vsTracer.Start(ctx, "VectorStore.StoreResume")
	defer span.End()

	// 简历文件名经常带候选人姓名，作PII掩码处理
	span.SetAttributes(
		attribute.String("resume.filename", tracing.SafeAttributeValue("resume.filename", filename, 50)),
		attribute.String("resume.preview", tracing.SafeResumeContent(text)),
	)

	chunks := ChunkText(text)
	if len(chunks) == 0 {
		span.SetStatus(codes.Ok, "empty input")
		return "", types.ErrInsufficientInput
	}
	span.SetAttributes(attribute.Int("resume.chunks", len(chunks)))

	vectors, err := c.embedder.EmbedStrings(ctx, chunks)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		return "", fmt.Errorf("%w: %v", types.ErrRetrievalUnavailable, err)
	}

	resumeID := newID()
	span.SetAttributes(attribute.String("resume.id", resumeID))

	points := make([]storage.ChunkPoint, len(chunks))
	for i, chunk := range chunks {
		points[i] = storage.ChunkPoint{ChunkID: i, Content: chunk}
	}

	createdAt := time.Now()
	if _, err := c.index.UpsertResumeChunks(ctx, ownerID, resumeID, filename, points, vectors, createdAt); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return "", fmt.Errorf("%w: %v", types.ErrRetrievalUnavailable, err)
	}

	var rawPath, rawMD5 string
	if c.archive != nil {
		rawPath, rawMD5, err = c.archive.ArchiveRawText(ctx, ownerID, resumeID, text)
		if err != nil {
			// 归档失败不阻塞入库
			logger.Ctx(ctx).Warn().Err(err).Str("resume_id", resumeID).Msg("简历原文归档失败")
			rawPath, rawMD5 = "", ""
		}
	}

	doc := &models.ResumeDocument{
		ResumeID:       resumeID,
		OwnerID:        ownerID,
		Filename:       filename,
		RawTextMD5:     rawMD5,
		RawTextPathOSS: rawPath,
		ChunkCount:     len(chunks),
		EmbeddingModel: c.embedder.Model(),
		CreatedAt:      createdAt,
	}
	if err := c.store.UpsertResumeDocument(ctx, doc); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return "", err
	}

	span.SetStatus(codes.Ok, "")
	return resumeID, nil
}

// GetResume 按租户读取简历元数据
func (c *Client) GetResume(ctx context.Context, ownerID, resumeID string) (*models.ResumeDocument, error) {
	return c.store.GetResumeDocument(ctx, ownerID, resumeID)
}

// GetResumeText 取回已归档的简历原文
func (c *Client) GetResumeText(ctx context.Context, ownerID, resumeID string) (string, error) {
	doc, err := c.store.GetResumeDocument(ctx, ownerID, resumeID)
	if err != nil {
		return "", err
	}
	if c.archive == nil || doc.RawTextPathOSS == "" {
		return "", types.ErrNotFound
	}
	return c.archive.GetRawText(ctx, doc.RawTextPathOSS)
}

// ListResumes 按租户分页列出简历
func (c *Client) ListResumes(ctx context.Context, ownerID string, limit, offset int) ([]models.ResumeDocument, error) {
	return c.store.ListResumeDocuments(ctx, ownerID, limit, offset)
}

// SearchResumes 语义检索简历。
// 分块命中按文档聚合，文档得分取其分块的最高分(单个强匹配段落足以让文档上榜)；
// 得分相同时新文档排前。查询为空时直接返回 types.ErrInsufficientInput，
// 不发起嵌入调用。空结果列表是合法返回，不是错误。
func (c *Client) SearchResumes(ctx context.Context, ownerID, query string, limit int) ([]types.RankedDocument, error) {
	ctx, span := vsTracer.Start(ctx, "VectorStore.SearchResumes")
	defer span.End()

	span.SetAttributes(attribute.String("search.query", tracing.SafeQueryText(query)))

	if strings.TrimSpace(query) == "" {
		span.SetStatus(codes.Ok, "empty query")
		return nil, types.ErrInsufficientInput
	}
	if limit <= 0 {
		limit = c.limit
	}

	vectors, err := c.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		return nil, fmt.Errorf("%w: %v", types.ErrRetrievalUnavailable, err)
	}

	// 每个文档可能命中多个分块，放大检索窗口再聚合
	points, err := c.index.SearchResumeChunks(ctx, ownerID, vectors[0], limit*4)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, fmt.Errorf("%w: %v", types.ErrRetrievalUnavailable, err)
	}

	ranked := aggregateByDocument(points, limit)
	span.SetAttributes(attribute.Int("search.documents", len(ranked)))
	span.SetStatus(codes.Ok, "")
	return ranked, nil
}

// aggregateByDocument 分块命中聚合为文档排名：
// 文档得分 = max(分块得分)；同分时按created_at较新者优先。
func aggregateByDocument(points []storage.ScoredPoint, limit int) []types.RankedDocument {
	byID := make(map[string]*types.RankedDocument)
	for _, p := range points {
		resumeID, _ := p.Payload["resume_id"].(string)
		if resumeID == "" {
			continue
		}
		content, _ := p.Payload["content"].(string)
		filename, _ := p.Payload["filename"].(string)
		var createdAt time.Time
		if v, ok := p.Payload["created_at"].(float64); ok {
			createdAt = time.Unix(int64(v), 0)
		}
		score := float32(p.Score)

		doc, exists := byID[resumeID]
		if !exists {
			byID[resumeID] = &types.RankedDocument{
				DocumentID: resumeID,
				Filename:   filename,
				Score:      score,
				Excerpt:    content,
				CreatedAt:  createdAt,
			}
			continue
		}
		if score > doc.Score {
			doc.Score = score
			doc.Excerpt = content
		}
		if createdAt.After(doc.CreatedAt) {
			doc.CreatedAt = createdAt
		}
	}

	ranked := make([]types.RankedDocument, 0, len(byID))
	for _, doc := range byID {
		ranked = append(ranked, *doc)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].CreatedAt.After(ranked[j].CreatedAt)
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// DeleteResume 删除简历的向量点、元数据行和归档原文。
// 返回是否确实存在该简历。
func (c *Client) DeleteResume(ctx context.Context, ownerID, resumeID string) (bool, error) {
	ctx, span := vsTracer.Start(ctx, "VectorStore.DeleteResume")
	defer span.End()
	span.SetAttributes(attribute.String("resume.id", resumeID))

	if err := c.index.DeleteResumeChunks(ctx, ownerID, resumeID); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return false, fmt.Errorf("%w: %v", types.ErrRetrievalUnavailable, err)
	}

	existed, err := c.store.DeleteResumeDocument(ctx, ownerID, resumeID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return false, err
	}

	if c.archive != nil {
		if err := c.archive.DeleteRawText(ctx, ownerID, resumeID); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("resume_id", resumeID).Msg("删除归档原文失败")
		}
	}

	span.SetStatus(codes.Ok, "")
	return existed, nil
}

// StoreJob 入库岗位定义：分配新ID，写元数据行和整体向量
func (c *Client) StoreJob(ctx context.Context, ownerID, title, description, level, category string, requiredSkills []string) (string, error) {
	ctx, span := vsTracer.Start(ctx, "VectorStore.StoreJob")
	defer span.End()

	if strings.TrimSpace(description) == "" {
		span.SetStatus(codes.Ok, "empty input")
		return "", types.ErrInsufficientInput
	}

	// 岗位用标题+描述的组合文本生成单一向量
	embedText := title + "\n" + description
	vectors, err := c.embedder.EmbedStrings(ctx, []string{embedText})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		return "", fmt.Errorf("%w: %v", types.ErrRetrievalUnavailable, err)
	}

	jobID := newID()
	span.SetAttributes(attribute.String("job.id", jobID))

	var skillsJSON datatypes.JSON
	if len(requiredSkills) > 0 {
		data, err := json.Marshal(requiredSkills)
		if err != nil {
			return "", fmt.Errorf("序列化岗位技能要求失败: %w", err)
		}
		skillsJSON = data
	}

	job := &models.JobDefinition{
		JobID:              jobID,
		OwnerID:            ownerID,
		Title:              title,
		Description:        description,
		Level:              level,
		Category:           category,
		RequiredSkillsJSON: skillsJSON,
		Status:             "ACTIVE",
	}
	if err := c.store.UpsertJobDefinition(ctx, job); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return "", err
	}

	payload := map[string]interface{}{
		"title":           title,
		"level":           level,
		"category":        category,
		"required_skills": requiredSkills,
	}
	if err := c.index.UpsertJobPoint(ctx, ownerID, jobID, vectors[0], payload); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return "", fmt.Errorf("%w: %v", types.ErrRetrievalUnavailable, err)
	}

	span.SetStatus(codes.Ok, "")
	return jobID, nil
}

// GetJob 按租户读取岗位定义
func (c *Client) GetJob(ctx context.Context, ownerID, jobID string) (*models.JobDefinition, error) {
	return c.store.GetJobDefinition(ctx, ownerID, jobID)
}

// ListJobs 按租户分页列出岗位
func (c *Client) ListJobs(ctx context.Context, ownerID string, limit, offset int) ([]models.JobDefinition, error) {
	return c.store.ListJobDefinitions(ctx, ownerID, limit, offset)
}

// DeleteJob 删除岗位的向量点和元数据行
func (c *Client) DeleteJob(ctx context.Context, ownerID, jobID string) (bool, error) {
	if err := c.index.DeleteJobPoint(ctx, ownerID, jobID); err != nil {
		return false, fmt.Errorf("%w: %v", types.ErrRetrievalUnavailable, err)
	}
	return c.store.DeleteJobDefinition(ctx, ownerID, jobID)
}

// SearchJobs 语义检索岗位
func (c *Client) SearchJobs(ctx context.Context, ownerID, query string, limit int) ([]types.RankedJob, error) {
	ctx, span := vsTracer.Start(ctx, "VectorStore.SearchJobs")
	defer span.End()

	if strings.TrimSpace(query) == "" {
		span.SetStatus(codes.Ok, "empty query")
		return nil, types.ErrInsufficientInput
	}
	if limit <= 0 {
		limit = c.limit
	}

	vectors, err := c.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeExternal)
		return nil, fmt.Errorf("%w: %v", types.ErrRetrievalUnavailable, err)
	}

	points, err := c.index.SearchJobPoints(ctx, ownerID, vectors[0], limit)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, fmt.Errorf("%w: %v", types.ErrRetrievalUnavailable, err)
	}

	span.SetStatus(codes.Ok, "")
	return rankedJobsFromPoints(points), nil
}

// MatchResumeToJobs 用简历已入库分块向量的均值检索匹配岗位。
// 复用入库向量，不重新嵌入；简历无分块时返回 types.ErrNotFound。
func (c *Client) MatchResumeToJobs(ctx context.Context, ownerID, resumeID string, limit int) ([]types.RankedJob, error) {
	ctx, span := vsTracer.Start(ctx, "VectorStore.MatchResumeToJobs")
	defer span.End()
	span.SetAttributes(attribute.String("resume.id", resumeID))

	if limit <= 0 {
		limit = c.limit
	}

	chunkVectors, err := c.index.GetResumeChunkVectors(ctx, ownerID, resumeID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, fmt.Errorf("%w: %v", types.ErrRetrievalUnavailable, err)
	}
	if len(chunkVectors) == 0 {
		span.SetStatus(codes.Ok, "resume not found")
		return nil, types.ErrNotFound
	}

	queryVector := meanVector(chunkVectors)
	points, err := c.index.SearchJobPoints(ctx, ownerID, queryVector, limit)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, fmt.Errorf("%w: %v", types.ErrRetrievalUnavailable, err)
	}

	span.SetStatus(codes.Ok, "")
	return rankedJobsFromPoints(points), nil
}

func rankedJobsFromPoints(points []storage.ScoredPoint) []types.RankedJob {
	jobs := make([]types.RankedJob, 0, len(points))
	for _, p := range points {
		jobID, _ := p.Payload["job_id"].(string)
		title, _ := p.Payload["title"].(string)
		level, _ := p.Payload["level"].(string)
		category, _ := p.Payload["category"].(string)

		var skills []string
		if raw, ok := p.Payload["required_skills"].([]interface{}); ok {
			for _, s := range raw {
				if str, ok := s.(string); ok {
					skills = append(skills, str)
				}
			}
		}

		jobs = append(jobs, types.RankedJob{
			JobID:          jobID,
			Title:          title,
			Level:          level,
			Category:       category,
			Score:          float32(p.Score),
			RequiredSkills: skills,
		})
	}
	return jobs
}

// meanVector 计算向量均值
func meanVector(vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	mean := make([]float64, len(vectors[0]))
	for _, vec := range vectors {
		for i, v := range vec {
			mean[i] += v
		}
	}
	n := float64(len(vectors))
	for i := range mean {
		mean[i] /= n
	}
	return mean
}

// LogActivity 追加一条审计流水，每次产生决定的流水线调用写一行。
// 失败只告警不影响主流程。
func (c *Client) LogActivity(ctx context.Context, ownerID, activityType, filename string, score int, decision string) {
	activity := &models.ActivityLog{
		OwnerID:      ownerID,
		ActivityType: activityType,
		Filename:     filename,
		Score:        score,
		Decision:     decision,
	}
	if err := c.store.InsertActivity(ctx, activity); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("activity_type", activityType).Msg("写入活动流水失败")
	}
}

// DashboardStats 从活动流水汇总租户的看板统计
func (c *Client) DashboardStats(ctx context.Context, ownerID string) (*types.DashboardStats, error) {
	ctx, span := vsTracer.Start(ctx, "VectorStore.DashboardStats")
	defer span.End()

	resumeCount, err := c.store.CountResumeDocuments(ctx, ownerID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, err
	}

	counts, err := c.store.CountActivitiesByType(ctx, ownerID)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, err
	}

	stats := &types.DashboardStats{TotalResumes: resumeCount}
	for _, tc := range counts {
		switch tc.ActivityType {
		case types.ActivityQuality:
			stats.QualityScored += tc.Count
		case types.ActivitySkillGap:
			stats.SkillGaps += tc.Count
		case types.ActivityScreen:
			stats.AutoScreened += tc.Count
		}
	}

	highMatches, err := c.store.CountHighScoreActivities(ctx, ownerID, types.ActivityScreen, highMatchScore)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, err
	}
	stats.HighMatches = highMatches

	rows, err := c.store.ListActivities(ctx, ownerID, recentActivityLimit)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return nil, err
	}
	for _, row := range rows {
		stats.RecentActivity = append(stats.RecentActivity, types.Activity{
			ID:        strconv.FormatUint(row.ActivityID, 10),
			OwnerID:   row.OwnerID,
			Type:      row.ActivityType,
			Filename:  row.Filename,
			Score:     row.Score,
			Decision:  row.Decision,
			Timestamp: row.CreatedAt,
		})
	}

	span.SetStatus(codes.Ok, "")
	return stats, nil
}
