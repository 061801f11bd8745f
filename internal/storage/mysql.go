package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"resume-agent-go/internal/config"
	"resume-agent-go/internal/storage/models"
	"resume-agent-go/internal/tracing"
	"resume-agent-go/internal/types"
)

var mysqlTracer = otel.Tracer("resume-agent-go/storage/mysql")

// GormTracingPlugin GORM插件，为数据库操作添加OpenTelemetry追踪点
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	disableErrSkip bool
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}

	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}

	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}

	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}

	if err := cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after()); err != nil {
		return err
	}

	return nil
}

type gormSpanKey struct{}

// before 返回在GORM操作之前执行的回调函数
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}

		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		spanName := fmt.Sprintf("%s %s", operation, tableName)
		opts := []trace.SpanStartOption{
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		}

		newCtx, span := p.tracer.Start(ctx, spanName, opts...)
		db.Statement.Context = context.WithValue(newCtx, gormSpanKey{}, span)
	}
}

// after 返回在GORM操作之后执行的回调函数
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(gormSpanKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(
			attribute.String("db.statement", tracing.SafeSQL(db.Statement.SQL.String())),
			attribute.Int64("db.rows_affected", db.Statement.RowsAffected),
		)

		if db.Error != nil {
			if errors.Is(db.Error, gorm.ErrRecordNotFound) {
				// 未找到记录属于正常业务情况，不标记为错误
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				span.SetAttributes(
					attribute.String("error.type", "database_error"),
					attribute.String("error.message", db.Error.Error()),
				)
				span.RecordError(db.Error)
				span.SetStatus(codes.Error, db.Error.Error())
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// NewGormTracingPlugin 创建一个新的GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		disableErrSkip: true,
	}
}

// MySQL 提供关系数据库功能
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端并自动迁移表结构
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	var logLevel gormlogger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = gormlogger.Silent
	case 2:
		logLevel = gormlogger.Error
	case 3:
		logLevel = gormlogger.Warn
	case 4:
		logLevel = gormlogger.Info
	default:
		logLevel = gormlogger.Info
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	m := &MySQL{db: db, cfg: cfg}

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	if err := m.autoMigrateSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

// autoMigrateSchema 使用GORM自动迁移数据库表结构
func (m *MySQL) autoMigrateSchema() error {
	silentLogger := gormlogger.New(
		log.New(log.Writer(), "", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	silentDB := m.db.Session(&gorm.Session{Logger: silentLogger})

	err := silentDB.AutoMigrate(
		&models.ResumeDocument{},
		&models.JobDefinition{},
		&models.ActivityLog{},
		&models.TenantCredential{},
		&models.ScreeningRecord{},
	)
	if err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	return nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// ownerScoped 所有租户数据查询的统一入口，保证owner_id过滤不遗漏
func (m *MySQL) ownerScoped(ctx context.Context, ownerID string) *gorm.DB {
	return m.db.WithContext(ctx).Where("owner_id = ?", ownerID)
}

// UpsertResumeDocument 创建或更新简历文档记录(按resume_id幂等)
func (m *MySQL) UpsertResumeDocument(ctx context.Context, doc *models.ResumeDocument) error {
	return m.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "resume_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"filename", "raw_text_md5", "raw_text_path_oss", "chunk_count", "embedding_model", "metadata_json", "updated_at",
			}),
		}).Create(doc).Error
}

// GetResumeDocument 按租户读取简历文档，未找到返回 types.ErrNotFound
func (m *MySQL) GetResumeDocument(ctx context.Context, ownerID, resumeID string) (*models.ResumeDocument, error) {
	var doc models.ResumeDocument
	err := m.ownerScoped(ctx, ownerID).Where("resume_id = ?", resumeID).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询简历文档失败: %w", err)
	}
	return &doc, nil
}

// ListResumeDocuments 按租户分页列出简历文档，按创建时间倒序
func (m *MySQL) ListResumeDocuments(ctx context.Context, ownerID string, limit, offset int) ([]models.ResumeDocument, error) {
	if limit <= 0 {
		limit = 50
	}
	var docs []models.ResumeDocument
	err := m.ownerScoped(ctx, ownerID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("列出简历文档失败: %w", err)
	}
	return docs, nil
}

// DeleteResumeDocument 按租户删除简历文档，返回是否确有删除
func (m *MySQL) DeleteResumeDocument(ctx context.Context, ownerID, resumeID string) (bool, error) {
	result := m.ownerScoped(ctx, ownerID).Where("resume_id = ?", resumeID).Delete(&models.ResumeDocument{})
	if result.Error != nil {
		return false, fmt.Errorf("删除简历文档失败: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// CountResumeDocuments 统计租户的简历数
func (m *MySQL) CountResumeDocuments(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	err := m.ownerScoped(ctx, ownerID).Model(&models.ResumeDocument{}).Count(&count).Error
	return count, err
}

// UpsertJobDefinition 创建或更新岗位定义(按job_id幂等)
func (m *MySQL) UpsertJobDefinition(ctx context.Context, job *models.JobDefinition) error {
	return m.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "job_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "description", "level", "category", "required_skills_json", "status", "updated_at",
			}),
		}).Create(job).Error
}

// GetJobDefinition 按租户读取岗位定义，未找到返回 types.ErrNotFound
func (m *MySQL) GetJobDefinition(ctx context.Context, ownerID, jobID string) (*models.JobDefinition, error) {
	var job models.JobDefinition
	err := m.ownerScoped(ctx, ownerID).Where("job_id = ?", jobID).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询岗位定义失败: %w", err)
	}
	return &job, nil
}

// ListJobDefinitions 按租户列出岗位定义
func (m *MySQL) ListJobDefinitions(ctx context.Context, ownerID string, limit, offset int) ([]models.JobDefinition, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []models.JobDefinition
	err := m.ownerScoped(ctx, ownerID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("列出岗位定义失败: %w", err)
	}
	return jobs, nil
}

// DeleteJobDefinition 按租户删除岗位定义，返回是否确有删除
func (m *MySQL) DeleteJobDefinition(ctx context.Context, ownerID, jobID string) (bool, error) {
	result := m.ownerScoped(ctx, ownerID).Where("job_id = ?", jobID).Delete(&models.JobDefinition{})
	if result.Error != nil {
		return false, fmt.Errorf("删除岗位定义失败: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// CountJobDefinitions 统计租户的岗位数
func (m *MySQL) CountJobDefinitions(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	err := m.ownerScoped(ctx, ownerID).Model(&models.JobDefinition{}).Count(&count).Error
	return count, err
}

// InsertActivity 追加一条活动流水，该表只追加不修改
func (m *MySQL) InsertActivity(ctx context.Context, activity *models.ActivityLog) error {
	return m.db.WithContext(ctx).Create(activity).Error
}

// ListActivities 按租户列出最近的活动流水
func (m *MySQL) ListActivities(ctx context.Context, ownerID string, limit int) ([]models.ActivityLog, error) {
	if limit <= 0 {
		limit = 20
	}
	var items []models.ActivityLog
	err := m.ownerScoped(ctx, ownerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("列出活动流水失败: %w", err)
	}
	return items, nil
}

// ActivityTypeCount 按(类型,决定)分组的活动计数
type ActivityTypeCount struct {
	ActivityType string
	Decision     string
	Count        int64
}

// CountActivitiesByType 按活动类型和决定分组统计，用于看板汇总
func (m *MySQL) CountActivitiesByType(ctx context.Context, ownerID string) ([]ActivityTypeCount, error) {
	var counts []ActivityTypeCount
	err := m.ownerScoped(ctx, ownerID).
		Model(&models.ActivityLog{}).
		Select("activity_type, decision, COUNT(*) as count").
		Group("activity_type, decision").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("统计活动流水失败: %w", err)
	}
	return counts, nil
}

// CountHighScoreActivities 统计指定类型中得分不低于minScore的活动数
func (m *MySQL) CountHighScoreActivities(ctx context.Context, ownerID, activityType string, minScore int) (int64, error) {
	var count int64
	err := m.ownerScoped(ctx, ownerID).
		Model(&models.ActivityLog{}).
		Where("activity_type = ? AND score >= ?", activityType, minScore).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("统计高分活动失败: %w", err)
	}
	return count, nil
}

// GetTenantCredentialRow 读取租户凭证，未找到返回 types.ErrNotFound
func (m *MySQL) GetTenantCredentialRow(ctx context.Context, ownerID string) (*models.TenantCredential, error) {
	var cred models.TenantCredential
	err := m.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询租户凭证失败: %w", err)
	}
	return &cred, nil
}

// SaveTenantCredential 保存或更新租户凭证
func (m *MySQL) SaveTenantCredential(ctx context.Context, cred *models.TenantCredential) error {
	return m.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "owner_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"api_key", "model", "base_url", "updated_at"}),
		}).Create(cred).Error
}

// InsertScreeningRecord 记录一次初筛结果
func (m *MySQL) InsertScreeningRecord(ctx context.Context, record *models.ScreeningRecord) error {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.InsertScreeningRecord",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		semconv.DBSystemMySQL,
		attribute.String("db.sql.table", "screening_records"),
		attribute.Int("screening.fit_score", record.FitScore),
		attribute.Bool("screening.passed", record.Passed),
	)

	if err := m.db.WithContext(ctx).Create(record).Error; err != nil {
		tracing.RecordErrorWithInfo(span, err, tracing.ErrorTypeDB,
			attribute.String("screening.resume_id", record.ResumeID))
		return fmt.Errorf("写入初筛记录失败: %w", err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}
