package models

import (
	"time"

	"gorm.io/datatypes"
)

// ResumeDocument 简历文档主表，一行对应一份已入库的简历。
// RawTextPathOSS 指向MinIO中的原文对象，向量分块存放在Qdrant。
type ResumeDocument struct {
	ResumeID        string         `gorm:"type:varchar(64);primaryKey"`
	OwnerID         string         `gorm:"type:varchar(64);not null;index:idx_rd_owner_id"`
	Filename        string         `gorm:"type:varchar(255)"`
	RawTextMD5      string         `gorm:"type:char(32);index:idx_rd_raw_text_md5"`
	RawTextPathOSS  string         `gorm:"type:varchar(1024)"`
	ChunkCount      int            `gorm:"not null;default:0"`
	EmbeddingModel  string         `gorm:"type:varchar(100)"`
	MetadataJSON    datatypes.JSON `gorm:"type:json"`
	CreatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_rd_created_at"`
	UpdatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (ResumeDocument) TableName() string {
	return "resume_documents"
}

// JobDefinition 岗位定义表
type JobDefinition struct {
	JobID              string         `gorm:"type:varchar(64);primaryKey"`
	OwnerID            string         `gorm:"type:varchar(64);not null;index:idx_jd_owner_id"`
	Title              string         `gorm:"type:varchar(255);not null"`
	Description        string         `gorm:"type:text;not null"`
	Level              string         `gorm:"type:varchar(50)"`
	Category           string         `gorm:"type:varchar(100)"`
	RequiredSkillsJSON datatypes.JSON `gorm:"type:json"`
	Status             string         `gorm:"type:varchar(50);default:'ACTIVE';index:idx_jd_status"`
	CreatedAt          time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt          time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (JobDefinition) TableName() string {
	return "job_definitions"
}

// ActivityLog 活动流水表，只追加不修改
type ActivityLog struct {
	ActivityID   uint64         `gorm:"primaryKey;autoIncrement"`
	OwnerID      string         `gorm:"type:varchar(64);not null;index:idx_al_owner_created,priority:1"`
	ActivityType string         `gorm:"type:varchar(50);not null;index:idx_al_activity_type"`
	Filename     string         `gorm:"type:varchar(255)"`
	Score        int            `gorm:"not null;default:0"`
	Decision     string         `gorm:"type:varchar(50)"`
	RefID        string         `gorm:"type:varchar(64)"`
	DetailJSON   datatypes.JSON `gorm:"type:json"`
	CreatedAt    time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_al_owner_created,priority:2"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}

// TenantCredential 租户自备LLM凭证表。
// APIKey 建议在部署层做静态加密，应用内按明文读取。
type TenantCredential struct {
	OwnerID   string    `gorm:"type:varchar(64);primaryKey"`
	APIKey    string    `gorm:"type:varchar(512);not null"`
	Model     string    `gorm:"type:varchar(100)"`
	BaseURL   string    `gorm:"type:varchar(512)"`
	CreatedAt time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (TenantCredential) TableName() string {
	return "tenant_credentials"
}

// ScreeningRecord 初筛结果留痕表
type ScreeningRecord struct {
	RecordID    uint64         `gorm:"primaryKey;autoIncrement"`
	OwnerID     string         `gorm:"type:varchar(64);not null;index:idx_sr_owner_id"`
	ResumeID    string         `gorm:"type:varchar(64);not null;index:idx_sr_resume_id"`
	JobID       string         `gorm:"type:varchar(64);index:idx_sr_job_id"`
	FitScore    int            `gorm:"not null"`
	Threshold   int            `gorm:"not null"`
	Passed      bool           `gorm:"not null"`
	ResultJSON  datatypes.JSON `gorm:"type:json"`
	CreatedAt   time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
}

func (ScreeningRecord) TableName() string {
	return "screening_records"
}
