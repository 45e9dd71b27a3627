// Package model 定义 ai-router 的持久化模型。
package model

import "time"

// 文档状态。
const (
	DocumentStatusActive   = "active"
	DocumentStatusArchived = "archived"
	DocumentStatusDeleted  = "deleted"
)

// IsValidDocumentStatus 判断状态是否合法。
func IsValidDocumentStatus(status string) bool {
	switch status {
	case DocumentStatusActive, DocumentStatusArchived, DocumentStatusDeleted:
		return true
	}
	return false
}

// RAGDocument 知识库文档。
type RAGDocument struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement;comment:文档ID"`
	Filename    string    `json:"filename" gorm:"size:255;not null;comment:文件名"`
	SourceType  string    `json:"source_type" gorm:"size:32;not null;default:'api';comment:来源类型"`
	SourceURL   string    `json:"source_url,omitempty" gorm:"size:1024;comment:来源URL"`
	UploadedBy  int64     `json:"uploaded_by" gorm:"default:0;comment:上传人"`
	Status      string    `json:"status" gorm:"size:16;not null;default:'active';index:idx_rag_doc_status;comment:状态 active/archived/deleted"`
	ContentHash string    `json:"content_hash" gorm:"size:64;not null;index:idx_rag_doc_hash;comment:内容SHA256"`
	ChunkCount  int       `json:"chunk_count" gorm:"default:0;comment:分块数"`
	UpdatedBy   int64     `json:"updated_by" gorm:"default:0;comment:更新人"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime;comment:创建时间"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime;comment:更新时间"`
}

// TableName returns the table name for GORM.
func (*RAGDocument) TableName() string {
	return "rag_documents"
}

// RAGChunk 文档分块。
type RAGChunk struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement;comment:分块ID"`
	DocumentID int64     `json:"document_id" gorm:"not null;index:idx_rag_chunk_doc;comment:文档ID"`
	ChunkIndex int       `json:"chunk_index" gorm:"not null;comment:分块序号"`
	ChunkText  string    `json:"chunk_text" gorm:"type:text;not null;comment:分块文本"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime;comment:创建时间"`
}

// TableName returns the table name for GORM.
func (*RAGChunk) TableName() string {
	return "rag_chunks"
}

// RAGCorpusVersion 语料版本，每次影响检索结果的变更追加一行。
type RAGCorpusVersion struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement;comment:版本号"`
	Reason    string    `json:"reason" gorm:"size:255;not null;comment:变更原因"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;comment:创建时间"`
}

// TableName returns the table name for GORM.
func (*RAGCorpusVersion) TableName() string {
	return "rag_corpus_version"
}

// RAGQueryLog 知识库问答日志。
type RAGQueryLog struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement;comment:主键ID"`
	UserID      int64     `json:"user_id" gorm:"index;comment:用户ID"`
	QueryText   string    `json:"query_text" gorm:"size:1000;comment:问题文本"`
	CacheHit    bool      `json:"cache_hit" gorm:"default:false;comment:是否命中缓存"`
	ChunksCount int       `json:"chunks_count" gorm:"default:0;comment:使用的分块数"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime;comment:创建时间"`
}

// TableName returns the table name for GORM.
func (*RAGQueryLog) TableName() string {
	return "rag_query_log"
}

// RAGStats 知识库统计。
type RAGStats struct {
	Documents     map[string]int64 `json:"documents"`
	Chunks        int64            `json:"chunks"`
	CorpusVersion int64            `json:"corpus_version"`
	CacheEntries  int              `json:"cache_entries"`
}
