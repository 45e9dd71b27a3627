package model

import "time"

// AIRouterLog AI 路由审计日志。
type AIRouterLog struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement;comment:主键ID"`
	RequestID   string    `json:"request_id" gorm:"size:32;index;comment:请求ID(ULID)"`
	UserID      int64     `json:"user_id" gorm:"index:idx_ai_log_user;comment:用户ID"`
	InputText   string    `json:"input_text" gorm:"size:500;comment:输入文本"`
	Intent      string    `json:"intent" gorm:"size:64;comment:意图"`
	Confidence  float64   `json:"confidence" gorm:"comment:置信度"`
	ExplainCode string    `json:"explain_code" gorm:"size:64;comment:解释码"`
	Status      string    `json:"status" gorm:"size:32;index;comment:处理结果"`
	Provider    string    `json:"provider" gorm:"size:32;comment:模型供应商"`
	Model       string    `json:"model" gorm:"size:64;comment:模型"`
	LatencyMs   int64     `json:"latency_ms" gorm:"comment:分类耗时毫秒"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime;index:idx_ai_log_user;comment:创建时间"`
}

// TableName returns the table name for GORM.
func (*AIRouterLog) TableName() string {
	return "ai_router_log"
}

// AllModels 返回需要迁移的全部模型。
func AllModels() []any {
	return []any{
		&RAGDocument{},
		&RAGChunk{},
		&RAGCorpusVersion{},
		&RAGQueryLog{},
		&AIRouterLog{},
	}
}
