package biz

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/ai-router/internal/model"
	"github.com/kart-io/ai-router/pkg/authz"
	"github.com/kart-io/ai-router/pkg/utils/errors"
)

// CommandPrefix 管理命令前缀。
const CommandPrefix = "#rag"

const (
	adminListDefault = 20
	adminListMax     = 100
	timeLayout       = "2006-01-02 15:04:05"
)

const adminHelp = `Knowledge base commands:
#rag list [active|archived|deleted|all] [limit]
#rag info <id>
#rag archive <id>
#rag restore <id>
#rag delete <id>
#rag purge <id>
#rag stats
#rag help`

// AdminCommands 解析并执行 #rag 管理命令，返回纯文本结果。
type AdminCommands struct {
	service    Service
	authorizer authz.Authorizer
}

// NewAdminCommands 创建管理命令执行器。
func NewAdminCommands(service Service, authorizer authz.Authorizer) *AdminCommands {
	return &AdminCommands{service: service, authorizer: authorizer}
}

// Authorize 校验知识库管理权限，无权限返回 ErrRAGNotAdmin。
// #rag 命令与文档管理接口共用这一校验。
func (a *AdminCommands) Authorize(userID int64) error {
	allowed, err := a.authorizer.Authorize(userID, authz.ResourceRAG, authz.ActionManage)
	if err != nil {
		return errors.ErrInternal.WithCause(err)
	}
	if !allowed {
		logger.Warnw("rag admin action denied", "user_id", userID)
		return errors.ErrRAGNotAdmin
	}
	return nil
}

// IsCommand 判断文本是否为管理命令。
func IsCommand(text string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(text)), CommandPrefix)
}

// Execute 校验权限后执行命令。无权限返回 ErrRAGNotAdmin，非 #rag 文本返回 ErrRAGInvalidCommand。
func (a *AdminCommands) Execute(ctx context.Context, userID int64, text string) (string, error) {
	text = strings.TrimSpace(text)
	if !IsCommand(text) {
		return "", errors.ErrRAGInvalidCommand
	}

	if err := a.Authorize(userID); err != nil {
		return "", err
	}

	parts := strings.Fields(text)
	if len(parts) == 1 {
		return adminHelp, nil
	}

	action := strings.ToLower(parts[1])
	args := parts[2:]

	reply, err := a.dispatch(ctx, userID, action, args)
	if err != nil {
		logger.Errorw("rag admin command failed",
			"user_id", userID,
			"command", text,
			"error", err.Error(),
		)
		return "", err
	}
	logger.Infow("rag admin command", "user_id", userID, "action", action)
	return reply, nil
}

func (a *AdminCommands) dispatch(ctx context.Context, userID int64, action string, args []string) (string, error) {
	switch action {
	case "help":
		return adminHelp, nil
	case "list":
		return a.list(ctx, args)
	case "info":
		id, msg := parseIDArg(action, args)
		if msg != "" {
			return msg, nil
		}
		doc, err := a.service.Get(ctx, id)
		if err != nil {
			if errors.IsCode(err, errors.ErrRAGDocumentNotFound.Code) {
				return "Document not found.", nil
			}
			return "", err
		}
		return formatDocumentInfo(doc), nil
	case "archive", "restore", "delete", "purge":
		id, msg := parseIDArg(action, args)
		if msg != "" {
			return msg, nil
		}
		return a.mutate(ctx, userID, action, id)
	case "stats":
		stats, err := a.service.Stats(ctx)
		if err != nil {
			return "", err
		}
		return formatStats(stats), nil
	default:
		return "Unknown command.\n" + adminHelp, nil
	}
}

func (a *AdminCommands) list(ctx context.Context, args []string) (string, error) {
	status := ""
	limit := adminListDefault
	if len(args) >= 1 {
		if s := strings.ToLower(args[0]); s != "all" {
			if !model.IsValidDocumentStatus(s) {
				return "Unknown status. Use active, archived, deleted or all.", nil
			}
			status = s
		}
	}
	if len(args) >= 2 {
		if n, ok := parsePositive(args[1]); ok {
			limit = min(int(n), adminListMax)
		}
	}

	docs, err := a.service.List(ctx, status, limit)
	if err != nil {
		return "", err
	}
	return formatDocumentList(docs), nil
}

func (a *AdminCommands) mutate(ctx context.Context, userID int64, action string, id int64) (string, error) {
	var (
		ok      bool
		err     error
		success string
	)
	switch action {
	case "archive":
		ok, err = a.service.SetStatus(ctx, id, model.DocumentStatusArchived, userID)
		success = "Document archived."
	case "restore":
		ok, err = a.service.SetStatus(ctx, id, model.DocumentStatusActive, userID)
		success = "Document restored to active."
	case "delete":
		ok, err = a.service.Delete(ctx, id, userID, false)
		success = "Document marked as deleted."
	default:
		ok, err = a.service.Delete(ctx, id, userID, true)
		success = "Document permanently removed."
	}
	if err != nil {
		return "", err
	}
	if !ok {
		return "Document not found.", nil
	}
	return success, nil
}

// parseIDArg 解析文档 ID，失败时返回提示文本。
func parseIDArg(action string, args []string) (int64, string) {
	if len(args) == 0 {
		return 0, fmt.Sprintf("Usage: #rag %s <id>", action)
	}
	id, ok := parsePositive(args[0])
	if !ok {
		return 0, "Invalid document ID."
	}
	return id, ""
}

func parsePositive(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func formatDocumentList(docs []*model.RAGDocument) string {
	if len(docs) == 0 {
		return "No documents."
	}
	var b strings.Builder
	b.WriteString("Knowledge base documents:")
	for _, d := range docs {
		fmt.Fprintf(&b, "\n- ID %d | %s | %s | chunks: %d", d.ID, d.Status, d.Filename, d.ChunkCount)
	}
	return b.String()
}

func formatDocumentInfo(d *model.RAGDocument) string {
	sourceURL := d.SourceURL
	if sourceURL == "" {
		sourceURL = "-"
	}
	return fmt.Sprintf(`Document:
ID: %d
File: %s
Status: %s
Source: %s
URL: %s
Uploaded by: %d
Chunks: %d
Created: %s
Updated: %s`,
		d.ID, d.Filename, d.Status, d.SourceType, sourceURL, d.UploadedBy, d.ChunkCount,
		d.CreatedAt.Format(timeLayout), d.UpdatedAt.Format(timeLayout))
}

func formatStats(s *model.RAGStats) string {
	statuses := make([]string, 0, len(s.Documents))
	for status := range s.Documents {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)

	var b strings.Builder
	b.WriteString("Knowledge base stats:")
	for _, status := range statuses {
		fmt.Fprintf(&b, "\n%s: %d", status, s.Documents[status])
	}
	fmt.Fprintf(&b, "\nChunks: %d\nCorpus version: %d\nCached answers: %d", s.Chunks, s.CorpusVersion, s.CacheEntries)
	return b.String()
}
