// Package watcher 监听目录并把新建或修改的文档导入知识库。
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/kart-io/logger"

	"github.com/kart-io/ai-router/internal/pkg/rag/extract"
	"github.com/kart-io/ai-router/internal/rag/biz"
)

// Ingester 文档导入接口。
type Ingester interface {
	Ingest(ctx context.Context, req *biz.IngestRequest) (*biz.IngestResult, error)
}

// Config 监听配置。
type Config struct {
	// Dir 监听目录。
	Dir string
	// Debounce 文件最后一次变化后等待的时间，避免导入写了一半的文件。
	Debounce time.Duration
	// ScanExisting 启动时导入目录中已有的文件。
	ScanExisting bool
	// UploadedBy 记录为上传人的用户 ID。
	UploadedBy int64
}

// Watcher 基于 fsnotify 的目录监听器。
type Watcher struct {
	config   Config
	ingester Ingester
	fsw      *fsnotify.Watcher
	pending  map[string]time.Time
	now      func() time.Time
}

// New 创建监听器，目录不存在时返回错误。
func New(config Config, ingester Ingester) (*Watcher, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("watch dir is required")
	}
	if config.Debounce <= 0 {
		config.Debounce = time.Second
	}
	info, err := os.Stat(config.Dir)
	if err != nil {
		return nil, fmt.Errorf("stat watch dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch dir %s is not a directory", config.Dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(config.Dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	return &Watcher{
		config:   config,
		ingester: ingester,
		fsw:      fsw,
		pending:  make(map[string]time.Time),
		now:      time.Now,
	}, nil
}

// Run 处理文件事件直到 ctx 取消，返回前关闭底层 watcher。
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsw.Close() }()

	logger.Infow("rag watcher started", "dir", w.config.Dir, "debounce", w.config.Debounce.String())
	if w.config.ScanExisting {
		w.scan(ctx)
	}

	ticker := time.NewTicker(w.config.Debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Infow("rag watcher stopped", "dir", w.config.Dir)
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warnw("rag watcher error", "error", err.Error())
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !extract.IsSupported(event.Name) {
		return
	}
	w.pending[event.Name] = w.now()
}

// flush 导入静默超过 Debounce 的文件。
func (w *Watcher) flush(ctx context.Context) {
	now := w.now()
	for path, last := range w.pending {
		if now.Sub(last) < w.config.Debounce {
			continue
		}
		delete(w.pending, path)
		w.ingest(ctx, path)
	}
}

func (w *Watcher) scan(ctx context.Context) {
	entries, err := os.ReadDir(w.config.Dir)
	if err != nil {
		logger.Warnw("rag watcher scan failed", "dir", w.config.Dir, "error", err.Error())
		return
	}
	for _, e := range entries {
		if e.IsDir() || !extract.IsSupported(e.Name()) {
			continue
		}
		w.ingest(ctx, filepath.Join(w.config.Dir, e.Name()))
	}
}

func (w *Watcher) ingest(ctx context.Context, path string) {
	payload, err := os.ReadFile(path)
	if err != nil {
		logger.Warnw("rag watcher read failed", "path", path, "error", err.Error())
		return
	}
	abs, _ := filepath.Abs(path)
	res, err := w.ingester.Ingest(ctx, &biz.IngestRequest{
		Filename:   filepath.Base(path),
		Payload:    payload,
		UploadedBy: w.config.UploadedBy,
		SourceType: biz.SourceTypeWatcher,
		SourceURL:  "file://" + abs,
	})
	if err != nil {
		logger.Warnw("rag watcher ingest failed", "path", path, "error", err.Error())
		return
	}
	logger.Infow("rag watcher ingested",
		"path", path,
		"document_id", res.DocumentID,
		"chunks", res.ChunkCount,
		"duplicate", res.IsDuplicate,
	)
}
