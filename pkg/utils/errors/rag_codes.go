package errors

import "google.golang.org/grpc/codes"

// RAG 知识库错误 (服务 20)
var (
	// 上传校验 (类别 01)，在解析前拒绝
	ErrRAGMissingFilename   = Register(New(MakeCode(ServiceRAG, CategoryRequest, 1), 400, codes.InvalidArgument, "Filename is required", "缺少文件名"))
	ErrRAGUnsupportedFormat = Register(New(MakeCode(ServiceRAG, CategoryRequest, 2), 400, codes.InvalidArgument, "Unsupported file format", "不支持的文件格式"))
	ErrRAGFileTooLarge      = Register(New(MakeCode(ServiceRAG, CategoryRequest, 3), 413, codes.InvalidArgument, "File too large", "文件过大"))
	ErrRAGEmptyDocument     = Register(New(MakeCode(ServiceRAG, CategoryRequest, 4), 400, codes.InvalidArgument, "Document has no extractable text", "文档没有可提取的文本"))
	ErrRAGInvalidStatus     = Register(New(MakeCode(ServiceRAG, CategoryRequest, 5), 400, codes.InvalidArgument, "Invalid document status", "文档状态无效"))
	ErrRAGInvalidCommand    = Register(New(MakeCode(ServiceRAG, CategoryRequest, 6), 400, codes.InvalidArgument, "Invalid admin command", "管理命令无效"))

	ErrRAGNotAdmin         = Register(New(MakeCode(ServiceRAG, CategoryPermission, 1), 403, codes.PermissionDenied, "Knowledge base administration requires admin rights", "需要知识库管理员权限"))
	ErrRAGDocumentNotFound = Register(New(MakeCode(ServiceRAG, CategoryResource, 1), 404, codes.NotFound, "Document not found", "文档不存在"))
	ErrRAGExtractFailed    = Register(New(MakeCode(ServiceRAG, CategoryInternal, 1), 422, codes.InvalidArgument, "Document text extraction failed", "文档文本提取失败"))
	ErrRAGIndexFailed      = Register(New(MakeCode(ServiceRAG, CategoryInternal, 2), 500, codes.Internal, "Document indexing failed", "文档索引失败"))
	ErrRAGDisabled         = Register(New(MakeCode(ServiceRAG, CategoryInternal, 3), 503, codes.Unavailable, "Knowledge base is disabled", "知识库未启用"))
)
