// Package extract 从上传的文档中提取纯文本。
//
// 支持 .pdf .txt .docx .md .html .htm，格式由文件扩展名决定。
package extract

import (
	"errors"
	"path/filepath"
	"strings"
)

// Format 文档格式。
type Format string

const (
	FormatText Format = "text"
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatHTML Format = "html"
)

var extensions = map[string]Format{
	".txt":  FormatText,
	".md":   FormatText,
	".pdf":  FormatPDF,
	".docx": FormatDOCX,
	".html": FormatHTML,
	".htm":  FormatHTML,
}

// ErrUnsupportedFormat 扩展名不受支持。
var ErrUnsupportedFormat = errors.New("unsupported document format")

// SupportedExtensions 返回受支持的扩展名。
func SupportedExtensions() []string {
	return []string{".pdf", ".txt", ".docx", ".md", ".html", ".htm"}
}

// Detect 根据文件名识别格式，扩展名不区分大小写。
func Detect(filename string) (Format, bool) {
	f, ok := extensions[strings.ToLower(filepath.Ext(filename))]
	return f, ok
}

// IsSupported 判断文件名是否为受支持的格式。
func IsSupported(filename string) bool {
	_, ok := Detect(filename)
	return ok
}

// Text 按格式提取文本。
func Text(filename string, payload []byte) (string, error) {
	format, ok := Detect(filename)
	if !ok {
		return "", ErrUnsupportedFormat
	}

	switch format {
	case FormatPDF:
		return PDF(payload)
	case FormatDOCX:
		return DOCX(payload)
	case FormatHTML:
		return HTMLText(DecodeText(payload))
	default:
		return DecodeText(payload), nil
	}
}
