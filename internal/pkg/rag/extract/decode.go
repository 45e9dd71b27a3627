package extract

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeText 依次尝试 UTF-8、Windows-1251、ISO-8859-1 解码，
// 都不适用时按 UTF-8 解码并替换非法字节。
func DecodeText(payload []byte) string {
	if utf8.Valid(payload) {
		return string(bytes.TrimPrefix(payload, utf8BOM))
	}

	for _, cm := range []*charmap.Charmap{charmap.Windows1251, charmap.ISO8859_1} {
		if s, ok := decodeStrict(cm, payload); ok {
			return s
		}
	}

	return strings.ToValidUTF8(string(payload), "�")
}

// decodeStrict 字节落在编码未定义区时视为失败。
func decodeStrict(cm *charmap.Charmap, payload []byte) (string, bool) {
	out, err := cm.NewDecoder().Bytes(payload)
	if err != nil {
		return "", false
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}
