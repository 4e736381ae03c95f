package utils

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// ExtractBase64Payload 拆解可能带 data URL 前缀的 base64 字符串
// 返回纯 base64 数据和 MIME 类型；无前缀时按原样返回并给默认 MIME
func ExtractBase64Payload(value string) (data string, mimeType string) {
	const marker = ";base64,"
	if strings.HasPrefix(value, "data:") {
		if idx := strings.Index(value, marker); idx != -1 {
			mimeType = value[len("data:"):idx]
			data = value[idx+len(marker):]
			if mimeType == "" {
				mimeType = "image/jpeg"
			}
			return data, mimeType
		}
	}
	return value, "image/jpeg"
}

// BuildDataURI 拼接 data URI
func BuildDataURI(base64Data, mimeType string) string {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64Data)
}

// EncodeImage 图片字节转 base64
func EncodeImage(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeImage base64 转图片字节，容忍 data URL 前缀和换行
func DecodeImage(value string) ([]byte, error) {
	data, _ := ExtractBase64Payload(value)
	data = strings.ReplaceAll(data, "\n", "")
	data = strings.ReplaceAll(data, "\r", "")
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("base64 解码失败: %v", err)
	}
	return raw, nil
}

// DetectMimeType 根据字节内容嗅探 MIME 类型
func DetectMimeType(data []byte) string {
	return http.DetectContentType(data)
}
