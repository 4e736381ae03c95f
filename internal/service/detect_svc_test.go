package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

// ==================== 名称清洗测试 ====================

func TestNormalizeLabels(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "典型混杂输出",
			in:   []string{"1. (Nike Air Force) ", "Nike Air Force / 白鞋", "原因：看起來像運動鞋", "ab"},
			want: []string{"Nike Air Force", "看起來像運動鞋", "ab"},
		},
		{
			name: "编号与符号前缀",
			in:   []string{"1. 帆布包", "- 托特包", "• 相機包"},
			want: []string{"帆布包", "托特包", "相機包"},
		},
		{
			name: "斜杠只取第一段",
			in:   []string{"吉他 ／ 木吉他", "鋼琴/電鋼琴"},
			want: []string{"吉他", "鋼琴"},
		},
		{
			name: "说明前缀剥除",
			in:   []string{"根據圖片特徵，保溫瓶", "因為形狀判斷，水壺"},
			want: []string{"保溫瓶", "水壺"},
		},
		{
			name: "过短项被过滤",
			in:   []string{"A", "鞋", "球鞋"},
			want: []string{"球鞋"},
		},
		{
			name: "去重并截断到三个",
			in:   []string{"背包", "背包", "水壺", "帽子", "外套"},
			want: []string{"背包", "水壺", "帽子"},
		},
		{
			name: "全部无效",
			in:   []string{" ", "1.", "-"},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeLabels(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("期望 %v，实际 %v", tt.want, got)
			}
		})
	}
}

// ==================== 模型输出解析测试 ====================

func TestParseDetectText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "标准 items JSON",
			in:   `{"items": ["帆布包", "托特包", "書包"]}`,
			want: []string{"帆布包", "托特包", "書包"},
		},
		{
			name: "裸数组",
			in:   `["水壺", "保溫瓶"]`,
			want: []string{"水壺", "保溫瓶"},
		},
		{
			name: "非 JSON 按分隔符拆分",
			in:   "帆布包\n托特包；書包，後背包",
			want: []string{"帆布包", "托特包", "書包"},
		},
		{
			name: "单行纯文本",
			in:   "一把木吉他",
			want: []string{"一把木吉他"},
		},
		{
			name: "空输入",
			in:   "   ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseDetectText(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("期望 %v，实际 %v", tt.want, got)
			}
		})
	}
}

// ==================== 服务行为测试 ====================

var testImage = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}

func TestDetectService_Unconfigured(t *testing.T) {
	svc := NewDetectService(&DetectConfig{}, NewAIService(&AIConfig{}))

	if svc.ProviderName() != "" {
		t.Errorf("未配置时不应有后端: %s", svc.ProviderName())
	}
	if _, err := svc.Detect(context.Background(), testImage, "image/jpeg"); err == nil {
		t.Error("未配置后端应返回错误")
	}
}

func TestDetectService_EdgeProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ImageBase64 string `json:"imageBase64"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ImageBase64 == "" {
			t.Errorf("请求体缺少 imageBase64")
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ok":    true,
			"items": []string{"1. Nike Air Force", "Nike Air Force / 白鞋", "背包"},
		})
	}))
	defer server.Close()

	svc := NewDetectService(&DetectConfig{EdgeURL: server.URL}, nil)
	if svc.ProviderName() != "edge" {
		t.Fatalf("应选中 edge 后端: %s", svc.ProviderName())
	}

	items, err := svc.Detect(context.Background(), testImage, "image/jpeg")
	if err != nil {
		t.Fatalf("辨识失败: %v", err)
	}
	want := []string{"Nike Air Force", "背包"}
	if !reflect.DeepEqual(items, want) {
		t.Errorf("期望 %v，实际 %v", want, items)
	}
}

func TestDetectService_EdgeFailureFallsBackToSentinel(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "非 200",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "ok=false",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]interface{}{"ok": false, "error": "後端找不到 Gemini API Key"})
			},
		},
		{
			name: "响应损坏",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json at all"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			svc := NewDetectService(&DetectConfig{EdgeURL: server.URL}, nil)
			items, err := svc.Detect(context.Background(), testImage, "image/jpeg")
			if err != nil {
				t.Fatalf("后端失败不应向上抛错: %v", err)
			}
			if len(items) != 1 || items[0] != LabelUnrecognized {
				t.Errorf("应降级为兜底候选，实际 %v", items)
			}
		})
	}
}

func TestDetectService_EmptyResultGetsSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "items": []string{" ", "1."}})
	}))
	defer server.Close()

	svc := NewDetectService(&DetectConfig{EdgeURL: server.URL}, nil)
	items, err := svc.Detect(context.Background(), testImage, "image/jpeg")
	if err != nil {
		t.Fatalf("辨识失败: %v", err)
	}
	if len(items) != 1 || items[0] != LabelUnrecognized {
		t.Errorf("清洗后为空应给兜底候选，实际 %v", items)
	}
}
