package stage

import (
	"testing"

	"selllink/internal/model"
)

// ==================== 测试辅助 ====================

func draftWithImage() model.ListingDraft {
	return model.ListingDraft{
		OriginalImage: &model.OriginalImage{Base64: "aGVsbG8=", MimeType: "image/jpeg"},
	}
}

func draftWithLabel() model.ListingDraft {
	d := draftWithImage()
	d.SelectedLabel = "Nike Air Force"
	return d
}

func draftWithCopy() model.ListingDraft {
	d := draftWithLabel()
	d.Copy = &model.CopyText{ResaleStyle: "轉售文案", BrandStyle: "品牌文案"}
	return d
}

// ==================== 门禁测试 ====================

func TestGate_UploadAlwaysAllowed(t *testing.T) {
	result := Gate(model.ListingDraft{}, StageUpload, "")
	if !result.Allowed {
		t.Fatal("Upload 阶段不应有前置条件")
	}
}

func TestGate_DetectRequiresImage(t *testing.T) {
	result := Gate(model.ListingDraft{}, StageDetect, "")
	if result.Allowed {
		t.Fatal("没有图片不应允许进入 Detect")
	}
	if result.Redirect != "/upload" {
		t.Errorf("期望跳转 /upload，实际 %s", result.Redirect)
	}

	if r := Gate(draftWithImage(), StageDetect, ""); !r.Allowed {
		t.Error("有图片时应允许进入 Detect")
	}
}

func TestGate_CopyRequiresLabel(t *testing.T) {
	result := Gate(draftWithImage(), StageCopy, "")
	if result.Allowed {
		t.Fatal("没有选定名称不应允许进入 Copy")
	}
	if result.Redirect != "/detect" {
		t.Errorf("期望跳转 /detect，实际 %s", result.Redirect)
	}

	if r := Gate(draftWithLabel(), StageCopy, ""); !r.Allowed {
		t.Error("有选定名称时应允许进入 Copy")
	}
}

func TestGate_PriceRequiresCopy(t *testing.T) {
	result := Gate(draftWithLabel(), StagePrice, "")
	if result.Allowed {
		t.Fatal("没有文案不应允许进入 Price")
	}
	if result.Redirect != "/copy" {
		t.Errorf("期望跳转 /copy，实际 %s", result.Redirect)
	}

	if r := Gate(draftWithCopy(), StagePrice, ""); !r.Allowed {
		t.Error("有文案时应允许进入 Price")
	}
}

func TestGate_ShareRequiresMatchingSlug(t *testing.T) {
	d := draftWithCopy()
	d.Price = 1200
	d.Nickname = "小明"
	d.ShareSlug = "abc123"

	if r := Gate(d, StageShare, "abc123"); !r.Allowed {
		t.Error("slug 一致时应允许进入 Share")
	}

	// 草稿重置后旧链接回来，slug 对不上
	result := Gate(d, StageShare, "stale-slug")
	if result.Allowed {
		t.Fatal("slug 不一致不应允许进入 Share")
	}
	if result.Redirect != "/upload" {
		t.Errorf("期望跳转 /upload，实际 %s", result.Redirect)
	}

	// 从未生成过分享页
	d.ShareSlug = ""
	if r := Gate(d, StageShare, "abc123"); r.Allowed {
		t.Error("没有 shareSlug 不应允许进入 Share")
	}
}

func TestGate_PublicAlwaysAllowed(t *testing.T) {
	// 公开页独立按 slug 解析，不依赖会话草稿
	if r := Gate(model.ListingDraft{}, StagePublic, "whatever"); !r.Allowed {
		t.Error("Public 阶段不应有门禁")
	}
}

func TestGate_UnknownStageRedirectsUpload(t *testing.T) {
	result := Gate(draftWithCopy(), Stage("bogus"), "")
	if result.Allowed || result.Redirect != "/upload" {
		t.Errorf("未知阶段应跳转 /upload，实际 %+v", result)
	}
}

func TestStagePath(t *testing.T) {
	cases := map[Stage]string{
		StageUpload: "/upload",
		StageDetect: "/detect",
		StageCopy:   "/copy",
		StagePrice:  "/price",
		StageShare:  "/share",
		StagePublic: "/p",
	}
	for st, want := range cases {
		if got := st.Path(); got != want {
			t.Errorf("%s: 期望 %s，实际 %s", st, want, got)
		}
	}
}
