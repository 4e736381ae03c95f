package model

import (
	"testing"
	"time"
)

func TestListingDraft_HasImage(t *testing.T) {
	var d ListingDraft
	if d.HasImage() {
		t.Error("空草稿不应有图片")
	}

	d.OriginalImage = &OriginalImage{}
	if d.HasImage() {
		t.Error("空图片结构不算有图片")
	}

	d.OriginalImage.Base64 = "AAAA"
	if !d.HasImage() {
		t.Error("有 base64 就算有图片")
	}
}

func TestListingDraft_DisplayText(t *testing.T) {
	d := ListingDraft{
		Copy: &CopyText{BrandStyle: "品牌", ResaleStyle: "轉售"},
	}

	if d.DisplayText() != "轉售" {
		t.Errorf("默认展示转售风格: %s", d.DisplayText())
	}

	d.SelectedCopyStyle = CopyStyleBrand
	if d.DisplayText() != "品牌" {
		t.Errorf("选中品牌风格后应展示品牌文案: %s", d.DisplayText())
	}

	if (ListingDraft{}).DisplayText() != "" {
		t.Error("没有文案时展示空")
	}
}

func TestListingDraft_DisplayImageURL(t *testing.T) {
	d := ListingDraft{
		OriginalImage: &OriginalImage{Base64: "AAAA", MimeType: "image/png"},
	}
	if d.DisplayImageURL() != "data:image/png;base64,AAAA" {
		t.Errorf("没有去背图时退回原图 data URI: %s", d.DisplayImageURL())
	}

	d.EnhancedImageURL = "https://cdn.example.com/x.png"
	if d.DisplayImageURL() != "https://cdn.example.com/x.png" {
		t.Errorf("去背图优先: %s", d.DisplayImageURL())
	}
}

func TestListingDraft_CanMaterialize(t *testing.T) {
	d := ListingDraft{Price: 450, Nickname: "小美"}
	if err := d.CanMaterialize(); err != nil {
		t.Errorf("必填齐全应可固化: %v", err)
	}

	if (ListingDraft{Nickname: "小美"}).CanMaterialize() == nil {
		t.Error("售价为零不应可固化")
	}
	if (ListingDraft{Price: 450}).CanMaterialize() == nil {
		t.Error("昵称缺失不应可固化")
	}
}

func TestContact_ContactLink(t *testing.T) {
	tests := []struct {
		contact Contact
		want    string
	}{
		{Contact{Type: ContactTypeLine, Value: "mei123"}, "https://line.me/ti/p/~mei123"},
		{Contact{Type: ContactTypeIG, Value: "mei.ig"}, "https://instagram.com/mei.ig"},
		{Contact{Type: ContactTypeEmail, Value: "mei@example.com"}, "mailto:mei@example.com"},
		{Contact{Type: ContactTypeNone, Value: "x"}, ""},
		{Contact{Type: ContactTypeLine, Value: ""}, ""},
	}

	for _, tt := range tests {
		if got := tt.contact.ContactLink(); got != tt.want {
			t.Errorf("%+v: 期望 %q，实际 %q", tt.contact, tt.want, got)
		}
	}
}

func TestSharedListing_Expired(t *testing.T) {
	now := time.Now()

	l := SharedListing{ExpiresAt: now.Add(time.Hour)}
	if l.Expired(now) {
		t.Error("未到期不应过期")
	}

	l.ExpiresAt = now.Add(-time.Hour)
	if !l.Expired(now) {
		t.Error("已到期应过期")
	}

	// 零值表示永不过期
	l.ExpiresAt = time.Time{}
	if l.Expired(now) {
		t.Error("零值过期时间表示不过期")
	}
}
