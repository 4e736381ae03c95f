package stage

import (
	"selllink/internal/model"
)

// ==================== 阶段定义 ====================

// Stage 向导阶段
type Stage string

const (
	StageUpload Stage = "upload"
	StageDetect Stage = "detect"
	StageCopy   Stage = "copy"
	StagePrice  Stage = "price"
	StageShare  Stage = "share"
	StagePublic Stage = "public"
)

// Path 阶段对应的前端路由
func (s Stage) Path() string {
	switch s {
	case StageUpload:
		return "/upload"
	case StageDetect:
		return "/detect"
	case StageCopy:
		return "/copy"
	case StagePrice:
		return "/price"
	case StageShare:
		return "/share"
	case StagePublic:
		return "/p"
	default:
		return "/upload"
	}
}

// ==================== 阶段门禁 ====================

// GateResult 门禁检查结果
type GateResult struct {
	Allowed  bool
	Redirect string // 不满足前置条件时应跳转的上游阶段路由
}

func allowed() GateResult {
	return GateResult{Allowed: true}
}

func redirectTo(s Stage) GateResult {
	return GateResult{Allowed: false, Redirect: s.Path()}
}

// Gate 检查草稿是否满足进入指定阶段的前置条件
// 不满足时返回最近的可满足上游阶段；slug 仅在 Share 阶段参与校验
//
// 前置条件表：
//
//	Detect  需要 originalImage   -> Upload
//	Copy    需要 selectedLabel   -> Detect
//	Price   需要 copy            -> Copy
//	Share   需要 shareSlug 存在且与访问的 slug 一致 -> Upload
//	Public  无前置条件（独立按 slug 解析）
func Gate(d model.ListingDraft, s Stage, slug string) GateResult {
	switch s {
	case StageUpload:
		return allowed()

	case StageDetect:
		if !d.HasImage() {
			return redirectTo(StageUpload)
		}
		return allowed()

	case StageCopy:
		if d.SelectedLabel == "" {
			return redirectTo(StageDetect)
		}
		return allowed()

	case StagePrice:
		if !d.HasCopy() {
			return redirectTo(StageCopy)
		}
		return allowed()

	case StageShare:
		// 草稿重置后旧的分享链接会带着过期的 slug 回来，一律视为无效会话
		if d.ShareSlug == "" || slug != d.ShareSlug {
			return redirectTo(StageUpload)
		}
		return allowed()

	case StagePublic:
		return allowed()

	default:
		return redirectTo(StageUpload)
	}
}
