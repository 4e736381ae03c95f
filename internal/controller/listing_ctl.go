package controller

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"selllink/internal/middleware"
	"selllink/internal/model"
	"selllink/internal/service"
	"selllink/internal/session"
	"selllink/internal/stage"
	"selllink/pkg/utils"
)

// maxUploadBytes 上传图片大小上限
const maxUploadBytes = 10 << 20

var (
	errNoImage   = errors.New("没有上传图片")
	errNotImage  = errors.New("仅支持图片文件")
	errOversized = errors.New("图片超过大小上限")
)

// ==================== 控制器 ====================

// ListingController 上架向导控制器
// 每个接口都针对当前会话的草稿操作，阶段门禁不满足时返回 409 + 跳转提示
type ListingController struct {
	detectService   *service.DetectService
	removeBgService *service.RemoveBgService
	copyService     *service.CopyService
	shareService    *service.ShareService
}

func NewListingController(
	detectService *service.DetectService,
	removeBgService *service.RemoveBgService,
	copyService *service.CopyService,
	shareService *service.ShareService,
) *ListingController {
	return &ListingController{
		detectService:   detectService,
		removeBgService: removeBgService,
		copyService:     copyService,
		shareService:    shareService,
	}
}

// ensureStage 阶段门禁检查，不满足时写入 409 响应
func ensureStage(c *gin.Context, sess *session.DraftSession, st stage.Stage, slug string) bool {
	result := stage.Gate(sess.Read(), st, slug)
	if !result.Allowed {
		c.JSON(http.StatusConflict, gin.H{
			"code":    409,
			"message": "前置条件不满足",
			"data":    gin.H{"redirect": result.Redirect},
		})
		return false
	}
	return true
}

// draftImage 取出草稿原图的字节和 MIME
func draftImage(d model.ListingDraft) ([]byte, string, error) {
	img := d.OriginalImage
	if img == nil {
		return nil, "", errNoImage
	}
	if len(img.Data) > 0 {
		return img.Data, img.MimeType, nil
	}
	data, err := utils.DecodeImage(img.Base64)
	return data, img.MimeType, err
}

// ==================== API 方法 ====================

// GetDraft 获取当前草稿
func (ctrl *ListingController) GetDraft(c *gin.Context) {
	sess := middleware.CurrentSession(c)
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    sess.Read(),
	})
}

// Upload 上传商品原图，开始新一轮上架
// 接受 multipart 的 image 字段或 JSON 的 imageBase64 字段
func (ctrl *ListingController) Upload(c *gin.Context) {
	sess := middleware.CurrentSession(c)

	data, mimeType, err := readUploadImage(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": err.Error(),
		})
		return
	}

	// 新图片意味着新一轮向导，下游字段与在途调用全部作废
	sess.Update(func(model.ListingDraft) model.ListingDraft {
		return model.ListingDraft{
			OriginalImage: &model.OriginalImage{
				Data:     data,
				Base64:   utils.EncodeImage(data),
				MimeType: mimeType,
			},
		}
	})
	sess.Invalidate(session.CapDetect)
	sess.Invalidate(session.CapEnhance)
	sess.Invalidate(session.CapCopy)
	sess.Invalidate(session.CapPrice)

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    sess.Read(),
	})
}

func readUploadImage(c *gin.Context) ([]byte, string, error) {
	if file, err := c.FormFile("image"); err == nil {
		if file.Size > maxUploadBytes {
			return nil, "", errOversized
		}
		f, err := file.Open()
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
		if err != nil {
			return nil, "", err
		}
		if len(data) > maxUploadBytes {
			return nil, "", errOversized
		}
		mimeType := file.Header.Get("Content-Type")
		if mimeType == "" {
			mimeType = utils.DetectMimeType(data)
		}
		if !strings.HasPrefix(mimeType, "image/") {
			return nil, "", errNotImage
		}
		return data, mimeType, nil
	}

	var req struct {
		ImageBase64 string `json:"imageBase64" binding:"required"`
		MimeType    string `json:"mimeType"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, "", errNoImage
	}
	payload, mimeFromURI := utils.ExtractBase64Payload(req.ImageBase64)
	data, err := utils.DecodeImage(payload)
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", errNoImage
	}
	if len(data) > maxUploadBytes {
		return nil, "", errOversized
	}
	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = mimeFromURI
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, "", errNotImage
	}
	return data, mimeType, nil
}

// Detect 辨识商品，写入候选名称
func (ctrl *ListingController) Detect(c *gin.Context) {
	sess := middleware.CurrentSession(c)
	if !ensureStage(c, sess, stage.StageDetect, "") {
		return
	}

	data, mimeType, err := draftImage(sess.Read())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "图片数据异常: " + err.Error(),
		})
		return
	}

	token := sess.Begin(session.CapDetect)

	items, err := ctrl.detectService.Detect(c.Request.Context(), data, mimeType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": err.Error(),
		})
		return
	}

	committed := sess.CommitIfCurrent(session.CapDetect, token, func(d model.ListingDraft) model.ListingDraft {
		d.Candidates = items
		d.SelectedLabel = ""
		return d
	})

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": gin.H{
			"items":    items,
			"provider": ctrl.detectService.ProviderName(),
			"stale":    !committed,
		},
	})
}

// SelectLabel 记录用户选定的商品名称
func (ctrl *ListingController) SelectLabel(c *gin.Context) {
	sess := middleware.CurrentSession(c)
	if !ensureStage(c, sess, stage.StageDetect, "") {
		return
	}

	var req struct {
		Label       string `json:"label" binding:"required"`
		OfficialURL string `json:"officialUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	label := strings.TrimSpace(req.Label)
	if label == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "商品名称不能为空",
		})
		return
	}

	sess.Update(func(d model.ListingDraft) model.ListingDraft {
		d.SelectedLabel = label
		d.OfficialURL = strings.TrimSpace(req.OfficialURL)
		return d
	})
	// 名称变了，旧的文案生成结果不再可信
	sess.Invalidate(session.CapCopy)

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    sess.Read(),
	})
}

// Enhance 图片去背
// 该能力永不失败：后端不可用时回退原图并标记 usedFallback
func (ctrl *ListingController) Enhance(c *gin.Context) {
	sess := middleware.CurrentSession(c)
	if !ensureStage(c, sess, stage.StageDetect, "") {
		return
	}

	data, mimeType, err := draftImage(sess.Read())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "图片数据异常: " + err.Error(),
		})
		return
	}

	token := sess.Begin(session.CapEnhance)

	result := ctrl.removeBgService.RemoveBackground(c.Request.Context(), data, mimeType)

	imageURL := result.URL
	if imageURL == "" {
		imageURL = result.DataURI()
	}
	committed := sess.CommitIfCurrent(session.CapEnhance, token, func(d model.ListingDraft) model.ListingDraft {
		d.EnhancedImageURL = imageURL
		d.UsedFallback = result.UsedFallback
		return d
	})

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": gin.H{
			"imageUrl":     imageURL,
			"usedFallback": result.UsedFallback,
			"provider":     result.Provider,
			"stale":        !committed,
		},
	})
}

// GenerateCopy 生成双风格文案
func (ctrl *ListingController) GenerateCopy(c *gin.Context) {
	sess := middleware.CurrentSession(c)
	if !ensureStage(c, sess, stage.StageCopy, "") {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	draft := sess.Read()
	token := sess.Begin(session.CapCopy)

	copyText := ctrl.copyService.GenerateCopy(c.Request.Context(), service.CopyRequest{
		ItemName:    draft.SelectedLabel,
		Reason:      req.Reason,
		OfficialURL: draft.OfficialURL,
	})

	committed := sess.CommitIfCurrent(session.CapCopy, token, func(d model.ListingDraft) model.ListingDraft {
		d.Copy = &copyText
		if d.SelectedCopyStyle == "" {
			d.SelectedCopyStyle = model.CopyStyleResale
		}
		return d
	})

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": gin.H{
			"copy":  copyText,
			"stale": !committed,
		},
	})
}

// UpdateCopy 手工修改文案或切换展示风格
func (ctrl *ListingController) UpdateCopy(c *gin.Context) {
	sess := middleware.CurrentSession(c)
	if !ensureStage(c, sess, stage.StagePrice, "") {
		return
	}

	var req struct {
		BrandStyle        *string `json:"brandStyle"`
		ResaleStyle       *string `json:"resaleStyle"`
		SelectedCopyStyle *string `json:"selectedCopyStyle"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	if req.SelectedCopyStyle != nil {
		switch *req.SelectedCopyStyle {
		case model.CopyStyleBrand, model.CopyStyleResale:
		default:
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的文案风格",
			})
			return
		}
	}

	sess.Update(func(d model.ListingDraft) model.ListingDraft {
		if d.Copy != nil {
			cp := *d.Copy
			if req.BrandStyle != nil {
				cp.BrandStyle = *req.BrandStyle
			}
			if req.ResaleStyle != nil {
				cp.ResaleStyle = *req.ResaleStyle
			}
			d.Copy = &cp
		}
		if req.SelectedCopyStyle != nil {
			d.SelectedCopyStyle = *req.SelectedCopyStyle
		}
		return d
	})

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    sess.Read(),
	})
}

// SuggestPrice 获取售价建议区间
func (ctrl *ListingController) SuggestPrice(c *gin.Context) {
	sess := middleware.CurrentSession(c)
	if !ensureStage(c, sess, stage.StagePrice, "") {
		return
	}

	draft := sess.Read()
	token := sess.Begin(session.CapPrice)

	hint := ctrl.copyService.SuggestPrice(c.Request.Context(), draft.SelectedLabel)

	committed := sess.CommitIfCurrent(session.CapPrice, token, func(d model.ListingDraft) model.ListingDraft {
		d.PriceHint = &hint
		return d
	})

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": gin.H{
			"priceHint": hint,
			"stale":     !committed,
		},
	})
}

// SubmitPrice 提交售价与卖家信息，并固化分享页
func (ctrl *ListingController) SubmitPrice(c *gin.Context) {
	sess := middleware.CurrentSession(c)
	if !ensureStage(c, sess, stage.StagePrice, "") {
		return
	}

	var req struct {
		Price    float64        `json:"price"`
		Nickname string         `json:"nickname"`
		Contact  *model.Contact `json:"contact"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "参数错误: " + err.Error(),
		})
		return
	}

	if req.Price <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "请填写大于 0 的售价",
		})
		return
	}
	req.Nickname = strings.TrimSpace(req.Nickname)
	if req.Nickname == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "请填写昵称",
		})
		return
	}
	if req.Contact != nil {
		switch req.Contact.Type {
		case model.ContactTypeLine, model.ContactTypeIG, model.ContactTypeEmail, model.ContactTypeNone:
		default:
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的联系方式类型",
			})
			return
		}
	}

	sess.Update(func(d model.ListingDraft) model.ListingDraft {
		d.Price = req.Price
		d.Nickname = req.Nickname
		if req.Contact != nil {
			d.Contact = *req.Contact
		}
		return d
	})

	slug, err := ctrl.shareService.Materialize(c.Request.Context(), sess.Read())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": err.Error(),
		})
		return
	}

	sess.Update(func(d model.ListingDraft) model.ListingDraft {
		d.ShareSlug = slug
		return d
	})

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": gin.H{
			"slug":      slug,
			"shareUrl":  "/share/" + slug,
			"publicUrl": "/p/" + slug,
		},
	})
}

// GetShare 分享阶段读取草稿，slug 必须与当前草稿一致
func (ctrl *ListingController) GetShare(c *gin.Context) {
	sess := middleware.CurrentSession(c)
	slug := c.Param("slug")
	if !ensureStage(c, sess, stage.StageShare, slug) {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": gin.H{
			"draft":     sess.Read(),
			"publicUrl": "/p/" + slug,
		},
	})
}

// Reset 清空草稿，重新开始
func (ctrl *ListingController) Reset(c *gin.Context) {
	sess := middleware.CurrentSession(c)
	sess.Reset()

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    gin.H{"redirect": stage.StageUpload.Path()},
	})
}
