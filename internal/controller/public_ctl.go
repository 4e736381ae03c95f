package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"selllink/internal/service"
)

// ==================== 控制器 ====================

// PublicController 公开分享页控制器
// 无会话依赖：任何人拿着 slug 都能读，读不到是正常状态而非错误
type PublicController struct {
	shareService *service.ShareService
}

func NewPublicController(shareService *service.ShareService) *PublicController {
	return &PublicController{shareService: shareService}
}

// ==================== API 方法 ====================

// Resolve 按 slug 读取分享页
func (ctrl *PublicController) Resolve(c *gin.Context) {
	slug := c.Param("slug")

	view, err := ctrl.shareService.Resolve(c.Request.Context(), slug)
	if err != nil {
		if errors.Is(err, service.ErrListingNotFound) {
			// 未找到是页面的一等状态，返回结构化载荷供前端渲染
			c.JSON(http.StatusNotFound, gin.H{
				"code":    404,
				"message": "分享页不存在或已过期",
				"data":    gin.H{"found": false},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": err.Error(),
		})
		return
	}

	draft := view.Draft
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data": gin.H{
			"found":       true,
			"slug":        view.Slug,
			"label":       draft.SelectedLabel,
			"price":       draft.Price,
			"nickname":    draft.Nickname,
			"imageUrl":    draft.DisplayImageURL(),
			"text":        draft.DisplayText(),
			"contact":     draft.Contact,
			"contactLink": draft.Contact.ContactLink(),
			"createdAt":   view.CreatedAt,
			"expiresAt":   view.ExpiresAt,
			"draft":       draft,
		},
	})
}
