package restapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"jencoder/pkg/errno"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 返回成功响应
func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, Response{
		Code:    errno.OK.Code,
		Message: errno.OK.Message,
		Data:    data,
	})
}

// Failed 返回失败响应，识别errno错误码
func Failed(ctx *gin.Context, err error) {
	var e *errno.Errno
	if errors.As(err, &e) {
		status := http.StatusInternalServerError
		if e.Code >= 400 && e.Code < 500 {
			status = e.Code
		}
		ctx.JSON(status, Response{Code: e.Code, Message: e.Message})
		return
	}
	ctx.JSON(http.StatusInternalServerError, Response{
		Code:    errno.ErrInternalServer.Code,
		Message: err.Error(),
	})
}
