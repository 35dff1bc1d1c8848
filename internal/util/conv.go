package util

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
)

// MustParseInt 将字符串转换为整数，解析失败时返回 0
func MustParseInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// Round2 保留两位小数，用于进度百分比
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// RequestUserID 读取上游网关注入的用户标识
// 鉴权由网关完成，此处只做透传
func RequestUserID(c *gin.Context) string {
	if id := c.GetHeader(HeaderUserID); id != "" {
		return id
	}
	return c.Query("user_id")
}
