package utils

import (
	"encoding/json"
	"net"
	"strings"

	"ratemylandlord-server/models"

	"github.com/kataras/iris/v12"
)

// AuditEntry snapshots before/after states of a moderated resource.
func AuditEntry(adminID, action, resourceType string, resourceID uint, before, after interface{}, ip string) *models.AuditLog {
	var beforeStr, afterStr string
	if before != nil {
		if b, err := json.Marshal(before); err == nil {
			beforeStr = string(b)
		}
	}
	if after != nil {
		if a, err := json.Marshal(after); err == nil {
			afterStr = string(a)
		}
	}
	return &models.AuditLog{
		AdminUserID:  adminID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		BeforeJSON:   beforeStr,
		AfterJSON:    afterStr,
		IPAddress:    ip,
	}
}

func ClientIP(ctx iris.Context) string {
	if ip := ctx.GetHeader("X-Forwarded-For"); ip != "" {
		return strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	ip, _, err := net.SplitHostPort(ctx.RemoteAddr())
	if err != nil {
		return ctx.RemoteAddr()
	}
	return ip
}
