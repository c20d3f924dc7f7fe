// Package middleware holds the gin middleware guarding the ingestion API.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// skipTrackingKey is the context flag handlers check before buffering events.
const skipTrackingKey = "skip_tracking"

// botPatterns are known bot User-Agent substrings (lowercase). Bot traffic
// would skew experiment metrics, so flagged requests are acknowledged but
// their events are never stored.
var botPatterns = []string{
	"googlebot", "bingbot", "slurp", "duckduckbot",
	"baiduspider", "yandexbot", "facebookexternalhit",
	"twitterbot", "rogerbot", "linkedinbot", "embedly",
	"quora link preview", "showyoubot", "outbrain",
	"pinterest", "applebot", "semrushbot", "ahrefsbot",
	"mj12bot", "dotbot", "petalbot", "bytespider",
}

// BotFilter flags requests from known bots (or with no user agent at all)
// so handlers can skip event storage while still responding success.
func BotFilter() gin.HandlerFunc {
	return func(c *gin.Context) {
		ua := strings.ToLower(c.Request.UserAgent())
		if ua == "" || isBot(ua) {
			c.Set(skipTrackingKey, true)
		}
		c.Next()
	}
}

// SkipTracking reports whether the request was flagged by BotFilter.
func SkipTracking(c *gin.Context) bool {
	return c.GetBool(skipTrackingKey)
}

func isBot(ua string) bool {
	for _, pattern := range botPatterns {
		if strings.Contains(ua, pattern) {
			return true
		}
	}
	return false
}
