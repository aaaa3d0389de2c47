package apirouter

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

var corsAllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}

// CORSPolicy is the single origin allow-list. Both the CORS middleware and
// the recovery handler consult it.
type CORSPolicy struct {
	origins []string
}

func NewCORSPolicy(origins []string) CORSPolicy {
	normalized := lo.FilterMap(origins, func(o string, _ int) (string, bool) {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		return o, o != ""
	})
	return CORSPolicy{origins: lo.Uniq(normalized)}
}

func (p CORSPolicy) AllowsOrigin(origin string) bool {
	return origin != "" && lo.Contains(p.origins, origin)
}

func (p CORSPolicy) Origins() []string {
	return append([]string(nil), p.origins...)
}

// Middleware answers preflights and decorates responses for allowed origins.
func (p CORSPolicy) Middleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc:  p.AllowsOrigin,
		AllowMethods:     corsAllowedMethods,
		AllowHeaders:     []string{"*"},
		ExposeHeaders:    []string{"*"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// Decorate sets the CORS response headers on c when its origin is allowed.
// It is used on responses that bypass Middleware.
func (p CORSPolicy) Decorate(c *gin.Context) {
	origin := c.GetHeader("Origin")
	if !p.AllowsOrigin(origin) {
		return
	}
	header := c.Writer.Header()
	header.Set("Access-Control-Allow-Origin", origin)
	header.Set("Access-Control-Allow-Credentials", "true")
	header.Set("Access-Control-Allow-Methods", strings.Join(corsAllowedMethods, ", "))
	header.Set("Access-Control-Allow-Headers", "*")
	header.Add("Vary", "Origin")
}
