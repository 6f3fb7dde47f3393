package session

import (
	"signoff/bizerror"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

const TokenExpiration = 24 * time.Hour

var TokenCache = cache.New(TokenExpiration, 1*time.Minute)

const KeySecCtx = "SecCtx"
const KeySecToken = "sec_token"

func FindSecurityContext(ctx *gin.Context) *Session {
	value, found := ctx.Get(KeySecCtx)
	if !found {
		return nil
	}
	secCtx, ok := value.(*Session)
	if !ok || secCtx.Token == "" {
		return nil
	}
	return secCtx
}

// ExtractSessionFromGinContext returns the session saved by the auth filter,
// rebound to the request context, or an anonymous session when there is none.
func ExtractSessionFromGinContext(ctx *gin.Context) *Session {
	secCtx := FindSecurityContext(ctx)
	if secCtx == nil {
		return &Session{Context: ctx.Request.Context()}
	}
	boundCtx := *secCtx
	boundCtx.Context = ctx.Request.Context() // trace context
	return &boundCtx
}

func SaveSecurityContext(ctx *gin.Context, secCtx *Session) {
	if secCtx != nil && secCtx.Token != "" {
		ctx.Set(KeySecCtx, secCtx)
	}
}

func SimpleAuthFilter() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, err := ctx.Cookie(KeySecToken)
		if err != nil {
			panic(bizerror.ErrUnauthenticated)
		}
		securityContextValue, found := TokenCache.Get(token)
		if !found {
			panic(bizerror.ErrUnauthenticated)
		}
		secCtx, ok := securityContextValue.(*Session)
		if !ok {
			panic(bizerror.ErrUnauthenticated)
		}
		SaveSecurityContext(ctx, secCtx)
		ctx.Next()
	}
}
