// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/unsaid/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userIDContextKey = contextKey("user_id")
	tierContextKey   = contextKey("tier")
)

// UserFinder は保存済みユーザーの取得に必要なインターフェース。
// auth.Serviceの部分集合として定義する。
type UserFinder interface {
	CurrentUser(ctx context.Context) (*model.User, error)
}

// NewUserMiddleware は保存済みユーザーを読み取り、
// ユーザーIDとプランをリクエストコンテキストに注入するミドルウェアを返す。
// ユーザーが保存されていない場合は401を返す。
func NewUserMiddleware(finder UserFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := finder.CurrentUser(r.Context())
			if err != nil {
				slog.Error("failed to load current user",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusInternalServerError, model.NewPersistenceFailureError())
				return
			}
			if user == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ctx := ContextWithUser(r.Context(), user.ID, user.Tier)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// ユーザーミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// TierFromContext はリクエストコンテキストからプランを取得する。
// 未設定の場合はguestを返す。
func TierFromContext(ctx context.Context) model.Tier {
	tier, ok := ctx.Value(tierContextKey).(model.Tier)
	if !ok {
		return model.TierGuest
	}
	return tier
}

// ContextWithUser はコンテキストにユーザーIDとプランを注入する。
// アクセスログのミドルウェアを通過している場合はログにもユーザーIDを載せる。
func ContextWithUser(ctx context.Context, userID string, tier model.Tier) context.Context {
	if info := requestInfoFrom(ctx); info != nil {
		info.userID = userID
	}
	ctx = context.WithValue(ctx, userIDContextKey, userID)
	return context.WithValue(ctx, tierContextKey, tier)
}
