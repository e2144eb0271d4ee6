package auth

import (
	"context"
	"errors"
)

// ErrInvalidToken はIdPがトークンを拒否したことを表す（HTTP 401相当）。
var ErrInvalidToken = errors.New("invalid identity token")

// Profile はIdPから取得したユーザー情報を表す。
type Profile struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// IdentityProvider はログイン用トークンからユーザー情報を解決する。
type IdentityProvider interface {
	Authenticate(ctx context.Context, token string) (*Profile, error)
}

// 固定のモックプロフィール
const (
	MockUserID     = "1"
	MockUserEmail  = "user@example.com"
	MockUserName   = "John Doe"
	MockUserAvatar = "https://images.pexels.com/photos/220453/pexels-photo-220453.jpeg?auto=compress&cs=tinysrgb&w=100&h=100&dpr=1"
)

// MockProvider はトークンを検証せず、常に同じプロフィールを返す。
type MockProvider struct{}

// NewMockProvider はMockProviderを生成する。
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Authenticate は固定のプロフィールを返す。
func (MockProvider) Authenticate(ctx context.Context, _ string) (*Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Profile{
		Subject: MockUserID,
		Email:   MockUserEmail,
		Name:    MockUserName,
		Picture: MockUserAvatar,
	}, nil
}

// compile-time interface check
var _ IdentityProvider = (*MockProvider)(nil)
