package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultGoogleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"
	defaultGoogleUserInfoURL  = "https://www.googleapis.com/oauth2/v3/userinfo"

	// maxGoogleResponseSize はGoogleのレスポンスとして読み込む上限バイト数。
	maxGoogleResponseSize = 1 << 20
)

// GoogleConfig はGoogleプロバイダーの設定。
type GoogleConfig struct {
	// ClientID が設定されている場合、トークンの発行先(aud)と一致することを検証する。
	ClientID string

	// テスト用にオーバーライド可能なURL
	TokenInfoURL string
	UserInfoURL  string
}

// GoogleProvider はブラウザ側のGoogleサインインで得たアクセストークンを検証し、
// ユーザー情報を取得する。
type GoogleProvider struct {
	config GoogleConfig
	client *http.Client
}

// NewGoogleProvider はGoogleProviderを生成する。
// clientには外部接続用のHTTPクライアント（通常はSSRF対策済みのもの）を渡す。
func NewGoogleProvider(config GoogleConfig, client *http.Client) *GoogleProvider {
	if config.TokenInfoURL == "" {
		config.TokenInfoURL = defaultGoogleTokenInfoURL
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultGoogleUserInfoURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &GoogleProvider{config: config, client: client}
}

// googleTokenInfo はGoogleのtokeninfoエンドポイントのレスポンス。
type googleTokenInfo struct {
	Aud string `json:"aud"`
	Sub string `json:"sub"`
}

// googleUserInfo はGoogleのユーザー情報エンドポイントのレスポンス。
type googleUserInfo struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Authenticate はアクセストークンを検証し、ユーザー情報を返す。
// Googleがトークンを拒否した場合はErrInvalidTokenを返す。
func (p *GoogleProvider) Authenticate(ctx context.Context, token string) (*Profile, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	// 1. クライアントIDが設定されていれば発行先を検証
	if p.config.ClientID != "" {
		if err := p.verifyAudience(ctx, token); err != nil {
			return nil, err
		}
	}

	// 2. アクセストークンでユーザー情報を取得
	info, err := p.fetchUserInfo(ctx, token)
	if err != nil {
		return nil, err
	}

	return &Profile{
		Subject: info.Sub,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}, nil
}

// verifyAudience はトークンの発行先がClientIDと一致することを確認する。
func (p *GoogleProvider) verifyAudience(ctx context.Context, token string) error {
	endpoint := p.config.TokenInfoURL + "?" + url.Values{"access_token": {token}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create token info request: %w", err)
	}

	var info googleTokenInfo
	if err := p.doJSON(req, &info); err != nil {
		return fmt.Errorf("token info: %w", err)
	}
	if info.Aud != p.config.ClientID {
		return fmt.Errorf("%w: token issued for another client", ErrInvalidToken)
	}
	return nil
}

// fetchUserInfo はアクセストークンでGoogleのユーザー情報を取得する。
func (p *GoogleProvider) fetchUserInfo(ctx context.Context, token string) (*googleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var info googleUserInfo
	if err := p.doJSON(req, &info); err != nil {
		return nil, fmt.Errorf("user info: %w", err)
	}
	if info.Sub == "" {
		return nil, errors.New("empty sub in user info response")
	}
	return &info, nil
}

// doJSON はリクエストを送信し、200応答のボディをvにデコードする。
// 400/401はトークン不正として扱う。
func (p *GoogleProvider) doJSON(req *http.Request, v any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGoogleResponseSize))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: status %d", ErrInvalidToken, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// compile-time interface check
var _ IdentityProvider = (*GoogleProvider)(nil)
