// Package model はドメインモデルを定義する。
package model

// Tier はユーザーの契約プランを表す。
type Tier string

const (
	TierGuest   Tier = "guest"
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// Valid はプランが既知の値かどうかを判定する。
func (t Tier) Valid() bool {
	switch t {
	case TierGuest, TierFree, TierPremium:
		return true
	default:
		return false
	}
}

// User はサインイン中のユーザープロフィールを表す。
type User struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Tier   Tier   `json:"tier"`
}
