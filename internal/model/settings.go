// Package model はドメインモデルを定義する。
package model

// Theme は表示テーマを表す。
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// AppSettings はアプリ設定を表す。各フラグは互いに独立している。
type AppSettings struct {
	Theme         Theme `json:"theme"`
	VoiceEnabled  bool  `json:"voiceEnabled"`
	TTSEnabled    bool  `json:"ttsEnabled"`
	SoundsEnabled bool  `json:"soundsEnabled"`
}

// DefaultSettings は初回起動時の設定を返す。
func DefaultSettings() AppSettings {
	return AppSettings{
		Theme:         ThemeLight,
		VoiceEnabled:  true,
		TTSEnabled:    true,
		SoundsEnabled: true,
	}
}

// SettingsPatch は設定の部分更新を表す。nilのフィールドは変更しない。
type SettingsPatch struct {
	Theme         *Theme `json:"theme,omitempty"`
	VoiceEnabled  *bool  `json:"voiceEnabled,omitempty"`
	TTSEnabled    *bool  `json:"ttsEnabled,omitempty"`
	SoundsEnabled *bool  `json:"soundsEnabled,omitempty"`
}
