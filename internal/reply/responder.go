// Package reply は会話モードに応じたAI応答を生成する。
//
// 呼び出し側はResponderインターフェースのみに依存し、定型文による応答と
// 言語モデルによる応答を差し替えられる。
package reply

import (
	"context"

	"github.com/hitoshi/unsaid/internal/model"
)

// Request は応答生成の入力。
type Request struct {
	Mode model.Mode
	// Input はユーザーが送信した本文。
	Input string
	// PersonName はclosureモードで語りかける相手の名前。空の場合もある。
	PersonName string
	// History は送信前までのセッション内メッセージ（古い順）。
	History []model.Message
}

// Responder は応答文を生成する。
// ctxがキャンセルされた場合はctx.Err()を返す。
type Responder interface {
	Generate(ctx context.Context, req Request) (string, error)
}
