// Package model はドメインモデルを定義する。
package model

import "time"

// MemoryQuestion は思い出を振り返るための固定質問と、その回答を表す。
type MemoryQuestion struct {
	ID         string     `json:"id"`
	Question   string     `json:"question"`
	Answer     string     `json:"answer,omitempty"`
	AnsweredAt *time.Time `json:"answeredAt,omitempty"`
}

// Answered は回答済みかどうかを返す。
func (q MemoryQuestion) Answered() bool {
	return q.Answer != ""
}

// Memory はユーザーがアップロードした思い出の記録を表す。
type Memory struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Tags      []string  `json:"tags"`
}
