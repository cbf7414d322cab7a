package dto

import (
	"time"

	"ai-docqa-be/pkg/rag"
)

type ChatQueryRequest struct {
	SessionId string `json:"session_id" validate:"omitempty,uuid4"`
	Query     string `json:"query" validate:"required,min=1,max=4000"`
}

type ChatQueryResponse struct {
	SessionId    string             `json:"session_id"`
	Query        string             `json:"query"`
	Answer       string             `json:"answer"`
	Context      []rag.ContextBlock `json:"context"`
	StageTimings map[string]int64   `json:"stage_timings_ms"`
	Success      bool               `json:"success"`
	Fallback     bool               `json:"fallback"`
}

type CreateSessionRequest struct {
	SessionId string `json:"session_id" validate:"omitempty,uuid4"`
}

type CreateSessionResponse struct {
	SessionId string `json:"session_id"`
}

type MessageDTO struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type GetSessionResponse struct {
	SessionId    string       `json:"session_id"`
	CreatedAt    time.Time    `json:"created_at"`
	LastActivity time.Time    `json:"last_activity"`
	Messages     []MessageDTO `json:"messages"`
}

type SessionStatsResponse struct {
	TotalSessions  int  `json:"total_sessions"`
	ActiveSessions int  `json:"active_sessions"`
	TotalMessages  int  `json:"total_messages"`
	StoreDegraded  bool `json:"store_degraded"`
}
