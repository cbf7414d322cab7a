package service

import (
	"context"
	"time"

	"ai-docqa-be/internal/dto"
	"ai-docqa-be/internal/pkg/logger"
	"ai-docqa-be/pkg/llm"
	"ai-docqa-be/pkg/rag"
	"ai-docqa-be/pkg/store"
	"ai-docqa-be/pkg/stream"
)

// IChatService is the query-answering surface shared by the REST controller
// and the websocket handler.
type IChatService interface {
	Query(ctx context.Context, request *dto.ChatQueryRequest) (*dto.ChatQueryResponse, error)
	QueryStream(ctx context.Context, sessionID string, query string, emitter stream.Emitter) error
	EnsureSession(ctx context.Context, sessionID string) (string, error)

	CreateSession(ctx context.Context, request *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error)
	GetSession(ctx context.Context, sessionID string) (*dto.GetSessionResponse, error)
	ClearSession(ctx context.Context, sessionID string) (bool, error)
	DeleteSession(ctx context.Context, sessionID string) (bool, error)
	Stats(ctx context.Context) (*dto.SessionStatsResponse, error)
}

type chatService struct {
	pipeline *rag.Pipeline
	sessions *store.SessionStore
	kv       *store.FailoverStore
	logger   logger.ILogger
}

func NewChatService(pipeline *rag.Pipeline, sessions *store.SessionStore, kv *store.FailoverStore, log logger.ILogger) IChatService {
	return &chatService{
		pipeline: pipeline,
		sessions: sessions,
		kv:       kv,
		logger:   log,
	}
}

// EnsureSession resolves the caller-supplied session id to a live session,
// creating one when the id is empty or expired.
func (cs *chatService) EnsureSession(ctx context.Context, sessionID string) (string, error) {
	if sessionID != "" {
		session, err := cs.sessions.GetSession(ctx, sessionID)
		if err != nil {
			return "", err
		}
		if session != nil {
			return sessionID, nil
		}
	}
	return cs.sessions.CreateSession(ctx, sessionID)
}

func (cs *chatService) Query(ctx context.Context, request *dto.ChatQueryRequest) (*dto.ChatQueryResponse, error) {
	sessionID, err := cs.EnsureSession(ctx, request.SessionId)
	if err != nil {
		return nil, err
	}

	history, err := cs.loadHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	cs.appendMessage(ctx, sessionID, store.RoleUser, request.Query)

	result := cs.pipeline.Answer(ctx, sessionID, request.Query, history)

	cs.appendMessage(ctx, sessionID, store.RoleAssistant, result.Answer)

	return toChatQueryResponse(result), nil
}

// QueryStream runs one question through the streaming pipeline, mapping its
// chunk sequence onto the emitter. The pipeline's single Done chunk becomes
// the emitter's terminal event, so the exactly-once contract carries over.
func (cs *chatService) QueryStream(ctx context.Context, sessionID string, query string, emitter stream.Emitter) error {
	sessionID, err := cs.EnsureSession(ctx, sessionID)
	if err != nil {
		emitter.EmitError(sessionID, "Failed to prepare session.")
		return err
	}

	history, err := cs.loadHistory(ctx, sessionID)
	if err != nil {
		cs.logger.Warn("ChatService", "History unavailable, answering without it", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		history = nil
	}

	cs.appendMessage(ctx, sessionID, store.RoleUser, query)

	emitter.EmitStart(sessionID)

	onChunk := func(chunk llm.StreamChunk) error {
		if chunk.Done {
			emitter.EmitComplete(sessionID, chunk.FullText)
			return nil
		}
		return emitter.EmitChunk(stream.Chunk{
			SessionID: sessionID,
			Chunk:     chunk.Text,
			FullText:  chunk.FullText,
			Index:     chunk.Index,
		})
	}

	result := cs.pipeline.AnswerStream(ctx, sessionID, query, history, onChunk)

	cs.appendMessage(ctx, sessionID, store.RoleAssistant, result.Answer)
	return nil
}

func (cs *chatService) CreateSession(ctx context.Context, request *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error) {
	sessionID, err := cs.sessions.CreateSession(ctx, request.SessionId)
	if err != nil {
		return nil, err
	}
	return &dto.CreateSessionResponse{SessionId: sessionID}, nil
}

// GetSession returns nil without error when the session is absent or expired.
func (cs *chatService) GetSession(ctx context.Context, sessionID string) (*dto.GetSessionResponse, error) {
	session, err := cs.sessions.GetSession(ctx, sessionID)
	if err != nil || session == nil {
		return nil, err
	}

	messages := make([]dto.MessageDTO, len(session.Messages))
	for i, msg := range session.Messages {
		messages[i] = dto.MessageDTO{
			Role:      msg.Role,
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		}
	}
	return &dto.GetSessionResponse{
		SessionId:    session.ID,
		CreatedAt:    session.CreatedAt,
		LastActivity: session.LastActivity,
		Messages:     messages,
	}, nil
}

func (cs *chatService) ClearSession(ctx context.Context, sessionID string) (bool, error) {
	return cs.sessions.ClearMessages(ctx, sessionID)
}

func (cs *chatService) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	return cs.sessions.DeleteSession(ctx, sessionID)
}

func (cs *chatService) Stats(ctx context.Context) (*dto.SessionStatsResponse, error) {
	stats, err := cs.sessions.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &dto.SessionStatsResponse{
		TotalSessions:  stats.TotalSessions,
		ActiveSessions: stats.ActiveSessions,
		TotalMessages:  stats.TotalMessages,
		StoreDegraded:  cs.kv.Degraded(),
	}, nil
}

func (cs *chatService) loadHistory(ctx context.Context, sessionID string) ([]llm.Message, error) {
	session, err := cs.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}
	history := make([]llm.Message, len(session.Messages))
	for i, msg := range session.Messages {
		history[i] = llm.Message{Role: msg.Role, Content: msg.Content}
	}
	return history, nil
}

// appendMessage is best effort. Losing one history entry must not fail the
// query itself.
func (cs *chatService) appendMessage(ctx context.Context, sessionID, role, content string) {
	if _, err := cs.sessions.AppendMessage(ctx, sessionID, store.Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		cs.logger.Warn("ChatService", "Failed to append message to session", map[string]interface{}{
			"session_id": sessionID,
			"role":       role,
			"error":      err.Error(),
		})
	}
}

func toChatQueryResponse(result *rag.Result) *dto.ChatQueryResponse {
	timings := make(map[string]int64, len(result.StageTimings))
	for stage, elapsed := range result.StageTimings {
		timings[stage] = elapsed.Milliseconds()
	}
	return &dto.ChatQueryResponse{
		SessionId:    result.SessionID,
		Query:        result.Query,
		Answer:       result.Answer,
		Context:      result.Context,
		StageTimings: timings,
		Success:      result.Success,
		Fallback:     result.Fallback,
	}
}
