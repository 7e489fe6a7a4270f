package service

import (
	"context"
	"log"
	"strings"
	"time"

	"ai-paperchat-be/internal/constant"
	"ai-paperchat-be/internal/dto"
	"ai-paperchat-be/internal/entity"
	"ai-paperchat-be/internal/repository/specification"
	"ai-paperchat-be/internal/repository/unitofwork"
	"ai-paperchat-be/pkg/rag/command"
	"ai-paperchat-be/pkg/rag/fault"
	"ai-paperchat-be/pkg/rag/history"
	"ai-paperchat-be/pkg/rag/respond"
	"ai-paperchat-be/pkg/rag/session"
	"ai-paperchat-be/pkg/rag/state"
	"ai-paperchat-be/pkg/transcript"

	"github.com/google/uuid"
)

const defaultSessionTitle = "Unnamed session"

// IChatService defines the chat service interface.
//
// SendChat may return BOTH a response and an error: once the user's turn is
// persisted, every later failure (bad command, disabled toggle, generation)
// comes back with a partial response carrying the Sent half so the caller
// can tell the user their message was not lost.
type IChatService interface {
	CreateSession(ctx context.Context, userId uuid.UUID, request *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error)
	GetAllSessions(ctx context.Context, userId uuid.UUID) ([]*dto.GetAllSessionsResponse, error)
	GetChatHistory(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) (*dto.GetChatHistoryData, error)
	SendChat(ctx context.Context, userId uuid.UUID, request *dto.SendChatRequest) (*dto.SendChatResponse, error)
}

// chatService coordinates domain components
type chatService struct {
	uowFactory  unitofwork.RepositoryFactory
	transcripts *transcript.Store
	chatLogger  *log.Logger

	// Domain components
	stateManager   *state.Manager
	historyLoader  *history.Loader
	sessionManager *session.Manager
	sessionLocker  *session.Locker
	responder      *respond.Responder
	defaultRoute   command.Route
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	transcripts *transcript.Store,
	historyLoader *history.Loader,
	responder *respond.Responder,
	stateManager *state.Manager,
	defaultRoute string,
	chatLogger *log.Logger,
) IChatService {
	return &chatService{
		uowFactory:  uowFactory,
		transcripts: transcripts,
		chatLogger:  chatLogger,

		stateManager:   stateManager,
		historyLoader:  historyLoader,
		sessionManager: session.NewManager(),
		sessionLocker:  session.NewLocker(),
		responder:      responder,
		defaultRoute:   command.RouteFromString(defaultRoute),
	}
}

// CreateSession creates a new chat session
func (cs *chatService) CreateSession(ctx context.Context, userId uuid.UUID, request *dto.CreateSessionRequest) (*dto.CreateSessionResponse, error) {
	title := strings.TrimSpace(request.Title)
	if title == "" {
		title = defaultSessionTitle
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	chatSession, err := cs.sessionManager.EnsureChatSession(ctx, uow, userId, uuid.New(), title)
	if err != nil {
		return nil, err
	}

	return &dto.CreateSessionResponse{Id: chatSession.Id}, nil
}

// GetAllSessions retrieves all chat sessions
func (cs *chatService) GetAllSessions(ctx context.Context, userId uuid.UUID) ([]*dto.GetAllSessionsResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	chatSessions, err := uow.ChatSessionRepository().FindAll(ctx,
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	)
	if err != nil {
		return nil, err
	}

	response := make([]*dto.GetAllSessionsResponse, 0, len(chatSessions))
	for _, s := range chatSessions {
		response = append(response, &dto.GetAllSessionsResponse{
			Id:        s.Id,
			Title:     s.Title,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		})
	}

	return response, nil
}

// GetChatHistory returns the merged transcript for a session, flagged when
// the durable tier could not be read.
func (cs *chatService) GetChatHistory(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) (*dto.GetChatHistoryData, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	if _, err := cs.sessionManager.VerifyChatSession(ctx, uow, userId, sessionId); err != nil {
		return nil, err
	}

	messages, degraded, err := cs.transcripts.History(ctx, sessionId)
	if err != nil {
		return nil, err
	}

	resp := make([]dto.GetChatHistoryResponse, 0, len(messages))
	for _, msg := range messages {
		resp = append(resp, dto.GetChatHistoryResponse{
			Id:            msg.Id,
			Role:          msg.Role,
			Chat:          msg.Chat,
			Route:         msg.Route,
			Durable:       msg.Durable,
			CitedChunkIds: msg.CitedChunkIds,
			CreatedAt:     msg.CreatedAt,
		})
	}

	return &dto.GetChatHistoryData{
		Messages:            resp,
		PersistenceDegraded: degraded,
	}, nil
}

// SendChat processes one user message and returns the assistant's reply.
func (cs *chatService) SendChat(ctx context.Context, userId uuid.UUID, request *dto.SendChatRequest) (*dto.SendChatResponse, error) {
	// One in-flight message per session. Whoever holds the slot finishes
	// persist + generate + persist before the next sender starts.
	release, err := cs.sessionLocker.Acquire(ctx, request.ChatSessionId)
	if err != nil {
		return nil, err
	}
	defer release()

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	// 1. First contact creates the session row. A row owned by someone else
	// stays invisible.
	chatSession, err := cs.sessionManager.EnsureChatSession(ctx, uow, userId, request.ChatSessionId, defaultSessionTitle)
	if err != nil {
		return nil, err
	}

	// Resolve the route up front so the recorded turn carries it. A parse
	// failure is surfaced only after the turn is recorded.
	parsed, parseErr := command.Parse(request.Chat, cs.defaultRoute)
	route := ""
	if parseErr == nil {
		route = string(parsed.Route)
	}

	// 2. Window the conversation before the new turn joins it.
	hist, _, err := cs.historyLoader.Recent(ctx, request.ChatSessionId)
	if err != nil {
		cs.chatLogger.Printf("[CHAT] Failed to load history for session %s: %v", request.ChatSessionId, err)
		hist = nil
	}

	// 3. Record the user's turn before anything can reject it. Whatever goes
	// wrong from here on, the transcript keeps what the user said.
	now := time.Now()
	userMessage := &entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: request.ChatSessionId,
		Role:          constant.ChatMessageRoleUser,
		Chat:          request.Chat,
		Route:         route,
		CreatedAt:     now,
	}
	sentResult, err := cs.transcripts.Persist(ctx, userMessage)
	if err != nil {
		return nil, err
	}
	cs.historyLoader.Invalidate(ctx, request.ChatSessionId)

	partial := &dto.SendChatResponse{
		ChatSessionId:       chatSession.Id,
		ChatSessionTitle:    chatSession.Title,
		Sent:                messageToChatDTO(userMessage),
		Route:               route,
		PersistenceDegraded: !sentResult.Durable,
	}

	// 4. Route. A bad command comes back with the recorded turn attached.
	if parseErr != nil {
		return partial, parseErr
	}

	// 5. A retrieval route needs the session toggle on, no silent downgrade
	// to a direct answer.
	if parsed.Route == command.RouteRetrieval && !cs.stateManager.IsEnabled(request.ChatSessionId) {
		return partial, fault.New(fault.KindRAGNotEnabled, "retrieval is not enabled for this session").
			WithHint("enable RAG for this session, then send the message again")
	}

	// 6. Generate.
	turn, err := cs.responder.Respond(ctx, respond.Input{
		SessionID: request.ChatSessionId,
		Route:     route,
		Payload:   parsed.Payload,
		History:   hist,
	})
	if err != nil {
		return partial, err
	}

	// 7. Record the assistant's turn.
	reply := &entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: request.ChatSessionId,
		Role:          constant.ChatMessageRoleAssistant,
		Chat:          turn.Text,
		Route:         turn.Route,
		CitedChunkIds: turn.Citations,
		CreatedAt:     time.Now(),
	}
	replyResult, err := cs.transcripts.Persist(ctx, reply)
	if err != nil {
		return nil, err
	}
	cs.historyLoader.Invalidate(ctx, request.ChatSessionId)

	// 8. The first completed exchange names the session.
	if chatSession.Title == "" || chatSession.Title == defaultSessionTitle {
		if err := cs.sessionManager.UpdateTitle(ctx, uow, chatSession, sessionTitleFrom(parsed.Payload), now); err != nil {
			cs.chatLogger.Printf("[CHAT] Failed to update title for session %s: %v", chatSession.Id, err)
		}
	}

	return &dto.SendChatResponse{
		ChatSessionId:       chatSession.Id,
		ChatSessionTitle:    chatSession.Title,
		Sent:                partial.Sent,
		Reply:               messageToChatDTO(reply),
		Route:               turn.Route,
		PersistenceDegraded: !sentResult.Durable || !replyResult.Durable,
	}, nil
}

func messageToChatDTO(msg *entity.ChatMessage) *dto.SendChatResponseChat {
	return &dto.SendChatResponseChat{
		Id:            msg.Id,
		Chat:          msg.Chat,
		Role:          msg.Role,
		Route:         msg.Route,
		Durable:       msg.Durable,
		CitedChunkIds: msg.CitedChunkIds,
		CreatedAt:     msg.CreatedAt,
	}
}

// sessionTitleFrom derives a session title from the first message: the
// payload collapsed to single spaces and cut at 80 runes.
func sessionTitleFrom(payload string) string {
	title := strings.Join(strings.Fields(payload), " ")
	if runes := []rune(title); len(runes) > 80 {
		title = string(runes[:80])
	}
	if title == "" {
		title = defaultSessionTitle
	}
	return title
}
