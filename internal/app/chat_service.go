package app

import (
	"context"
	"strings"

	"gopherai-knowledge/internal/ai"
	"gopherai-knowledge/internal/platform/logger"
)

// degradedAnswer is returned whenever an external provider fails mid-request.
// The caller always gets a well-formed response, never a raw provider error.
const degradedAnswer = "Sorry, I couldn't process your question right now. Please try again in a moment."

const systemPrompt = "You are a helpful assistant. Answer the user's question based only on the provided context. " +
	"If the context is empty or does not contain enough information, say that you don't have enough information. Do not make up facts."

// Completer is the chat completion provider.
type Completer interface {
	Complete(ctx context.Context, model string, messages []ai.ChatMessage) (string, error)
	StreamComplete(ctx context.Context, model string, messages []ai.ChatMessage, onChunk func(string) error) (string, error)
}

// Message is one conversation turn supplied by the caller. Nothing is kept
// server-side between requests.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AskInput is one chat request: the new message plus the caller-held history.
type AskInput struct {
	Message string
	History []Message
}

// AskResult is the answer plus the source labels actually used as context.
type AskResult struct {
	Message string   `json:"message"`
	Sources []string `json:"sources"`
}

// ChatService answers questions over the ingested knowledge: embed the
// question, retrieve context, complete. External failures degrade to a fixed
// apology; only invalid input is surfaced as an error.
type ChatService struct {
	retriever  *Retriever
	completer  Completer
	chatModel  string
	maxHistory int
	log        *logger.Logger
}

func NewChatService(retriever *Retriever, completer Completer, chatModel string, maxHistory int, log *logger.Logger) *ChatService {
	if maxHistory <= 0 {
		maxHistory = 20
	}
	return &ChatService{
		retriever:  retriever,
		completer:  completer,
		chatModel:  chatModel,
		maxHistory: maxHistory,
		log:        log.With("component", "chat"),
	}
}

// Answer runs one request through validate, retrieve and complete.
func (s *ChatService) Answer(ctx context.Context, input AskInput) (*AskResult, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, ErrMessageEmpty
	}

	retrieved, err := s.retriever.Retrieve(ctx, message)
	if err != nil {
		s.log.Warn("retrieval failed, degrading", "err", err)
		return &AskResult{Message: degradedAnswer, Sources: []string{}}, nil
	}

	messages := s.buildPromptMessages(retrieved, input.History, message)
	answer, err := s.completer.Complete(ctx, s.chatModel, messages)
	if err != nil {
		// The context was assembled before the provider failed; the apology
		// still reports which sources it would have drawn on.
		s.log.Warn("completion failed, degrading", "err", err)
		return &AskResult{Message: degradedAnswer, Sources: sourcesOrEmpty(retrieved.Sources)}, nil
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = "The model returned an empty response."
	}

	return &AskResult{Message: answer, Sources: sourcesOrEmpty(retrieved.Sources)}, nil
}

// Stream behaves like Answer but forwards completion deltas to onChunk as
// they arrive. On provider failure the apology is delivered as one chunk.
func (s *ChatService) Stream(ctx context.Context, input AskInput, onChunk func(string) error) (*AskResult, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, ErrMessageEmpty
	}

	retrieved, err := s.retriever.Retrieve(ctx, message)
	if err != nil {
		s.log.Warn("retrieval failed, degrading", "err", err)
		if err := onChunk(degradedAnswer); err != nil {
			return nil, err
		}
		return &AskResult{Message: degradedAnswer, Sources: []string{}}, nil
	}

	messages := s.buildPromptMessages(retrieved, input.History, message)
	full, err := s.completer.StreamComplete(ctx, s.chatModel, messages, onChunk)
	if err != nil {
		s.log.Warn("stream completion failed, degrading", "err", err)
		if err := onChunk(degradedAnswer); err != nil {
			return nil, err
		}
		return &AskResult{Message: degradedAnswer, Sources: sourcesOrEmpty(retrieved.Sources)}, nil
	}

	return &AskResult{Message: strings.TrimSpace(full), Sources: sourcesOrEmpty(retrieved.Sources)}, nil
}

func (s *ChatService) buildPromptMessages(retrieved *RetrievedContext, history []Message, message string) []ai.ChatMessage {
	if len(history) > s.maxHistory {
		history = history[len(history)-s.maxHistory:]
	}

	messages := make([]ai.ChatMessage, 0, len(history)+2)
	messages = append(messages, ai.ChatMessage{Role: "system", Content: systemPrompt})
	for _, turn := range history {
		role := turn.Role
		if role != "assistant" {
			role = "user"
		}
		messages = append(messages, ai.ChatMessage{Role: role, Content: turn.Content})
	}

	userContent := "Context:\n" + retrieved.ContextText + "\n\nQuestion: " + message
	if retrieved.ContextText == "" {
		userContent = "Context: (none available)\n\nQuestion: " + message
	}
	messages = append(messages, ai.ChatMessage{Role: "user", Content: userContent})
	return messages
}

func sourcesOrEmpty(sources []string) []string {
	if sources == nil {
		return []string{}
	}
	return sources
}
