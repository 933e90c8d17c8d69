package chat

import (
	"context"
	"strings"

	"github.com/oggyb/heartline/internal/db"
)

// MaxContentLength bounds a single message, in bytes.
const MaxContentLength = 4000

var messageTypes = map[string]bool{
	db.MessageTypeText:  true,
	db.MessageTypeEmoji: true,
	db.MessageTypeLike:  true,
}

type SendMessageRequest struct {
	MatchID string `json:"match_id"`
	Content string `json:"content"`
	// MessageType defaults to "text".
	MessageType string `json:"message_type,omitempty"`
}

func (r *SendMessageRequest) Validate(ctx context.Context) (problems map[string][]string) {
	problems = make(map[string][]string)

	if r.MatchID == "" {
		problems["match_id"] = append(problems["match_id"], "match_id is required")
	}
	if strings.TrimSpace(r.Content) == "" {
		problems["content"] = append(problems["content"], "content is required")
	}
	if len(r.Content) > MaxContentLength {
		problems["content"] = append(problems["content"], "content is too long")
	}
	if r.MessageType != "" && !messageTypes[r.MessageType] {
		problems["message_type"] = append(problems["message_type"], "must be one of text, emoji, like")
	}
	return problems
}

type SendMessageResponse struct {
	Message db.Message `json:"message"`
}

type ListMessagesRequest struct {
	MatchID         string  `json:"match_id"`
	PaginationToken *string `json:"pagination_token,omitempty"`
	Limit           int     `json:"limit,omitempty"`
}

type ListMessagesResponse struct {
	Messages            []db.Message `json:"messages"`
	NextPaginationToken *string      `json:"next_pagination_token,omitempty"`
}

type MarkReadRequest struct {
	MatchID string `json:"match_id"`
}

type MarkReadResponse struct {
	Updated int `json:"updated"`
}

type DeleteMessageRequest struct {
	MessageID string `json:"message_id"`
}

type DeleteMessageResponse struct{}
