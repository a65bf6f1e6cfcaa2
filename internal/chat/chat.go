// Package chat is the outbound boundary to the team chat platform.
// reportd consumes chat events through the bus; replies and reminders go
// out through a Messenger.
package chat

import (
	"context"

	"go.uber.org/zap"
)

// Messenger posts messages into a chat group.
type Messenger interface {
	// SendText posts plain text to a chat.
	SendText(ctx context.Context, chatID, text string) error

	// SendMention posts text with the given users @-mentioned.
	SendMention(ctx context.Context, chatID, text string, userIDs []string) error
}

// logMessenger records outbound messages in the log instead of delivering
// them. It is the default when no platform adapter is configured, and keeps
// the rest of the daemon exercisable in development.
type logMessenger struct {
	logger *zap.Logger
}

// NewLogMessenger returns a Messenger that only logs.
func NewLogMessenger(logger *zap.Logger) Messenger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &logMessenger{logger: logger}
}

func (m *logMessenger) SendText(_ context.Context, chatID, text string) error {
	m.logger.Info("chat message (log only)",
		zap.String("chat_id", chatID),
		zap.String("text", text))
	return nil
}

func (m *logMessenger) SendMention(_ context.Context, chatID, text string, userIDs []string) error {
	m.logger.Info("chat mention (log only)",
		zap.String("chat_id", chatID),
		zap.String("text", text),
		zap.Strings("user_ids", userIDs))
	return nil
}
