package contextkeys

import "context"

type messageTypeKey struct{}
type userIDKey struct{}
type chatIDKey struct{}
type callbackDataKey struct{}
type commandKey struct{}

type MessageType string

const (
	MessageTypeText        MessageType = "text"
	MessageTypeCommand     MessageType = "command"
	MessageTypeClickButton MessageType = "clickButton"
	MessageTypeUnknown     MessageType = "unknown"
)

func WithMessageType(ctx context.Context, msgType MessageType) context.Context {
	return context.WithValue(ctx, messageTypeKey{}, msgType)
}

func GetMessageType(ctx context.Context) (MessageType, bool) {
	v, ok := ctx.Value(messageTypeKey{}).(MessageType)
	if !ok {
		return MessageTypeUnknown, false
	}
	return v, true
}

// WithIdentity stores the Telegram user and the chat the update came from.
func WithIdentity(ctx context.Context, userID, chatID int64) context.Context {
	ctx = context.WithValue(ctx, userIDKey{}, userID)
	return context.WithValue(ctx, chatIDKey{}, chatID)
}

func GetUserID(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(userIDKey{}).(int64)
	return v, ok
}

func GetChatID(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(chatIDKey{}).(int64)
	return v, ok
}

func WithCallbackData(ctx context.Context, data string) context.Context {
	return context.WithValue(ctx, callbackDataKey{}, data)
}

func GetCallbackData(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(callbackDataKey{}).(string)
	return v, ok
}

// WithCommand stores a bot command without its leading slash or @botname suffix.
func WithCommand(ctx context.Context, cmd string) context.Context {
	return context.WithValue(ctx, commandKey{}, cmd)
}

func GetCommand(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(commandKey{}).(string)
	return v, ok
}
