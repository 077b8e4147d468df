package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldProvider is the structured log field key for the AI provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the AI model identifier.
	FieldModel = "ai_model"
	// FieldUser is the key for the VK id of the person talking to the bot.
	FieldUser = "user_id"
	// FieldCandidate is the key for the VK id of the candidate being shown.
	FieldCandidate = "candidate_id"
	// FieldCommand is the key for the dispatched bot command.
	FieldCommand = "command"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches fields to the logger, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// CommonFields returns standard zap fields that describe the AI provider and model.
func CommonFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, CommonFields(provider, model)...)
}

// UserFields describes a bot interaction. Zero ids and an empty command are omitted.
func UserFields(userID, candidateID int64, command string) []zap.Field {
	fields := make([]zap.Field, 0, 3)
	if userID != 0 {
		fields = append(fields, zap.Int64(FieldUser, userID))
	}
	if candidateID != 0 {
		fields = append(fields, zap.Int64(FieldCandidate, candidateID))
	}
	return append(fields, StringFields(StringField{Key: FieldCommand, Value: command})...)
}
