package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/vkinder/internal/ai"
	"github.com/spigell/vkinder/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

//go:embed prompt.md
var promptTemplate string

const (
	systemInstruction   = "Ты вежливый помощник для знакомств. Отвечай только JSON."
	defaultMaxLogLength = 200
	maxMessageLength    = 300
)

// Icebreaker asks Gemini for a first message to a candidate.
type Icebreaker struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

var _ ai.Icebreaker = (*Icebreaker)(nil)

func NewIcebreaker(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Icebreaker {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Icebreaker{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (i *Icebreaker) Suggest(ctx context.Context, pair ai.Pair) (string, error) {
	userJSON, err := json.MarshalIndent(describeUser(pair), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal user payload: %w", err)
	}

	candidateJSON, err := json.MarshalIndent(describeCandidate(pair), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal candidate payload: %w", err)
	}

	prompt := buildPrompt(string(userJSON), string(candidateJSON), pair.CommonGroups)

	i.logger.Debug("gemini icebreaker request",
		zap.Int64("user_id", pair.User.ID),
		zap.Int64("candidate_id", pair.Candidate.ID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, i.maxLogLen)),
	)

	raw, err := i.generator.GenerateContent(ctx, systemInstruction, prompt)
	if err != nil {
		return "", err
	}

	i.logger.Debug("gemini icebreaker response",
		zap.Int64("candidate_id", pair.Candidate.ID),
		zap.String("response_preview", utils.TruncateForLog(raw, i.maxLogLen)),
	)

	return parseResponse(raw)
}

func describeUser(pair ai.Pair) map[string]any {
	out := map[string]any{"name": pair.User.FirstName}
	if pair.User.Age != nil {
		out["age"] = *pair.User.Age
	}
	if pair.User.City != "" {
		out["city"] = pair.User.City
	}
	return out
}

func describeCandidate(pair ai.Pair) map[string]any {
	out := map[string]any{"name": pair.Candidate.FirstName}
	if pair.Candidate.Age != nil {
		out["age"] = *pair.Candidate.Age
	}
	if pair.Candidate.City != "" {
		out["city"] = pair.Candidate.City
	}
	return out
}

func buildPrompt(userJSON, candidateJSON string, commonGroups int) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "User:\n{{USER_JSON}}\n\nCandidate:\n{{CANDIDATE_JSON}}\n\nCommon groups: {{COMMON_GROUPS}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{USER_JSON}}", userJSON)
	prompt = strings.ReplaceAll(prompt, "{{CANDIDATE_JSON}}", candidateJSON)
	prompt = strings.ReplaceAll(prompt, "{{COMMON_GROUPS}}", strconv.Itoa(commonGroups))
	return prompt
}

// parseResponse accepts the requested JSON object and falls back to plain text.
func parseResponse(raw string) (string, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	message := cleaned
	if err := json.Unmarshal([]byte(cleaned), &data); err == nil {
		message = coerceString(data["message"])
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return "", fmt.Errorf("gemini response has no message")
	}

	if utf8.RuneCountInString(message) > maxMessageLength {
		message = string([]rune(message)[:maxMessageLength])
	}
	return message, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
