package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/agent-meeting/backend/internal/config"
	"github.com/zhouzirui/agent-meeting/backend/internal/model/meeting"
)

// ErrEmptyResponse 表示模型返回了空内容。
var ErrEmptyResponse = errors.New("model returned empty content")

// Service generates meeting contributions through an eino chain backed by the Ark chat model.
type Service struct {
	prompts *RolePromptManager
	chain   compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates a new AI service instance
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return NewServiceWithModel(ctx, chatModel)
}

// NewServiceWithModel builds the chain around an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.ChatModel) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		prompts: NewRolePromptManager(),
		chain:   runnable,
	}, nil
}

// Generate implements the meeting Generator contract.
func (s *Service) Generate(ctx context.Context, participant meeting.Participant, query string) (string, error) {
	input := map[string]any{
		"system": s.prompts.BuildSystemPrompt(participant),
		"query":  query,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", ErrEmptyResponse
	}

	log.Printf("[ai] generated response for participant=%d role=%s, length=%d", participant.ID, participant.Role, len(response.Content))
	return response.Content, nil
}
