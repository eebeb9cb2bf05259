package planner

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/reserva-ai/commerce-platform/internal/model"
	"github.com/reserva-ai/commerce-platform/pkg/logger"
	"github.com/reserva-ai/commerce-platform/pkg/metrics"
)

const defaultModel = "gpt-4o-mini"

// OpenAIPlanner plans with the OpenAI chat completions API using tool calls.
type OpenAIPlanner struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *logger.Logger
}

// NewOpenAIPlanner creates a new OpenAI-backed planner.
func NewOpenAIPlanner(apiKey, model string, timeout time.Duration, log *logger.Logger) (*OpenAIPlanner, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	if model == "" {
		model = defaultModel
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OpenAIPlanner{
		client:  openai.NewClient(apiKey),
		model:   model,
		timeout: timeout,
		logger:  log,
	}, nil
}

// Plan sends one chat completion request and decodes the draft reply plus any
// requested tool calls.
func (p *OpenAIPlanner) Plan(ctx context.Context, req *PlanRequest) (*Plan, error) {
	start := time.Now()

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Transcript)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: BuildSystemPrompt(req.ClientName, req.Context),
	})
	for _, msg := range req.Transcript {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Message,
	})

	tools := make([]openai.Tool, len(req.Tools))
	for i, td := range req.Tools {
		tools[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        td.Name,
				Description: td.Description,
				Parameters:  td.Parameters,
			},
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		Tools:       tools,
		Temperature: 0.3,
	})
	if err != nil {
		metrics.RecordPlannerCall(p.model, "error", time.Since(start).Seconds(), 0, 0)
		return nil, err
	}

	metrics.RecordPlannerCall(p.model, "success", time.Since(start).Seconds(),
		resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return nil, errors.New("planner returned no choices")
	}

	choice := resp.Choices[0].Message
	plan := &Plan{Reply: choice.Content}

	for _, tc := range choice.ToolCalls {
		args := map[string]any{}
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			// Malformed arguments degrade to an empty map; the dispatch
			// registry's validation produces the customer-safe failure.
			p.logger.Warn("planner produced malformed arguments",
				zap.String("function", tc.Function.Name),
				zap.Error(err),
			)
			args = map[string]any{}
		}
		plan.Calls = append(plan.Calls, model.FunctionCall{
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	return plan, nil
}
