package agent

import (
	"context"

	"github.com/reserva-ai/commerce-platform/internal/model"
	"github.com/reserva-ai/commerce-platform/internal/planner"
)

// transcriptWindow is the number of prior messages included in the planning
// input. Older history is represented only through the structured context.
const transcriptWindow = 10

// assemblePlanRequest builds the bounded planner input for one turn: the new
// inbound text, the recent transcript excluding that text, and the structured
// context.
func (p *Pipeline) assemblePlanRequest(ctx context.Context, conv *model.Conversation, client *model.Client, inbound *model.Message) (*planner.PlanRequest, error) {
	// One extra so the window stays K deep after dropping the message that
	// was just appended.
	recent, err := p.conversations.RecentMessages(ctx, conv.TenantID, conv.ID, transcriptWindow+1)
	if err != nil {
		return nil, err
	}

	transcript := make([]planner.ChatMessage, 0, len(recent))
	for _, m := range recent {
		if m.ID == inbound.ID {
			continue
		}
		role := "user"
		if m.From == model.SenderAgent {
			role = "assistant"
		}
		transcript = append(transcript, planner.ChatMessage{Role: role, Content: m.Content})
	}
	if len(transcript) > transcriptWindow {
		transcript = transcript[len(transcript)-transcriptWindow:]
	}

	return &planner.PlanRequest{
		Message:    inbound.Content,
		Transcript: transcript,
		Context:    conv.Context,
		ClientName: client.Name,
		Tools:      p.registry.Definitions(),
	}, nil
}
