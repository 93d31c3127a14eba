package insight

import (
	"context"
	"fmt"

	"example.com/healthhub/internal/observability"
)

// Output token budgets per request kind.
const (
	chatMaxTokens    = 1024
	summaryMaxTokens = 500
	trendsMaxTokens  = 2000
)

const assistantSystemPrompt = "You are a personal health assistant. You answer questions " +
	"about the user's sleep, recovery and training data. Be concise, concrete and " +
	"reference the numbers in the data when relevant."

const summaryInstruction = "Write a short daily summary of how I am doing based on the " +
	"health data above. Two or three sentences, plain language, lead with the most " +
	"notable change."

const trendsInstruction = `Analyze the health data above and report on trends. Structure the answer as:

### Sleep
### Recovery
### Training Load
### Recommendations

Keep each section to a few sentences and ground every observation in the data.`

// Completer is the completion capability the service depends on; satisfied
// by *Client and by test stubs.
type Completer interface {
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)
}

// Service assembles prompts from client-supplied health data and requests
// insights. Each call is stateless.
type Service struct {
	llm Completer
}

// NewService builds a Service.
func NewService(llm Completer) *Service {
	return &Service{llm: llm}
}

// Chat answers a freeform user message with the health context injected as
// the system prompt.
func (s *Service) Chat(ctx context.Context, message string, data HealthData) (string, error) {
	system := assistantSystemPrompt
	if healthContext := BuildHealthContext(data); healthContext != "" {
		system += "\n\nThe user's recent health data:\n\n" + healthContext
	}
	return s.complete(ctx, "chat", system, message, chatMaxTokens)
}

// DailySummary produces a short summary of the supplied data.
func (s *Service) DailySummary(ctx context.Context, data HealthData) (string, error) {
	user := fmt.Sprintf("%s\n\n%s", BuildHealthContext(data), summaryInstruction)
	return s.complete(ctx, "daily_summary", assistantSystemPrompt, user, summaryMaxTokens)
}

// Trends produces a multi-section trend analysis of the supplied data.
func (s *Service) Trends(ctx context.Context, data HealthData) (string, error) {
	user := fmt.Sprintf("%s\n\n%s", BuildHealthContext(data), trendsInstruction)
	return s.complete(ctx, "trends", assistantSystemPrompt, user, trendsMaxTokens)
}

func (s *Service) complete(ctx context.Context, kind, system, user string, maxTokens int) (string, error) {
	text, err := s.llm.Complete(ctx, system, user, maxTokens)
	if err != nil {
		observability.RecordInsightRequest(kind, "error")
		return "", err
	}
	observability.RecordInsightRequest(kind, "ok")
	return text, nil
}
