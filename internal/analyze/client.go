package analyze

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/zachicecreamcohn/comment-catcher/internal/comments"
	"github.com/zachicecreamcohn/comment-catcher/pkg/logging"
)

// DefaultBatchSize is how many comments go into one model request.
const DefaultBatchSize = 20

// reportToolName is the function the model must call to report findings.
const reportToolName = "report_outdated_comments"

// reportToolSchema is the JSON schema for the tool parameters. Forcing a
// tool call gives structured output without depending on JSON mode.
var reportToolSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "findings": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "file": {"type": "string", "description": "Repository-relative path of the file containing the comment"},
          "line": {"type": "integer", "description": "1-based line number of the first comment line"},
          "comment": {"type": "string", "description": "The comment text as given"},
          "reason": {"type": "string", "description": "What in the diff contradicts the comment"},
          "suggestion": {"type": "string", "description": "Optional replacement comment text"}
        },
        "required": ["file", "line", "comment", "reason"]
      }
    }
  },
  "required": ["findings"]
}`)

// toolPayload mirrors the tool-call arguments.
type toolPayload struct {
	Findings []Finding `json:"findings"`
}

// chatCompleter is the slice of the OpenAI client the analyzer uses.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithBatchSize overrides the per-request comment count.
func WithBatchSize(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.batchSize = n
		}
	}
}

// WithRequestsPerMinute paces model calls. Zero disables pacing.
func WithRequestsPerMinute(rpm int) Option {
	return func(a *Analyzer) {
		if rpm > 0 {
			a.limiter = rate.NewLimiter(rate.Limit(rpm)/60.0, 1)
		} else {
			a.limiter = nil
		}
	}
}

// withCompleter swaps the OpenAI client. Used by tests.
func withCompleter(c chatCompleter) Option {
	return func(a *Analyzer) { a.client = c }
}

// Analyzer runs comment batches through a chat model.
//
// # Description
//
// Batches are sent sequentially. A failed request or unparseable tool
// call drops that batch with a warning; the rest of the run continues.
//
// # Thread Safety
//
// Analyzer is safe for concurrent use, though a single Analyze call
// already serializes its own batches.
type Analyzer struct {
	client    chatCompleter
	model     string
	batchSize int
	limiter   *rate.Limiter
	log       *logging.Logger
}

// NewAnalyzer creates an Analyzer backed by the OpenAI API.
//
// # Inputs
//
//   - model: Chat model name, e.g. "gpt-4o-mini".
//   - baseURL: Optional OpenAI-compatible endpoint override.
//   - log: Logger. Must not be nil.
//   - opts: Optional settings.
//
// # Outputs
//
//   - *Analyzer: The configured analyzer.
//   - error: Non-nil when OPENAI_API_KEY is unset. Returned before any
//     network activity so the run fails fast.
func NewAnalyzer(model, baseURL string, log *logging.Logger, opts ...Option) (*Analyzer, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	a := &Analyzer{
		client:    openai.NewClientWithConfig(cfg),
		model:     model,
		batchSize: DefaultBatchSize,
		log:       log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Analyze checks every comment against the diff and returns findings.
//
// # Inputs
//
//   - ctx: Context for cancellation. Must not be nil.
//   - in: Diff text plus significant comments.
//
// # Outputs
//
//   - []Finding: Deduplicated findings in model order. One finding per
//     file and line; the first report wins.
//   - error: Non-nil only on context cancellation. Per-batch failures
//     degrade to warnings.
func (a *Analyzer) Analyze(ctx context.Context, in Input) ([]Finding, error) {
	if len(in.Comments) == 0 {
		return nil, nil
	}

	var findings []Finding
	seen := make(map[string]struct{})

	for start := 0; start < len(in.Comments); start += a.batchSize {
		end := start + a.batchSize
		if end > len(in.Comments) {
			end = len(in.Comments)
		}
		batch := in.Comments[start:end]

		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				return findings, fmt.Errorf("rate limit wait: %w", err)
			}
		} else if err := ctx.Err(); err != nil {
			return findings, fmt.Errorf("analysis canceled: %w", err)
		}

		batchFindings, err := a.analyzeBatch(ctx, in.Diff, batch)
		if err != nil {
			if ctx.Err() != nil {
				return findings, fmt.Errorf("analysis canceled: %w", ctx.Err())
			}
			a.log.Warn("Batch analysis failed, skipping",
				"batch_start", start, "batch_size", len(batch), "error", err)
			continue
		}

		for _, f := range batchFindings {
			key := fmt.Sprintf("%s:%d", f.File, f.Line)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			findings = append(findings, f)
		}
	}

	return findings, nil
}

// analyzeBatch sends one batch with a forced tool call and parses the
// arguments.
func (a *Analyzer) analyzeBatch(ctx context.Context, diff string, batch []comments.Comment) ([]Finding, error) {
	req := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(diff, batch)},
		},
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        reportToolName,
				Description: "Report comments made inaccurate by the change set",
				Parameters:  reportToolSchema,
			},
		}},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: reportToolName},
		},
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("model returned no choices")
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		return nil, fmt.Errorf("model did not call %s", reportToolName)
	}

	call := msg.ToolCalls[0]
	if call.Function.Name != reportToolName {
		return nil, fmt.Errorf("model called unexpected tool %q", call.Function.Name)
	}

	var payload toolPayload
	if err := json.Unmarshal([]byte(call.Function.Arguments), &payload); err != nil {
		return nil, fmt.Errorf("parse tool arguments: %w", err)
	}

	out := payload.Findings[:0:0]
	for _, f := range payload.Findings {
		if strings.TrimSpace(f.File) == "" || f.Line < 1 {
			a.log.Warn("Dropping malformed finding", "file", f.File, "line", f.Line)
			continue
		}
		out = append(out, f)
	}
	return out, nil
}
