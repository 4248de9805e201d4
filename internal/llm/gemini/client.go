package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"bloodwork-backend/internal/llm"
	"bloodwork-backend/internal/shared/telemetry"
)

const defaultTimeout = 120 * time.Second

const systemInstruction = "You are a medical AI assistant specialized in analyzing blood work results. Respond with a single JSON object and nothing else."

type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client implements llm.Client on Vertex AI Gemini models.
type Client struct {
	model     string
	timeout   time.Duration
	generator contentGenerator
	closer    func() error
}

// New creates a Vertex AI backed client for the given project/region/model.
// Each Complete call is bounded by timeout, or two minutes when it is zero.
func New(ctx context.Context, projectID, region, model string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("GCP_PROJECT_ID is required for gemini")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for gemini")
	}
	base, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	gm := base.GenerativeModel(model)
	gm.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}
	gm.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	}

	c := newWithGenerator(model, gm, timeout)
	c.closer = base.Close
	return c, nil
}

func newWithGenerator(model string, g contentGenerator, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{model: model, timeout: timeout, generator: g}
}

// Close releases the underlying Vertex AI client.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

// Complete sends the prompt and returns the joined text of the first candidate.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.generator.GenerateContent(callCtx, genai.Text(prompt))
	if err != nil {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", llm.Transient("timeout", err)
		}
		return "", classify(err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", llm.Permanent("malformed_response", fmt.Errorf("gemini response has no candidates"))
	}

	cand := resp.Candidates[0]
	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}

	fields := map[string]any{
		"run_id":        llm.RunIDFromContext(ctx),
		"model":         c.model,
		"finish_reason": cand.FinishReason.String(),
	}
	if resp.UsageMetadata != nil {
		fields["prompt_tokens"] = resp.UsageMetadata.PromptTokenCount
		fields["completion_tokens"] = resp.UsageMetadata.CandidatesTokenCount
		fields["total_tokens"] = resp.UsageMetadata.TotalTokenCount
	}
	telemetry.Info("llm.response", fields)

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", llm.Permanent("empty_response", nil)
	}
	return out, nil
}

func classify(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return llm.Permanent("blocked", err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return llm.FromHTTPStatus(gerr.Code, err)
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted, codes.Internal:
			return llm.Transient(fmt.Sprintf("grpc_%s", strings.ToLower(st.Code().String())), err)
		default:
			return llm.Permanent(fmt.Sprintf("grpc_%s", strings.ToLower(st.Code().String())), err)
		}
	}
	return llm.Classify(err)
}

var _ llm.Client = (*Client)(nil)
