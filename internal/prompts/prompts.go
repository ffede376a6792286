// ABOUTME: Prompt registry with templates built from live development environment data
// ABOUTME: analyze-health embeds a current CPU and memory snapshot in a single user message

package prompts

import (
	"context"
	"fmt"

	"github.com/kyhei/local-dev-insights/internal/errors"
	"github.com/kyhei/local-dev-insights/internal/sysstats"
	"github.com/mark3labs/mcp-go/mcp"
)

const AnalyzeHealth = "analyze-health"

// HandlerFunc renders one prompt.
type HandlerFunc func(ctx context.Context, args map[string]string) (*mcp.GetPromptResult, error)

type Registry struct {
	prompts  []mcp.Prompt
	handlers map[string]HandlerFunc
}

func NewRegistry(stats sysstats.Provider) *Registry {
	r := &Registry{handlers: make(map[string]HandlerFunc)}

	r.add(mcp.NewPrompt(AnalyzeHealth,
		mcp.WithPromptDescription("Analyze system health based on current stats"),
	), analyzeHealth(stats))

	return r
}

func (r *Registry) add(prompt mcp.Prompt, handler HandlerFunc) {
	r.prompts = append(r.prompts, prompt)
	r.handlers[prompt.Name] = handler
}

// List returns the prompt descriptors in registration order.
func (r *Registry) List() []mcp.Prompt {
	return r.prompts
}

// Get renders the named prompt.
func (r *Registry) Get(ctx context.Context, name string, args map[string]string) (*mcp.GetPromptResult, error) {
	handler, ok := r.handlers[name]
	if !ok {
		return nil, errors.NewNotFoundError(errors.KindPrompt, name)
	}
	return handler(ctx, args)
}

func analyzeHealth(stats sysstats.Provider) HandlerFunc {
	return func(ctx context.Context, _ map[string]string) (*mcp.GetPromptResult, error) {
		snap, err := stats.Snapshot(ctx)
		if err != nil {
			return nil, errors.NewInvocationError(AnalyzeHealth, err)
		}

		text := fmt.Sprintf("Here are the current system statistics:\n\n%s\n\n"+
			"Please analyze if the development environment is healthy or if there are any resource constraints I should be aware of.",
			snap.Summary())

		return mcp.NewGetPromptResult("Analyze system health", []mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
		}), nil
	}
}
