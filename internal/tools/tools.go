// ABOUTME: Tool registry exposing memo, system stats, and file listing tools
// ABOUTME: Descriptors are fixed at construction; handlers delegate to collaborators

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/kyhei/local-dev-insights/internal/errors"
	"github.com/kyhei/local-dev-insights/internal/sysstats"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	AddMemo              = "add_memo"
	GetSystemStats       = "get_system_stats"
	ListFilesByExtension = "list_files_by_extension"
)

// MemoStore persists memos.
type MemoStore interface {
	AddMemo(ctx context.Context, content string, tags []string) (int64, error)
}

// FileIndex enumerates project files.
type FileIndex interface {
	FilesWithExtension(ext string) ([]string, error)
}

// HandlerFunc runs one tool call.
type HandlerFunc func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Registry maps tool names to handlers.
type Registry struct {
	tools    []mcp.Tool
	handlers map[string]HandlerFunc
}

func NewRegistry(store MemoStore, stats sysstats.Provider, files FileIndex) *Registry {
	r := &Registry{handlers: make(map[string]HandlerFunc)}

	r.add(addMemoTool(), addMemoHandler(store))
	r.add(systemStatsTool(), systemStatsHandler(stats))
	r.add(listFilesTool(), listFilesHandler(files))

	return r
}

func (r *Registry) add(tool mcp.Tool, handler HandlerFunc) {
	r.tools = append(r.tools, tool)
	r.handlers[tool.Name] = handler
}

// List returns the tool descriptors in registration order.
func (r *Registry) List() []mcp.Tool {
	return r.tools
}

// Call invokes a tool by name.
func (r *Registry) Call(ctx context.Context, name string, arguments map[string]any) (*mcp.CallToolResult, error) {
	handler, ok := r.handlers[name]
	if !ok {
		return nil, errors.NewNotFoundError(errors.KindTool, name)
	}

	return handler(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: arguments,
		},
	})
}

func addMemoTool() mcp.Tool {
	return mcp.NewTool(
		AddMemo,
		mcp.WithDescription("Add a new development memo to the database"),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Content of the memo"),
		),
		mcp.WithArray("tags",
			mcp.Description("Tags for the memo"),
			mcp.Items(map[string]any{"type": "string"}),
		),
	)
}

// addMemoInput keeps both fields loosely typed: a non-string content is
// reported as missing and a malformed tags value is ignored.
type addMemoInput struct {
	Content any `json:"content"`
	Tags    any `json:"tags"`
}

func addMemoHandler(store MemoStore) HandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var input addMemoInput
		if err := request.BindArguments(&input); err != nil {
			return nil, errors.NewInvalidParamsError(err)
		}

		content, ok := input.Content.(string)
		if !ok {
			return nil, errors.NewMissingParamError("Missing content")
		}

		id, err := store.AddMemo(ctx, content, stringItems(input.Tags))
		if err != nil {
			return nil, errors.NewInvocationError(AddMemo, err)
		}

		return mcp.NewToolResultText(fmt.Sprintf("Memo added successfully with ID: %d", id)), nil
	}
}

// stringItems keeps the string entries of a JSON array and drops the rest.
func stringItems(v any) []string {
	items, _ := v.([]any)
	tags := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			tags = append(tags, s)
		}
	}
	return tags
}

func systemStatsTool() mcp.Tool {
	return mcp.NewTool(
		GetSystemStats,
		mcp.WithDescription("Get current system statistics (CPU, Memory)"),
	)
}

func systemStatsHandler(stats sysstats.Provider) HandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap, err := stats.Snapshot(ctx)
		if err != nil {
			return nil, errors.NewInvocationError(GetSystemStats, err)
		}
		return mcp.NewToolResultText(snap.Summary()), nil
	}
}

func listFilesTool() mcp.Tool {
	return mcp.NewTool(
		ListFilesByExtension,
		mcp.WithDescription("Recursively list files with a specific extension in the current directory"),
		mcp.WithString("extension",
			mcp.Required(),
			mcp.Description("File extension (e.g., 'rs', 'md')"),
		),
	)
}

type listFilesInput struct {
	Extension any `json:"extension"`
}

func listFilesHandler(files FileIndex) HandlerFunc {
	return func(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var input listFilesInput
		if err := request.BindArguments(&input); err != nil {
			return nil, errors.NewInvalidParamsError(err)
		}

		extension, ok := input.Extension.(string)
		if !ok {
			return nil, errors.NewMissingParamError("Missing extension")
		}

		found, err := files.FilesWithExtension(extension)
		if err != nil {
			return nil, errors.NewInvocationError(ListFilesByExtension, err)
		}

		if len(found) == 0 {
			return mcp.NewToolResultText("No files found."), nil
		}
		return mcp.NewToolResultText(strings.Join(found, "\n")), nil
	}
}
