// ABOUTME: Resource registry serving stored memos, the project .env file, and effective settings
// ABOUTME: Each resource is addressed by a fixed URI and read as a single text content block

package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kyhei/local-dev-insights/internal/db"
	"github.com/kyhei/local-dev-insights/internal/errors"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/afero"
)

const (
	MemosURI    = "db://memos"
	EnvVarsURI  = "env://vars"
	SettingsURI = "config://settings"
)

const createdAtLayout = "2006-01-02 15:04:05"

// MemoLister reads stored memos, newest first.
type MemoLister interface {
	ListMemos(ctx context.Context) ([]db.Memo, error)
}

// Renderer renders the effective configuration.
type Renderer interface {
	Render() ([]byte, error)
}

// ReaderFunc produces the text body of one resource.
type ReaderFunc func(ctx context.Context) (string, error)

type Registry struct {
	resources []mcp.Resource
	readers   map[string]ReaderFunc
}

// NewRegistry builds the resource set. envFile is read through fsys so it can
// be served from an in-memory filesystem in tests.
func NewRegistry(memos MemoLister, fsys afero.Fs, envFile string, settings Renderer) *Registry {
	r := &Registry{readers: make(map[string]ReaderFunc)}

	r.add(mcp.NewResource(MemosURI, "Development Memos",
		mcp.WithResourceDescription("List of all development memos stored in the database"),
		mcp.WithMIMEType("application/json"),
	), memosReader(memos))

	r.add(mcp.NewResource(EnvVarsURI, "Environment Variables",
		mcp.WithResourceDescription("Environment variables from .env file"),
		mcp.WithMIMEType("text/plain"),
	), envReader(fsys, envFile))

	r.add(mcp.NewResource(SettingsURI, "Server Settings",
		mcp.WithResourceDescription("Effective server configuration"),
		mcp.WithMIMEType("application/yaml"),
	), settingsReader(settings))

	return r
}

func (r *Registry) add(resource mcp.Resource, reader ReaderFunc) {
	r.resources = append(r.resources, resource)
	r.readers[resource.URI] = reader
}

// List returns the resource descriptors in registration order.
func (r *Registry) List() []mcp.Resource {
	return r.resources
}

// Read returns the contents of the resource at uri.
func (r *Registry) Read(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	reader, ok := r.readers[uri]
	if !ok {
		return nil, errors.NewNotFoundError(errors.KindResource, uri)
	}

	text, err := reader(ctx)
	if err != nil {
		return nil, errors.NewInvocationError(uri, err)
	}

	return &mcp.ReadResourceResult{
		Contents: []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      uri,
				MIMEType: r.mimeType(uri),
				Text:     text,
			},
		},
	}, nil
}

func (r *Registry) mimeType(uri string) string {
	for _, res := range r.resources {
		if res.URI == uri {
			return res.MIMEType
		}
	}
	return ""
}

// memoView is the wire shape of a memo. Tags stay a JSON-encoded string and
// created_at uses the sqlite timestamp layout so existing clients keep parsing it.
type memoView struct {
	ID        int64  `json:"id"`
	Content   string `json:"content"`
	Tags      string `json:"tags"`
	CreatedAt string `json:"created_at"`
}

func memosReader(memos MemoLister) ReaderFunc {
	return func(ctx context.Context) (string, error) {
		list, err := memos.ListMemos(ctx)
		if err != nil {
			return "", err
		}

		views := make([]memoView, 0, len(list))
		for _, m := range list {
			tags := m.Tags
			if tags == nil {
				tags = []string{}
			}
			encoded, err := json.Marshal(tags)
			if err != nil {
				return "", fmt.Errorf("failed to encode tags for memo %d: %w", m.ID, err)
			}
			views = append(views, memoView{
				ID:        m.ID,
				Content:   m.Content,
				Tags:      string(encoded),
				CreatedAt: m.CreatedAt.UTC().Format(createdAtLayout),
			})
		}

		data, err := json.Marshal(views)
		if err != nil {
			return "", fmt.Errorf("failed to encode memos: %w", err)
		}
		return string(data), nil
	}
}

// envReader returns the raw .env file, or an empty body when there is none.
func envReader(fsys afero.Fs, envFile string) ReaderFunc {
	return func(context.Context) (string, error) {
		data, err := afero.ReadFile(fsys, envFile)
		if err != nil {
			if os.IsNotExist(err) {
				return "", nil
			}
			return "", fmt.Errorf("failed to read env file: %w", err)
		}
		return string(data), nil
	}
}

func settingsReader(settings Renderer) ReaderFunc {
	return func(context.Context) (string, error) {
		data, err := settings.Render()
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
