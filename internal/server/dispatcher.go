// ABOUTME: Method dispatch for the MCP stdio protocol
// ABOUTME: A fixed route table maps each method to a handler that either replies or stays silent

package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kyhei/local-dev-insights/internal/errors"
	"github.com/kyhei/local-dev-insights/internal/jsonrpc"
	"github.com/kyhei/local-dev-insights/internal/logger"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	MethodInitialize    = "initialize"
	MethodPing          = "ping"
	MethodResourcesList = "resources/list"
	MethodResourcesRead = "resources/read"
	MethodToolsList     = "tools/list"
	MethodToolsCall     = "tools/call"
	MethodPromptsList   = "prompts/list"
	MethodPromptsGet    = "prompts/get"
	MethodInitialized   = "notifications/initialized"
	MethodCancelled     = "notifications/cancelled"
)

type ToolProvider interface {
	List() []mcp.Tool
	Call(ctx context.Context, name string, arguments map[string]any) (*mcp.CallToolResult, error)
}

type ResourceProvider interface {
	List() []mcp.Resource
	Read(ctx context.Context, uri string) (*mcp.ReadResourceResult, error)
}

type PromptProvider interface {
	List() []mcp.Prompt
	Get(ctx context.Context, name string, args map[string]string) (*mcp.GetPromptResult, error)
}

// Info is the static identity reported by initialize.
type Info struct {
	Name            string
	Version         string
	ProtocolVersion string
}

type routeKind int

const (
	reply routeKind = iota
	noReply
)

type handlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

type route struct {
	kind   routeKind
	handle handlerFunc
}

type Dispatcher struct {
	info      Info
	tools     ToolProvider
	resources ResourceProvider
	prompts   PromptProvider

	routes      map[string]route
	initialized bool
}

func NewDispatcher(info Info, tools ToolProvider, resources ResourceProvider, prompts PromptProvider) *Dispatcher {
	d := &Dispatcher{
		info:      info,
		tools:     tools,
		resources: resources,
		prompts:   prompts,
	}

	d.routes = map[string]route{
		MethodInitialize:    {reply, d.handleInitialize},
		MethodPing:          {reply, d.handlePing},
		MethodResourcesList: {reply, d.handleResourcesList},
		MethodResourcesRead: {reply, d.handleResourcesRead},
		MethodToolsList:     {reply, d.handleToolsList},
		MethodToolsCall:     {reply, d.handleToolsCall},
		MethodPromptsList:   {reply, d.handlePromptsList},
		MethodPromptsGet:    {reply, d.handlePromptsGet},
		MethodInitialized:   {noReply, d.handleInitialized},
		MethodCancelled:     {noReply, d.handleCancelled},
	}

	return d
}

// Initialized reports whether the client has completed the lifecycle handshake.
func (d *Dispatcher) Initialized() bool {
	return d.initialized
}

// Dispatch handles one request. A nil response means nothing is written back:
// notifications never get a reply, whether or not the method is known.
func (d *Dispatcher) Dispatch(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	rt, ok := d.routes[req.Method]
	if !ok {
		if req.IsNotification() {
			logger.Debug("Dropping unknown notification %s", req.Method)
			return nil
		}
		logger.Warn("Unknown method %s (id=%s)", req.Method, string(req.ID))
		return jsonrpc.NewError(req.ID, errors.NewMethodNotFoundError(req.Method))
	}

	result, err := rt.handle(ctx, req.Params)

	if rt.kind == noReply || req.IsNotification() {
		if err != nil {
			logger.Warn("Notification %s failed: %v", req.Method, err)
		}
		return nil
	}

	if err != nil {
		logger.Debug("Request %s (id=%s) failed: %v", req.Method, string(req.ID), err)
		return jsonrpc.NewError(req.ID, errors.ToJSONRPCError(err))
	}

	resp, err := jsonrpc.NewResult(req.ID, result)
	if err != nil {
		logger.Error("Failed to encode %s result: %v", req.Method, err)
		return jsonrpc.NewError(req.ID, errors.NewInternalError(err.Error()))
	}
	return resp
}

type capabilities struct {
	Resources struct{} `json:"resources"`
	Tools     struct{} `json:"tools"`
	Prompts   struct{} `json:"prompts"`
}

type initializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    capabilities       `json:"capabilities"`
	ServerInfo      mcp.Implementation `json:"serverInfo"`
}

func (d *Dispatcher) handleInitialize(context.Context, json.RawMessage) (interface{}, error) {
	return initializeResult{
		ProtocolVersion: d.info.ProtocolVersion,
		ServerInfo: mcp.Implementation{
			Name:    d.info.Name,
			Version: d.info.Version,
		},
	}, nil
}

func (d *Dispatcher) handlePing(context.Context, json.RawMessage) (interface{}, error) {
	return struct{}{}, nil
}

func (d *Dispatcher) handleResourcesList(context.Context, json.RawMessage) (interface{}, error) {
	return mcp.ListResourcesResult{Resources: d.resources.List()}, nil
}

func (d *Dispatcher) handleResourcesRead(ctx context.Context, params json.RawMessage) (interface{}, error) {
	if isAbsent(params) {
		return nil, errors.NewMissingParamError("Missing params")
	}

	var p struct {
		URI any `json:"uri"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, errors.NewInvalidParamsError(err)
	}

	uri, ok := p.URI.(string)
	if !ok {
		return nil, errors.NewMissingParamError("Missing uri parameter")
	}

	return d.resources.Read(ctx, uri)
}

func (d *Dispatcher) handleToolsList(context.Context, json.RawMessage) (interface{}, error) {
	return mcp.ListToolsResult{Tools: d.tools.List()}, nil
}

func (d *Dispatcher) handleToolsCall(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		Name      any            `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	name, ok := p.Name.(string)
	if !ok {
		return nil, errors.NewMissingParamError("Missing name parameter")
	}

	return d.tools.Call(ctx, name, p.Arguments)
}

func (d *Dispatcher) handlePromptsList(context.Context, json.RawMessage) (interface{}, error) {
	return mcp.ListPromptsResult{Prompts: d.prompts.List()}, nil
}

func (d *Dispatcher) handlePromptsGet(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		Name      any               `json:"name"`
		Arguments map[string]string `json:"arguments"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	name, ok := p.Name.(string)
	if !ok {
		return nil, errors.NewMissingParamError("Missing name parameter")
	}

	return d.prompts.Get(ctx, name, p.Arguments)
}

func (d *Dispatcher) handleInitialized(context.Context, json.RawMessage) (interface{}, error) {
	d.initialized = true
	logger.Info("Client initialized")
	return nil, nil
}

func (d *Dispatcher) handleCancelled(_ context.Context, params json.RawMessage) (interface{}, error) {
	var p struct {
		RequestID json.RawMessage `json:"requestId"`
		Reason    string          `json:"reason"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	// Requests are handled one at a time, so anything cancelled has already been answered.
	logger.Debug("Client cancelled request %s: %s", string(p.RequestID), p.Reason)
	return nil, nil
}

func isAbsent(params json.RawMessage) bool {
	return len(params) == 0 || string(params) == "null"
}

// decodeParams treats absent params as an empty object.
func decodeParams(params json.RawMessage, v interface{}) error {
	if isAbsent(params) {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return errors.NewInvalidParamsError(fmt.Errorf("expected an object: %w", err))
	}
	return nil
}
