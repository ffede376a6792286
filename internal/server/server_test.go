package server

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/kyhei/local-dev-insights/internal/db"
	"github.com/kyhei/local-dev-insights/internal/fsindex"
	"github.com/kyhei/local-dev-insights/internal/jsonrpc"
	"github.com/kyhei/local-dev-insights/internal/prompts"
	"github.com/kyhei/local-dev-insights/internal/resources"
	"github.com/kyhei/local-dev-insights/internal/sysstats"
	"github.com/kyhei/local-dev-insights/internal/tools"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStats struct{}

func (fakeStats) Snapshot(context.Context) (sysstats.Snapshot, error) {
	return sysstats.Snapshot{CPUPercent: 10, UsedMemoryBytes: 1 << 30, TotalMemoryBytes: 4 << 30}, nil
}

type staticRenderer string

func (r staticRenderer) Render() ([]byte, error) {
	return []byte(r), nil
}

type recordingAuditor struct {
	inbound  []string
	outbound []string
}

func (a *recordingAuditor) Inbound(line []byte)  { a.inbound = append(a.inbound, string(line)) }
func (a *recordingAuditor) Outbound(line []byte) { a.outbound = append(a.outbound, string(line)) }

type harness struct {
	store      *db.DB
	dispatcher *Dispatcher
	auditor    *recordingAuditor
	server     *Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store, err := db.Open(filepath.Join(t.TempDir(), "insights.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/.env", []byte("FOO=bar\n"), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "/cmd/main.go", []byte("package main"), 0o644))

	dispatcher := NewDispatcher(
		Info{Name: "local-dev-insights", Version: "0.1.0", ProtocolVersion: "2024-11-05"},
		tools.NewRegistry(store, fakeStats{}, fsindex.NewWithFs(fsys)),
		resources.NewRegistry(store, fsys, "/.env", staticRenderer("log:\n  verbose: false\n")),
		prompts.NewRegistry(fakeStats{}),
	)
	auditor := &recordingAuditor{}

	return &harness{
		store:      store,
		dispatcher: dispatcher,
		auditor:    auditor,
		server:     NewServer(dispatcher, auditor),
	}
}

// run feeds lines to the server and returns each response line.
func (h *harness) run(t *testing.T, lines ...string) []string {
	t.Helper()

	var out bytes.Buffer
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	require.NoError(t, h.server.Serve(context.Background(), in, &out))

	text := strings.TrimSuffix(out.String(), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *jsonrpc.Error  `json:"error"`
}

func decode(t *testing.T, line string) wireResponse {
	t.Helper()
	var resp wireResponse
	require.NoError(t, json.Unmarshal([]byte(line), &resp))
	assert.Equal(t, "2.0", resp.JSONRPC)
	return resp
}

func TestServe_Ping(t *testing.T) {
	out := newHarness(t).run(t, `{"jsonrpc":"2.0","id":1,"method":"ping"}`)

	require.Len(t, out, 1)
	assert.Equal(t, `{"jsonrpc":"2.0","id":1,"result":{}}`, out[0])
}

func TestServe_EchoesIDType(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{"integer", `7`},
		{"negative float", `-1.5`},
		{"string", `"req-7"`},
		{"numeric string", `"7"`},
		{"null", `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := newHarness(t).run(t, `{"jsonrpc":"2.0","id":`+tt.id+`,"method":"ping"}`)

			require.Len(t, out, 1)
			assert.Equal(t, `{"jsonrpc":"2.0","id":`+tt.id+`,"result":{}}`, out[0])
		})
	}
}

func TestServe_NotificationsNeverReply(t *testing.T) {
	h := newHarness(t)

	out := h.run(t,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","method":"notifications/cancelled","params":{"requestId":3,"reason":"timeout"}}`,
		`{"jsonrpc":"2.0","method":"ping"}`,
		`{"jsonrpc":"2.0","method":"no/such/method"}`,
		`{"jsonrpc":"2.0","method":"tools/call","params":{"name":"missing"}}`,
	)

	assert.Empty(t, out)
	assert.True(t, h.dispatcher.Initialized())
}

func TestServe_InitializedWithIDStillSilent(t *testing.T) {
	h := newHarness(t)

	out := h.run(t, `{"jsonrpc":"2.0","id":9,"method":"notifications/initialized"}`)

	assert.Empty(t, out)
	assert.True(t, h.dispatcher.Initialized())
}

func TestServe_KnownMethodAsNotificationRuns(t *testing.T) {
	h := newHarness(t)

	out := h.run(t, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"add_memo","arguments":{"content":"quiet"}}}`)
	assert.Empty(t, out)

	memos, err := h.store.ListMemos(context.Background())
	require.NoError(t, err)
	require.Len(t, memos, 1)
	assert.Equal(t, "quiet", memos[0].Content)
}

func TestServe_MalformedLinesAreSkipped(t *testing.T) {
	out := newHarness(t).run(t,
		`not valid json`,
		`{"jsonrpc":"2.0","id":1,"method":`,
		`[1,2,3]`,
		`{"jsonrpc":"1.0","id":2,"method":"ping"}`,
		`{"jsonrpc":"2.0","id":3}`,
		`{"jsonrpc":"2.0","id":{"a":1},"method":"ping"}`,
		``,
		`   `,
		`{"jsonrpc":"2.0","id":4,"method":"ping"}`,
	)

	require.Len(t, out, 1)
	assert.Equal(t, `{"jsonrpc":"2.0","id":4,"result":{}}`, out[0])
}

func TestServe_UnknownMethod(t *testing.T) {
	out := newHarness(t).run(t, `{"jsonrpc":"2.0","id":"abc","method":"nope"}`)

	require.Len(t, out, 1)
	assert.Equal(t, `{"jsonrpc":"2.0","id":"abc","error":{"code":-32601,"message":"Method not found: nope"}}`, out[0])
}

func TestServe_Initialize(t *testing.T) {
	out := newHarness(t).run(t, `{"jsonrpc":"2.0","id":0,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{}}}`)
	require.Len(t, out, 1)

	resp := decode(t, out[0])
	require.Nil(t, resp.Error)

	var result struct {
		ProtocolVersion string                     `json:"protocolVersion"`
		Capabilities    map[string]json.RawMessage `json:"capabilities"`
		ServerInfo      map[string]string          `json:"serverInfo"`
	}
	require.NoError(t, json.Unmarshal(resp.Result, &result))

	assert.Equal(t, "2024-11-05", result.ProtocolVersion)
	assert.Len(t, result.Capabilities, 3)
	for _, key := range []string{"resources", "tools", "prompts"} {
		assert.JSONEq(t, `{}`, string(result.Capabilities[key]), key)
	}
	assert.Equal(t, "local-dev-insights", result.ServerInfo["name"])
	assert.Equal(t, "0.1.0", result.ServerInfo["version"])
}

func TestServe_Lists(t *testing.T) {
	out := newHarness(t).run(t,
		`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":2,"method":"resources/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"prompts/list"}`,
	)
	require.Len(t, out, 3)

	var toolsList struct {
		Tools []struct {
			Name        string         `json:"name"`
			InputSchema map[string]any `json:"inputSchema"`
		} `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(decode(t, out[0]).Result, &toolsList))
	require.Len(t, toolsList.Tools, 3)
	assert.Equal(t, "add_memo", toolsList.Tools[0].Name)
	assert.Equal(t, "object", toolsList.Tools[0].InputSchema["type"])

	var resourcesList struct {
		Resources []struct {
			URI      string `json:"uri"`
			MIMEType string `json:"mimeType"`
		} `json:"resources"`
	}
	require.NoError(t, json.Unmarshal(decode(t, out[1]).Result, &resourcesList))
	require.Len(t, resourcesList.Resources, 3)
	assert.Equal(t, "db://memos", resourcesList.Resources[0].URI)
	assert.Equal(t, "application/json", resourcesList.Resources[0].MIMEType)

	var promptsList struct {
		Prompts []struct {
			Name string `json:"name"`
		} `json:"prompts"`
	}
	require.NoError(t, json.Unmarshal(decode(t, out[2]).Result, &promptsList))
	require.Len(t, promptsList.Prompts, 1)
	assert.Equal(t, "analyze-health", promptsList.Prompts[0].Name)
}

func TestServe_AddMemoThenReadMemos(t *testing.T) {
	h := newHarness(t)

	out := h.run(t, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"add_memo","arguments":{"content":"test","tags":["a","b"]}}}`)
	require.Len(t, out, 1)

	var callResult struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(decode(t, out[0]).Result, &callResult))
	require.Len(t, callResult.Content, 1)
	assert.Equal(t, "text", callResult.Content[0].Type)

	const prefix = "Memo added successfully with ID: "
	require.True(t, strings.HasPrefix(callResult.Content[0].Text, prefix), callResult.Content[0].Text)
	id, err := strconv.ParseInt(strings.TrimPrefix(callResult.Content[0].Text, prefix), 10, 64)
	require.NoError(t, err)

	out = h.run(t, `{"jsonrpc":"2.0","id":2,"method":"resources/read","params":{"uri":"db://memos"}}`)
	require.Len(t, out, 1)

	var readResult struct {
		Contents []struct {
			URI      string `json:"uri"`
			MIMEType string `json:"mimeType"`
			Text     string `json:"text"`
		} `json:"contents"`
	}
	require.NoError(t, json.Unmarshal(decode(t, out[0]).Result, &readResult))
	require.Len(t, readResult.Contents, 1)
	assert.Equal(t, "db://memos", readResult.Contents[0].URI)
	assert.Equal(t, "application/json", readResult.Contents[0].MIMEType)

	var memos []struct {
		ID        int64  `json:"id"`
		Content   string `json:"content"`
		Tags      string `json:"tags"`
		CreatedAt string `json:"created_at"`
	}
	require.NoError(t, json.Unmarshal([]byte(readResult.Contents[0].Text), &memos))

	var found bool
	for _, m := range memos {
		if m.ID != id {
			continue
		}
		found = true
		assert.Equal(t, "test", m.Content)

		var tags []string
		require.NoError(t, json.Unmarshal([]byte(m.Tags), &tags))
		assert.Equal(t, []string{"a", "b"}, tags)
		assert.NotEmpty(t, m.CreatedAt)
	}
	assert.True(t, found, "memo %d not in db://memos", id)
}

func TestServe_InvalidParamsErrors(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		message string
	}{
		{"unknown tool", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"nope"}}`, "Tool not found: nope"},
		{"unknown resource", `{"jsonrpc":"2.0","id":1,"method":"resources/read","params":{"uri":"db://nope"}}`, "Resource not found: db://nope"},
		{"unknown prompt", `{"jsonrpc":"2.0","id":1,"method":"prompts/get","params":{"name":"nope"}}`, "Prompt not found: nope"},
		{"missing resource params", `{"jsonrpc":"2.0","id":1,"method":"resources/read"}`, "Missing params"},
		{"missing uri", `{"jsonrpc":"2.0","id":1,"method":"resources/read","params":{}}`, "Missing uri parameter"},
		{"missing tool name", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{}}`, "Missing name parameter"},
		{"missing prompt name", `{"jsonrpc":"2.0","id":1,"method":"prompts/get"}`, "Missing name parameter"},
		{"missing memo content", `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"add_memo","arguments":{}}}`, "Missing content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := newHarness(t).run(t, tt.line)
			require.Len(t, out, 1)

			resp := decode(t, out[0])
			assert.Equal(t, `1`, string(resp.ID))
			assert.Nil(t, resp.Result)
			require.NotNil(t, resp.Error)
			assert.Equal(t, jsonrpc.InvalidParams, resp.Error.Code)
			assert.Equal(t, tt.message, resp.Error.Message)
			assert.Nil(t, resp.Error.Data)
		})
	}
}

func TestServe_ParamsOfWrongShape(t *testing.T) {
	out := newHarness(t).run(t, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":["add_memo"]}`)
	require.Len(t, out, 1)

	resp := decode(t, out[0])
	require.NotNil(t, resp.Error)
	assert.Equal(t, jsonrpc.InvalidParams, resp.Error.Code)
	assert.True(t, strings.HasPrefix(resp.Error.Message, "Invalid params: "), resp.Error.Message)
}

func TestServe_ReadEnvAndSettings(t *testing.T) {
	out := newHarness(t).run(t,
		`{"jsonrpc":"2.0","id":1,"method":"resources/read","params":{"uri":"env://vars"}}`,
		`{"jsonrpc":"2.0","id":2,"method":"resources/read","params":{"uri":"config://settings"}}`,
	)
	require.Len(t, out, 2)

	var env, settings struct {
		Contents []struct {
			Text string `json:"text"`
		} `json:"contents"`
	}
	require.NoError(t, json.Unmarshal(decode(t, out[0]).Result, &env))
	require.NoError(t, json.Unmarshal(decode(t, out[1]).Result, &settings))
	assert.Equal(t, "FOO=bar\n", env.Contents[0].Text)
	assert.Equal(t, "log:\n  verbose: false\n", settings.Contents[0].Text)
}

func TestServe_PromptsGet(t *testing.T) {
	out := newHarness(t).run(t, `{"jsonrpc":"2.0","id":1,"method":"prompts/get","params":{"name":"analyze-health"}}`)
	require.Len(t, out, 1)

	var result struct {
		Description string `json:"description"`
		Messages    []struct {
			Role    string `json:"role"`
			Content struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(decode(t, out[0]).Result, &result))

	assert.Equal(t, "Analyze system health", result.Description)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "user", result.Messages[0].Role)
	assert.Equal(t, "text", result.Messages[0].Content.Type)
	assert.Contains(t, result.Messages[0].Content.Text, "CPU Usage: 10.00%")
}

func TestServe_ListFilesTool(t *testing.T) {
	out := newHarness(t).run(t, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"list_files_by_extension","arguments":{"extension":"go"}}}`)
	require.Len(t, out, 1)
	assert.Contains(t, out[0], `"text":"cmd/main.go"`)
}

func TestServe_FinalLineWithoutNewline(t *testing.T) {
	h := newHarness(t)

	var out bytes.Buffer
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n" + `{"jsonrpc":"2.0","id":2,"method":"ping"}`)
	require.NoError(t, h.server.Serve(context.Background(), in, &out))

	assert.Equal(t,
		`{"jsonrpc":"2.0","id":1,"result":{}}`+"\n"+`{"jsonrpc":"2.0","id":2,"result":{}}`+"\n",
		out.String())
}

func TestServe_LongLine(t *testing.T) {
	content := strings.Repeat("x", 256*1024)
	out := newHarness(t).run(t, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"add_memo","arguments":{"content":"`+content+`"}}}`)

	require.Len(t, out, 1)
	assert.Nil(t, decode(t, out[0]).Error)
}

func TestServe_Auditor(t *testing.T) {
	h := newHarness(t)

	h.run(t,
		`{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		`garbage`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
	)

	assert.Equal(t, []string{
		`{"jsonrpc":"2.0","id":1,"method":"ping"}`,
		`garbage`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
	}, h.auditor.inbound)
	assert.Equal(t, []string{`{"jsonrpc":"2.0","id":1,"result":{}}`}, h.auditor.outbound)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, stderrors.New("broken pipe")
}

func TestServe_WriteFailureIsFatal(t *testing.T) {
	h := newHarness(t)

	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n" + `{"jsonrpc":"2.0","id":2,"method":"ping"}` + "\n")
	err := h.server.Serve(context.Background(), in, failingWriter{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, stderrors.New("bad file descriptor")
}

func TestServe_ReadFailureIsFatal(t *testing.T) {
	err := newHarness(t).server.Serve(context.Background(), failingReader{}, io.Discard)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad file descriptor")
}

func TestServe_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := newHarness(t).server.Serve(ctx, strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n"), &out)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out.String())
}

func TestServe_EmptyInput(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, newHarness(t).server.Serve(context.Background(), strings.NewReader(""), &out))
	assert.Empty(t, out.String())
}
