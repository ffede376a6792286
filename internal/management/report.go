// ABOUTME: Operator reports for health, effective configuration, and the audit log
// ABOUTME: Rendered as JSON or YAML for the CLI; never written to the protocol stream

package management

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/kyhei/local-dev-insights/internal/db"
	"github.com/kyhei/local-dev-insights/internal/sysstats"
)

const timeLayout = "2006-01-02 15:04:05"

// Store is the slice of the database the reports read.
type Store interface {
	ListMemos(ctx context.Context) ([]db.Memo, error)
	GetAllSessions() ([]db.Session, error)
	GetSessionMessages(sessionID string) ([]db.Message, error)
}

// Renderer renders the effective configuration.
type Renderer interface {
	Render() ([]byte, error)
}

type Reporter struct {
	store  Store
	stats  sysstats.Provider
	config Renderer
}

func NewReporter(store Store, stats sysstats.Provider, config Renderer) *Reporter {
	return &Reporter{store: store, stats: stats, config: config}
}

type healthReport struct {
	Status        string  `json:"status"`
	Memos         int     `json:"memos"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	UsedMemoryMB  uint64  `json:"used_memory_mb"`
	TotalMemoryMB uint64  `json:"total_memory_mb"`
	StatsError    string  `json:"stats_error,omitempty"`
}

// Health reports store reachability and a host snapshot. A failing stats
// provider degrades the report instead of failing it.
func (r *Reporter) Health(ctx context.Context, w io.Writer) error {
	memos, err := r.store.ListMemos(ctx)
	if err != nil {
		return fmt.Errorf("failed to read memos: %w", err)
	}

	report := healthReport{Status: "healthy", Memos: len(memos)}

	snap, err := r.stats.Snapshot(ctx)
	if err != nil {
		report.Status = "degraded"
		report.StatsError = err.Error()
	} else {
		report.CPUPercent = snap.CPUPercent
		report.MemoryPercent = snap.MemoryPercent()
		report.UsedMemoryMB = snap.UsedMemoryBytes / 1024 / 1024
		report.TotalMemoryMB = snap.TotalMemoryBytes / 1024 / 1024
	}

	return writeJSON(w, report)
}

// Config writes the effective configuration as YAML.
func (r *Reporter) Config(w io.Writer) error {
	data, err := r.config.Render()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

type sessionView struct {
	ID               string  `json:"id"`
	WorkingDirectory string  `json:"workingDirectory"`
	CreatedAt        string  `json:"createdAt"`
	ClosedAt         *string `json:"closedAt,omitempty"`
	IsActive         bool    `json:"isActive"`
}

// Sessions lists every audit session, newest first.
func (r *Reporter) Sessions(w io.Writer) error {
	sessions, err := r.store.GetAllSessions()
	if err != nil {
		return err
	}

	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		var closedAt *string
		if s.ClosedAt != nil {
			formatted := s.ClosedAt.Format(timeLayout)
			closedAt = &formatted
		}

		views = append(views, sessionView{
			ID:               s.ID,
			WorkingDirectory: s.WorkingDirectory,
			CreatedAt:        s.CreatedAt.Format(timeLayout),
			ClosedAt:         closedAt,
			IsActive:         s.ClosedAt == nil,
		})
	}

	return writeJSON(w, views)
}

type messageView struct {
	ID          int64           `json:"id"`
	Direction   string          `json:"direction"`
	MessageType string          `json:"messageType,omitempty"`
	Method      string          `json:"method,omitempty"`
	JSONRPCID   json.RawMessage `json:"jsonrpcId,omitempty"`
	Timestamp   string          `json:"timestamp"`
	Raw         string          `json:"raw"`
}

// Messages lists the protocol lines recorded for one session in arrival order.
func (r *Reporter) Messages(w io.Writer, sessionID string) error {
	messages, err := r.store.GetSessionMessages(sessionID)
	if err != nil {
		return err
	}

	views := make([]messageView, 0, len(messages))
	for _, m := range messages {
		view := messageView{
			ID:          m.ID,
			Direction:   string(m.Direction),
			MessageType: m.MessageType,
			Method:      m.Method,
			Timestamp:   m.Timestamp.Format(timeLayout),
			Raw:         m.RawMessage,
		}
		if m.JSONRPCID != "" {
			view.JSONRPCID = json.RawMessage(m.JSONRPCID)
		}
		views = append(views, view)
	}

	return writeJSON(w, views)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
