package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/newthinker/memcycle/internal/core"
)

// Report wraps a run artifact with identity and timing metadata before it
// is archived.
type Report struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// Writer archives run reports to a backend under kind/date/id.json keys.
type Writer struct {
	backend Backend
}

// NewWriter creates a report Writer on the given backend.
func NewWriter(backend Backend) *Writer {
	return &Writer{backend: backend}
}

// Save marshals payload into a Report and archives it. The generated run
// ID is returned so callers can log and cross-reference it.
func (w *Writer) Save(ctx context.Context, kind string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", core.WrapError(core.ErrStorageFailed, fmt.Errorf("marshaling %s report: %w", kind, err))
	}

	report := Report{
		ID:        uuid.NewString(),
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
		Payload:   raw,
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", core.WrapError(core.ErrStorageFailed, err)
	}
	if err := w.backend.Put(ctx, reportKey(report), data); err != nil {
		return "", err
	}
	return report.ID, nil
}

// Load retrieves an archived report by key.
func (w *Writer) Load(ctx context.Context, key string) (*Report, error) {
	data, err := w.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("decoding report %s: %w", key, err))
	}
	return &report, nil
}

// ListKind returns the keys of all archived reports of the given kind.
func (w *Writer) ListKind(ctx context.Context, kind string) ([]string, error) {
	return w.backend.List(ctx, kind+"/")
}

func reportKey(r Report) string {
	return fmt.Sprintf("%s/%s/%s.json", r.Kind, r.CreatedAt.Format("2006-01-02"), r.ID)
}
