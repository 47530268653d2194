package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ds124wfegd/interpreter-booking/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSink_Record тестирует формат записи аудита
func TestSink_Record(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink(&buf)

	err := sink.Record(context.Background(), 1, "Admin", 42, []entity.Delta{
		{Kind: entity.DeltaStatus, Old: "pending", New: "assigned"},
		{Kind: entity.DeltaTranslator, New: "101"},
	})
	require.NoError(t, err)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "booking_updated", line["event"])
	assert.Equal(t, float64(1), line["actor_id"])
	assert.Equal(t, "Admin", line["actor"])
	assert.Equal(t, float64(42), line["job_id"])
	assert.Equal(t, float64(2), line["delta_count"])

	deltas, ok := line["deltas"].([]interface{})
	require.True(t, ok)
	require.Len(t, deltas, 2)
	assert.Equal(t, map[string]interface{}{"kind": "status", "old": "pending", "new": "assigned"}, deltas[0])
}

func TestSink_RecordSkips(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink(&buf)

	require.NoError(t, sink.Record(context.Background(), 1, "Admin", 42, nil))
	assert.Zero(t, buf.Len())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sink.Record(ctx, 1, "Admin", 42, []entity.Delta{{Kind: entity.DeltaComment, New: "x"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, buf.Len())
	assert.NoError(t, sink.Close())
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.log")

	for i := 0; i < 2; i++ {
		sink, err := OpenFile(path)
		require.NoError(t, err)
		require.NoError(t, sink.Record(context.Background(), 0, "system", int64(i+1), []entity.Delta{{Kind: entity.DeltaStatus, New: "timedout"}}))
		require.NoError(t, sink.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)
}
