package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/cfgregistry/internal/model"
)

type recordingPublisher struct {
	topics []string
	events []any
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event any) error {
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func sampleEntry() *model.ConfigurationEntry {
	return &model.ConfigurationEntry{
		ID:              3,
		ProviderNID:     model.ProviderNIDMTA,
		ProviderID:      "m:db",
		ProviderVersion: "1.0.0",
		Target:          model.Target{Org: "org-1", Space: "space-1"},
		ContentID:       "key-1",
	}
}

func TestEntryIdentifiers(t *testing.T) {
	ids := EntryIdentifiers(sampleEntry())
	require.Equal(t, "m:db", ids["provider_id"])
	require.Equal(t, "org-1/space-1", ids["provider_target"])
	require.Equal(t, "key-1", ids["content_id"])
	require.Equal(t, "3", ids["id"])

	e := sampleEntry()
	e.ContentID = ""
	_, ok := EntryIdentifiers(e)["content_id"]
	require.False(t, ok)
}

func TestSink_RecordsDeletions(t *testing.T) {
	mem := &MemoryWriter{}
	sink := NewSink(mem)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sink.now = func() time.Time { return fixed }

	ctx := context.Background()
	sink.EntryDeleted(ctx, "guid-1", sampleEntry())
	sink.SubscriptionDeleted(ctx, "guid-1", &model.ConfigurationSubscription{ID: 9, MTAID: "c", AppName: "web"})
	sink.SpaceCleared(ctx, "guid-1", model.KindEntry, 4)

	require.Len(t, mem.Records, 3)
	require.Equal(t, model.KindEntry, mem.Records[0].Object)
	require.Equal(t, ActionDelete, mem.Records[1].Action)
	require.Equal(t, "web", mem.Records[1].Identifiers["app_name"])
	require.Equal(t, ActionDeleteSpace, mem.Records[2].Action)
	require.Equal(t, "4", mem.Records[2].Identifiers["deleted"])
	require.Equal(t, fixed, mem.Records[0].At)
	require.True(t, strings.HasPrefix(mem.Records[0].ID, "aud-"))
	require.NotEqual(t, mem.Records[0].ID, mem.Records[1].ID)
}

func TestLogWriter(t *testing.T) {
	var buf bytes.Buffer
	w := LogWriter{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}
	NewSink(w).EntryDeleted(context.Background(), "guid-1", sampleEntry())

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "audit", line["msg"])
	require.Equal(t, "guid-1", line["space_id"])
	ids, ok := line["identifiers"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "m:db", ids["provider_id"])
}

func TestMultiWriter_EventWriter(t *testing.T) {
	pub := &recordingPublisher{}
	mem := &MemoryWriter{}
	sink := NewSink(MultiWriter{mem, EventWriter{Publisher: pub}})

	sink.EntryDeleted(context.Background(), "guid-1", sampleEntry())

	require.Len(t, mem.Records, 1)
	require.Equal(t, []string{"cfgregistry.audit"}, pub.topics)
	rec, ok := pub.events[0].(Record)
	require.True(t, ok)
	require.Equal(t, mem.Records[0].ID, rec.ID)
}
