// Package audit records deletions performed by the registry.
package audit

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/alfredjeanlab/cfgregistry/internal/events"
	"github.com/alfredjeanlab/cfgregistry/internal/idgen"
	"github.com/alfredjeanlab/cfgregistry/internal/model"
)

// Actions recorded in audit records.
const (
	ActionDelete      = "delete"
	ActionDeleteSpace = "delete_space"
)

// Record is one audited operation.
type Record struct {
	ID          string            `json:"id"`
	Action      string            `json:"action"`
	Object      string            `json:"object"`
	SpaceID     string            `json:"space_id"`
	Identifiers map[string]string `json:"identifiers"`
	At          time.Time         `json:"at"`
}

// EntryIdentifiers returns the identifying attributes of an entry.
func EntryIdentifiers(e *model.ConfigurationEntry) map[string]string {
	ids := map[string]string{
		"id":                 strconv.FormatInt(e.ID, 10),
		"provider_id":        e.ProviderID,
		"provider_nid":       e.ProviderNID,
		"provider_version":   e.ProviderVersion,
		"provider_namespace": e.ProviderNamespace,
		"provider_target":    e.Target.String(),
	}
	if e.ContentID != "" {
		ids["content_id"] = e.ContentID
	}
	return ids
}

// SubscriptionIdentifiers returns the identifying attributes of a subscription.
func SubscriptionIdentifiers(s *model.ConfigurationSubscription) map[string]string {
	return map[string]string{
		"id":            strconv.FormatInt(s.ID, 10),
		"mta_id":        s.MTAID,
		"app_name":      s.AppName,
		"resource_name": s.ResourceName,
	}
}

// Writer receives audit records.
type Writer interface {
	Write(ctx context.Context, r Record)
}

// Sink turns registry deletions into records and hands them to a Writer.
type Sink struct {
	w   Writer
	now func() time.Time
}

// NewSink returns a sink writing to w.
func NewSink(w Writer) *Sink {
	return &Sink{w: w, now: time.Now}
}

// EntryDeleted records the deletion of a configuration entry.
func (s *Sink) EntryDeleted(ctx context.Context, spaceID string, e *model.ConfigurationEntry) {
	s.emit(ctx, ActionDelete, model.KindEntry, spaceID, EntryIdentifiers(e))
}

// SubscriptionDeleted records the deletion of a subscription.
func (s *Sink) SubscriptionDeleted(ctx context.Context, spaceID string, sub *model.ConfigurationSubscription) {
	s.emit(ctx, ActionDelete, model.KindSubscription, spaceID, SubscriptionIdentifiers(sub))
}

// SpaceCleared records a bulk deletion of every row of kind in a space.
func (s *Sink) SpaceCleared(ctx context.Context, spaceID, kind string, deleted int64) {
	s.emit(ctx, ActionDeleteSpace, kind, spaceID, map[string]string{
		"deleted": strconv.FormatInt(deleted, 10),
	})
}

func (s *Sink) emit(ctx context.Context, action, object, spaceID string, ids map[string]string) {
	s.w.Write(ctx, Record{
		ID:          idgen.AuditID(),
		Action:      action,
		Object:      object,
		SpaceID:     spaceID,
		Identifiers: ids,
		At:          s.now().UTC(),
	})
}

// LogWriter writes records to a structured logger.
type LogWriter struct {
	Logger *slog.Logger
}

func (l LogWriter) Write(ctx context.Context, r Record) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := make([]any, 0, len(r.Identifiers))
	for k, v := range r.Identifiers {
		attrs = append(attrs, slog.String(k, v))
	}
	logger.InfoContext(ctx, "audit",
		"audit_id", r.ID,
		"action", r.Action,
		"object", r.Object,
		"space_id", r.SpaceID,
		slog.Group("identifiers", attrs...),
	)
}

// EventWriter publishes records on events.TopicAudit. Publish failures are
// logged; auditing never fails the operation being audited.
type EventWriter struct {
	Publisher events.Publisher
}

func (e EventWriter) Write(ctx context.Context, r Record) {
	if err := e.Publisher.Publish(ctx, events.TopicAudit, r); err != nil {
		slog.WarnContext(ctx, "failed to publish audit record", "audit_id", r.ID, "err", err)
	}
}

// MultiWriter fans records out to several writers.
type MultiWriter []Writer

func (m MultiWriter) Write(ctx context.Context, r Record) {
	for _, w := range m {
		w.Write(ctx, r)
	}
}

// MemoryWriter keeps records in memory. It is not safe for concurrent use.
type MemoryWriter struct {
	Records []Record
}

func (m *MemoryWriter) Write(_ context.Context, r Record) {
	m.Records = append(m.Records, r)
}
