// Package registry implements the configuration registry: publishing and
// resolving configuration entries, standing subscriptions to them, and
// purging rows whose owning modules are gone.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alfredjeanlab/cfgregistry/internal/events"
	"github.com/alfredjeanlab/cfgregistry/internal/model"
	"github.com/alfredjeanlab/cfgregistry/internal/store"
)

const tracerName = "github.com/alfredjeanlab/cfgregistry/internal/registry"

// AuditSink is notified of every deletion the registry performs.
type AuditSink interface {
	EntryDeleted(ctx context.Context, spaceID string, e *model.ConfigurationEntry)
	SubscriptionDeleted(ctx context.Context, spaceID string, s *model.ConfigurationSubscription)
	SpaceCleared(ctx context.Context, spaceID, kind string, deleted int64)
}

// Options configures a Registry. Zero values select no-op collaborators.
type Options struct {
	Publisher events.Publisher
	Audit     AuditSink
	Logger    *slog.Logger
	Tracer    trace.Tracer
	// GlobalConfigTarget is searched when a non-strict lookup finds nothing
	// in its own target.
	GlobalConfigTarget *model.Target
}

// Registry bundles the entry and subscription services and the purger over
// one store.
type Registry struct {
	Entries       *EntryService
	Subscriptions *SubscriptionService
	Purger        *Purger
}

// New wires the registry services over s.
func New(s store.Store, opts Options) *Registry {
	d := newDeps(s, opts)
	return &Registry{
		Entries:       &EntryService{deps: d, globalTarget: opts.GlobalConfigTarget},
		Subscriptions: &SubscriptionService{deps: d},
		Purger:        &Purger{deps: d},
	}
}

// deps holds the collaborators shared by the services.
type deps struct {
	store  store.Store
	pub    events.Publisher
	audit  AuditSink
	log    *slog.Logger
	tracer trace.Tracer
}

func newDeps(s store.Store, opts Options) *deps {
	d := &deps{store: s, pub: opts.Publisher, audit: opts.Audit, log: opts.Logger, tracer: opts.Tracer}
	if d.pub == nil {
		d.pub = events.NoopPublisher{}
	}
	if d.audit == nil {
		d.audit = nopAudit{}
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracerName)
	}
	return d
}

func (d *deps) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return d.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// publish emits an event. Failures are logged, never returned.
func (d *deps) publish(ctx context.Context, topic string, event any) {
	if err := d.pub.Publish(ctx, topic, event); err != nil {
		d.log.WarnContext(ctx, "failed to publish event", "topic", topic, "err", err)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// translate maps store errors onto model errors.
func translate(err error, kind string, id int64) error {
	switch {
	case err == nil:
		return nil
	case model.IsValidation(err), model.IsConflict(err), model.IsNotFound(err):
		return err
	case errors.Is(err, sql.ErrNoRows):
		return &model.NotFoundError{Kind: kind, ID: id}
	}
	return err
}

// translateWrite is translate for add and update, where a unique violation
// or a serialization failure means another writer took key first.
func translateWrite(err error, kind string, id int64, key fmt.Stringer) error {
	if errors.Is(err, store.ErrUniqueViolation) || errors.Is(err, store.ErrSerializationFailure) {
		return &model.ConflictError{Kind: kind, Key: key}
	}
	return translate(err, kind, id)
}

type nopAudit struct{}

func (nopAudit) EntryDeleted(context.Context, string, *model.ConfigurationEntry)               {}
func (nopAudit) SubscriptionDeleted(context.Context, string, *model.ConfigurationSubscription) {}
func (nopAudit) SpaceCleared(context.Context, string, string, int64)                           {}
