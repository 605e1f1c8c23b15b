package savegame

import (
	"context"
	"time"

	"github.com/retail-ai-inc/savegame/pkg/metrics"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/retail-ai-inc/savegame/pkg/savegame"

// Service implements the LoadSave and SaveSave operations on top of a Store.
// It holds no per-call state; every invocation is independent.
type Service struct {
	store  Store
	logger *logrus.Logger
	now    func() time.Time
	tracer trace.Tracer
}

type Option func(*Service)

// WithClock overrides the server time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) { s.tracer = tracer }
}

func NewService(store Store, logger *logrus.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the caller's save document. A missing record is a success
// with a null payload.
func (s *Service) Load(ctx context.Context, identity string) (resp LoadResponse) {
	ctx, span := s.tracer.Start(ctx, "savegame.Load")
	defer func() {
		s.finish(span, "load", resp.Code, resp.Msg)
	}()

	if identity == "" {
		return LoadResponse{Code: CodeFail, Msg: ErrNoIdentity.Error()}
	}
	span.SetAttributes(attribute.String("savegame.owner", identity))

	start := time.Now()
	records, err := s.store.FindByOwner(ctx, identity)
	metrics.ObserveStore("find", start)
	if err != nil {
		s.logger.WithError(err).WithField("owner", identity).Error("Failed to query save record")
		return LoadResponse{Code: CodeFail, Msg: err.Error()}
	}

	switch len(records) {
	case 0:
		s.logger.WithField("owner", identity).Debug("No save record found")
		return LoadResponse{Code: CodeOK, Msg: MsgNoSaveFound}
	case 1:
	default:
		s.logger.WithFields(logrus.Fields{
			"owner":   identity,
			"records": len(records),
		}).Warn("Multiple save records found for owner, returning the first")
	}

	rec := records[0]
	updatedAt := rec.UpdatedAt
	return LoadResponse{Code: CodeOK, SaveData: rec.SaveData, UpdatedAt: &updatedAt}
}

// Save replaces the caller's save document, creating it on first use.
func (s *Service) Save(ctx context.Context, identity string, data any) (resp SaveResponse) {
	ctx, span := s.tracer.Start(ctx, "savegame.Save")
	defer func() {
		s.finish(span, "save", resp.Code, resp.Msg)
	}()

	if identity == "" {
		return SaveResponse{Code: CodeFail, Msg: ErrNoIdentity.Error()}
	}
	span.SetAttributes(attribute.String("savegame.owner", identity))

	obj, ok := AsObject(data)
	if !ok {
		return SaveResponse{Code: CodeFail, Msg: ErrInvalidData.Error()}
	}

	if err := s.upsert(ctx, identity, obj); err != nil {
		s.logger.WithError(err).WithField("owner", identity).Error("Failed to save record")
		return SaveResponse{Code: CodeFail, Msg: err.Error()}
	}
	s.logger.WithField("owner", identity).Debug("Save record written")
	return SaveResponse{Code: CodeOK, Msg: MsgOK}
}

func (s *Service) upsert(ctx context.Context, owner string, data map[string]any) error {
	now := s.now()

	if u, ok := s.store.(Upserter); ok {
		start := time.Now()
		defer metrics.ObserveStore("upsert", start)
		return u.Upsert(ctx, owner, data, now)
	}

	// Query then write. Two concurrent first saves for the same owner can
	// both see no record; stores with a unique owner key reject the second
	// insert with ErrDuplicateRecord, others keep both records.
	start := time.Now()
	records, err := s.store.FindByOwner(ctx, owner)
	metrics.ObserveStore("find", start)
	if err != nil {
		return err
	}

	start = time.Now()
	if len(records) > 0 {
		err = s.store.UpdateByOwner(ctx, owner, data, now)
		metrics.ObserveStore("update", start)
		return err
	}
	err = s.store.Insert(ctx, SaveRecord{
		Owner:     owner,
		SaveData:  data,
		CreatedAt: now,
		UpdatedAt: now,
	})
	metrics.ObserveStore("insert", start)
	return err
}

func (s *Service) finish(span trace.Span, operation string, code int, msg string) {
	metrics.IncOperation(operation, code)
	span.SetAttributes(attribute.Int("savegame.code", code))
	if code != CodeOK {
		span.SetStatus(codes.Error, msg)
	}
	span.End()
}
