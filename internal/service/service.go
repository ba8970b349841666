package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/docbridge/internal/bridge"
	"github.com/JakeFAU/docbridge/internal/clock/system"
	"github.com/JakeFAU/docbridge/internal/conversion"
	"github.com/JakeFAU/docbridge/internal/hash/sha256"
	"github.com/JakeFAU/docbridge/internal/id/uuid"
	"github.com/JakeFAU/docbridge/internal/pdf/docx"
	"github.com/JakeFAU/docbridge/internal/progress"
)

const tracerName = "github.com/JakeFAU/docbridge/internal/service"

// Runner executes a job through the progress bridge.
type Runner interface {
	Run(ctx context.Context, spec bridge.Spec, notifier progress.Notifier) bridge.Outcome
}

// Config tunes the tool service.
type Config struct {
	// InputDir resolves relative input and output refs. Empty leaves them
	// relative to the process working directory.
	InputDir string
	// Topic receives completion events. Empty disables publishing.
	Topic string
	// ArtifactPrefix is prepended to uploaded artifact paths.
	ArtifactPrefix string
}

// Deps are the collaborators of the service. Blobs and Publisher are optional.
type Deps struct {
	Runner    Runner
	Converter conversion.Converter
	Inspector conversion.Inspector
	Unlocker  conversion.Unlocker
	Blobs     conversion.BlobStore
	Publisher conversion.Publisher
	Hasher    conversion.Hasher
	IDs       conversion.IDGenerator
	Clock     conversion.Clock
	// Tracer defaults to the global OpenTelemetry provider.
	Tracer trace.Tracer
	Logger *zap.Logger
}

// Service implements the convert and get_info tools.
type Service struct {
	cfg       Config
	runner    Runner
	converter conversion.Converter
	inspector conversion.Inspector
	unlocker  conversion.Unlocker
	blobs     conversion.BlobStore
	publisher conversion.Publisher
	hasher    conversion.Hasher
	ids       conversion.IDGenerator
	clock     conversion.Clock
	tracer    trace.Tracer
	logger    *zap.Logger
}

// New validates deps and builds a Service.
func New(cfg Config, deps Deps) (*Service, error) {
	switch {
	case deps.Runner == nil:
		return nil, errors.New("service: runner is required")
	case deps.Converter == nil:
		return nil, errors.New("service: converter is required")
	case deps.Inspector == nil:
		return nil, errors.New("service: inspector is required")
	case deps.Unlocker == nil:
		return nil, errors.New("service: unlocker is required")
	}
	if deps.Hasher == nil {
		deps.Hasher = sha256.New()
	}
	if deps.IDs == nil {
		deps.IDs = uuid.New()
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer(tracerName)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Service{
		cfg:       cfg,
		runner:    deps.Runner,
		converter: deps.Converter,
		inspector: deps.Inspector,
		unlocker:  deps.Unlocker,
		blobs:     deps.Blobs,
		publisher: deps.Publisher,
		hasher:    deps.Hasher,
		ids:       deps.IDs,
		clock:     deps.Clock,
		tracer:    deps.Tracer,
		logger:    deps.Logger,
	}, nil
}

// GetInfo reports page count, size, protection state and metadata for a PDF.
// A protected document is not an error.
func (s *Service) GetInfo(ctx context.Context, req InfoRequest) InfoResponse {
	ctx, span := s.tracer.Start(ctx, "docbridge.get_info",
		trace.WithAttributes(attribute.String("docbridge.input_ref", req.InputRef)))
	defer span.End()
	resp := s.getInfo(ctx, req)
	span.SetAttributes(attribute.Int("docbridge.unit_count", resp.UnitCount))
	endSpan(span, resp.Success, resp.ErrorKind, resp.Error)
	return resp
}

func (s *Service) getInfo(ctx context.Context, req InfoRequest) InfoResponse {
	ref := strings.TrimSpace(req.InputRef)
	if ref == "" {
		return infoFailure(req.InputRef, conversion.InvalidArgument("input_ref is required", nil))
	}
	info, err := s.inspector.Inspect(ctx, s.resolve(ref))
	if err != nil {
		s.logger.Info("get_info failed", zap.String("input_ref", ref), zap.Error(err))
		return infoFailure(ref, err)
	}
	resp := InfoResponse{
		Success:     true,
		Path:        info.Path,
		UnitCount:   info.PageCount,
		SizeMB:      conversion.SizeMB(info.SizeBytes),
		IsProtected: info.Protected,
		Descriptor:  &info.Descriptor,
	}
	if info.Protected {
		resp.Message = "PDF is password protected"
	} else {
		resp.Message = fmt.Sprintf("PDF has %d pages", info.PageCount)
	}
	return resp
}

// Convert turns a PDF into a DOCX package. notifier receives (current, total)
// pairs while the conversion runs and may be nil.
//
// Missing input, protection and selector problems are reported before any
// work is dispatched. Everything else comes back from the bridge as an
// Outcome; Convert never returns a partially converted result.
func (s *Service) Convert(ctx context.Context, req ConvertRequest, notifier progress.Notifier) ConvertResponse {
	ctx, span := s.tracer.Start(ctx, "docbridge.convert",
		trace.WithAttributes(
			attribute.String("docbridge.input_ref", req.InputRef),
			attribute.String("docbridge.unit_selector", req.UnitSelector),
		))
	defer span.End()
	resp := s.convert(ctx, req, notifier)
	span.SetAttributes(
		attribute.String("docbridge.run_id", resp.RunID),
		attribute.Int("docbridge.units_converted", resp.UnitsConverted),
	)
	endSpan(span, resp.Success, resp.ErrorKind, resp.Error)
	return resp
}

func (s *Service) convert(ctx context.Context, req ConvertRequest, notifier progress.Notifier) ConvertResponse {
	ref := strings.TrimSpace(req.InputRef)
	if ref == "" {
		return convertFailure(req.InputRef, "", conversion.InvalidArgument("input_ref is required", nil))
	}
	plan, err := s.prepare(ctx, ref, req)
	if err != nil {
		s.logger.Info("convert rejected", zap.String("input_ref", ref), zap.Error(err))
		return convertFailure(ref, plan.output, err)
	}
	defer plan.cleanup()

	job := conversion.Job{
		ID:         plan.runID,
		InputPath:  plan.readable,
		OutputPath: plan.output,
		Pages:      plan.pages,
	}
	outcome := s.runner.Run(ctx, bridge.Spec{
		JobID:     plan.runID,
		Units:     len(plan.pages),
		InputRef:  ref,
		OutputRef: plan.output,
		Work: func(ctx context.Context, logger *zap.Logger) error {
			return s.converter.Convert(ctx, job, logger)
		},
	}, notifier)

	if !outcome.Succeeded() {
		s.publish(ctx, conversion.CompletionEvent{
			RunID:           outcome.JobID,
			Status:          conversion.RunFailed,
			InputRef:        ref,
			OutputRef:       plan.output,
			DurationSeconds: conversion.Round2(outcome.Duration.Seconds()),
			Error:           outcome.Raw,
			FinishedAt:      s.clock.Now(),
		})
		failure := outcome.Err
		if failure == nil {
			failure = conversion.ConversionFailure(errors.New(outcome.Message))
		}
		resp := convertFailure(ref, plan.output, failure)
		resp.RunID = outcome.JobID
		return resp
	}

	st, err := os.Stat(plan.output)
	if err != nil {
		resp := convertFailure(ref, plan.output, fmt.Errorf("stat output: %w", err))
		resp.RunID = outcome.JobID
		return resp
	}
	digest := s.checksum(outcome.JobID, plan.output)
	artifact := s.upload(ctx, outcome.JobID, plan.output)
	duration := conversion.Round2(outcome.Duration.Seconds())
	s.publish(ctx, conversion.CompletionEvent{
		RunID:           outcome.JobID,
		Status:          conversion.RunSucceeded,
		InputRef:        ref,
		OutputRef:       plan.output,
		ArtifactURI:     artifact,
		SHA256:          digest,
		UnitsConverted:  len(plan.pages),
		DurationSeconds: duration,
		FinishedAt:      s.clock.Now(),
	})

	var units any = conversion.AllUnits
	if plan.selected != nil {
		units = plan.pages
	}
	return ConvertResponse{
		Success:         true,
		RunID:           outcome.JobID,
		InputRef:        ref,
		OutputRef:       plan.output,
		SizeMB:          conversion.SizeMB(st.Size()),
		Units:           units,
		TotalUnits:      plan.pageCount,
		UnitsConverted:  len(plan.pages),
		DurationSeconds: duration,
		ArtifactURI:     artifact,
		SHA256:          digest,
		Message:         fmt.Sprintf("Converted %d of %d pages to %s", len(plan.pages), plan.pageCount, plan.output),
	}
}

type convertPlan struct {
	runID     string
	readable  string
	output    string
	selected  []int
	pages     []int
	pageCount int
	cleanup   func()
}

// prepare runs every pre-dispatch check. On error the returned plan carries
// at most the output path and needs no cleanup.
func (s *Service) prepare(ctx context.Context, ref string, req ConvertRequest) (convertPlan, error) {
	p := convertPlan{cleanup: func() {}}
	input := s.resolve(ref)
	info, err := s.inspector.Inspect(ctx, input)
	if err != nil {
		return p, err
	}
	p.output = s.outputPath(input, req.OutputRef)

	p.selected, err = conversion.ParseUnitSelector(req.UnitSelector)
	if err != nil {
		return p, err
	}

	p.readable = input
	p.pageCount = info.PageCount
	if info.Protected {
		if req.Credential == "" {
			return p, conversion.AuthenticationRequired(ref)
		}
		unlocked, cleanup, err := s.unlocker.Unlock(ctx, input, req.Credential)
		if err != nil {
			return p, err
		}
		decrypted, err := s.inspector.Inspect(ctx, unlocked)
		if err != nil {
			cleanup()
			return p, err
		}
		p.readable = unlocked
		p.pageCount = decrypted.PageCount
		p.cleanup = cleanup
	}

	p.pages, err = conversion.ResolveUnits(p.selected, p.pageCount)
	if err == nil && len(p.pages) == 0 {
		err = conversion.InvalidArgument("document has no pages to convert", nil)
	}
	if err == nil {
		err = ensureDir(p.output)
	}
	if err == nil {
		p.runID, err = s.ids.NewID()
	}
	if err != nil {
		p.cleanup()
		p.cleanup = func() {}
		return p, err
	}
	return p, nil
}

func (s *Service) resolve(ref string) string {
	if s.cfg.InputDir == "" || filepath.IsAbs(ref) {
		return filepath.Clean(ref)
	}
	return filepath.Join(s.cfg.InputDir, ref)
}

func (s *Service) outputPath(input, requested string) string {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return conversion.DefaultOutputPath(input)
	}
	return s.resolve(requested)
}

func ensureDir(output string) error {
	dir := filepath.Dir(output)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", dir, err)
	}
	return nil
}

func (s *Service) checksum(runID, output string) string {
	f, err := os.Open(output)
	if err != nil {
		s.logger.Warn("artifact open failed", zap.String("run_id", runID), zap.Error(err))
		return ""
	}
	defer func() { _ = f.Close() }()
	digest, err := s.hasher.Hash(f)
	if err != nil {
		s.logger.Warn("artifact checksum failed", zap.String("run_id", runID), zap.Error(err))
		return ""
	}
	return digest
}

func (s *Service) upload(ctx context.Context, runID, output string) string {
	if s.blobs == nil {
		return ""
	}
	f, err := os.Open(output)
	if err != nil {
		s.logger.Warn("artifact open failed", zap.String("run_id", runID), zap.Error(err))
		return ""
	}
	defer func() { _ = f.Close() }()

	key := path.Join(s.cfg.ArtifactPrefix, runID, filepath.Base(output))
	uri, err := s.blobs.PutObject(ctx, key, docx.ContentType, f)
	if err != nil {
		s.logger.Warn("artifact upload failed", zap.String("run_id", runID), zap.Error(err))
		return ""
	}
	s.logger.Debug("artifact uploaded", zap.String("run_id", runID), zap.String("uri", uri))
	return uri
}

func (s *Service) publish(ctx context.Context, evt conversion.CompletionEvent) {
	if s.publisher == nil || s.cfg.Topic == "" {
		return
	}
	msgID, err := s.publisher.Publish(context.WithoutCancel(ctx), s.cfg.Topic, evt)
	if err != nil {
		s.logger.Warn("completion publish failed", zap.String("run_id", evt.RunID), zap.Error(err))
		return
	}
	s.logger.Debug("completion published", zap.String("run_id", evt.RunID), zap.String("message_id", msgID))
}

func endSpan(span trace.Span, ok bool, kind conversion.Kind, msg string) {
	if ok {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.SetAttributes(attribute.String("docbridge.error_kind", string(kind)))
	span.SetStatus(codes.Error, msg)
}

func convertFailure(ref, output string, err error) ConvertResponse {
	return ConvertResponse{
		InputRef:  ref,
		OutputRef: output,
		Message:   conversion.MessageOf(err),
		Error:     err.Error(),
		ErrorKind: conversion.KindOf(err),
	}
}

func infoFailure(ref string, err error) InfoResponse {
	return InfoResponse{
		Path:      ref,
		Message:   conversion.MessageOf(err),
		Error:     err.Error(),
		ErrorKind: conversion.KindOf(err),
	}
}
