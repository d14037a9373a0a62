// Package pipeline drives a request through its stages: authenticate,
// check quota, do the work, record usage. Every terminal outcome,
// success or failure, produces exactly one usage record once the
// caller's identity is known.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/paperfold/paperfold/internal/auth"
	"github.com/paperfold/paperfold/internal/content"
	apierrors "github.com/paperfold/paperfold/internal/errors"
	"github.com/paperfold/paperfold/internal/logging"
	"github.com/paperfold/paperfold/internal/models"
	"github.com/paperfold/paperfold/internal/pdfops"
	"github.com/paperfold/paperfold/internal/ratelimit"
	"github.com/paperfold/paperfold/internal/render"
)

// Authenticator resolves a raw API key to a caller identity.
type Authenticator interface {
	Authenticate(ctx context.Context, rawKey string) (*models.Identity, error)
}

// QuotaChecker decides whether an identity may proceed.
type QuotaChecker interface {
	Check(ctx context.Context, identity *models.Identity, endpoint string) (*ratelimit.Result, error)
}

// Renderer turns markup or a live URL into PDF bytes.
type Renderer interface {
	Render(ctx context.Context, markup string, opts *render.Options) ([]byte, error)
	RenderURL(ctx context.Context, url string, opts *render.Options, waitFor string) ([]byte, error)
}

// Manipulator performs page-level operations on existing PDFs.
type Manipulator interface {
	PageCount(doc []byte) (int, error)
	Modify(doc []byte, ops []pdfops.Op) ([]byte, error)
	Watermark(doc []byte, spec pdfops.WatermarkSpec) ([]byte, error)
	Merge(docs [][]byte, order []int) ([]byte, error)
	Info(doc []byte) (*pdfops.Info, error)
}

// UsageRecorder appends one usage row per terminal outcome.
type UsageRecorder interface {
	Record(ctx context.Context, rec *models.UsageRecord) error
}

// DocumentRecorder stores metadata for generated documents.
type DocumentRecorder interface {
	Record(ctx context.Context, doc *models.Document) error
}

// Env is the admitted request context: who is calling and where their
// quota stands.
type Env struct {
	Identity *models.Identity
	Rate     *ratelimit.Result
}

// Result is a produced PDF plus the metadata that was recorded for it.
type Result struct {
	PDF      []byte
	Filename string
	Document *models.Document
}

type Pipeline struct {
	gate     Authenticator
	limiter  QuotaChecker
	resolver *content.Resolver
	renderer Renderer
	manip    Manipulator
	usage    UsageRecorder
	docs     DocumentRecorder
	logger   zerolog.Logger
}

func New(gate Authenticator, limiter QuotaChecker, resolver *content.Resolver, renderer Renderer, manip Manipulator, usage UsageRecorder, docs DocumentRecorder) *Pipeline {
	return &Pipeline{
		gate:     gate,
		limiter:  limiter,
		resolver: resolver,
		renderer: renderer,
		manip:    manip,
		usage:    usage,
		docs:     docs,
		logger:   logging.NewLogger("pipeline"),
	}
}

// Admit authenticates the raw key and checks the hourly quota. On a
// quota denial the returned Env still carries the rate result so the
// transport can expose remaining and reset time.
func (p *Pipeline) Admit(ctx context.Context, rawKey, endpoint string) (*Env, *apierrors.APIError) {
	identity, err := p.gate.Authenticate(ctx, rawKey)
	if err != nil {
		return nil, Classify(err)
	}

	rate, err := p.limiter.Check(ctx, identity, endpoint)
	if err != nil {
		return &Env{Identity: identity}, Classify(err)
	}
	env := &Env{Identity: identity, Rate: rate}
	if !rate.Allowed {
		return env, apierrors.ErrQuotaExceededError
	}
	return env, nil
}

// Generate resolves the submitted content to HTML and renders it.
func (p *Pipeline) Generate(ctx context.Context, env *Env, input content.Input, opts *render.Options) (*Result, *apierrors.APIError) {
	doc, err := p.resolver.Resolve(input)
	if err != nil {
		return nil, Classify(err)
	}
	pdf, err := p.renderer.Render(ctx, doc.Markup, opts)
	if err != nil {
		return nil, Classify(err)
	}
	return p.finishDocument(ctx, env, pdf, opts.ResolvedFilename(), opts.ResolvedFormat(), doc.Kind), nil
}

// GenerateURL renders a live URL.
func (p *Pipeline) GenerateURL(ctx context.Context, env *Env, url, waitFor string, opts *render.Options) (*Result, *apierrors.APIError) {
	pdf, err := p.renderer.RenderURL(ctx, url, opts, waitFor)
	if err != nil {
		return nil, Classify(err)
	}
	return p.finishDocument(ctx, env, pdf, opts.ResolvedFilename(), opts.ResolvedFormat(), models.SourceURL), nil
}

// Modify applies an ordered operation list to an uploaded PDF.
func (p *Pipeline) Modify(ctx context.Context, env *Env, doc []byte, ops []pdfops.Op, filename string) (*Result, *apierrors.APIError) {
	out, err := p.manip.Modify(doc, ops)
	if err != nil {
		return nil, Classify(err)
	}
	return p.finishDocument(ctx, env, out, resolvedName(filename), "", models.SourceUpload), nil
}

// Watermark stamps text on every page of an uploaded PDF.
func (p *Pipeline) Watermark(ctx context.Context, env *Env, doc []byte, spec pdfops.WatermarkSpec, filename string) (*Result, *apierrors.APIError) {
	out, err := p.manip.Watermark(doc, spec)
	if err != nil {
		return nil, Classify(err)
	}
	return p.finishDocument(ctx, env, out, resolvedName(filename), "", models.SourceUpload), nil
}

// Merge combines uploaded PDFs into one document.
func (p *Pipeline) Merge(ctx context.Context, env *Env, docs [][]byte, order []int, filename string) (*Result, *apierrors.APIError) {
	out, err := p.manip.Merge(docs, order)
	if err != nil {
		return nil, Classify(err)
	}
	return p.finishDocument(ctx, env, out, resolvedName(filename), "", models.SourceUpload), nil
}

// ExtractText pulls plain text out of an uploaded PDF.
func (p *Pipeline) ExtractText(ctx context.Context, doc []byte, pages []int, maxLength int) (*pdfops.ExtractedText, *apierrors.APIError) {
	out, err := pdfops.ExtractText(doc, pages, maxLength)
	if err != nil {
		return nil, Classify(err)
	}
	return out, nil
}

// Info reports container-level metadata for an uploaded PDF.
func (p *Pipeline) Info(ctx context.Context, doc []byte) (*pdfops.Info, *apierrors.APIError) {
	info, err := p.manip.Info(doc)
	if err != nil {
		return nil, Classify(err)
	}
	return info, nil
}

// Finish records the request's terminal outcome. Called exactly once
// per request after the response is decided. Requests that never
// authenticated have no identity to attribute the row to and are
// visible in transport logs only.
func (p *Pipeline) Finish(ctx context.Context, env *Env, endpoint, method string, status, responseSize int, latency time.Duration, apiErr *apierrors.APIError) {
	if env == nil || env.Identity == nil {
		return
	}
	rec := &models.UsageRecord{
		IdentityID:   env.Identity.ID,
		OwnerID:      env.Identity.OwnerID,
		Endpoint:     endpoint,
		Method:       method,
		StatusCode:   status,
		ResponseSize: responseSize,
		LatencyMs:    int(latency.Milliseconds()),
	}
	if apiErr != nil {
		code := string(apiErr.Code)
		rec.ErrorCode = &code
	}
	if err := p.usage.Record(ctx, rec); err != nil {
		p.logger.Error().Err(err).
			Str("identity_id", env.Identity.ID.String()).
			Str("endpoint", endpoint).
			Msg("Failed to record usage")
	}
}

// finishDocument wraps produced bytes in a Result and records document
// metadata. A metadata write failure is logged, not surfaced: the PDF
// itself is already in hand.
func (p *Pipeline) finishDocument(ctx context.Context, env *Env, pdf []byte, filename, format string, kind models.SourceKind) *Result {
	doc := &models.Document{
		OwnerID:    env.Identity.OwnerID,
		IdentityID: env.Identity.ID,
		Filename:   filename,
		FileSize:   len(pdf),
		Format:     format,
		SourceKind: kind,
	}
	if n, err := p.manip.PageCount(pdf); err == nil {
		doc.PageCount = &n
	}
	if err := p.docs.Record(ctx, doc); err != nil {
		p.logger.Error().Err(err).
			Str("filename", filename).
			Msg("Failed to record document metadata")
	}
	return &Result{PDF: pdf, Filename: filename, Document: doc}
}

func resolvedName(filename string) string {
	if filename == "" {
		return render.DefaultFilename()
	}
	return filename
}

// Classify folds collaborator errors into the stable error taxonomy.
func Classify(err error) *apierrors.APIError {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return apierrors.ErrUnauthenticatedError
	case errors.Is(err, auth.ErrInvalidKey):
		return apierrors.ErrInvalidKeyError
	case errors.Is(err, content.ErrAmbiguousContent), errors.Is(err, content.ErrEmptyContent):
		return apierrors.NewValidationError(err.Error())
	case errors.Is(err, render.ErrRenderTimeout):
		return apierrors.ErrRenderTimeoutError
	case errors.Is(err, render.ErrRenderFailure), errors.Is(err, render.ErrBrowserUnavailable):
		return apierrors.ErrRenderFailureError
	case errors.Is(err, pdfops.ErrPageOutOfBounds):
		return apierrors.NewPageOutOfBoundsError(err.Error())
	case errors.Is(err, pdfops.ErrInvalidOperation):
		return apierrors.NewInvalidOperationError(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return apierrors.ErrRenderTimeoutError
	default:
		return apierrors.ErrStorageFailureError
	}
}
