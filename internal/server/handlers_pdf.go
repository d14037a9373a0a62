package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/paperfold/paperfold/internal/content"
	apierrors "github.com/paperfold/paperfold/internal/errors"
	"github.com/paperfold/paperfold/internal/middleware"
	"github.com/paperfold/paperfold/internal/pipeline"
	"github.com/paperfold/paperfold/internal/render"
)

// admit runs authentication and the quota check, attaches rate headers
// and, on failure, the error response. Callers must stop when ok is
// false; the terminal outcome has already been recorded.
func (s *APIServer) admit(c *gin.Context, endpoint string, start time.Time) (*pipeline.Env, bool) {
	env, apiErr := s.pipeline.Admit(c.Request.Context(), c.GetHeader(middleware.APIKeyHeader), endpoint)
	setRateHeaders(c, env)
	if apiErr != nil {
		s.finish(c, env, endpoint, start, 0, apiErr)
		respondError(c, apiErr)
		return nil, false
	}
	return env, true
}

// reject records a failed outcome and sends the error response.
func (s *APIServer) reject(c *gin.Context, env *pipeline.Env, endpoint string, start time.Time, apiErr *apierrors.APIError) {
	s.finish(c, env, endpoint, start, 0, apiErr)
	respondError(c, apiErr)
}

// deliver records the success and ships the produced PDF.
func (s *APIServer) deliver(c *gin.Context, env *pipeline.Env, endpoint string, start time.Time, res *pipeline.Result) {
	s.finish(c, env, endpoint, start, len(res.PDF), nil)
	c.JSON(http.StatusOK, newPDFResponse(res, middleware.GetRequestIDFromContext(c)))
}

// handleGenerate renders submitted HTML, Markdown or plain text.
func (s *APIServer) handleGenerate(c *gin.Context) {
	const endpoint = "/v1/pdf/generate"
	start := time.Now()

	env, ok := s.admit(c, endpoint, start)
	if !ok {
		return
	}

	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.reject(c, env, endpoint, start, apierrors.NewValidationError(err.Error()))
		return
	}
	if req.Options.Format != "" && !render.ValidFormat(req.Options.Format) {
		s.reject(c, env, endpoint, start, apierrors.NewValidationError("format must be one of A4, Letter, Legal"))
		return
	}

	input := content.Input{HTML: req.HTML, Markdown: req.Markdown, Text: req.Text, Content: req.Content}
	res, apiErr := s.pipeline.Generate(c.Request.Context(), env, input, &req.Options)
	if apiErr != nil {
		s.reject(c, env, endpoint, start, apiErr)
		return
	}
	s.deliver(c, env, endpoint, start, res)
}

// handleGenerateURL renders a live URL.
func (s *APIServer) handleGenerateURL(c *gin.Context) {
	const endpoint = "/v1/pdf/generate-url"
	start := time.Now()

	env, ok := s.admit(c, endpoint, start)
	if !ok {
		return
	}

	var req generateURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.reject(c, env, endpoint, start, apierrors.NewValidationError(err.Error()))
		return
	}
	if req.Format != "" && !render.ValidFormat(req.Format) {
		s.reject(c, env, endpoint, start, apierrors.NewValidationError("format must be one of A4, Letter, Legal"))
		return
	}

	res, apiErr := s.pipeline.GenerateURL(c.Request.Context(), env, req.URL, req.WaitFor, req.options())
	if apiErr != nil {
		s.reject(c, env, endpoint, start, apiErr)
		return
	}
	s.deliver(c, env, endpoint, start, res)
}

// handleModify applies an ordered operation list to an uploaded PDF.
func (s *APIServer) handleModify(c *gin.Context) {
	const endpoint = "/v1/pdf/modify"
	start := time.Now()

	env, ok := s.admit(c, endpoint, start)
	if !ok {
		return
	}

	var req modifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.reject(c, env, endpoint, start, apierrors.NewValidationError(err.Error()))
		return
	}
	doc, apiErr := decodePDF(req.PDFSource)
	if apiErr != nil {
		s.reject(c, env, endpoint, start, apiErr)
		return
	}

	res, apiErr := s.pipeline.Modify(c.Request.Context(), env, doc, req.Operations, req.Filename)
	if apiErr != nil {
		s.reject(c, env, endpoint, start, apiErr)
		return
	}
	s.deliver(c, env, endpoint, start, res)
}

// handleWatermark stamps text on every page of an uploaded PDF.
func (s *APIServer) handleWatermark(c *gin.Context) {
	const endpoint = "/v1/pdf/watermark"
	start := time.Now()

	env, ok := s.admit(c, endpoint, start)
	if !ok {
		return
	}

	var req watermarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.reject(c, env, endpoint, start, apierrors.NewValidationError(err.Error()))
		return
	}
	doc, apiErr := decodePDF(req.PDFSource)
	if apiErr != nil {
		s.reject(c, env, endpoint, start, apiErr)
		return
	}

	res, apiErr := s.pipeline.Watermark(c.Request.Context(), env, doc, req.spec(), req.Filename)
	if apiErr != nil {
		s.reject(c, env, endpoint, start, apiErr)
		return
	}
	s.deliver(c, env, endpoint, start, res)
}

// handleMerge combines uploaded PDFs into one document.
func (s *APIServer) handleMerge(c *gin.Context) {
	const endpoint = "/v1/pdf/merge"
	start := time.Now()

	env, ok := s.admit(c, endpoint, start)
	if !ok {
		return
	}

	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.reject(c, env, endpoint, start, apierrors.NewValidationError(err.Error()))
		return
	}
	docs := make([][]byte, len(req.PDFSources))
	for i, src := range req.PDFSources {
		doc, apiErr := decodePDF(src)
		if apiErr != nil {
			s.reject(c, env, endpoint, start, apiErr)
			return
		}
		docs[i] = doc
	}

	res, apiErr := s.pipeline.Merge(c.Request.Context(), env, docs, req.Order, req.Filename)
	if apiErr != nil {
		s.reject(c, env, endpoint, start, apiErr)
		return
	}
	s.deliver(c, env, endpoint, start, res)
}

// handleExtractText pulls plain text from an uploaded PDF.
func (s *APIServer) handleExtractText(c *gin.Context) {
	const endpoint = "/v1/pdf/extract-text"
	start := time.Now()

	env, ok := s.admit(c, endpoint, start)
	if !ok {
		return
	}

	var req extractTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.reject(c, env, endpoint, start, apierrors.NewValidationError(err.Error()))
		return
	}
	doc, apiErr := decodePDF(req.PDFSource)
	if apiErr != nil {
		s.reject(c, env, endpoint, start, apiErr)
		return
	}

	out, apiErr := s.pipeline.ExtractText(c.Request.Context(), doc, req.Pages, req.maxLength())
	if apiErr != nil {
		s.reject(c, env, endpoint, start, apiErr)
		return
	}
	s.finish(c, env, endpoint, start, len(out.Text), nil)
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"text":       out.Text,
		"page_count": out.PageCount,
		"truncated":  out.Truncated,
		"request_id": middleware.GetRequestIDFromContext(c),
	})
}

// handleInfo reports container-level metadata for an uploaded PDF.
func (s *APIServer) handleInfo(c *gin.Context) {
	const endpoint = "/v1/pdf/info"
	start := time.Now()

	env, ok := s.admit(c, endpoint, start)
	if !ok {
		return
	}

	var req infoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.reject(c, env, endpoint, start, apierrors.NewValidationError(err.Error()))
		return
	}
	doc, apiErr := decodePDF(req.PDFSource)
	if apiErr != nil {
		s.reject(c, env, endpoint, start, apiErr)
		return
	}

	info, apiErr := s.pipeline.Info(c.Request.Context(), doc)
	if apiErr != nil {
		s.reject(c, env, endpoint, start, apiErr)
		return
	}
	s.finish(c, env, endpoint, start, 0, nil)
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"info":       info,
		"request_id": middleware.GetRequestIDFromContext(c),
	})
}

// handleListDocuments pages through the caller's generated documents.
func (s *APIServer) handleListDocuments(c *gin.Context) {
	const endpoint = "/v1/pdf/list"
	start := time.Now()

	env, ok := s.admit(c, endpoint, start)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	docs, total, err := s.docs.List(c.Request.Context(), env.Identity.OwnerID, page, limit)
	if err != nil {
		s.reject(c, env, endpoint, start, apierrors.ErrStorageFailureError)
		return
	}
	s.finish(c, env, endpoint, start, 0, nil)
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"documents": docs,
		"total":     total,
		"page":      page,
		"limit":     limit,
	})
}
