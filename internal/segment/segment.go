// Package segment converts multi-page PDF manuals into per-page markdown.
//
// Each page is isolated into its own single-page PDF before the conversion
// call, so one bad page never takes down the document. Conversion output
// must carry a <markdown_output> section; a response without one is a
// warning outcome, distinct from a transport error, and both are retried
// up to the configured bound. The assembled markdown holds successful
// pages only, while the audit artifact records the full per-page history.
package segment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tonewheel/studiorag/internal/corpus"
	"github.com/tonewheel/studiorag/internal/log"
	"github.com/tonewheel/studiorag/internal/retry"
	"github.com/tonewheel/studiorag/internal/tagparse"
)

const markdownTag = "markdown_output"

// errMissingSection marks a conversion response that succeeded at the
// transport level but carried no markdown section. Retried like a
// transport error, recorded differently on exhaustion.
var errMissingSection = errors.New("response has no markdown_output section")

// Converter performs the external page-to-markdown conversion call.
type Converter interface {
	ConvertPage(ctx context.Context, pdf []byte) (string, error)
}

// Config holds segmenter tuning.
type Config struct {
	// MaxAttempts bounds conversion attempts per page.
	MaxAttempts int

	// RetryDelay is the wait before each retry of a failed page.
	RetryDelay time.Duration

	// Pacing is the minimum spacing between conversion calls, shared
	// across all documents to respect the API rate limit.
	Pacing time.Duration

	// Workers bounds concurrently processed documents. Pages within a
	// document stay sequential to preserve ordering.
	Workers int
}

// Summary is the run-level result of a segmentation batch.
type Summary struct {
	Documents    int
	Failed       int // documents that could not be opened or split
	PagesOK      int
	PagesWarning int
	PagesError   int
}

// Segmenter drives the PDF-to-markdown stage.
type Segmenter struct {
	conv    Converter
	policy  retry.Policy
	limiter *rate.Limiter
	workers int
	logger  log.Logger
}

// New creates a Segmenter.
func New(conv Converter, cfg Config, logger log.Logger) *Segmenter {
	if logger == nil {
		logger = log.NewNop()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	limit := rate.Inf
	if cfg.Pacing > 0 {
		limit = rate.Every(cfg.Pacing)
	}

	return &Segmenter{
		conv: conv,
		policy: retry.Policy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.RetryDelay,
			Multiplier:  1, // fixed inter-attempt delay for page conversion
		},
		limiter: rate.NewLimiter(limit, 1),
		workers: cfg.Workers,
		logger:  logger,
	}
}

// ProcessDirectory segments every PDF in inputDir into outputDir, bounded
// by the configured worker count. Per-document failures are recorded in
// the summary and the audit artifacts; only a missing input directory or
// context cancellation fail the run.
func (s *Segmenter) ProcessDirectory(ctx context.Context, inputDir, outputDir string) (Summary, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return Summary{}, fmt.Errorf("reading input directory: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return Summary{}, fmt.Errorf("creating output directory: %w", err)
	}

	var pdfs []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		pdfs = append(pdfs, filepath.Join(inputDir, e.Name()))
	}
	if len(pdfs) == 0 {
		s.logger.Warn("no PDF files found", "dir", inputDir)
		return Summary{}, nil
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.workers)

	audits := make([]corpus.DocumentAudit, len(pdfs))
	for i, pdfPath := range pdfs {
		eg.Go(func() error {
			audit, err := s.ProcessFile(gctx, pdfPath, outputDir)
			if err != nil {
				// Unit failure: recorded, never aborts the batch.
				s.logger.Error("document failed", "file", filepath.Base(pdfPath), "error", err)
			}
			audits[i] = audit
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return Summary{}, err
	}

	summary := Summary{Documents: len(pdfs)}
	for _, audit := range audits {
		if audit.Error != "" {
			summary.Failed++
		}
		for _, p := range audit.Pages {
			switch p.Status {
			case corpus.PageStatusSuccess:
				summary.PagesOK++
			case corpus.PageStatusWarning:
				summary.PagesWarning++
			case corpus.PageStatusError:
				summary.PagesError++
			}
		}
	}

	s.logger.Info("segmentation complete",
		"documents", summary.Documents,
		"failed_documents", summary.Failed,
		"pages_ok", summary.PagesOK,
		"pages_warning", summary.PagesWarning,
		"pages_error", summary.PagesError)
	return summary, nil
}

// ProcessFile segments one PDF. It always writes both output artifacts,
// the assembled markdown (successful pages only, in page order) and the
// audit JSON, even when some or all pages fail.
func (s *Segmenter) ProcessFile(ctx context.Context, pdfPath, outputDir string) (corpus.DocumentAudit, error) {
	name := filepath.Base(pdfPath)
	base := strings.TrimSuffix(name, filepath.Ext(name))
	logger := s.logger.With("file", name)

	audit := corpus.DocumentAudit{
		Filename:  name,
		Path:      pdfPath,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	pages, err := splitPages(pdfPath)
	if err != nil {
		audit.Error = err.Error()
		if werr := s.writeOutputs(outputDir, base, "", audit); werr != nil {
			logger.Error("writing outputs", "error", werr)
		}
		return audit, err
	}
	logger.Info("processing document", "pages", len(pages))

	markdown, results := s.convertPages(ctx, pages, logger)
	audit.Pages = results

	// A document whose artifacts did not persist has failed, whatever its
	// page outcomes were.
	if err := s.writeOutputs(outputDir, base, markdown, audit); err != nil {
		audit.Error = err.Error()
		return audit, err
	}
	return audit, nil
}

// convertPages runs the conversion call for each page sequentially,
// retrying per page and assembling successful pages in order.
func (s *Segmenter) convertPages(ctx context.Context, pages [][]byte, logger log.Logger) (string, []corpus.PageResult) {
	var assembled strings.Builder
	results := make([]corpus.PageResult, 0, len(pages))

	for i, page := range pages {
		pageNum := i + 1
		if ctx.Err() != nil {
			results = append(results, corpus.PageResult{
				PageNumber: pageNum,
				Status:     corpus.PageStatusError,
				ErrorMsg:   ctx.Err().Error(),
			})
			continue
		}

		var (
			attempts int
			lastText string
			markdown string
		)
		err := s.policy.Do(ctx, func(ctx context.Context) error {
			attempts++
			if err := s.limiter.Wait(ctx); err != nil {
				return err
			}

			text, err := s.conv.ConvertPage(ctx, page)
			if err != nil {
				return fmt.Errorf("conversion call: %w", err)
			}
			lastText = text

			res := tagparse.Extract(text, markdownTag)
			if res.Status != tagparse.Present {
				return errMissingSection
			}
			markdown = res.Value
			return nil
		})

		result := corpus.PageResult{PageNumber: pageNum, RetryCount: attempts - 1}
		switch {
		case err == nil:
			result.Status = corpus.PageStatusSuccess
			result.Response = lastText
			assembled.WriteString(markdown)
			assembled.WriteString("\n")
		case errors.Is(err, errMissingSection):
			// The call itself succeeded; the page is excluded from the
			// assembled text but the raw response is kept for diagnosis.
			result.Status = corpus.PageStatusWarning
			result.Warning = "could not extract markdown output after maximum retries"
			result.Response = lastText
			logger.Warn("page missing markdown section", "page", pageNum, "attempts", attempts)
		default:
			result.Status = corpus.PageStatusError
			result.ErrorMsg = err.Error()
			logger.Warn("page conversion failed", "page", pageNum, "attempts", attempts, "error", err)
		}
		results = append(results, result)
	}

	return assembled.String(), results
}

func (s *Segmenter) writeOutputs(outputDir, base, markdown string, audit corpus.DocumentAudit) error {
	mdPath := filepath.Join(outputDir, base+".md")
	if err := os.WriteFile(mdPath, []byte(markdown), 0o644); err != nil {
		return fmt.Errorf("writing markdown %s: %w", mdPath, err)
	}
	return writeAudit(filepath.Join(outputDir, base+"_results.json"), audit)
}
