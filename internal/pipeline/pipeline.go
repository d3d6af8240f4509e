// Package pipeline drives one product scan: collect up to the batch limit of
// captures, send them for background removal, then create the product from
// the processed image URLs.
//
// Operations never panic or return bare errors; each yields an Outcome the
// caller shows to the operator. Submissions are serialized: while one is in
// flight, another returns CategoryBusy without touching the network.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shelfscan/shelfscan/internal/capture"
	"github.com/shelfscan/shelfscan/internal/models"
	"github.com/shelfscan/shelfscan/internal/providers"
	"golang.org/x/sync/semaphore"
)

const DefaultMaxBatchSize = 5

// ProductUploader creates a catalog product.
type ProductUploader interface {
	UploadProduct(ctx context.Context, token string, upload models.ProductUpload) error
}

// TokenSource is the read-only view of the bearer token.
type TokenSource interface {
	Token() string
}

// UserSource is the read-only view of the signed-in user.
type UserSource interface {
	User() (models.User, bool)
}

type Pipeline struct {
	remover  providers.Remover
	uploader ProductUploader
	tokens   TokenSource
	users    UserSource
	logger   *slog.Logger
	limit    int

	// submit admits one submission at a time.
	submit *semaphore.Weighted

	mu      sync.Mutex
	batch   *capture.Batch
	results []models.ProcessedResult
	barcode string
	// generation changes on every Begin so responses for an abandoned scan
	// are dropped.
	generation uint64
}

type Option func(*Pipeline)

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithMaxBatchSize overrides DefaultMaxBatchSize. Values below 1 are ignored.
func WithMaxBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.limit = n
		}
	}
}

func New(remover providers.Remover, uploader ProductUploader, tokens TokenSource, users UserSource, opts ...Option) *Pipeline {
	p := &Pipeline{
		remover:  remover,
		uploader: uploader,
		tokens:   tokens,
		users:    users,
		logger:   slog.Default(),
		limit:    DefaultMaxBatchSize,
		submit:   semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.batch = capture.NewBatch(p.limit)
	return p
}

// Begin starts a new scan for barcode, discarding captures and results.
func (p *Pipeline) Begin(barcode string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generation++
	p.batch.Clear()
	p.results = nil
	p.barcode = barcode
	p.logger.Debug("Scan started", "barcode", barcode)
}

func (p *Pipeline) AddCapture(ref capture.ImageRef) Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.batch.Add(ref); err != nil {
		o := invalid("Maximum Limit", err)
		if errors.Is(err, capture.ErrBatchFull) {
			o.Message = fmt.Sprintf("You can only take %d photos", p.limit)
		}
		return o
	}
	return success("", fmt.Sprintf("Added %s (%d/%d)", ref.FileName(), p.batch.Len(), p.limit))
}

func (p *Pipeline) RemoveCapture(i int) Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	ref, err := p.batch.Remove(i)
	if err != nil {
		return invalid("Error", err)
	}
	return success("", "Removed "+ref.FileName())
}

func (p *Pipeline) RemoveResult(i int) Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.results) {
		return invalid("Error", capture.ErrIndexOutOfRange)
	}
	p.results = append(p.results[:i], p.results[i+1:]...)
	return success("", fmt.Sprintf("Removed processed image %d", i+1))
}

// SubmitForBackgroundRemoval sends the current captures for background
// removal. On success the processed results replace the previous ones and the
// submitted captures leave the batch; on failure the batch is untouched.
func (p *Pipeline) SubmitForBackgroundRemoval(ctx context.Context) Outcome {
	if !p.submit.TryAcquire(1) {
		return Outcome{Category: CategoryBusy, Title: "Error", Message: "Upload already in progress", Err: ErrBusy}
	}
	defer p.submit.Release(1)

	p.mu.Lock()
	items := p.batch.Items()
	gen := p.generation
	p.mu.Unlock()

	if len(items) == 0 {
		return invalid("Error", ErrEmptyBatch)
	}
	token := p.tokens.Token()
	if token == "" {
		return classify("Upload Error", ErrNotSignedIn)
	}

	p.logger.Info("Processing images in bulk", "count", len(items))
	results, err := p.remover.RemoveBackground(ctx, token, items)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		p.logger.Error("Background removal failed", "count", len(items), "err", err)
		o := classify("Upload Error", err)
		o.Requested = len(items)
		return o
	}

	processed := 0
	for _, r := range results {
		if r.Success && r.OutputURL != "" {
			processed++
		}
	}
	// A reply with no usable image is a failure, not an empty success: the
	// captures stay in the batch so the operator can resend them, and the
	// result count is left as it was.
	if processed == 0 {
		o := classify("Upload Error", fmt.Errorf("none of the %d images could be processed", len(items)))
		o.Requested = len(items)
		return o
	}

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}

	p.mu.Lock()
	if p.generation != gen {
		p.mu.Unlock()
		p.logger.Warn("Dropping background removal response for abandoned scan")
		return classify("Upload Error", ErrStale)
	}
	p.results = append([]models.ProcessedResult(nil), results...)
	p.batch.RemoveIDs(ids)
	p.mu.Unlock()

	p.logger.Info("Background removal complete", "processed", processed, "requested", len(items))
	o := success("Upload Complete", fmt.Sprintf("Successfully processed %d out of %d images", processed, len(items)))
	o.Processed, o.Requested = processed, len(items)
	return o
}

// SubmitProduct creates a product from the processed image URLs, using the
// scanned barcode as both product and SKU identifier. On success the scan is
// finished and the caller should go back to scanning.
func (p *Pipeline) SubmitProduct(ctx context.Context) Outcome {
	if !p.submit.TryAcquire(1) {
		return Outcome{Category: CategoryBusy, Title: "Error", Message: "Upload already in progress", Err: ErrBusy}
	}
	defer p.submit.Release(1)

	p.mu.Lock()
	urls := make([]string, 0, len(p.results))
	for _, r := range p.results {
		if r.Success && r.OutputURL != "" {
			urls = append(urls, r.OutputURL)
		}
	}
	barcode := p.barcode
	gen := p.generation
	p.mu.Unlock()

	if len(urls) == 0 {
		return invalid("Error", ErrNoResults)
	}
	if barcode == "" {
		return invalid("Error", ErrMissingBarcode)
	}

	user, ok := p.users.User()
	token := p.tokens.Token()
	if !ok || token == "" {
		return classify("Upload Error", ErrNotSignedIn)
	}

	upload := models.ProductUpload{
		ImageURLs: urls,
		ProductID: barcode,
		SKUID:     barcode,
		UserID:    user.ID,
		Username:  user.Name,
		Seller:    user.Seller,
		SellerID:  user.SellerID,
	}

	p.logger.Info("Uploading product", "barcode", barcode, "images", len(urls))
	err := p.uploader.UploadProduct(ctx, token, upload)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		p.logger.Error("Product upload failed", "barcode", barcode, "err", err)
		o := classify("Upload Error", err)
		o.Requested = len(urls)
		return o
	}

	p.mu.Lock()
	if p.generation != gen {
		p.mu.Unlock()
		return classify("Upload Error", ErrStale)
	}
	p.results = nil
	p.barcode = ""
	p.mu.Unlock()

	o := success("Upload Successful", "Created new product "+barcode)
	o.Processed, o.Requested = len(urls), len(urls)
	o.Next = NextScan
	return o
}

// Captures returns a copy of the pending captures.
func (p *Pipeline) Captures() []capture.ImageRef {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.batch.Items()
}

// Results returns a copy of the processed results.
func (p *Pipeline) Results() []models.ProcessedResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.ProcessedResult, len(p.results))
	copy(out, p.results)
	return out
}

func (p *Pipeline) Barcode() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.barcode
}

func (p *Pipeline) Limit() int { return p.limit }
