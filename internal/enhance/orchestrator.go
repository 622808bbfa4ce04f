// Package enhance drives a photo through its enhancement lifecycle:
// PENDING|FAILED -> PROCESSING -> COMPLETED|FAILED.
package enhance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"photoenhance/internal/domain"
	"photoenhance/internal/imagegen"
	"photoenhance/internal/providers/genai"
	"photoenhance/internal/storage"
)

// AIClient produces an enhanced image from the original bytes.
type AIClient interface {
	Generate(ctx context.Context, imageBytes []byte, mimeType, instruction string) (*genai.EnhancedImage, error)
}

// ResultValidator confirms a candidate location is fetchable.
type ResultValidator interface {
	Validate(ctx context.Context, location string) bool
}

// CreditLedger is the credit surface the orchestrator needs.
type CreditLedger interface {
	CanCharge(ctx context.Context, userID string) (bool, error)
	Charge(ctx context.Context, userID, photoID string) error
	Refund(ctx context.Context, userID, photoID string) error
}

// Identity is the resolved caller of Enhance.
type Identity struct {
	UserID string
	// Internal marks trusted collaborators (upload hook, retry worker) acting
	// on the owner's behalf. Ownership is not checked for them.
	Internal bool
}

// Result describes the final state of one attempt.
type Result struct {
	PhotoID          string             `json:"photo_id"`
	Status           domain.PhotoStatus `json:"status"`
	EnhancedLocation string             `json:"enhanced_location,omitempty"`
	Attempt          int                `json:"attempt"`
}

// Deps groups the collaborators of the orchestrator.
type Deps struct {
	Photos    domain.PhotoRepository
	Storage   storage.Adapter
	AI        AIClient
	Validator ResultValidator
	Ledger    CreditLedger
}

// Options tunes the orchestrator.
type Options struct {
	// Timeout bounds the AI call.
	Timeout time.Duration
	// AttemptTimeout bounds everything from the credit check to the charge.
	// It must sit inside the caller's own budget.
	AttemptTimeout time.Duration
	// FinalizeTimeout bounds the terminal status write, which runs even after
	// the caller's context is done.
	FinalizeTimeout time.Duration
	Prompt          string
	Logger          zerolog.Logger
}

// Orchestrator runs single enhancement attempts. It never retries on its own;
// callers decide when to call Enhance again on a FAILED photo.
type Orchestrator struct {
	deps            Deps
	timeout         time.Duration
	attemptTimeout  time.Duration
	finalizeTimeout time.Duration
	prompt          string
	logger          zerolog.Logger
}

func NewOrchestrator(deps Deps, opts Options) *Orchestrator {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 40 * time.Second
	}
	attempt := opts.AttemptTimeout
	if attempt < timeout {
		attempt = timeout
	}
	finalize := opts.FinalizeTimeout
	if finalize <= 0 {
		finalize = 5 * time.Second
	}
	return &Orchestrator{
		deps:            deps,
		timeout:         timeout,
		attemptTimeout:  attempt,
		finalizeTimeout: finalize,
		prompt:          opts.Prompt,
		logger:          opts.Logger,
	}
}

// Enhance runs one attempt for photoID on behalf of who.
func (o *Orchestrator) Enhance(ctx context.Context, photoID string, who Identity) (*Result, error) {
	photoID = strings.TrimSpace(photoID)
	if photoID == "" {
		return nil, domain.ErrNotFound
	}
	if !who.Internal && strings.TrimSpace(who.UserID) == "" {
		return nil, domain.ErrUnauthorized
	}

	current, err := o.deps.Photos.GetByID(ctx, photoID)
	if err != nil {
		return nil, err
	}
	if !who.Internal && current.OwnerID != who.UserID {
		return nil, domain.ErrForbidden
	}
	if !current.Status.Eligible() {
		return nil, conflict(current.Status)
	}

	photo, ok, err := o.deps.Photos.BeginProcessing(ctx, photoID)
	if err != nil {
		return nil, fmt.Errorf("begin processing: %w", err)
	}
	if !ok {
		// Lost the race to another invocation, or the status moved since the read.
		latest := current.Status
		if fresh, getErr := o.deps.Photos.GetByID(ctx, photoID); getErr == nil {
			latest = fresh.Status
		}
		return nil, conflict(latest)
	}

	log := o.logger.With().
		Str("photo_id", photo.ID).
		Str("user_id", photo.OwnerID).
		Int("attempt", photo.Attempts).
		Bool("internal", who.Internal).
		Logger()
	log.Info().Msg("enhance: processing")

	location, err := o.run(ctx, photo, log)
	if err != nil {
		o.fail(ctx, photo.ID, err, log)
		return nil, err
	}

	log.Info().Str("enhanced_location", location).Msg("enhance: completed")
	return &Result{
		PhotoID:          photo.ID,
		Status:           domain.PhotoStatusCompleted,
		EnhancedLocation: location,
		Attempt:          photo.Attempts,
	}, nil
}

// run executes everything between PROCESSING and the terminal write under one
// attempt deadline. Any error it returns leads to FAILED; on success the photo
// is already COMPLETED and charged.
func (o *Orchestrator) run(ctx context.Context, photo *domain.Photo, log zerolog.Logger) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.attemptTimeout)
	defer cancel()

	can, err := o.deps.Ledger.CanCharge(ctx, photo.OwnerID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", domain.MsgCreditCheckFailed, err)
	}
	if !can {
		return "", domain.NewPipelineError(domain.KindInsufficientCredits, domain.MsgInsufficientCredits, nil)
	}

	original, err := o.deps.Storage.Get(ctx, photo.OriginalLocation)
	if err != nil {
		return "", asPipeline(err, domain.KindStorageUnavailable, domain.MsgStorageReadFailed)
	}
	mimeType := imagegen.SniffMIME(original, storage.MIMEForName(photo.OriginalLocation))
	width, height := imagegen.Dimensions(original)
	instruction := imagegen.BuildInstruction(imagegen.InstructionOptions{
		Override: o.prompt,
		Width:    width,
		Height:   height,
	})

	enhanced, err := o.generate(ctx, original, mimeType, instruction)
	if err != nil {
		return "", err
	}

	key := storage.EnhancedKey(photo.ID, photo.OriginalLocation, enhanced.MIMEType)
	candidate, err := o.deps.Storage.Put(ctx, enhanced.Data, key, enhanced.MIMEType)
	if err != nil {
		return "", asPipeline(err, domain.KindStorageUnavailable, domain.MsgStorageWriteFailed)
	}

	if !o.deps.Validator.Validate(ctx, candidate) {
		log.Warn().Str("candidate", candidate).Str("backend", o.deps.Storage.Backend()).Msg("enhance: candidate not accessible")
		return "", domain.NewPipelineError(domain.KindValidation, domain.MsgResultNotAccessible, nil)
	}

	if err := o.deps.Ledger.Charge(ctx, photo.OwnerID, photo.ID); err != nil {
		if domain.KindOf(err) == domain.KindInsufficientCredits {
			return "", err
		}
		return "", fmt.Errorf("%s: %w", domain.MsgCreditCheckFailed, err)
	}

	finalCtx, cancel := o.detached(ctx)
	defer cancel()
	if err := o.deps.Photos.Complete(finalCtx, photo.ID, candidate); err != nil {
		if refundErr := o.deps.Ledger.Refund(finalCtx, photo.OwnerID, photo.ID); refundErr != nil {
			log.Error().Err(refundErr).Msg("enhance: refund after failed completion")
		}
		return "", domain.NewPipelineError(domain.KindStorageUnavailable, domain.MsgPersistFailed, err)
	}
	return candidate, nil
}

type generation struct {
	image *genai.EnhancedImage
	err   error
}

// generate calls the AI client under the attempt budget. The select returns on
// the deadline even if the client ignores cancellation.
func (o *Orchestrator) generate(ctx context.Context, original []byte, mimeType, instruction string) (*genai.EnhancedImage, error) {
	aiCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	done := make(chan generation, 1)
	go func() {
		img, err := o.deps.AI.Generate(aiCtx, original, mimeType, instruction)
		done <- generation{image: img, err: err}
	}()

	var out generation
	select {
	case out = <-done:
	case <-aiCtx.Done():
		out = generation{err: aiCtx.Err()}
	}

	switch {
	case out.err == nil && (out.image == nil || len(out.image.Data) == 0):
		return nil, domain.NewPipelineError(domain.KindAIService, domain.MsgNoImageProduced, genai.ErrNoImageProduced)
	case out.err == nil:
		return out.image, nil
	case errors.Is(out.err, genai.ErrNoImageProduced):
		return nil, domain.NewPipelineError(domain.KindAIService, domain.MsgNoImageProduced, out.err)
	case errors.Is(out.err, context.DeadlineExceeded):
		return nil, domain.NewPipelineError(domain.KindAIService, domain.MsgAITimeout, out.err)
	default:
		return nil, domain.NewPipelineError(domain.KindAIService, domain.MsgAIFailure, out.err)
	}
}

// fail records the terminal FAILED transition with the stable message for err.
func (o *Orchestrator) fail(ctx context.Context, photoID string, cause error, log zerolog.Logger) {
	message := lastErrorFor(cause)
	finalCtx, cancel := o.detached(ctx)
	defer cancel()
	if err := o.deps.Photos.Fail(finalCtx, photoID, message); err != nil {
		log.Error().Err(err).Str("last_error", message).Msg("enhance: record failure")
		return
	}
	log.Warn().
		Err(cause).
		Str("error_kind", string(domain.KindOf(cause))).
		Str("last_error", message).
		Msg("enhance: failed")
}

// detached returns a context that survives caller cancellation so terminal
// writes always land.
func (o *Orchestrator) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), o.finalizeTimeout)
}

func lastErrorFor(err error) string {
	var pe *domain.PipelineError
	if errors.As(err, &pe) {
		return pe.Message
	}
	msg := err.Error()
	if strings.HasPrefix(msg, domain.MsgCreditCheckFailed) {
		return domain.MsgCreditCheckFailed
	}
	return "enhancement failed"
}

func asPipeline(err error, kind domain.ErrorKind, message string) error {
	var pe *domain.PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	return domain.NewPipelineError(kind, message, err)
}

func conflict(status domain.PhotoStatus) error {
	return domain.NewPipelineError(domain.KindConflict, fmt.Sprintf("photo is %s", status), nil)
}
