package applet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/marmos91/webshim/internal/logger"
	"github.com/marmos91/webshim/internal/telemetry"
	"github.com/marmos91/webshim/pkg/webarg"
)

// Lifecycle errors.
var (
	// ErrNoArguments means the broker held fewer storages than the
	// lifecycle expects: the common arguments first, the argument blob
	// second.
	ErrNoArguments = errors.New("applet: argument storage missing from broker")

	// ErrAlreadyComplete guards the one-shot completion path. A frontend
	// callback firing twice hits this instead of pushing a second record.
	ErrAlreadyComplete = errors.New("applet: invocation already complete")

	// ErrNotImplemented marks lifecycle entry points the web applet does
	// not support.
	ErrNotImplemented = errors.New("applet: operation not implemented")

	// ErrBadState means a lifecycle procedure ran out of order.
	ErrBadState = errors.New("applet: lifecycle procedure called in wrong state")
)

// State tracks where an invocation is in its lifecycle. Transitions only
// move forward: Created, Initialized, Executing, Complete.
type State int

const (
	StateCreated State = iota
	StateInitialized
	StateExecuting
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitialized:
		return "initialized"
	case StateExecuting:
		return "executing"
	case StateComplete:
		return "complete"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// WebBrowser is one web applet invocation. The host pushes the common
// arguments and the argument blob into the broker, then drives the
// lifecycle: Initialize decodes and dispatches, Execute runs the variant,
// Exit pushes the single return record and raises the state signal.
//
// Exit is safe to call from any goroutine; only the first call wins.
type WebBrowser struct {
	broker   *DataBroker
	frontend Frontend
	resolver *Resolver
	proc     ProcessContext
	metrics  Metrics

	mu       sync.Mutex
	state    State
	complete bool

	commonArgs webarg.CommonArguments
	header     webarg.Header
	entries    webarg.InputTLVMap
	document   ResolvedDocument

	lc *logger.LogContext
}

// NewWebBrowser creates an invocation bound to its broker and
// collaborators. The frontend defaults to the stub and metrics to a no-op
// when nil; the resolver is only needed for offline invocations.
func NewWebBrowser(broker *DataBroker, frontend Frontend, resolver *Resolver, proc ProcessContext, m Metrics) *WebBrowser {
	if frontend == nil {
		frontend = DefaultFrontend{}
	}
	return &WebBrowser{
		broker:   broker,
		frontend: frontend,
		resolver: resolver,
		proc:     proc,
		metrics:  orNop(m),
		lc:       logger.NewLogContext(uuid.NewString()),
	}
}

// State returns the current lifecycle state.
func (w *WebBrowser) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// ShimKind returns the decoded variant. Zero before Initialize succeeds.
func (w *WebBrowser) ShimKind() webarg.ShimKind {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.header.ShimKind
}

// Document returns the offline resolution outcome. Meaningful only for
// offline invocations after Initialize.
func (w *WebBrowser) Document() ResolvedDocument {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.document
}

// Initialize pops the argument storages off the broker, decodes them and
// runs the variant's setup. For the offline variant that means resolving
// the document into the cache; every other variant only records its
// arguments.
func (w *WebBrowser) Initialize(ctx context.Context) error {
	if err := w.transition(StateCreated, StateInitialized); err != nil {
		return err
	}

	ctx = logger.WithContext(ctx, w.lc.WithProcedure("initialize"))
	ctx, span := telemetry.StartAppletSpan(ctx, "initialize", "")
	defer span.End()

	commonBlob, ok := w.broker.PopNormalDataToApplet()
	if !ok {
		return fmt.Errorf("%w: common arguments", ErrNoArguments)
	}
	argBlob, ok := w.broker.PopNormalDataToApplet()
	if !ok {
		return fmt.Errorf("%w: web arguments", ErrNoArguments)
	}

	commonArgs, err := webarg.DecodeCommonArguments(commonBlob)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}

	header, entries, err := webarg.Decode(argBlob)
	if err != nil {
		w.metrics.ObserveDecode("invalid", 0, true)
		telemetry.RecordError(ctx, err)
		return err
	}
	w.metrics.ObserveDecode(header.ShimKind.String(), len(entries), false)

	w.mu.Lock()
	w.commonArgs = commonArgs
	w.header = header
	w.entries = entries
	w.lc = w.lc.WithShimKind(header.ShimKind.String())
	w.mu.Unlock()

	ctx = logger.WithContext(ctx, w.lc.WithProcedure("initialize"))
	telemetry.SetAttributes(ctx,
		telemetry.ShimKind(header.ShimKind.String()),
		telemetry.EntryCount(len(entries)))

	logger.InfoCtx(ctx, "Web applet arguments decoded",
		logger.KeyEntryCount, len(entries),
		logger.KeyVersion, commonArgs.LibraryVersion)

	switch header.ShimKind {
	case webarg.ShimOffline:
		return w.initializeOffline(ctx)
	default:
		// The remaining variants carry their arguments but need no setup.
		logger.DebugCtx(ctx, "Variant requires no initialization")
		return nil
	}
}

func (w *WebBrowser) initializeOffline(ctx context.Context) error {
	req, err := DocumentRequestFromArgs(w.entries, w.proc)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}

	logger.InfoCtx(ctx, "Initializing offline document",
		logger.KeyTitleID, req.Title.String(),
		logger.KeyDocumentKind, req.Kind.String(),
		logger.KeyDocumentPath, req.Path)

	doc, err := w.resolver.Resolve(ctx, req)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}

	w.mu.Lock()
	w.document = doc
	w.mu.Unlock()
	return nil
}

// Execute runs the decoded variant. The offline variant hands the resolved
// document to the frontend and completes from its callback; the stub
// variants complete immediately.
func (w *WebBrowser) Execute(ctx context.Context) error {
	if err := w.transition(StateInitialized, StateExecuting); err != nil {
		return err
	}

	w.mu.Lock()
	kind := w.header.ShimKind
	doc := w.document
	w.mu.Unlock()

	ctx = logger.WithContext(ctx, w.lc.WithProcedure("execute"))
	ctx, span := telemetry.StartAppletSpan(ctx, "execute", kind.String())
	defer span.End()

	if kind != webarg.ShimOffline {
		logger.WarnCtx(ctx, "(STUBBED) web applet variant executed",
			logger.KeyShimKind, kind.String())
		return w.Exit(webarg.ExitEndButtonPressed, "")
	}

	if !doc.Resolved {
		logger.WarnCtx(ctx, "Offline document unresolved, completing without content")
		return w.Exit(webarg.ExitWindowClosed, "")
	}

	logger.InfoCtx(ctx, "Opening offline document",
		logger.KeyDocumentPath, doc.DocumentPath,
		logger.KeyCacheHit, doc.CacheHit)

	w.frontend.OpenLocalDocument(doc.DocumentPath, func(reason webarg.ExitReason, lastURL string) {
		if err := w.Exit(reason, lastURL); err != nil {
			logger.WarnCtx(ctx, "Completion callback ignored",
				logger.KeyExitReason, reason.String(), logger.Err(err))
		}
	})
	return nil
}

// ExecuteInteractive is part of the applet surface but unsupported by the
// web applet.
func (w *WebBrowser) ExecuteInteractive(ctx context.Context) error {
	return fmt.Errorf("%w: interactive execution", ErrNotImplemented)
}

// Exit completes the invocation: it serializes the return record, pushes
// it through the broker and raises the state-changed signal. Exactly one
// call succeeds; later calls return ErrAlreadyComplete and push nothing.
func (w *WebBrowser) Exit(reason webarg.ExitReason, lastURL string) error {
	w.mu.Lock()
	if w.complete {
		w.mu.Unlock()
		return ErrAlreadyComplete
	}
	w.complete = true
	w.state = StateComplete
	kind := w.header.ShimKind
	version := webarg.AppletVersion(w.commonArgs.LibraryVersion)
	w.mu.Unlock()

	ctx := logger.WithContext(context.Background(), w.lc.WithProcedure("exit"))

	// Newer callers of the share and web variants expect structured
	// output TLVs instead of this record. That path is unsupported;
	// they still get the legacy layout.
	if (kind == webarg.ShimShare && version >= webarg.VersionShareOutputTLV) ||
		(kind == webarg.ShimWeb && version >= webarg.VersionWebOutputTLV) {
		logger.DebugCtx(ctx, "Caller expects output TLVs, sending legacy record",
			logger.KeyVersion, uint32(version))
	}

	record := webarg.ReturnValue{ExitReason: reason, LastURL: lastURL}
	blob, err := record.Encode()
	if err != nil {
		// Refuse the oversized URL, not the completion. Only its length
		// reaches the log.
		logger.ErrorCtx(ctx, "Dropping last URL from return record", logger.Err(err),
			logger.KeyBytes, len(lastURL))
		record.LastURL = ""
		blob, _ = record.Encode()
	}

	logger.InfoCtx(ctx, "Web applet invocation complete",
		logger.KeyExitReason, reason.String(),
		logger.KeyLastURL, record.LastURL,
		logger.KeyDurationMs, w.lc.DurationMs())

	w.broker.PushNormalDataFromApplet(blob)
	w.broker.SignalStateChanged()
	w.metrics.ObserveCompletion(kind.String(), reason.String())
	return nil
}

// transition advances the lifecycle or fails with ErrBadState.
func (w *WebBrowser) transition(from, to State) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != from {
		return fmt.Errorf("%w: %s requires %s, applet is %s", ErrBadState, to, from, w.state)
	}
	w.state = to
	return nil
}
