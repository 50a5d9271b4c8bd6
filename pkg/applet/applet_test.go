package applet

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"testing"

	"github.com/marmos91/webshim/internal/logger"
	"github.com/marmos91/webshim/pkg/content"
	"github.com/marmos91/webshim/pkg/webarg"
)

// recordingFrontend opens nothing and completes with a fixed outcome.
type recordingFrontend struct {
	openedPath string
	reason     webarg.ExitReason
	lastURL    string
	fireTwice  bool
}

func (f *recordingFrontend) OpenLocalDocument(path string, onComplete CompletionFunc) {
	f.openedPath = path
	onComplete(f.reason, f.lastURL)
	if f.fireTwice {
		onComplete(webarg.ExitErrorDialog, "http://second.invalid/")
	}
}

func testCommonArgs() webarg.CommonArguments {
	return webarg.CommonArguments{
		ArgumentsVersion: 1,
		Size:             webarg.CommonArgumentsSize,
		LibraryVersion:   0x20000,
	}
}

func newTestHost(t *testing.T, frontend Frontend, trees map[string]fs.FS) *Host {
	t.Helper()
	resolver, _ := newTestResolver(t, &fakeProvider{trees: trees}, nil, nil)
	return NewHost(frontend, resolver, StaticProcess(testTitle), nil)
}

func TestStubVariantsCompleteImmediately(t *testing.T) {
	kinds := []webarg.ShimKind{
		webarg.ShimShop, webarg.ShimLogin, webarg.ShimShare,
		webarg.ShimWeb, webarg.ShimWifi, webarg.ShimLobby,
	}

	for _, kind := range kinds {
		t.Run(kind.String(), func(t *testing.T) {
			host := newTestHost(t, nil, nil)

			blob := webarg.NewBuilder(kind).
				String(webarg.TLVInitialURL, "https://example.invalid/").
				Build()

			ret, err := host.Invoke(context.Background(), testCommonArgs(), blob)
			if err != nil {
				t.Fatalf("Invoke failed: %v", err)
			}
			if ret.ExitReason != webarg.ExitEndButtonPressed {
				t.Errorf("exit reason = %s, want end_button_pressed", ret.ExitReason)
			}
			if ret.LastURL != "" {
				t.Errorf("last URL = %q, want empty", ret.LastURL)
			}
		})
	}
}

func TestOfflineInvocationOpensResolvedDocument(t *testing.T) {
	frontend := &recordingFrontend{reason: webarg.ExitCallbackURL, lastURL: "http://callback.invalid/done"}
	host := newTestHost(t, frontend, map[string]fs.FS{
		providerKey(testTitle, content.CategoryHtmlDocument): manualTree(),
	})

	blob := webarg.NewBuilder(webarg.ShimOffline).
		DocumentKind(webarg.DocumentOfflineHtmlPage).
		String(webarg.TLVDocumentPath, "index.html?lang=en&theme=dark").
		Build()

	ret, err := host.Invoke(context.Background(), testCommonArgs(), blob)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if ret.ExitReason != webarg.ExitCallbackURL {
		t.Errorf("exit reason = %s", ret.ExitReason)
	}
	if ret.LastURL != "http://callback.invalid/done" {
		t.Errorf("last URL = %q", ret.LastURL)
	}

	// The frontend gets the query string; only the cache lookup strips it.
	if !strings.HasSuffix(frontend.openedPath, "html-document/index.html?lang=en&theme=dark") {
		t.Errorf("frontend opened %q", frontend.openedPath)
	}
}

func TestOfflineDefaultFrontendClosesWindow(t *testing.T) {
	host := newTestHost(t, nil, map[string]fs.FS{
		providerKey(testTitle, content.CategoryHtmlDocument): manualTree(),
	})

	blob := webarg.NewBuilder(webarg.ShimOffline).
		DocumentKind(webarg.DocumentOfflineHtmlPage).
		String(webarg.TLVDocumentPath, "index.html").
		Build()

	ret, err := host.Invoke(context.Background(), testCommonArgs(), blob)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if ret.ExitReason != webarg.ExitWindowClosed {
		t.Errorf("exit reason = %s, want window_closed", ret.ExitReason)
	}
	if ret.LastURL != "http://localhost/" {
		t.Errorf("last URL = %q", ret.LastURL)
	}
}

func TestOfflineUnresolvedCompletesWithoutContent(t *testing.T) {
	frontend := &recordingFrontend{reason: webarg.ExitCallbackURL}
	host := newTestHost(t, frontend, nil)

	blob := webarg.NewBuilder(webarg.ShimOffline).
		DocumentKind(webarg.DocumentApplicationLegalInformation).
		Uint64(webarg.TLVApplicationID, 0x0100BBBB00000000).
		String(webarg.TLVDocumentPath, "legal.html").
		Build()

	ret, err := host.Invoke(context.Background(), testCommonArgs(), blob)
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if ret.ExitReason != webarg.ExitWindowClosed {
		t.Errorf("exit reason = %s, want window_closed", ret.ExitReason)
	}
	if frontend.openedPath != "" {
		t.Errorf("frontend must not open anything, opened %q", frontend.openedPath)
	}
}

func TestInvalidShimKindRejected(t *testing.T) {
	host := newTestHost(t, nil, nil)

	blob := make([]byte, webarg.HeaderSize)
	blob[4] = 9 // outside the closed set

	_, err := host.Invoke(context.Background(), testCommonArgs(), blob)
	if !errors.Is(err, webarg.ErrInvalidShimKind) {
		t.Fatalf("err = %v, want ErrInvalidShimKind", err)
	}
}

func TestOfflineMissingFieldFailsInitialize(t *testing.T) {
	host := newTestHost(t, nil, nil)

	// Offline without a document kind entry.
	blob := webarg.NewBuilder(webarg.ShimOffline).
		String(webarg.TLVDocumentPath, "index.html").
		Build()

	_, err := host.Invoke(context.Background(), testCommonArgs(), blob)
	if !errors.Is(err, webarg.ErrMissingField) {
		t.Fatalf("err = %v, want ErrMissingField", err)
	}
}

func newTestBrowser(t *testing.T, frontend Frontend, argBlob []byte) (*WebBrowser, *DataBroker) {
	t.Helper()
	resolver, _ := newTestResolver(t, &fakeProvider{trees: map[string]fs.FS{
		providerKey(testTitle, content.CategoryHtmlDocument): manualTree(),
	}}, nil, nil)

	broker := NewDataBroker()
	broker.PushNormalDataToApplet(webarg.EncodeCommonArguments(testCommonArgs()))
	broker.PushNormalDataToApplet(argBlob)
	return NewWebBrowser(broker, frontend, resolver, StaticProcess(testTitle), nil), broker
}

func TestDoubleCompletionPushesOneRecord(t *testing.T) {
	frontend := &recordingFrontend{reason: webarg.ExitBackButtonPressed, fireTwice: true}
	blob := webarg.NewBuilder(webarg.ShimOffline).
		DocumentKind(webarg.DocumentOfflineHtmlPage).
		String(webarg.TLVDocumentPath, "index.html").
		Build()
	w, broker := newTestBrowser(t, frontend, blob)

	if err := w.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := w.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	first, ok := broker.PopNormalDataFromApplet()
	if !ok {
		t.Fatal("no return record pushed")
	}
	if _, ok := broker.PopNormalDataFromApplet(); ok {
		t.Fatal("second completion pushed a second record")
	}

	ret, err := webarg.DecodeReturnValue(first)
	if err != nil {
		t.Fatal(err)
	}
	if ret.ExitReason != webarg.ExitBackButtonPressed {
		t.Errorf("exit reason = %s, want the first callback's", ret.ExitReason)
	}
}

func TestExitTwiceReturnsAlreadyComplete(t *testing.T) {
	blob := webarg.NewBuilder(webarg.ShimWifi).Build()
	w, _ := newTestBrowser(t, nil, blob)

	if err := w.Exit(webarg.ExitRequested, ""); err != nil {
		t.Fatalf("first Exit failed: %v", err)
	}
	if err := w.Exit(webarg.ExitRequested, ""); !errors.Is(err, ErrAlreadyComplete) {
		t.Fatalf("second Exit err = %v, want ErrAlreadyComplete", err)
	}
	if w.State() != StateComplete {
		t.Errorf("state = %s, want complete", w.State())
	}
}

func TestExitOversizedURLDropsURL(t *testing.T) {
	var logs bytes.Buffer
	logger.InitWithWriter(&logs, "INFO", "text", false)
	defer logger.InitWithWriter(os.Stdout, "INFO", "text", false)

	blob := webarg.NewBuilder(webarg.ShimLobby).Build()
	w, broker := newTestBrowser(t, nil, blob)

	huge := strings.Repeat("a", webarg.LastURLCapacity+1)
	if err := w.Exit(webarg.ExitCallbackURL, huge); err != nil {
		t.Fatalf("Exit failed: %v", err)
	}

	record, ok := broker.PopNormalDataFromApplet()
	if !ok {
		t.Fatal("no return record pushed")
	}
	ret, err := webarg.DecodeReturnValue(record)
	if err != nil {
		t.Fatal(err)
	}
	if ret.ExitReason != webarg.ExitCallbackURL {
		t.Errorf("exit reason = %s", ret.ExitReason)
	}
	if ret.LastURL != "" {
		t.Errorf("oversized URL must be dropped, got %d bytes", len(ret.LastURL))
	}

	// The logs carry the URL's length, never the URL itself.
	if strings.Contains(logs.String(), huge[:64]) {
		t.Error("completion log leaked the dropped URL")
	}
}

func TestInitializeWithoutStorages(t *testing.T) {
	broker := NewDataBroker()
	w := NewWebBrowser(broker, nil, nil, StaticProcess(testTitle), nil)

	if err := w.Initialize(context.Background()); !errors.Is(err, ErrNoArguments) {
		t.Fatalf("err = %v, want ErrNoArguments", err)
	}
}

func TestInitializeShortCommonArgs(t *testing.T) {
	broker := NewDataBroker()
	broker.PushNormalDataToApplet(make([]byte, 4))
	broker.PushNormalDataToApplet(webarg.NewBuilder(webarg.ShimShop).Build())
	w := NewWebBrowser(broker, nil, nil, StaticProcess(testTitle), nil)

	if err := w.Initialize(context.Background()); !errors.Is(err, webarg.ErrMalformedArgument) {
		t.Fatalf("err = %v, want ErrMalformedArgument", err)
	}
}

func TestExecuteBeforeInitialize(t *testing.T) {
	w := NewWebBrowser(NewDataBroker(), nil, nil, StaticProcess(testTitle), nil)

	if err := w.Execute(context.Background()); !errors.Is(err, ErrBadState) {
		t.Fatalf("err = %v, want ErrBadState", err)
	}
}

func TestExecuteInteractiveUnsupported(t *testing.T) {
	w := NewWebBrowser(NewDataBroker(), nil, nil, StaticProcess(testTitle), nil)

	if err := w.ExecuteInteractive(context.Background()); !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("err = %v, want ErrNotImplemented", err)
	}
}

func TestStateProgression(t *testing.T) {
	blob := webarg.NewBuilder(webarg.ShimShop).Build()
	w, _ := newTestBrowser(t, nil, blob)

	if w.State() != StateCreated {
		t.Fatalf("state = %s, want created", w.State())
	}
	if err := w.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}
	if w.State() != StateInitialized {
		t.Fatalf("state = %s, want initialized", w.State())
	}
	if err := w.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Stub variants complete during Execute.
	if w.State() != StateComplete {
		t.Fatalf("state = %s, want complete", w.State())
	}
	if w.ShimKind() != webarg.ShimShop {
		t.Errorf("shim kind = %s", w.ShimKind())
	}
}
