package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging. Use these keys consistently
// across all log statements so invocations can be correlated end to end,
// from argument decode through offline resolution to completion.
const (
	// Distributed tracing
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// Applet invocation
	KeyInvocationID = "invocation_id"  // Unique ID assigned per applet invocation
	KeyShimKind     = "shim_kind"      // Behavior variant: shop, login, offline, ...
	KeyProcedure    = "procedure"      // Lifecycle step: initialize, execute, exit
	KeyAppletState  = "applet_state"   // Lifecycle state after a transition
	KeyExitReason   = "exit_reason"    // Reason reported in the return value
	KeyLastURL      = "last_url"       // URL reported in the return value
	KeyVersion      = "applet_version" // Library version from the common arguments

	// Content resolution
	KeyTitleID      = "title_id"      // 16-hex-digit title identifier
	KeyCategory     = "category"      // Archive category: html_document, legal_information, data
	KeyDocumentKind = "document_kind" // Offline document kind
	KeyDocumentPath = "document_path" // Requested document path
	KeyCacheDir     = "cache_dir"     // Resolved cache directory
	KeyCacheHit     = "cache_hit"     // Whether resolution was served from cache
	KeySource       = "source"        // Archive source: system_store, provider, synthesized

	// Filesystem
	KeyPath  = "path"  // Full file or directory path
	KeyBytes = "bytes" // Byte count for copies and payloads

	// Client / API
	KeyClientIP  = "client_ip"  // API client IP address
	KeyRequestID = "request_id" // HTTP request ID

	// Operation metadata
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyEntryCount = "entry_count" // Number of decoded TLV entries
)

// Err returns a standard error attribute, tolerating nil errors.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "<nil>")
	}
	return slog.String(KeyError, err.Error())
}

// TitleID formats a title id attribute with the canonical 16-hex-digit
// rendering used in cache paths.
func TitleID(id uint64) slog.Attr {
	return slog.String(KeyTitleID, fmt.Sprintf("%016X", id))
}
