package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for applet operations.
// Applet lifecycle keys use the "applet." prefix, content and cache keys
// their own.
const (
	// ========================================================================
	// Applet lifecycle attributes
	// ========================================================================
	AttrShimKind      = "applet.shim_kind"
	AttrProcedure     = "applet.procedure"
	AttrInvocationID  = "applet.invocation_id"
	AttrAppletVersion = "applet.version"
	AttrExitReason    = "applet.exit_reason"
	AttrLastURL       = "applet.last_url"
	AttrEntryCount    = "applet.entry_count"

	// ========================================================================
	// Document attributes
	// ========================================================================
	AttrTitleID      = "doc.title_id"
	AttrCategory     = "doc.category"
	AttrDocumentKind = "doc.kind"
	AttrDocumentPath = "doc.path"

	// ========================================================================
	// Cache attributes
	// ========================================================================
	AttrCacheHit    = "cache.hit"
	AttrCacheSource = "cache.source"
	AttrCacheDir    = "cache.dir"

	// ========================================================================
	// Content store attributes
	// ========================================================================
	AttrStorePath = "store.path"
	AttrBytes     = "store.bytes"

	// ========================================================================
	// Client attributes (API surface)
	// ========================================================================
	AttrClientIP   = "client.ip"
	AttrClientAddr = "client.address"
)

// Span names for operations.
// Format: <component>.<operation>
const (
	SpanAppletInitialize = "applet.initialize"
	SpanAppletExecute    = "applet.execute"
	SpanAppletExit       = "applet.exit"

	SpanOfflineResolve = "offline.resolve"
	SpanCacheLookup    = "cache.lookup"
	SpanCacheExtract   = "cache.extract"
	SpanContentGet     = "content.get"
	SpanContentList    = "content.list"
)

// ClientIP returns an attribute for client IP address
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// ClientAddr returns an attribute for full client address
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// ShimKind returns an attribute for the invocation's shim kind
func ShimKind(kind string) attribute.KeyValue {
	return attribute.String(AttrShimKind, kind)
}

// Procedure returns an attribute for the lifecycle procedure name
func Procedure(name string) attribute.KeyValue {
	return attribute.String(AttrProcedure, name)
}

// InvocationID returns an attribute for the invocation identifier
func InvocationID(id string) attribute.KeyValue {
	return attribute.String(AttrInvocationID, id)
}

// ExitReason returns an attribute for the completion exit reason
func ExitReason(reason string) attribute.KeyValue {
	return attribute.String(AttrExitReason, reason)
}

// EntryCount returns an attribute for the decoded argument entry count
func EntryCount(n int) attribute.KeyValue {
	return attribute.Int(AttrEntryCount, n)
}

// TitleID returns an attribute for a content title id (16 hex digits)
func TitleID(id string) attribute.KeyValue {
	return attribute.String(AttrTitleID, id)
}

// Category returns an attribute for a content category
func Category(category string) attribute.KeyValue {
	return attribute.String(AttrCategory, category)
}

// DocumentKind returns an attribute for the offline document kind
func DocumentKind(kind string) attribute.KeyValue {
	return attribute.String(AttrDocumentKind, kind)
}

// DocumentPath returns an attribute for the requested document path
func DocumentPath(path string) attribute.KeyValue {
	return attribute.String(AttrDocumentPath, path)
}

// CacheHit returns an attribute for cache hit indicator
func CacheHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrCacheHit, hit)
}

// CacheSource returns an attribute for the archive source
func CacheSource(source string) attribute.KeyValue {
	return attribute.String(AttrCacheSource, source)
}

// CacheDir returns an attribute for the extraction directory
func CacheDir(dir string) attribute.KeyValue {
	return attribute.String(AttrCacheDir, dir)
}

// StorePath returns an attribute for a registered archive path
func StorePath(path string) attribute.KeyValue {
	return attribute.String(AttrStorePath, path)
}

// Bytes returns an attribute for a byte count
func Bytes(n int64) attribute.KeyValue {
	return attribute.Int64(AttrBytes, n)
}

// StartAppletSpan starts a span for a lifecycle procedure.
// This is a convenience function that sets common attributes.
func StartAppletSpan(ctx context.Context, procedure, shimKind string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		Procedure(procedure),
	}
	if shimKind != "" {
		allAttrs = append(allAttrs, ShimKind(shimKind))
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "applet."+procedure, trace.WithAttributes(allAttrs...))
}

// StartResolveSpan starts a span for an offline document resolution.
func StartResolveSpan(ctx context.Context, titleID, category string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		TitleID(titleID),
		Category(category),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanOfflineResolve, trace.WithAttributes(allAttrs...))
}

// StartContentSpan starts a span for a content store operation.
func StartContentSpan(ctx context.Context, operation string, titleID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		TitleID(titleID),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "content."+operation, trace.WithAttributes(allAttrs...))
}

// StartCacheSpan starts a span for a cache operation.
func StartCacheSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, "cache."+operation, trace.WithAttributes(attrs...))
}
