package applet

import (
	"context"
	"fmt"

	"github.com/marmos91/webshim/pkg/webarg"
)

// Host drives web applet invocations end to end: it owns the
// collaborators shared across invocations and runs one lifecycle per
// Invoke call.
type Host struct {
	frontend Frontend
	resolver *Resolver
	proc     ProcessContext
	metrics  Metrics
}

// NewHost creates a host. A nil frontend falls back to the stub and nil
// metrics disable collection.
func NewHost(frontend Frontend, resolver *Resolver, proc ProcessContext, m Metrics) *Host {
	return &Host{
		frontend: frontend,
		resolver: resolver,
		proc:     proc,
		metrics:  m,
	}
}

// Invoke runs one invocation: it builds the broker, pushes the argument
// storages, drives Initialize and Execute and blocks until the applet
// raises the state-changed signal or the context ends. The decoded return
// record is handed back to the caller.
func (h *Host) Invoke(ctx context.Context, commonArgs webarg.CommonArguments, argBlob []byte) (webarg.ReturnValue, error) {
	broker := NewDataBroker()
	broker.PushNormalDataToApplet(webarg.EncodeCommonArguments(commonArgs))
	broker.PushNormalDataToApplet(argBlob)

	w := NewWebBrowser(broker, h.frontend, h.resolver, h.proc, h.metrics)

	if err := w.Initialize(ctx); err != nil {
		return webarg.ReturnValue{}, fmt.Errorf("initializing applet: %w", err)
	}
	if err := w.Execute(ctx); err != nil {
		return webarg.ReturnValue{}, fmt.Errorf("executing applet: %w", err)
	}

	select {
	case <-ctx.Done():
		return webarg.ReturnValue{}, ctx.Err()
	case <-broker.StateChanged():
	}

	blob, ok := broker.PopNormalDataFromApplet()
	if !ok {
		return webarg.ReturnValue{}, fmt.Errorf("applet signaled completion without a return record")
	}
	return webarg.DecodeReturnValue(blob)
}
