// Package router adapts the protocol façade to HTTP: body limits, response
// caching, identical-inquiry collapsing and per-inquiry logging and metrics.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mohammed-shakir/afc-spectrum-engine/internal/cache"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/cache/keys"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/core/observability"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/incumbents"
	mylog "github.com/mohammed-shakir/afc-spectrum-engine/internal/logger"
	"github.com/mohammed-shakir/afc-spectrum-engine/internal/protocol"
)

const (
	InquiryRoute   = "/v1/availableSpectrumInquiry"
	DefaultMaxBody = 1 << 20
)

// ErrNoSnapshot answers inquiries that arrive before any incumbent snapshot
// has been published.
var ErrNoSnapshot = errors.New("no incumbent snapshot loaded")

// Snapshots yields the incumbent snapshot to evaluate against. Version 0
// means nothing has been published yet.
type Snapshots interface {
	Current() *incumbents.Snapshot
}

type Options struct {
	// Cache is optional; nil disables response caching.
	Cache     cache.Interface
	CacheTTL  time.Duration
	OpTimeout time.Duration
	// ConfigFP is folded into cache keys so differently configured
	// deployments sharing a cache never see each other's answers.
	ConfigFP uint64
	MaxBody  int64
}

type Inquiry struct {
	logger *slog.Logger
	facade *protocol.Facade
	snaps  Snapshots
	opts   Options
	group  singleflight.Group
}

func NewInquiry(logger *slog.Logger, f *protocol.Facade, snaps Snapshots, opts Options) *Inquiry {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = DefaultMaxBody
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 250 * time.Millisecond
	}
	return &Inquiry{logger: logger, facade: f, snaps: snaps, opts: opts}
}

// cachedResponse is what the response cache stores.
type cachedResponse struct {
	Basis    string            `json:"basis"`
	Response protocol.Response `json:"response"`
}

// ServeHTTP always answers 200 with a protocol response unless the body
// cannot be read.
func (h *Inquiry) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxBody))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "read request body", http.StatusBadRequest)
		return
	}

	snap := h.snaps.Current()
	ctx := mylog.WithSnapshotVersion(r.Context(), snap.Version)
	out, cached := h.answer(ctx, body, snap)
	ctx = mylog.WithBasis(ctx, out.Basis)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out.Response); err != nil {
		h.logger.WarnContext(ctx, "write response", "err", err)
	}

	code := out.Response.Response.ResponseCode
	dur := time.Since(start)
	observability.ObserveInquiry(int(code), out.Basis, cached, dur.Seconds())

	attrs := []slog.Attr{
		slog.Int("code", int(code)),
		slog.Bool("cached", cached),
		slog.Duration("duration", dur),
	}
	if out.Err != nil {
		attrs = append(attrs, slog.String("err", out.Err.Error()))
	}
	lvl := slog.LevelInfo
	if code == protocol.CodeGeneralFailure {
		lvl = slog.LevelError
	}
	h.logger.LogAttrs(ctx, lvl, "inquiry answered", attrs...)
}

func (h *Inquiry) answer(ctx context.Context, body []byte, snap *incumbents.Snapshot) (protocol.Outcome, bool) {
	req, err := h.facade.Decode(body)
	if err != nil {
		return h.facade.Reject(req.RequestID, err), false
	}
	if snap.Version == 0 {
		// never evaluate against an unloaded incumbent set
		return h.facade.Reject(req.RequestID, ErrNoSnapshot), false
	}
	canon, err := protocol.Canonical(req)
	if err != nil {
		return h.facade.HandleRequest(ctx, req, snap.Receivers), false
	}
	key := keys.Inquiry(snap.Version, h.opts.ConfigFP, canon)

	if hit, ok := h.lookup(ctx, key); ok {
		return protocol.Outcome{Response: h.facade.Restamp(hit.Response, req.RequestID), Basis: hit.Basis}, true
	}

	v, _, _ := h.group.Do(key, func() (any, error) {
		out := h.facade.HandleRequest(context.WithoutCancel(ctx), req, snap.Receivers)
		recordDecisions(out)
		if out.Err == nil {
			h.store(ctx, key, cachedResponse{Basis: out.Basis, Response: out.Response})
		}
		return out, nil
	})
	out := v.(protocol.Outcome)
	out.Response.RequestID = req.RequestID
	return out, false
}

func (h *Inquiry) lookup(ctx context.Context, key string) (cachedResponse, bool) {
	var c cachedResponse
	if h.opts.Cache == nil {
		return c, false
	}
	opCtx, cancel := context.WithTimeout(ctx, h.opts.OpTimeout)
	defer cancel()

	b, ok, err := h.opts.Cache.Get(opCtx, key)
	if err != nil {
		h.logger.WarnContext(ctx, "cache get failed", "err", err)
	}
	if !ok {
		observability.IncCacheMiss()
		return c, false
	}
	if err := json.Unmarshal(b, &c); err != nil {
		h.logger.WarnContext(ctx, "cache entry undecodable", "err", err)
		observability.IncCacheMiss()
		return c, false
	}
	observability.IncCacheHit()
	return c, true
}

func (h *Inquiry) store(ctx context.Context, key string, c cachedResponse) {
	if h.opts.Cache == nil {
		return
	}
	b, err := json.Marshal(c)
	if err != nil {
		h.logger.WarnContext(ctx, "cache encode failed", "err", err)
		return
	}
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.opts.OpTimeout)
	defer cancel()
	if err := h.opts.Cache.Set(opCtx, key, b, h.opts.CacheTTL); err != nil {
		h.logger.WarnContext(ctx, "cache set failed", "err", err)
	}
}

func recordDecisions(out protocol.Outcome) {
	excluded := 0
	for _, rec := range out.Records {
		observability.ObserveDecision(string(rec.Decision), string(rec.Trace.Cause))
		excluded += len(rec.Excluded)
	}
	observability.AddExclusions(excluded)
}
