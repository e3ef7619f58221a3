package transporthttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"example.com/brandevents/internal/apperr"
	"example.com/brandevents/internal/config"
	"example.com/brandevents/internal/diagnostics"
	"example.com/brandevents/internal/domain"
	"example.com/brandevents/internal/events"
	"example.com/brandevents/internal/tenant"
)

// EventService is the event core as seen by the transport.
type EventService interface {
	Save(ctx context.Context, tenantID, id string, payload domain.Patch, opts events.SaveOptions) (domain.Event, error)
	GetByID(ctx context.Context, tenantID, id string, opts events.GetOptions) (events.Item, error)
	ListByTenant(ctx context.Context, tenantID string, opts events.ListOptions) (events.Page, error)
	Update(ctx context.Context, tenantID, id string, patch domain.Patch, opts events.UpdateOptions) (domain.Event, error)
}

// Directory resolves tenants for endpoints outside the event core.
type Directory interface {
	Brand(ctx context.Context, id string) (tenant.Brand, bool)
}

// Pinger reports backing store readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PoolStats exposes worker pool counters.
type PoolStats interface {
	Metrics() map[string]int
}

type ServerDeps struct {
	Cfg         config.ServerConfig
	Service     EventService
	Directory   Directory
	Diagnostics diagnostics.Querier
	Store       Pinger
	Pool        PoolStats
	APIKeys     map[string]struct{}
	Logger      *zap.Logger
	Now         func() time.Time
}

// IdempotencyHeader carries the caller's submission token on create.
const IdempotencyHeader = "Idempotency-Key"

func decodePatch(r *http.Request) (domain.Patch, error) {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	return domain.PatchFromJSON(b)
}

func (d *ServerDeps) writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		WriteProblem(w, http.StatusRequestEntityTooLarge, "payload too large",
			"request body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes", nil)
		return
	}
	WriteProblem(w, http.StatusBadRequest, "invalid json", "request body must be a JSON object", nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func etag(fp string) string { return `"` + fp + `"` }

// ifNoneMatch extracts a single fingerprint from If-None-Match.
func ifNoneMatch(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("If-None-Match"))
	v = strings.TrimPrefix(v, "W/")
	return strings.Trim(v, `"`)
}

func notModified(w http.ResponseWriter, fp string) {
	w.Header().Set("ETag", etag(fp))
	w.WriteHeader(http.StatusNotModified)
}

// --- Health ---

func (d *ServerDeps) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (d *ServerDeps) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	if d.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := d.Store.Ping(ctx); err != nil {
			WriteProblem(w, http.StatusServiceUnavailable, "not ready", "event store not reachable", nil)
			return
		}
	}
	resp := map[string]any{"status": "ready"}
	if d.Pool != nil {
		resp["pool"] = d.Pool.Metrics()
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Events ---

func (d *ServerDeps) HandleCreateEvent(w http.ResponseWriter, r *http.Request) {
	defer DrainBody(r)
	p, err := decodePatch(r)
	if err != nil {
		d.writeDecodeError(w, err)
		return
	}
	ev, err := d.Service.Save(r.Context(), r.PathValue("tenant"), "", p, events.SaveOptions{
		Scope:          r.PathValue("scope"),
		Mode:           events.ModeCreate,
		TemplateID:     r.URL.Query().Get("template"),
		IdempotencyKey: r.Header.Get(IdempotencyHeader),
	})
	if err != nil {
		WriteError(w, r, d.Logger, err)
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+ev.ID)
	writeJSON(w, http.StatusCreated, ev)
}

func (d *ServerDeps) HandleReplaceEvent(w http.ResponseWriter, r *http.Request) {
	defer DrainBody(r)
	p, err := decodePatch(r)
	if err != nil {
		d.writeDecodeError(w, err)
		return
	}
	ev, err := d.Service.Save(r.Context(), r.PathValue("tenant"), r.PathValue("id"), p, events.SaveOptions{
		Scope:      r.PathValue("scope"),
		Mode:       events.ModeUpdate,
		TemplateID: r.URL.Query().Get("template"),
	})
	if err != nil {
		WriteError(w, r, d.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (d *ServerDeps) HandlePatchEvent(w http.ResponseWriter, r *http.Request) {
	defer DrainBody(r)
	p, err := decodePatch(r)
	if err != nil {
		d.writeDecodeError(w, err)
		return
	}
	ev, err := d.Service.Update(r.Context(), r.PathValue("tenant"), r.PathValue("id"), p, events.UpdateOptions{
		Scope:      r.PathValue("scope"),
		TemplateID: r.URL.Query().Get("template"),
	})
	if err != nil {
		WriteError(w, r, d.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (d *ServerDeps) HandleGetEvent(w http.ResponseWriter, r *http.Request) {
	sponsors, _ := strconv.ParseBool(r.URL.Query().Get("sponsors"))
	item, err := d.Service.GetByID(r.Context(), r.PathValue("tenant"), r.PathValue("id"), events.GetOptions{
		Scope:           r.PathValue("scope"),
		HydrateSponsors: sponsors,
		IfNoneMatch:     ifNoneMatch(r),
	})
	if err != nil {
		WriteError(w, r, d.Logger, err)
		return
	}
	if item.NotModified {
		notModified(w, item.Fingerprint)
		return
	}
	w.Header().Set("ETag", etag(item.Fingerprint))
	writeJSON(w, http.StatusOK, item.Event)
}

func (d *ServerDeps) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := optionalInt(q.Get("limit"))
	if err != nil {
		WriteProblem(w, http.StatusBadRequest, "invalid parameters", "limit must be an integer", nil)
		return
	}
	offset, err := optionalInt(q.Get("offset"))
	if err != nil {
		WriteProblem(w, http.StatusBadRequest, "invalid parameters", "offset must be an integer", nil)
		return
	}
	page, err := d.Service.ListByTenant(r.Context(), r.PathValue("tenant"), events.ListOptions{
		Scope:       r.PathValue("scope"),
		Limit:       limit,
		Offset:      offset,
		IfNoneMatch: ifNoneMatch(r),
	})
	if err != nil {
		WriteError(w, r, d.Logger, err)
		return
	}
	if page.NotModified {
		notModified(w, page.Fingerprint)
		return
	}
	w.Header().Set("ETag", etag(page.Fingerprint))
	writeJSON(w, http.StatusOK, page)
}

func optionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// --- Diagnostics ---

const defaultWindowSeconds = int64(24 * 60 * 60)  // last 24h default
const maxWindowSeconds = int64(90 * 24 * 60 * 60) // cap at 90 days (guardrail)

// parseWindow reads from/to epoch seconds, defaulting to the last 24h.
func parseWindow(q url.Values, now int64) (from, to int64, err error) {
	fromStr, toStr := q.Get("from"), q.Get("to")

	to = now
	if toStr != "" {
		if to, err = strconv.ParseInt(toStr, 10, 64); err != nil {
			return 0, 0, errors.New("to must be epoch seconds")
		}
	}
	from = to - defaultWindowSeconds
	if fromStr != "" {
		if from, err = strconv.ParseInt(fromStr, 10, 64); err != nil {
			return 0, 0, errors.New("from must be epoch seconds")
		}
	}
	if from > to {
		return 0, 0, errors.New("from must not be after to")
	}
	if to-from > maxWindowSeconds {
		from = to - maxWindowSeconds
	}
	return from, to, nil
}

func (d *ServerDeps) HandleGetDiagnostics(w http.ResponseWriter, r *http.Request) {
	tenantID := r.PathValue("tenant")
	if _, ok := d.Directory.Brand(r.Context(), tenantID); !ok {
		WriteError(w, r, d.Logger, apperr.NotFound(apperr.CodeTenantNotFound, "unknown tenant"))
		return
	}
	from, to, err := parseWindow(r.URL.Query(), d.Now().Unix())
	if err != nil {
		WriteProblem(w, http.StatusBadRequest, "invalid parameters", err.Error(), nil)
		return
	}
	sum, err := diagnostics.Summarize(r.Context(), d.Diagnostics, tenantID, from, to)
	if err != nil {
		WriteError(w, r, d.Logger, apperr.Internal(apperr.CodeStoreFailure, "could not read diagnostics", err))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// --- Router ---

func (d *ServerDeps) Router() http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	auth := APIKeyAuth(d.APIKeys)
	writeLimit := RateLimitPerMinute(d.Cfg.WriteRateLimitMin, d.Now)

	write := func(h http.HandlerFunc) http.Handler {
		var out http.Handler = h
		out = BodyLimit(d.Cfg.MaxBodyBytes)(out)
		out = RequireJSON(out)
		out = writeLimit(out)
		return auth(out)
	}
	read := func(h http.HandlerFunc) http.Handler { return auth(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", d.HandleHealthz)
	mux.HandleFunc("GET /readyz", d.HandleReadyz)

	mux.Handle("POST /{tenant}/{scope}/events", write(d.HandleCreateEvent))
	mux.Handle("GET /{tenant}/{scope}/events", read(d.HandleListEvents))
	mux.Handle("GET /{tenant}/{scope}/events/{id}", read(d.HandleGetEvent))
	mux.Handle("PUT /{tenant}/{scope}/events/{id}", write(d.HandleReplaceEvent))
	mux.Handle("PATCH /{tenant}/{scope}/events/{id}", write(d.HandlePatchEvent))
	mux.Handle("GET /{tenant}/diagnostics", read(d.HandleGetDiagnostics))

	var h http.Handler = mux
	h = AccessLog(d.Logger, d.Now)(h)
	return RequestID(h)
}
