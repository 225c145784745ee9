// Package convertapi exposes the two conversion directions over HTTP,
// standing in for the "HTTP/DAV surface" that invokes this converter as an
// external caller (spec.md §1 places that surface itself out of scope).
package convertapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/jscalical/internal/config"
	"github.com/sonroyaalmerol/jscalical/internal/convert"
	"github.com/sonroyaalmerol/jscalical/internal/tzcache"
	ical "github.com/sonroyaalmerol/jscalical/pkg/ical"
)

type Server struct {
	http   *http.Server
	logger zerolog.Logger
}

// NewServer builds the converter's HTTP surface: POST /v1/to-jmap and
// POST /v1/to-ical, plus GET /healthz. There is no auth, storage, or
// routing table to build beyond that single mux, since the core is a pure
// transformer (spec.md §5).
func NewServer(cfg *config.Config, logger zerolog.Logger) *Server {
	tz := tzcache.New()
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/v1/to-jmap", withRequestLog(logger, handleToJMAP(cfg, tz)))
	mux.HandleFunc("/v1/to-ical", withRequestLog(logger, handleToICal(cfg, tz)))

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info().Msgf("listening on %s", s.http.Addr)
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// withRequestLog assigns a req_id correlation field (mirroring the
// teacher's per-request logger field pattern) and logs method/path/status/
// duration once the handler returns.
func withRequestLog(logger zerolog.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		reqLogger := logger.With().Str("req_id", reqID).Logger()
		r = r.WithContext(withLogger(r.Context(), reqLogger))

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		reqLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.status = code
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(code)
}

type loggerKey struct{}

func withLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

func loggerFrom(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
		return l
	}
	return zerolog.Nop()
}

// toJMAPRequest/toICalRequest are the two request bodies this surface
// accepts: either raw ICS text or a raw JSCalendar event object, plus an
// optional property filter for the ICS->JSON direction.
type toJMAPRequest struct {
	ICS    string   `json:"ics"`
	Props  []string `json:"props,omitempty"`
	Pretty *bool    `json:"pretty,omitempty"`
}

type toICalRequest struct {
	Event  json.RawMessage `json:"event"`
	ProdID string          `json:"prodId,omitempty"`
}

func handleToJMAP(cfg *config.Config, tz *tzcache.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		body, err := readBody(r, cfg.MaxBodyBytes)
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}

		var req toJMAPRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
			return
		}
		pretty := cfg.PrettyJSON
		if req.Pretty != nil {
			pretty = *req.Pretty
		}

		cal, err := ical.Decode([]byte(req.ICS))
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed icalendar: "+err.Error())
			return
		}

		result, err := convert.AsJeventString(tz, cal, req.Props, pretty, loggerFrom(r.Context()))
		if err != nil {
			loggerFrom(r.Context()).Warn().Err(err).Msg("to_jmap failed")
			writeError(w, statusForConvertErr(err), err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result)
	}
}

func handleToICal(cfg *config.Config, tz *tzcache.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		body, err := readBody(r, cfg.MaxBodyBytes)
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}

		var req toICalRequest
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
			return
		}
		if len(req.Event) == 0 {
			writeError(w, http.StatusBadRequest, "missing event")
			return
		}
		prodID := req.ProdID
		if prodID == "" {
			prodID = cfg.ICS.BuildProdID()
		}

		cal, err := convert.FromJeventString(tz, req.Event, prodID, cfg.DefaultCUAS, loggerFrom(r.Context()))
		if err != nil {
			loggerFrom(r.Context()).Warn().Err(err).Msg("to_ical failed")
			writeError(w, statusForConvertErr(err), err.Error())
			return
		}
		ics, err := ical.Encode(cal)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "encode icalendar: "+err.Error())
			return
		}

		w.Header().Set("Content-Type", "text/calendar")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(ics)
	}
}

func readBody(r *http.Request, maxBytes int64) ([]byte, error) {
	limited := io.LimitReader(r.Body, maxBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, errBodyTooLarge
	}
	return data, nil
}

var errBodyTooLarge = errors.New("request body exceeds max size")

// statusForConvertErr maps the converter's ErrorKind taxonomy onto HTTP
// status codes: a UID/Props/ICal failure is the caller's fault (400), any
// other kind (Memory/Callback/Unknown) is ours (500).
func statusForConvertErr(err error) int {
	var cerr *convert.ConvertError
	if errors.As(err, &cerr) {
		switch cerr.Kind {
		case convert.UID, convert.Props, convert.ICal:
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
