package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

const (
	// IdempotencyKeyHeader names the client-chosen replay key.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotentReplayHeader marks responses served from a stored record.
	IdempotentReplayHeader = "Idempotent-Replayed"

	defaultIdempotencyTTL = 24 * time.Hour
	inFlightTTL           = 2 * time.Minute
)

type replayState string

const (
	statePending  replayState = "pending"
	stateComplete replayState = "complete"
)

// replayRecord is what a key holds: a pending marker while the first request
// runs, then the response it produced.
type replayRecord struct {
	State       replayState `json:"state"`
	RequestHash string      `json:"request_hash"`
	Status      int         `json:"status,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
	Body        []byte      `json:"body,omitempty"`
}

type replayGuard struct {
	store       pkgredis.IdempotencyStore
	ttl         time.Duration
	keyRequired bool
	logg        *logger.Logger
}

// IdempotencyOption configures one route's replay guard.
type IdempotencyOption func(*replayGuard)

// RequireIdempotencyKey rejects requests that arrive without a key.
func RequireIdempotencyKey() IdempotencyOption {
	return func(g *replayGuard) { g.keyRequired = true }
}

// Idempotency makes a route safe to retry. The first request with a key
// claims it, later requests with the same key and body get the stored
// response, and a request that races the first one is refused until it
// finishes. Server errors release the key so the client can retry.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger, opts ...IdempotencyOption) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	g := &replayGuard{store: store, ttl: ttl, logg: logg}
	for _, opt := range opts {
		opt(g)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.serve(next, w, r)
		})
	}
}

func (g *replayGuard) serve(next http.Handler, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	if g.store == nil || (clientKey == "" && !g.keyRequired) {
		next.ServeHTTP(w, r)
		return
	}
	if clientKey == "" {
		responses.WriteError(ctx, g.logg, w, pkgerrors.New(pkgerrors.CodeValidation, IdempotencyKeyHeader+" header required"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, validators.MaxBodyBytes+1))
	if err != nil {
		responses.WriteError(ctx, g.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
		return
	}
	if len(body) > validators.MaxBodyBytes {
		responses.WriteError(ctx, g.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "request body too large"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	requestHash := fingerprint(body)
	key := g.store.IdempotencyKey(replayScope(r), clientKey)

	claimed, err := g.claim(r, key, requestHash)
	if err != nil {
		responses.WriteError(ctx, g.logg, w, err)
		return
	}
	if !claimed {
		g.replay(w, r, key, requestHash)
		return
	}

	capture := &responseCapture{ResponseWriter: w}
	finished := false
	defer func() {
		if !finished {
			g.release(r, key)
		}
	}()
	next.ServeHTTP(capture, r)
	finished = true

	if capture.statusCode() >= http.StatusInternalServerError {
		g.release(r, key)
		return
	}
	g.persist(r, key, replayRecord{
		State:       stateComplete,
		RequestHash: requestHash,
		Status:      capture.statusCode(),
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
	})
}

// claim writes the pending marker; false means another request owns the key.
func (g *replayGuard) claim(r *http.Request, key, requestHash string) (bool, error) {
	marker, err := json.Marshal(replayRecord{State: statePending, RequestHash: requestHash})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode idempotency marker")
	}
	ok, err := g.store.SetNX(r.Context(), key, string(marker), min(g.ttl, inFlightTTL))
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key")
	}
	return ok, nil
}

func (g *replayGuard) replay(w http.ResponseWriter, r *http.Request, key, requestHash string) {
	ctx := r.Context()
	raw, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, pkgredis.Nil):
		// Released between our claim attempt and this read.
		responses.WriteError(ctx, g.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this key is still in progress"))
		return
	case err != nil:
		responses.WriteError(ctx, g.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency record"))
		return
	}

	var record replayRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		responses.WriteError(ctx, g.logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode idempotency record"))
		return
	}
	if record.RequestHash != requestHash {
		responses.WriteError(ctx, g.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}
	if record.State != stateComplete {
		responses.WriteError(ctx, g.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this key is still in progress"))
		return
	}

	if record.ContentType != "" {
		w.Header().Set("Content-Type", record.ContentType)
	}
	w.Header().Set(IdempotentReplayHeader, "true")
	w.WriteHeader(record.Status)
	_, _ = w.Write(record.Body)
}

func (g *replayGuard) persist(r *http.Request, key string, record replayRecord) {
	payload, err := json.Marshal(record)
	if err != nil {
		g.logError(r, "encode idempotency record", err)
		g.release(r, key)
		return
	}
	if err := g.store.Set(r.Context(), key, string(payload), g.ttl); err != nil {
		g.logError(r, "persist idempotency record", err)
	}
}

func (g *replayGuard) release(r *http.Request, key string) {
	if err := g.store.Del(r.Context(), key); err != nil {
		g.logError(r, "release idempotency key", err)
	}
}

func (g *replayGuard) logError(r *http.Request, msg string, err error) {
	if g.logg == nil {
		return
	}
	g.logg.Error(r.Context(), msg, err)
}

// replayScope keeps keys private to one customer and endpoint.
func replayScope(r *http.Request) string {
	return strings.Join([]string{CustomerIDFromContext(r.Context()).String(), r.Method, r.URL.Path}, "|")
}

func fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
