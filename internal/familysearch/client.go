package familysearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const acceptGedcomX = "application/x-gedcomx-v1+json"

var errUnauthorized = errors.New("session expired")

// statusError is an HTTP status worth retrying.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.status)
}

// GetJSON fetches an API path such as "/platform/users/current" and decodes
// the body into dst. It reports false, with a nil error, when the service
// has nothing to return: no content, a missing or forbidden resource, or a
// corrupt body. Errors mean the request could not be completed after
// retries.
func (s *Session) GetJSON(ctx context.Context, path string, dst any) (bool, error) {
	if s.cfg.Cache != nil {
		if body, ok := s.cfg.Cache.Get(path); ok {
			s.observeCache(true)
			if err := json.Unmarshal(body, dst); err == nil {
				return true, nil
			}
			s.log.Warn("dropping corrupt cache entry", zap.String("path", path))
		} else {
			s.observeCache(false)
		}
	}

	body, err := s.fetch(ctx, path)
	if err != nil {
		return false, err
	}
	if body == nil {
		return false, nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		s.log.Warn("corrupted response", zap.String("path", path), zap.Error(err))
		return false, nil
	}
	if s.cfg.Cache != nil {
		s.cfg.Cache.Set(path, body)
	}
	return true, nil
}

// fetch returns the body of a 200 response, or nil for the statuses the
// API uses to say there is nothing to return.
func (s *Session) fetch(ctx context.Context, path string) ([]byte, error) {
	if !s.LoggedIn() {
		return nil, ErrNotLoggedIn
	}
	ctx, span := s.tracer.Start(ctx, "familysearch.get")
	defer span.End()
	span.SetAttributes(attribute.String("path", path))

	s.requests.Add(1)
	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		return s.attempt(ctx, path)
	},
		backoff.WithBackOff(s.cfg.NewBackOff()),
		backoff.WithMaxTries(s.cfg.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.log.Warn("request failed", zap.String("path", path), zap.Error(err), zap.Duration("retry_in", next))
		}),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	return body, nil
}

func (s *Session) attempt(ctx context.Context, path string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, backoff.Permanent(err)
	}
	sessionID := s.currentSessionID()
	requestID := uuid.NewString()
	log := s.log.With(zap.String("path", path), zap.String("request_id", requestID))

	start := time.Now()
	res, err := s.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.APIBase+path, nil)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("Accept", acceptGedcomX)
		req.Header.Set("X-Request-ID", requestID)
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: sessionID})

		log.Debug("downloading")
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= 500 && resp.StatusCode != http.StatusInternalServerError {
			return &response{status: resp.StatusCode, body: body}, &statusError{status: resp.StatusCode}
		}
		return &response{status: resp.StatusCode, body: body}, nil
	})
	if err != nil {
		var se *statusError
		if errors.As(err, &se) {
			s.observeRequest(path, se.status, time.Since(start))
		}
		return nil, err
	}
	r := res.(*response)
	s.observeRequest(path, r.status, time.Since(start))
	log.Debug("status", zap.Int("status", r.status))

	switch {
	case r.status == http.StatusOK:
		return r.body, nil
	case r.status == http.StatusNoContent:
		return nil, nil
	case r.status == http.StatusNotFound, r.status == http.StatusMethodNotAllowed,
		r.status == http.StatusGone, r.status == http.StatusInternalServerError:
		log.Warn("resource unavailable", zap.Int("status", r.status))
		return nil, nil
	case r.status == http.StatusUnauthorized:
		if err := s.relogin(ctx, sessionID); err != nil {
			if errors.Is(err, ErrLoginFailed) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return nil, errUnauthorized
	case r.status == http.StatusForbidden:
		log.Warn("access forbidden", zap.String("message", errorMessage(r.body)))
		return nil, nil
	case r.status >= 200 && r.status < 300:
		return r.body, nil
	}
	return nil, &statusError{status: r.status}
}

type response struct {
	status int
	body   []byte
}

// errorMessage extracts errors[0].message from an API error body.
func errorMessage(body []byte) string {
	var payload struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Errors) == 0 {
		return ""
	}
	return payload.Errors[0].Message
}

func (s *Session) observeRequest(path string, status int, elapsed time.Duration) {
	if s.cfg.Observer != nil {
		s.cfg.Observer.ObserveRequest(endpointOf(path), status, elapsed)
	}
}

func (s *Session) observeCache(hit bool) {
	if s.cfg.Observer != nil {
		s.cfg.Observer.ObserveCache(hit)
	}
}
