package main

import (
	"net/http"
	"time"

	"github.com/iov-one/treasury"
	"github.com/iov-one/treasury/errors"
)

// Recovery turns a handler panic into an errors.ErrPanic response, so
// that it is logged and counted like any other failure.
type Recovery struct {
	Next  http.Handler
	Debug bool
}

func (h *Recovery) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := h.serve(w, r); err != nil {
		JSONError(w, r, err, h.Debug)
	}
}

func (h *Recovery) serve(w http.ResponseWriter, r *http.Request) (err error) {
	defer errors.Recover(&err)
	h.Next.ServeHTTP(w, r)
	return nil
}

// Logging writes a log entry for every served request.
// Server failures are logged as errors, reads as debug and everything else
// as info.
type Logging struct {
	Next http.Handler
}

func (h *Logging) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
	h.Next.ServeHTTP(sw, r)

	logger := treasury.GetLogger(r.Context()).With(
		"method", r.Method,
		"status", sw.code,
		"duration", time.Since(start)/time.Microsecond,
	)
	switch {
	case sw.code >= http.StatusInternalServerError:
		logger.Error("request")
	case r.Method == "GET" && sw.code < http.StatusBadRequest:
		logger.Debug("request")
	default:
		logger.Info("request")
	}
}
