package domain

import (
	"context"
	"errors"
)

// RunRequest starts one streaming task for a user.
type RunRequest struct {
	UserID     int64
	Capability string
	Input      map[string]interface{}
}

// EmitFunc receives each chat-visible record in upstream order.
type EmitFunc func(Record) error

// Runner is the client side of the external compute service.
type Runner interface {
	// Run opens the task stream and invokes handle for every decoded
	// record until a terminal record or context cancellation.
	Run(ctx context.Context, req RunRequest, handle func(Record) error) error
	// Ping reports whether the compute service is reachable.
	Ping(ctx context.Context) error
}

// Service admits, proxies and bills streaming tasks.
type Service interface {
	// Run admits the user, proxies the stream to emit and performs the
	// deferred debit on terminal success.
	Run(ctx context.Context, req RunRequest, emit EmitFunc) error
	// Cancel aborts the user's in-flight task, if any.
	Cancel(userID int64) bool
	// RunnerHealthy reports compute-service reachability for readiness.
	RunnerHealthy(ctx context.Context) error
}

var (
	ErrTaskInFlight = errors.New("task_in_flight")
	ErrNoTask       = errors.New("task_not_found")
)
