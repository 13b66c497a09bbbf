// Package worker runs queued sync jobs in the background.
package worker

import (
	"github.com/avielmenter/CritiQL/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithResultHandler registers a callback invoked after every job.
func WithResultHandler(h ResultHandler) Option {
	return func(w *InMemoryWorker) {
		if h != nil {
			w.onResult = h
		}
	}
}
