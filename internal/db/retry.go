package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"
)

// Operation is a function that performs an action and returns an error if it fails.
type Operation func() error

// IsRetryable decides whether a failed Operation should run again.
type IsRetryable func(err error) bool

const DefaultMaxRetries = 3

// Try runs op, retrying up to DefaultMaxRetries times on duplicate key errors.
// Callers rely on this both for SixID collisions on insert and for
// find-or-insert loops guarded by a unique index.
func Try(op Operation) error {
	return WithRetries(op, DefaultMaxRetries, IsMongoDuplicateKeyError)
}

// WithRetries runs op once plus up to maxRetries retries while retryable(err)
// holds, backing off a little more on each attempt.
func WithRetries(op Operation, maxRetries int, retryable IsRetryable) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if attempt == maxRetries || !retryable(err) {
			break
		}
		time.Sleep(time.Duration(50*(attempt+1)) * time.Millisecond)
	}
	return err
}

// IsMongoDuplicateKeyError checks if an error from MongoDB is a duplicate key error (code 11000).
func IsMongoDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	return false
}

// IsDuplicateKeyOnIndex reports whether err is a duplicate key error raised by
// the named index.
func IsDuplicateKeyOnIndex(err error, index string) bool {
	if !IsMongoDuplicateKeyError(err) {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 && strings.Contains(e.Message, index) {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		return strings.Contains(ce.Message, index)
	}
	return false
}

// IsUnavailableError reports whether err means the database could not be
// reached in time, as opposed to rejecting the operation.
func IsUnavailableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, mongo.ErrClientDisconnected) {
		return true
	}
	var sse topology.ServerSelectionError
	if errors.As(err, &sse) {
		return true
	}
	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}
