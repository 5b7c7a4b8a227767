// Package try retries failing operations.
package try

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func isPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Do calls fn until it succeeds, tries is reached, fn returns a Permanent
// error or ctx is done.
func Do(
	ctx context.Context,
	tries int,
	delay time.Duration,
	fn func(ctx context.Context, try int) error,
) error {
	return DoExponentialBackoff(ctx, tries, delay, 1, delay, fn)
}

// DoExponentialBackoff is Do with a delay multiplied after each try, up to
// maxBackoff.
func DoExponentialBackoff(
	ctx context.Context,
	tries int,
	delay time.Duration,
	multiplier int,
	maxBackoff time.Duration,
	fn func(ctx context.Context, try int) error,
) (err error) {
	if tries <= 0 {
		log.Panic().Int("tries", tries).Msg("tries is 0 or negative")
	}
	for try := range tries {
		err = fn(ctx, try)
		if err == nil {
			return nil
		}
		if isPermanent(err) || ctx.Err() != nil {
			return err
		}
		log.Warn().
			Err(err).
			Int("try", try).
			Int("maxTries", tries).
			Dur("backoff", delay).
			Msg("try failed")
		if try == tries-1 {
			break
		}
		if serr := sleep(ctx, delay); serr != nil {
			return err
		}
		delay *= time.Duration(multiplier)
		if delay > maxBackoff {
			delay = maxBackoff
		}
	}
	log.Warn().Err(err).Msg("failed all tries")
	return err
}

// DoWithResult is Do for functions returning a value.
func DoWithResult[T any](
	ctx context.Context,
	tries int,
	delay time.Duration,
	fn func(ctx context.Context, try int) (T, error),
) (result T, err error) {
	err = Do(ctx, tries, delay, func(ctx context.Context, try int) error {
		var ferr error
		result, ferr = fn(ctx, try)
		return ferr
	})
	return result, err
}
