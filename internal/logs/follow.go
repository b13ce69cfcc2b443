package logs

import (
	"context"
	"errors"
	"path/filepath"
	"time"
)

// Resolve returns the file the log pointer currently targets. A pointer
// that is a hard link, or missing, resolves to itself.
func Resolve(pointer string) string {
	target, err := filepath.EvalSymlinks(pointer)
	if err != nil {
		return pointer
	}
	return target
}

// Follow emits the last limit lines behind pointer and then every new line
// until ctx ends. A daemon restart moves the pointer to a new run's file;
// Follow notices and continues from the start of that file.
func Follow(ctx context.Context, pointer string, limit int, wait time.Duration, emit func(string)) error {
	if wait <= 0 {
		wait = time.Second
	}
	current := Resolve(pointer)
	result, err := Tail(ctx, current, Options{Offset: -1, Limit: limit})
	if err != nil {
		return err
	}
	for _, line := range result.Lines {
		emit(line)
	}
	offset := result.Offset

	for {
		if ctx.Err() != nil {
			return nil
		}
		if next := Resolve(pointer); next != current {
			current = next
			offset = 0
		}
		result, err = Tail(ctx, current, Options{Offset: offset, Follow: true, Wait: wait})
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		if err != nil {
			return err
		}
		for _, line := range result.Lines {
			emit(line)
		}
		offset = result.Offset
		if len(result.Lines) == 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pollInterval):
			}
		}
	}
}
