package reconciler

import (
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"
)

var errBoom = errors.New("boom")

func zerologNop() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
