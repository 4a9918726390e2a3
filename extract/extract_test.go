package extract

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesCategory(t *testing.T) {
	err := Wrap(Format, errors.New("bad stsz count"), "stsz")
	require.ErrorIs(t, err, ErrFormat)
	require.NotErrorIs(t, err, ErrTransport)
}

func TestErrorUnwrapPreservesCause(t *testing.T) {
	cause := errors.New("short read")
	err := Wrap(Transport, cause, "fetch range")

	var e *Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, Transport, e.Category)
	require.ErrorIs(t, err, cause)
}

func TestAdvanceTracksState(t *testing.T) {
	ex, cancel := New(context.Background(), 0)
	defer cancel()

	require.Equal(t, Idle, ex.State())
	ex.Advance(Locating)
	require.Equal(t, Locating, ex.State())
	ex.Finish()
	require.Equal(t, Complete, ex.State())
}

func TestCheckContextDeadline(t *testing.T) {
	ex, cancel := New(context.Background(), time.Millisecond)
	defer cancel()

	time.Sleep(5 * time.Millisecond)
	err := ex.CheckContext()
	require.ErrorIs(t, err, ErrTimeout)
	require.Equal(t, Failed, ex.State())
}

func TestCheckContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ex, exCancel := New(ctx, 0)
	defer exCancel()

	cancel()
	err := ex.CheckContext()
	require.ErrorIs(t, err, ErrCancelled)
}
