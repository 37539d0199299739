package watcher

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/mt5bridge/correlator"
	"github.com/rustyeddy/mt5bridge/transport"
	"github.com/rustyeddy/mt5bridge/wire"
)

func setup(t *testing.T, copts correlator.Options, wopts Options) (*transport.Dir, *correlator.Correlator, *Watcher) {
	t.Helper()
	dir, err := transport.NewDir(t.TempDir(), nil)
	require.NoError(t, err)
	co := correlator.New(dir, nil, nil, copts)
	w := New(dir, co, nil, wopts)
	require.NoError(t, w.Start())
	t.Cleanup(w.Stop)
	return dir, co, w
}

// respondTo waits for the request file with any ID to appear, then writes a
// matching OK response, playing the terminal's part.
func respondTo(t *testing.T, dir *transport.Dir, fields ...[2]string) {
	t.Helper()
	go func() {
		deadline := time.After(2 * time.Second)
		tick := time.NewTicker(2 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-deadline:
				return
			case <-tick.C:
				msgs, err := dir.PollRequests()
				if err != nil || len(msgs) == 0 {
					continue
				}
				m := msgs[0]
				_ = dir.DeleteRequest(m.ID)
				payload, err := wire.EncodeOK(m.ID, fields...)
				if err != nil {
					return
				}
				_ = dir.WriteResponse(m.ID, payload)
				return
			}
		}
	}()
}

func TestWatcher_DeliversResponse(t *testing.T) {
	t.Parallel()

	dir, co, _ := setup(t,
		correlator.Options{Timeout: 2 * time.Second},
		Options{Interval: 5 * time.Millisecond},
	)

	respondTo(t, dir, [2]string{"CONNECTED", "1"})

	res, err := co.Submit(context.Background(), wire.KindStatus, nil)
	require.NoError(t, err)

	resp, err := wire.DecodeResponse(res.Payload)
	require.NoError(t, err)
	v, err := resp.Str("CONNECTED")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	// Consumed files are gone.
	require.Eventually(t, func() bool {
		msgs, err := dir.PollResponses()
		return err == nil && len(msgs) == 0
	}, time.Second, 5*time.Millisecond)
	_, err = os.Stat(dir.ResponsePath(res.Request.ID))
	assert.True(t, os.IsNotExist(err))
}

func TestWatcher_DeliversViaNotification(t *testing.T) {
	t.Parallel()

	// A deliberately slow tick: if the response comes back quickly, the
	// fsnotify path delivered it.
	dir, co, _ := setup(t,
		correlator.Options{Timeout: 5 * time.Second},
		Options{Interval: time.Second, Notify: true},
	)

	respondTo(t, dir, [2]string{"CONNECTED", "1"})

	res, err := co.Submit(context.Background(), wire.KindStatus, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Payload)
}

func TestWatcher_DiscardsOrphans(t *testing.T) {
	t.Parallel()

	dir, co, _ := setup(t,
		correlator.Options{Timeout: time.Second},
		Options{Interval: 5 * time.Millisecond},
	)

	payload, err := wire.EncodeOK("ghost", [2]string{"CONNECTED", "1"})
	require.NoError(t, err)
	require.NoError(t, dir.WriteResponse("ghost", payload))

	require.Eventually(t, func() bool {
		msgs, err := dir.PollResponses()
		return err == nil && len(msgs) == 0
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, co.InFlight())
}

func TestWatcher_ExpiresOverdueEntries(t *testing.T) {
	t.Parallel()

	_, co, _ := setup(t,
		correlator.Options{Timeout: 30 * time.Millisecond},
		Options{Interval: 5 * time.Millisecond},
	)

	_, err := co.Submit(context.Background(), wire.KindStatus, nil)
	var unavailable *correlator.UnavailableError
	assert.ErrorAs(t, err, &unavailable)
	assert.Zero(t, co.InFlight())
}

func TestWatcher_PeriodicSweep(t *testing.T) {
	t.Parallel()

	dir, _, _ := setup(t,
		correlator.Options{Timeout: time.Second},
		Options{
			Interval:      5 * time.Millisecond,
			SweepInterval: 20 * time.Millisecond,
			MaxAge:        time.Minute,
		},
	)

	// A fresh file survives; a backdated one is swept on the next pass.
	require.NoError(t, dir.WriteRequest("fresh", []byte("x")))
	require.NoError(t, dir.WriteRequest("stale", []byte("x")))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(dir.RequestPath("stale"), old, old))

	require.Eventually(t, func() bool {
		_, err := os.Stat(dir.RequestPath("stale"))
		return os.IsNotExist(err)
	}, time.Second, 10*time.Millisecond)

	_, err := os.Stat(dir.RequestPath("fresh"))
	assert.NoError(t, err)
}
