package imap

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// TestSearchCriteria tests the criterion string to IMAP search mapping
func TestSearchCriteria(t *testing.T) {
	sc, err := searchCriteria("UNSEEN")
	require.NoError(t, err)
	assert.Equal(t, []imap.Flag{imap.FlagSeen}, sc.NotFlag)
	assert.Empty(t, sc.Flag)

	sc, err = searchCriteria("seen")
	require.NoError(t, err, "Criteria should be case-insensitive")
	assert.Equal(t, []imap.Flag{imap.FlagSeen}, sc.Flag)

	sc, err = searchCriteria("ALL")
	require.NoError(t, err)
	assert.Empty(t, sc.Flag)
	assert.Empty(t, sc.NotFlag)

	sc, err = searchCriteria("FLAGGED")
	require.NoError(t, err)
	assert.Equal(t, []imap.Flag{imap.FlagFlagged}, sc.Flag)

	sc, err = searchCriteria("DELETED")
	require.NoError(t, err)
	assert.Equal(t, []imap.Flag{imap.FlagDeleted}, sc.Flag)

	_, err = searchCriteria("RECENTISH")
	assert.Error(t, err)
}

// TestFetch_RetryAfterReconnect tests the transient-abort recovery: a
// failed fetch reconnects once and retries the same uid
func TestFetch_RetryAfterReconnect(t *testing.T) {
	c := NewClient(Options{}, testLogger)

	fetches, reconnects := 0, 0
	c.fetchOnce = func(id uint32) ([]byte, error) {
		fetches++
		if fetches == 1 {
			return nil, errors.New("connection reset by peer")
		}
		assert.Equal(t, uint32(42), id, "Retry must target the same uid")
		return []byte("raw message"), nil
	}
	c.reconnect = func() error {
		reconnects++
		return nil
	}

	raw, err := c.Fetch(42)
	require.NoError(t, err)
	assert.Equal(t, []byte("raw message"), raw)
	assert.Equal(t, 2, fetches)
	assert.Equal(t, 1, reconnects)
}

// TestFetch_SecondFailureEscalates tests that the retry happens exactly
// once before the error surfaces
func TestFetch_SecondFailureEscalates(t *testing.T) {
	c := NewClient(Options{}, testLogger)

	fetches, reconnects := 0, 0
	c.fetchOnce = func(id uint32) ([]byte, error) {
		fetches++
		return nil, errors.New("connection reset by peer")
	}
	c.reconnect = func() error {
		reconnects++
		return nil
	}

	_, err := c.Fetch(42)
	require.Error(t, err)
	assert.Equal(t, 2, fetches, "Exactly one retry")
	assert.Equal(t, 1, reconnects, "Exactly one reconnect")
}

// TestFetch_ReconnectFailureEscalates tests the error when the
// re-established connection never comes up
func TestFetch_ReconnectFailureEscalates(t *testing.T) {
	c := NewClient(Options{}, testLogger)

	c.fetchOnce = func(id uint32) ([]byte, error) {
		return nil, errors.New("connection reset by peer")
	}
	c.reconnect = func() error {
		return errors.New("dial tcp: connection refused")
	}

	_, err := c.Fetch(42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reconnect after failed fetch")
}

// TestClient_NotConnected tests that operations on an unconnected client
// fail cleanly instead of panicking
func TestClient_NotConnected(t *testing.T) {
	c := NewClient(Options{Host: "imap.example.com", Port: 993}, testLogger)

	assert.ErrorIs(t, c.SelectMailbox("INBOX"), ErrNotConnected)
	_, err := c.Search("UNSEEN")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.ErrorIs(t, c.MarkRead(1), ErrNotConnected)

	assert.NoError(t, c.Disconnect(), "Disconnect is safe without a connection")
}
