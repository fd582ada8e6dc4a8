package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"perpcore/core/types"
)

type journalEvent struct {
	evt *types.Event
}

func (e journalEvent) EventType() string { return e.evt.Type }

func (e journalEvent) Event() *types.Event { return e.evt }

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	journal, err := OpenJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { journal.Close() })
	journal.SetNowFunc(func() time.Time { return time.Unix(1_700_000_000, 0) })
	return journal
}

func TestJournalAppendAssignsSequence(t *testing.T) {
	journal := openTestJournal(t)

	journal.Emit(journalEvent{evt: &types.Event{
		Type:       "trade.opened",
		Attributes: map[string]string{"pairIndex": "0"},
	}})
	journal.Emit(journalEvent{evt: &types.Event{Type: "trade.closed"}})
	require.NoError(t, journal.Err())

	var entries []JournalEntry
	require.NoError(t, journal.Replay(func(entry JournalEntry) error {
		entries = append(entries, entry)
		return nil
	}))
	require.Len(t, entries, 2)
	require.Equal(t, uint64(1), entries[0].Sequence)
	require.Equal(t, uint64(2), entries[1].Sequence)
	require.Equal(t, "trade.opened", entries[0].Type)
	require.Equal(t, "0", entries[0].Attributes["pairIndex"])
	require.NotEmpty(t, entries[0].ID)
	require.NotEqual(t, entries[0].ID, entries[1].ID)
	require.Equal(t, time.Unix(1_700_000_000, 0).UTC(), entries[0].RecordedAt)
}

func TestJournalRecentReturnsTailOldestFirst(t *testing.T) {
	journal := openTestJournal(t)
	for _, eventType := range []string{"a", "b", "c", "d"} {
		journal.Emit(journalEvent{evt: &types.Event{Type: eventType}})
	}
	require.NoError(t, journal.Err())

	recent, err := journal.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "c", recent[0].Type)
	require.Equal(t, "d", recent[1].Type)

	all, err := journal.Recent(100)
	require.NoError(t, err)
	require.Len(t, all, 4)
	require.Equal(t, "a", all[0].Type)

	none, err := journal.Recent(0)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestJournalIgnoresEmptyEvents(t *testing.T) {
	journal := openTestJournal(t)
	journal.Emit(nil)
	journal.Emit(journalEvent{evt: nil})
	require.NoError(t, journal.Err())

	count := 0
	require.NoError(t, journal.Replay(func(JournalEntry) error {
		count++
		return nil
	}))
	require.Zero(t, count)
}

func TestJournalSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	journal, err := OpenJournal(path)
	require.NoError(t, err)
	journal.Emit(journalEvent{evt: &types.Event{Type: "vault.deposit"}})
	require.NoError(t, journal.Err())
	require.NoError(t, journal.Close())

	reopened, err := OpenJournal(path)
	require.NoError(t, err)
	defer reopened.Close()
	recent, err := reopened.Recent(1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, "vault.deposit", recent[0].Type)
}
