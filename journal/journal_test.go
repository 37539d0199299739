package journal

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest() RequestRecord {
	return RequestRecord{
		RequestID: "01JF8KXYZ",
		Command:   "GET_PRICE",
		Outcome:   OutcomeResolved,
		Attempts:  1,
		Latency:   42 * time.Millisecond,
		Time:      time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func sampleOrder() OrderRecord {
	return OrderRecord{
		Ticket:     "100001",
		Symbol:     "EURUSD",
		Side:       "BUY",
		Volume:     0.1,
		FillPrice:  1.0862,
		StopLoss:   1.08,
		TakeProfit: 1.095,
		Time:       time.Date(2026, 8, 1, 12, 0, 1, 0, time.UTC),
	}
}

func TestSQLiteJournal(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bridge.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)

	require.NoError(t, j.RecordRequest(sampleRequest()))
	failed := sampleRequest()
	failed.Outcome = OutcomeTimedOut
	failed.Attempts = 4
	failed.Error = "bridge unavailable"
	require.NoError(t, j.RecordRequest(failed))
	require.NoError(t, j.RecordOrder(sampleOrder()))
	require.NoError(t, j.Close())

	// Reopen and count rows.
	j2, err := NewSQLite(path)
	require.NoError(t, err)
	defer j2.Close()

	var n int
	require.NoError(t, j2.db.QueryRow(`SELECT COUNT(*) FROM requests`).Scan(&n))
	assert.Equal(t, 2, n)

	var outcome string
	var attempts int
	require.NoError(t, j2.db.QueryRow(
		`SELECT outcome, attempts FROM requests WHERE outcome = ?`, OutcomeTimedOut,
	).Scan(&outcome, &attempts))
	assert.Equal(t, OutcomeTimedOut, outcome)
	assert.Equal(t, 4, attempts)

	var ticket string
	require.NoError(t, j2.db.QueryRow(`SELECT ticket FROM orders`).Scan(&ticket))
	assert.Equal(t, "100001", ticket)
}

func TestCSVJournal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	reqPath := filepath.Join(dir, "requests.csv")
	ordPath := filepath.Join(dir, "orders.csv")

	j, err := NewCSV(reqPath, ordPath)
	require.NoError(t, err)
	require.NoError(t, j.RecordRequest(sampleRequest()))
	require.NoError(t, j.RecordOrder(sampleOrder()))
	require.NoError(t, j.Close())

	rf, err := os.Open(reqPath)
	require.NoError(t, err)
	defer rf.Close()
	rows, err := csv.NewReader(rf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2) // header + one record
	assert.Equal(t, "01JF8KXYZ", rows[1][0])
	assert.Equal(t, "GET_PRICE", rows[1][1])
	assert.Equal(t, "42", rows[1][4])

	of, err := os.Open(ordPath)
	require.NoError(t, err)
	defer of.Close()
	orows, err := csv.NewReader(of).ReadAll()
	require.NoError(t, err)
	require.Len(t, orows, 2)
	assert.Equal(t, "100001", orows[1][0])
	assert.Equal(t, "EURUSD", orows[1][1])
}

func TestCSVJournal_ConcurrentWrites(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	j, err := NewCSV(filepath.Join(dir, "requests.csv"), filepath.Join(dir, "orders.csv"))
	require.NoError(t, err)

	// Commands journal from every submitting goroutine; interleaved
	// records must stay whole.
	const workers, per = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < per; i++ {
				assert.NoError(t, j.RecordRequest(sampleRequest()))
				assert.NoError(t, j.RecordOrder(sampleOrder()))
			}
		}()
	}
	wg.Wait()
	require.NoError(t, j.Close())

	rf, err := os.Open(filepath.Join(dir, "requests.csv"))
	require.NoError(t, err)
	defer rf.Close()
	rows, err := csv.NewReader(rf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1+workers*per)
	for _, row := range rows[1:] {
		assert.Equal(t, "01JF8KXYZ", row[0])
		assert.Equal(t, "GET_PRICE", row[1])
	}
}

func TestNopJournal(t *testing.T) {
	t.Parallel()

	var j Journal = Nop{}
	assert.NoError(t, j.RecordRequest(sampleRequest()))
	assert.NoError(t, j.RecordOrder(sampleOrder()))
	assert.NoError(t, j.Close())
}
