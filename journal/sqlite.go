package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordRequest(r RequestRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO requests
		(request_id, command, outcome, attempts, latency_ms, error, time)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.RequestID, r.Command, r.Outcome, r.Attempts,
		r.Latency.Milliseconds(), r.Error, r.Time,
	)
	return err
}

func (j *SQLiteJournal) RecordOrder(o OrderRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO orders
		(ticket, symbol, side, volume, fill_price, stop_loss, take_profit, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.Ticket, o.Symbol, o.Side, o.Volume,
		o.FillPrice, o.StopLoss, o.TakeProfit, o.Time,
	)
	return err
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
