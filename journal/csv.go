// journal/csv.go
package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"
)

// CSVJournal appends records to two CSV files. Commands are submitted from
// any number of caller goroutines, so both writers sit behind one mutex.
type CSVJournal struct {
	mu       sync.Mutex
	requests *csv.Writer
	orders   *csv.Writer
	rf, of   *os.File
}

func NewCSV(requestsPath, ordersPath string) (*CSVJournal, error) {
	rf, err := os.Create(requestsPath)
	if err != nil {
		return nil, err
	}
	of, err := os.Create(ordersPath)
	if err != nil {
		rf.Close()
		return nil, err
	}

	rw := csv.NewWriter(rf)
	ow := csv.NewWriter(of)

	if err := rw.Write([]string{"request_id", "command", "outcome", "attempts", "latency_ms", "error", "time"}); err != nil {
		return nil, err
	}
	if err := ow.Write([]string{"ticket", "symbol", "side", "volume", "fill_price", "stop_loss", "take_profit", "time"}); err != nil {
		return nil, err
	}

	rw.Flush()
	if err := rw.Error(); err != nil {
		return nil, err
	}
	ow.Flush()
	if err := ow.Error(); err != nil {
		return nil, err
	}

	return &CSVJournal{requests: rw, orders: ow, rf: rf, of: of}, nil
}

func (j *CSVJournal) RecordRequest(r RequestRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	err := j.requests.Write([]string{
		r.RequestID,
		r.Command,
		r.Outcome,
		strconv.Itoa(r.Attempts),
		strconv.FormatInt(r.Latency.Milliseconds(), 10),
		r.Error,
		r.Time.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	j.requests.Flush()
	return j.requests.Error()
}

func (j *CSVJournal) RecordOrder(o OrderRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	err := j.orders.Write([]string{
		o.Ticket,
		o.Symbol,
		o.Side,
		f(o.Volume),
		f(o.FillPrice),
		f(o.StopLoss),
		f(o.TakeProfit),
		o.Time.Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	j.orders.Flush()
	return j.orders.Error()
}

func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.requests.Flush()
	if err := j.requests.Error(); err != nil {
		return err
	}
	j.orders.Flush()
	if err := j.orders.Error(); err != nil {
		return err
	}

	if err := j.rf.Close(); err != nil {
		return err
	}
	return j.of.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
