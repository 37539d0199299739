// Package wire defines the versioned text format exchanged with the
// terminal through the bridge directory: one message per file, a version
// header, then a single ID-tagged command or result line.
//
//	MT5BRIDGE 1
//	ID:01JF8K…|GET_PRICE EURUSD
//
//	MT5BRIDGE 1
//	ID:01JF8K…|OK BID=1.0850 ASK=1.0852
//	ID:01JF8K…|ERROR REJECTED market closed
//
// List-valued results carry a single JSON field, always last on the line,
// e.g. `OK POSITIONS=[{...},{...}]`.
package wire

import (
	"fmt"
	"time"
)

// Version is the protocol revision written in the header line. The
// terminal-side peer must agree on it; decoding rejects anything else.
const Version = 1

// Kind is the closed set of commands the bridge can issue. Dispatch is by
// enum so an unhandled command is a compile-time hole, not a silent string
// mismatch.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindStatus
	KindGetPrice
	KindGetAccount
	KindGetPositions
	KindPlaceOrder
	KindModifyOrder
	KindClosePosition
	KindCalcSize
	KindGetCandles
	KindCloseAll
	KindGetHistory
	KindGetPerformance
)

var kindNames = map[Kind]string{
	KindStatus:         "STATUS",
	KindGetPrice:       "GET_PRICE",
	KindGetAccount:     "GET_ACCOUNT",
	KindGetPositions:   "GET_POSITIONS",
	KindPlaceOrder:     "PLACE_ORDER",
	KindModifyOrder:    "MODIFY_ORDER",
	KindClosePosition:  "CLOSE_POSITION",
	KindCalcSize:       "CALC_SIZE",
	KindGetCandles:     "GET_CANDLES",
	KindCloseAll:       "CLOSE_ALL",
	KindGetHistory:     "GET_HISTORY",
	KindGetPerformance: "GET_PERFORMANCE",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("KIND(%d)", uint8(k))
}

// ParseKind maps a wire token back to its Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindUnknown, &FormatError{Reason: fmt.Sprintf("unknown command %q", s)}
}

// Request is one command on its way to the terminal. Params are ordered,
// whitespace-free tokens; their meaning is fixed per Kind (see the command
// table in the package docs of bridge).
type Request struct {
	ID      string
	Kind    Kind
	Params  []string
	Created time.Time
}

// ResultStatus distinguishes a terminal acknowledgement from an explicit
// rejection.
type ResultStatus uint8

const (
	StatusOK ResultStatus = iota
	StatusError
)

// Response is the decoded terminal reply. For StatusOK the payload is in
// Fields (KEY=value tokens) plus, for list results, the raw JSON in List
// under ListKey. For StatusError, Code is the machine-readable reject code
// and Message the human-readable reason, verbatim from the terminal.
type Response struct {
	ID      string
	Status  ResultStatus
	Fields  map[string]string
	ListKey string
	List    []byte
	Code    string
	Message string
}

// FormatError reports a malformed message. It is a protocol failure: the
// peer wrote something we cannot interpret, so retrying the same request
// would not help.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "wire: " + e.Reason
}
