package bridge

import "fmt"

// Error codes the terminal peer may put on an ERROR line. Anything else is
// surfaced as a generic TerminalError.
const (
	CodeRejected           = "REJECTED"
	CodeNotFound           = "NOT_FOUND"
	CodeNoQuote            = "NO_QUOTE"
	CodeInsufficientEquity = "INSUFFICIENT_EQUITY"
	CodeUnknownCommand     = "UNKNOWN_COMMAND"
	CodeBadRequest         = "BAD_REQUEST"
)

// RejectedError means the terminal refused an order: insufficient margin,
// invalid stops, market closed. Retrying would not change a business-rule
// rejection, so these are surfaced immediately.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "order rejected: " + e.Reason
}

// NotFoundError means the referenced position does not exist (already
// closed, or never ours).
type NotFoundError struct {
	Ticket string
}

func (e *NotFoundError) Error() string {
	return "position " + e.Ticket + " not found"
}

// StaleQuoteError means the terminal has no current quote for the symbol.
type StaleQuoteError struct {
	Symbol string
}

func (e *StaleQuoteError) Error() string {
	return "no quote for " + e.Symbol
}

// InsufficientEquityError means the risk budget buys less than the broker
// minimum volume.
type InsufficientEquityError struct {
	Detail string
}

func (e *InsufficientEquityError) Error() string {
	return "insufficient equity: " + e.Detail
}

// TerminalError carries a rejection code this client has no specific type
// for. Still a domain failure: never retried.
type TerminalError struct {
	Code    string
	Message string
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("terminal error %s: %s", e.Code, e.Message)
}

// domainError maps a decoded ERROR response onto the typed taxonomy. The
// reason string is passed through verbatim.
func domainError(ticketHint, symbolHint, code, message string) error {
	switch code {
	case CodeRejected:
		return &RejectedError{Reason: message}
	case CodeNotFound:
		return &NotFoundError{Ticket: ticketHint}
	case CodeNoQuote:
		return &StaleQuoteError{Symbol: symbolHint}
	case CodeInsufficientEquity:
		return &InsufficientEquityError{Detail: message}
	default:
		return &TerminalError{Code: code, Message: message}
	}
}
