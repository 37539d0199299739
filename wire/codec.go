package wire

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const header = "MT5BRIDGE 1"

// EncodeRequest renders a request into its file payload. Params must be
// single whitespace-free tokens.
func EncodeRequest(r Request) ([]byte, error) {
	if r.ID == "" {
		return nil, &FormatError{Reason: "request has no ID"}
	}
	if _, ok := kindNames[r.Kind]; !ok {
		return nil, &FormatError{Reason: fmt.Sprintf("request %s has unknown kind", r.ID)}
	}
	var b strings.Builder
	b.WriteString(header)
	b.WriteByte('\n')
	b.WriteString("ID:")
	b.WriteString(r.ID)
	b.WriteByte('|')
	b.WriteString(r.Kind.String())
	for _, p := range r.Params {
		if p == "" || strings.ContainsAny(p, " \t\n") {
			return nil, &FormatError{Reason: fmt.Sprintf("request %s has invalid param %q", r.ID, p)}
		}
		b.WriteByte(' ')
		b.WriteString(p)
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// DecodeRequest parses a request file payload. Used by the simulated peer
// and by anyone debugging the bridge directory by hand.
func DecodeRequest(payload []byte) (Request, error) {
	id, rest, err := splitTagged(payload)
	if err != nil {
		return Request{}, err
	}
	tokens := strings.Fields(rest)
	if len(tokens) == 0 {
		return Request{}, &FormatError{Reason: "request " + id + " has no command"}
	}
	kind, err := ParseKind(tokens[0])
	if err != nil {
		return Request{}, err
	}
	return Request{ID: id, Kind: kind, Params: tokens[1:], Created: time.Now()}, nil
}

// EncodeOK renders a success response. Fields are written in the order
// given; a field whose value starts with '[' or '{' is treated as the JSON
// list payload and must be last.
func EncodeOK(id string, fields ...[2]string) ([]byte, error) {
	if id == "" {
		return nil, &FormatError{Reason: "response has no ID"}
	}
	var b strings.Builder
	b.WriteString(header)
	b.WriteByte('\n')
	b.WriteString("ID:")
	b.WriteString(id)
	b.WriteString("|OK")
	for i, f := range fields {
		key, val := f[0], f[1]
		if key == "" || strings.ContainsAny(key, " \t\n=") {
			return nil, &FormatError{Reason: fmt.Sprintf("response %s has invalid field key %q", id, key)}
		}
		jsonVal := strings.HasPrefix(val, "[") || strings.HasPrefix(val, "{")
		if !jsonVal && strings.ContainsAny(val, " \t\n") {
			return nil, &FormatError{Reason: fmt.Sprintf("response %s has invalid value for %s", id, key)}
		}
		if jsonVal && i != len(fields)-1 {
			return nil, &FormatError{Reason: fmt.Sprintf("response %s: JSON field %s must be last", id, key)}
		}
		b.WriteByte(' ')
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(val)
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// EncodeError renders an explicit terminal rejection.
func EncodeError(id, code, message string) ([]byte, error) {
	if id == "" {
		return nil, &FormatError{Reason: "response has no ID"}
	}
	if code == "" || strings.ContainsAny(code, " \t\n") {
		return nil, &FormatError{Reason: fmt.Sprintf("response %s has invalid error code %q", id, code)}
	}
	message = strings.ReplaceAll(message, "\n", " ")
	var b strings.Builder
	b.WriteString(header)
	b.WriteByte('\n')
	b.WriteString("ID:")
	b.WriteString(id)
	b.WriteString("|ERROR ")
	b.WriteString(code)
	if message != "" {
		b.WriteByte(' ')
		b.WriteString(message)
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// DecodeResponse parses a response file payload.
func DecodeResponse(payload []byte) (Response, error) {
	id, rest, err := splitTagged(payload)
	if err != nil {
		return Response{}, err
	}

	switch {
	case rest == "OK" || strings.HasPrefix(rest, "OK "):
		resp := Response{ID: id, Status: StatusOK, Fields: map[string]string{}}
		body := strings.TrimPrefix(strings.TrimPrefix(rest, "OK"), " ")
		for body != "" {
			eq := strings.IndexByte(body, '=')
			if eq <= 0 {
				return Response{}, &FormatError{Reason: "response " + id + ": field without '='"}
			}
			key := body[:eq]
			if strings.ContainsAny(key, " \t") {
				return Response{}, &FormatError{Reason: "response " + id + ": malformed field " + key}
			}
			val := body[eq+1:]
			if strings.HasPrefix(val, "[") || strings.HasPrefix(val, "{") {
				// JSON payload runs to end of line.
				resp.ListKey = key
				resp.List = []byte(val)
				body = ""
				continue
			}
			if sp := strings.IndexByte(val, ' '); sp >= 0 {
				body = val[sp+1:]
				val = val[:sp]
			} else {
				body = ""
			}
			resp.Fields[key] = val
		}
		return resp, nil

	case strings.HasPrefix(rest, "ERROR "):
		body := strings.TrimPrefix(rest, "ERROR ")
		code := body
		msg := ""
		if sp := strings.IndexByte(body, ' '); sp >= 0 {
			code, msg = body[:sp], body[sp+1:]
		}
		if code == "" {
			return Response{}, &FormatError{Reason: "response " + id + ": empty error code"}
		}
		return Response{ID: id, Status: StatusError, Code: code, Message: msg}, nil

	default:
		return Response{}, &FormatError{Reason: "response " + id + ": want OK or ERROR, got " + firstToken(rest)}
	}
}

// Float reads a required numeric field.
func (r Response) Float(key string) (float64, error) {
	raw, ok := r.Fields[key]
	if !ok {
		return 0, &FormatError{Reason: "response " + r.ID + ": missing field " + key}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &FormatError{Reason: fmt.Sprintf("response %s: field %s=%q is not a number", r.ID, key, raw)}
	}
	return v, nil
}

// Int reads a required integer field.
func (r Response) Int(key string) (int64, error) {
	raw, ok := r.Fields[key]
	if !ok {
		return 0, &FormatError{Reason: "response " + r.ID + ": missing field " + key}
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &FormatError{Reason: fmt.Sprintf("response %s: field %s=%q is not an integer", r.ID, key, raw)}
	}
	return v, nil
}

// Str reads a required string field.
func (r Response) Str(key string) (string, error) {
	raw, ok := r.Fields[key]
	if !ok {
		return "", &FormatError{Reason: "response " + r.ID + ": missing field " + key}
	}
	return raw, nil
}

// splitTagged validates the header and splits `ID:<id>|<rest>`.
func splitTagged(payload []byte) (id, rest string, err error) {
	text := strings.TrimRight(string(payload), "\r\n")
	lines := strings.SplitN(text, "\n", 2)
	if len(lines) != 2 {
		return "", "", &FormatError{Reason: "message has no body line"}
	}
	if strings.TrimRight(lines[0], "\r") != header {
		return "", "", &FormatError{Reason: fmt.Sprintf("bad header %q", lines[0])}
	}
	body := strings.TrimRight(lines[1], "\r")
	if !strings.HasPrefix(body, "ID:") {
		return "", "", &FormatError{Reason: "body line missing ID tag"}
	}
	sep := strings.IndexByte(body, '|')
	if sep < 0 {
		return "", "", &FormatError{Reason: "body line missing '|' separator"}
	}
	id = body[3:sep]
	if id == "" {
		return "", "", &FormatError{Reason: "empty message ID"}
	}
	return id, body[sep+1:], nil
}

func firstToken(s string) string {
	if sp := strings.IndexByte(s, ' '); sp >= 0 {
		return s[:sp]
	}
	return s
}
