package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	t.Parallel()

	req := Request{
		ID:      "01JF8KXYZ",
		Kind:    KindPlaceOrder,
		Params:  []string{"EURUSD", "BUY", "0.10", "1.0800", "1.0950"},
		Created: time.Now(),
	}

	payload, err := EncodeRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "MT5BRIDGE 1\nID:01JF8KXYZ|PLACE_ORDER EURUSD BUY 0.10 1.0800 1.0950\n", string(payload))

	got, err := DecodeRequest(payload)
	require.NoError(t, err)
	assert.Equal(t, req.ID, got.ID)
	assert.Equal(t, req.Kind, got.Kind)
	assert.Equal(t, req.Params, got.Params)
}

func TestEncodeRequest_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  Request
	}{
		{"no id", Request{Kind: KindStatus}},
		{"unknown kind", Request{ID: "x", Kind: KindUnknown}},
		{"param with space", Request{ID: "x", Kind: KindGetPrice, Params: []string{"EUR USD"}}},
		{"empty param", Request{ID: "x", Kind: KindGetPrice, Params: []string{""}}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := EncodeRequest(tt.req)
			var fe *FormatError
			assert.ErrorAs(t, err, &fe)
		})
	}
}

func TestDecodeResponse_OK(t *testing.T) {
	t.Parallel()

	payload, err := EncodeOK("abc", [2]string{"TICKET", "123456"}, [2]string{"PRICE", "1.0862"})
	require.NoError(t, err)

	resp, err := DecodeResponse(payload)
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.ID)
	assert.Equal(t, StatusOK, resp.Status)

	ticket, err := resp.Str("TICKET")
	require.NoError(t, err)
	assert.Equal(t, "123456", ticket)

	price, err := resp.Float("PRICE")
	require.NoError(t, err)
	assert.InDelta(t, 1.0862, price, 1e-9)
}

func TestDecodeResponse_JSONList(t *testing.T) {
	t.Parallel()

	list := `[{"ticket":"7","symbol":"EURUSD"}]`
	payload, err := EncodeOK("abc", [2]string{"COUNT", "1"}, [2]string{"POSITIONS", list})
	require.NoError(t, err)

	resp, err := DecodeResponse(payload)
	require.NoError(t, err)
	assert.Equal(t, "POSITIONS", resp.ListKey)
	assert.Equal(t, list, string(resp.List))

	n, err := resp.Int("COUNT")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestEncodeOK_JSONMustBeLast(t *testing.T) {
	t.Parallel()

	_, err := EncodeOK("abc", [2]string{"POSITIONS", "[]"}, [2]string{"COUNT", "0"})
	var fe *FormatError
	assert.ErrorAs(t, err, &fe)
}

func TestDecodeResponse_ErrorCarriesReasonVerbatim(t *testing.T) {
	t.Parallel()

	payload, err := EncodeError("abc", "REJECTED", "insufficient margin for 5.00 lots")
	require.NoError(t, err)

	resp, err := DecodeResponse(payload)
	require.NoError(t, err)
	assert.Equal(t, StatusError, resp.Status)
	assert.Equal(t, "REJECTED", resp.Code)
	assert.Equal(t, "insufficient margin for 5.00 lots", resp.Message)
}

func TestDecodeResponse_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
	}{
		{"empty", ""},
		{"no body", "MT5BRIDGE 1\n"},
		{"bad header", "MT5BRIDGE 2\nID:x|OK\n"},
		{"no id tag", "MT5BRIDGE 1\nOK FOO=1\n"},
		{"no separator", "MT5BRIDGE 1\nID:x OK\n"},
		{"empty id", "MT5BRIDGE 1\nID:|OK\n"},
		{"neither ok nor error", "MT5BRIDGE 1\nID:x|MAYBE\n"},
		{"field without equals", "MT5BRIDGE 1\nID:x|OK FOO\n"},
		{"empty error code", "MT5BRIDGE 1\nID:x|ERROR \n"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := DecodeResponse([]byte(tt.payload))
			var fe *FormatError
			assert.ErrorAs(t, err, &fe, "payload %q", tt.payload)
		})
	}
}

func TestResponseFieldTypes(t *testing.T) {
	t.Parallel()

	payload, err := EncodeOK("abc", [2]string{"BID", "notanumber"})
	require.NoError(t, err)
	resp, err := DecodeResponse(payload)
	require.NoError(t, err)

	_, err = resp.Float("BID")
	var fe *FormatError
	assert.ErrorAs(t, err, &fe)

	_, err = resp.Float("ASK")
	assert.ErrorAs(t, err, &fe)

	_, err = resp.Int("BID")
	assert.ErrorAs(t, err, &fe)
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for k, name := range map[Kind]string{
		KindStatus:         "STATUS",
		KindGetPrice:       "GET_PRICE",
		KindPlaceOrder:     "PLACE_ORDER",
		KindCalcSize:       "CALC_SIZE",
		KindClosePosition:  "CLOSE_POSITION",
		KindGetPerformance: "GET_PERFORMANCE",
	} {
		got, err := ParseKind(name)
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	_, err := ParseKind("SELF_DESTRUCT")
	assert.Error(t, err)
}
