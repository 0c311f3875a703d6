package types

import (
	"errors"
	"fmt"
	"testing"

	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/ethereum/go-ethereum/common"
)

var (
	testCampaign = common.HexToAddress("0x00000000000000000000000000000000000000ca")
	testAlice    = common.HexToAddress("0x00000000000000000000000000000000000000b1")
)

func TestErrorCodes(t *testing.T) {
	for _, ec := range errorCodes {
		if got := ErrorCode(ec.err); got != ec.code {
			t.Fatalf("ErrorCode(%v) = %d, want %d", ec.err, got, ec.code)
		}
		wrapped := fmt.Errorf("%w: detail", ec.err)
		if got := ErrorCode(wrapped); got != ec.code {
			t.Fatalf("ErrorCode(%v) = %d, want %d", wrapped, got, ec.code)
		}
		if got := CodeError(ec.code); got != ec.err {
			t.Fatalf("CodeError(%d) = %v, want %v", ec.code, got, ec.err)
		}
	}
	if ErrorCode(nil) != CodeOK {
		t.Fatalf("nil error must map to CodeOK")
	}
	if ErrorCode(errors.New("boom")) != CodeInternal {
		t.Fatalf("unknown error must map to CodeInternal")
	}
	if CodeError(CodeOK) != nil || CodeError(CodeInternal) != nil {
		t.Fatalf("codes without a kind must map to nil")
	}
}

func TestErrorCodesUnique(t *testing.T) {
	seen := make(map[uint32]error)
	for _, ec := range errorCodes {
		if prev, ok := seen[ec.code]; ok {
			t.Fatalf("code %d used by %v and %v", ec.code, prev, ec.err)
		}
		seen[ec.code] = ec.err
	}
}

func TestRequestKey(t *testing.T) {
	key := RequestKey(testCampaign, 258)
	campaign, index, err := ParseRequestKey(key)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if campaign != testCampaign || index != 258 {
		t.Fatalf("unexpected key %v/%d", campaign, index)
	}
	if _, _, err = ParseRequestKey(key[:10]); !errors.Is(err, ErrInvalidTx) {
		t.Fatalf("expected short key to be invalid, got %v", err)
	}
}

func TestContributorKey(t *testing.T) {
	campaign, who, err := ParseContributorKey(ContributorKey(testCampaign, testAlice))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if campaign != testCampaign || who != testAlice {
		t.Fatalf("unexpected key %v/%v", campaign, who)
	}
	if _, _, err = ParseContributorKey(testCampaign.Bytes()); !errors.Is(err, ErrInvalidTx) {
		t.Fatalf("expected short key to be invalid, got %v", err)
	}
}

func TestEventContribute(t *testing.T) {
	in := &EventContribute{
		Campaign:       testCampaign,
		Contributor:    testAlice,
		Amount:         100,
		Balance:        350,
		NewApprover:    true,
		ApproversCount: 3,
	}
	ev := EncodeEventContribute(in)
	if ev.Type != EventContributeType {
		t.Fatalf("unexpected event type %q", ev.Type)
	}
	out := DecodeEventContribute(ev)
	if out == nil || *out != *in {
		t.Fatalf("decoded %+v, want %+v", out, in)
	}

	ev.Attributes = append(ev.Attributes, abci.EventAttribute{Key: "amount", Value: "lots"})
	if DecodeEventContribute(ev) != nil {
		t.Fatalf("expected malformed amount to be rejected")
	}
}

func TestEventFinalizeRequest(t *testing.T) {
	in := &EventFinalizeRequest{
		Campaign:  testCampaign,
		Request:   2,
		Recipient: testAlice,
		Value:     40,
		Balance:   60,
	}
	out := DecodeEventFinalizeRequest(EncodeEventFinalizeRequest(in))
	if out == nil || *out != *in {
		t.Fatalf("decoded %+v, want %+v", out, in)
	}
	bad := abci.Event{Type: EventFinalizeRequestType, Attributes: []abci.EventAttribute{{Key: "recipient", Value: "nobody"}}}
	if DecodeEventFinalizeRequest(bad) != nil {
		t.Fatalf("expected malformed recipient to be rejected")
	}
}

func TestParseGenesisAppState(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		count   int
		wantErr bool
	}{
		{"empty", "", 0, false},
		{"accounts", `{"accounts":[{"address":"0x00000000000000000000000000000000000000b1","balance":10}]}`, 1, false},
		{"zero address", `{"accounts":[{"address":"0x0000000000000000000000000000000000000000","balance":10}]}`, 0, true},
		{"duplicate", `{"accounts":[{"address":"0x00000000000000000000000000000000000000b1","balance":1},{"address":"0x00000000000000000000000000000000000000b1","balance":2}]}`, 0, true},
		{"garbage", `{`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := ParseGenesisAppState([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error %v", err)
			}
			if err == nil && len(st.Accounts) != tt.count {
				t.Fatalf("expected %d accounts, got %d", tt.count, len(st.Accounts))
			}
		})
	}
}
