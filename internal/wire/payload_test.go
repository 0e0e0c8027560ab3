package wire_test

import (
	"encoding/json"
	"testing"

	"github.com/pgjobs/goodjob/internal/wire"
)

func TestEncodeDecode_RoundTripsArguments(t *testing.T) {
	p := &wire.Payload{
		JobClass:   "Billing::ChargeCard",
		JobID:      "job-1",
		QueueName:  "default",
		Priority:   5,
		Executions: 2,
		Arguments: []wire.Argument{
			wire.Primitive{Value: "hello"},
			wire.Primitive{Value: float64(42)},
			wire.Symbol{Name: "active"},
			wire.BigDecimal{Value: "19.99"},
			wire.GlobalID{App: "app", Model: "User", ID: "7", GID: "gid://app/User/7"},
		},
	}

	encoded, err := wire.Encode(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := wire.Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.JobClass != p.JobClass || decoded.QueueName != p.QueueName {
		t.Fatalf("round trip lost top-level fields: %+v", decoded)
	}
	if len(decoded.Arguments) != len(p.Arguments) {
		t.Fatalf("expected %d arguments, got %d", len(p.Arguments), len(decoded.Arguments))
	}

	sym, ok := decoded.Arguments[2].(wire.Symbol)
	if !ok || sym.Name != "active" {
		t.Fatalf("expected Symbol{active}, got %#v", decoded.Arguments[2])
	}

	gid, ok := decoded.Arguments[4].(wire.GlobalID)
	if !ok || gid.App != "app" || gid.Model != "User" || gid.ID != "7" {
		t.Fatalf("expected GlobalID{app,User,7}, got %#v", decoded.Arguments[4])
	}
}

func TestDecode_PreservesUnknownTagLosslessly(t *testing.T) {
	raw := []byte(`{"job_class":"X","job_id":"1","queue_name":"default","priority":0,"executions":0,
		"arguments":[{"_aj_serialized":"Some::FutureSerializer","value":"opaque"}]}`)

	decoded, err := wire.Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.Arguments) != 1 {
		t.Fatalf("expected 1 argument, got %d", len(decoded.Arguments))
	}
	unknown, ok := decoded.Arguments[0].(wire.Unknown)
	if !ok {
		t.Fatalf("expected Unknown, got %#v", decoded.Arguments[0])
	}
	if unknown.Tag != "Some::FutureSerializer" {
		t.Fatalf("expected tag preserved, got %q", unknown.Tag)
	}

	reencoded, err := wire.EncodeArgument(unknown)
	if err != nil {
		t.Fatalf("re-encode unknown: %v", err)
	}
	var original, roundTripped map[string]any
	_ = json.Unmarshal(unknown.Raw, &original)
	_ = json.Unmarshal(reencoded, &roundTripped)
	if original["value"] != roundTripped["value"] {
		t.Fatalf("unknown argument did not survive round trip: %v vs %v", original, roundTripped)
	}
}

func TestWithExecutions_BumpsCounterOnCopy(t *testing.T) {
	p := &wire.Payload{Executions: 1}
	bumped := p.WithExecutions(2)

	if p.Executions != 1 {
		t.Fatalf("original payload mutated: %d", p.Executions)
	}
	if bumped.Executions != 2 {
		t.Fatalf("expected bumped payload to have executions=2, got %d", bumped.Executions)
	}
}
