package ocpp

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestMarshalCall(t *testing.T) {
	data, err := MarshalCall("msg-1", "Heartbeat", struct{}{})
	if err != nil {
		t.Fatalf("MarshalCall failed: %v", err)
	}
	want := `[2,"msg-1","Heartbeat",{}]`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}

	// A pre-marshaled payload passes through untouched.
	raw := json.RawMessage(`{"connectorId":1}`)
	data, err = MarshalCall("msg-2", "StatusNotification", raw)
	if err != nil {
		t.Fatalf("MarshalCall failed: %v", err)
	}
	if string(data) != `[2,"msg-2","StatusNotification",{"connectorId":1}]` {
		t.Errorf("unexpected frame %s", data)
	}
}

func TestMarshalResultAndError(t *testing.T) {
	data, err := MarshalResult("msg-1", map[string]string{"status": "Accepted"})
	if err != nil {
		t.Fatalf("MarshalResult failed: %v", err)
	}
	if string(data) != `[3,"msg-1",{"status":"Accepted"}]` {
		t.Errorf("unexpected frame %s", data)
	}

	data, err = MarshalError("msg-1", NewError(ErrorNotImplemented, "no handler"))
	if err != nil {
		t.Fatalf("MarshalError failed: %v", err)
	}
	if string(data) != `[4,"msg-1","NotImplemented","no handler",{}]` {
		t.Errorf("unexpected frame %s", data)
	}
}

func TestUnmarshalCall(t *testing.T) {
	f, err := Unmarshal([]byte(`[2,"19223201","BootNotification",{"chargePointVendor":"vb"}]`))
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if f.Type != Call || !f.IsCall() {
		t.Errorf("expected CALL, got type %d", f.Type)
	}
	if f.ID != "19223201" || f.Action != "BootNotification" {
		t.Errorf("unexpected envelope %q %q", f.ID, f.Action)
	}
	var payload struct {
		ChargePointVendor string `json:"chargePointVendor"`
	}
	if err := json.Unmarshal(f.Payload, &payload); err != nil || payload.ChargePointVendor != "vb" {
		t.Errorf("payload not preserved: %s", f.Payload)
	}
}

func TestUnmarshalCallResultAndError(t *testing.T) {
	f, err := Unmarshal([]byte(`[3,"19223201",{"currentTime":"2026-01-01T00:00:00Z"}]`))
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if f.Type != CallResult || f.IsCall() {
		t.Errorf("expected CALLRESULT, got type %d", f.Type)
	}

	f, err = Unmarshal([]byte(`[4,"19223201","NotSupported","bad action",{"detail":1}]`))
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if f.Type != CallError || f.ErrorCode != ErrorNotSupported || f.ErrorDescription != "bad action" {
		t.Errorf("unexpected error frame %+v", f)
	}
	if string(f.ErrorDetails) != `{"detail":1}` {
		t.Errorf("details not preserved: %s", f.ErrorDetails)
	}
}

func TestUnmarshalRejectsMalformedFrames(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"not an array", `{"a":1}`},
		{"not json", `hello`},
		{"too short", `[2,"id"]`},
		{"numeric id", `[2,42,"Heartbeat",{}]`},
		{"empty id", `[2,"","Heartbeat",{}]`},
		{"call without action", `[2,"id",{}]`},
		{"empty action", `[2,"id","",{}]`},
		{"unknown type", `[7,"id",{}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Unmarshal([]byte(tc.in)); err == nil {
				t.Errorf("expected error for %s", tc.in)
			}
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	in := &Frame{Type: Call, ID: "abc", Action: "Heartbeat", Payload: json.RawMessage(`{}`)}
	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	out, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out.ID != in.ID || out.Action != in.Action || out.Type != in.Type {
		t.Errorf("round trip changed the envelope: %+v", out)
	}
}

func TestFormatErrorCode(t *testing.T) {
	if got := FormatErrorCode(V16); got != ErrorFormationViolation {
		t.Errorf("1.6 spelling wrong: %s", got)
	}
	if got := FormatErrorCode(V201); got != ErrorFormatViolation {
		t.Errorf("2.0.1 spelling wrong: %s", got)
	}
}

func TestSubprotocol(t *testing.T) {
	if V16.Subprotocol() != "ocpp1.6" || V201.Subprotocol() != "ocpp2.0.1" {
		t.Error("subprotocol names must match the registry entries")
	}
	if Version("3.0").Subprotocol() != "" {
		t.Error("unknown versions have no subprotocol")
	}
}

func TestAsError(t *testing.T) {
	oe := NewError(ErrorSecurity, "nope")
	if AsError(oe) != oe {
		t.Error("typed errors must pass through")
	}
	wrapped := AsError(errTest("boom"))
	if wrapped.Code != ErrorGeneric || wrapped.Description != "boom" {
		t.Errorf("plain errors must wrap as GenericError, got %+v", wrapped)
	}
	if AsError(nil) != nil {
		t.Error("nil stays nil")
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }

const bootSchema16 = `{
	"type": "object",
	"properties": {
		"chargePointVendor": {"type": "string", "maxLength": 20},
		"chargePointModel": {"type": "string", "maxLength": 20}
	},
	"required": ["chargePointVendor", "chargePointModel"],
	"additionalProperties": false
}`

func TestSchemaValidator_NonStrictPassesEverything(t *testing.T) {
	v := NewSchemaValidator(false)
	if err := v.Register(V16, "BootNotification", Request, []byte(bootSchema16)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := v.Validate(V16, "BootNotification", Request, []byte(`{"garbage":true}`)); err != nil {
		t.Errorf("non-strict validator must pass: %v", err)
	}
}

func TestSchemaValidator_Strict(t *testing.T) {
	v := NewSchemaValidator(true)
	if err := v.Register(V16, "BootNotification", Request, []byte(bootSchema16)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !v.Has(V16, "BootNotification", Request) {
		t.Fatal("schema must be registered")
	}

	ok := []byte(`{"chargePointVendor":"vb","chargePointModel":"sim"}`)
	if err := v.Validate(V16, "BootNotification", Request, ok); err != nil {
		t.Errorf("valid payload rejected: %v", err)
	}

	// Unregistered actions pass even in strict mode.
	if err := v.Validate(V16, "Heartbeat", Request, []byte(`{}`)); err != nil {
		t.Errorf("unregistered action must pass: %v", err)
	}

	err := v.Validate(V16, "BootNotification", Request, []byte(`{"chargePointVendor":"vb"}`))
	oe := AsError(err)
	if oe == nil || oe.Code != ErrorOccurrenceConstraintViolation {
		t.Errorf("missing required property: got %v", err)
	}

	err = v.Validate(V16, "BootNotification", Request,
		[]byte(`{"chargePointVendor":"vb","chargePointModel":42}`))
	oe = AsError(err)
	if oe == nil || oe.Code != ErrorTypeConstraintViolation {
		t.Errorf("wrong property type: got %v", err)
	}

	long := strings.Repeat("x", 30)
	err = v.Validate(V16, "BootNotification", Request,
		[]byte(`{"chargePointVendor":"`+long+`","chargePointModel":"sim"}`))
	oe = AsError(err)
	if oe == nil || oe.Code != ErrorPropertyConstraintViolation {
		t.Errorf("value constraint: got %v", err)
	}

	err = v.Validate(V16, "BootNotification", Request, []byte(`not json`))
	oe = AsError(err)
	if oe == nil || oe.Code != ErrorFormationViolation {
		t.Errorf("invalid JSON must fail with the 1.6 spelling: %v", err)
	}
}
