package schemas

import (
	"testing"

	"github.com/voltbench/ocpp-sim/internal/ocpp"
)

func TestRegister_LoadsEmbeddedSchemas(t *testing.T) {
	v := ocpp.NewSchemaValidator(true)
	if err := Register(v); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tuples := []struct {
		ver    ocpp.Version
		action string
		dir    ocpp.Direction
	}{
		{ocpp.V16, "BootNotification", ocpp.Request},
		{ocpp.V16, "BootNotification", ocpp.Response},
		{ocpp.V16, "StartTransaction", ocpp.Request},
		{ocpp.V201, "BootNotification", ocpp.Request},
		{ocpp.V201, "TransactionEvent", ocpp.Request},
		{ocpp.V201, "TransactionEvent", ocpp.Response},
	}
	for _, tc := range tuples {
		if !v.Has(tc.ver, tc.action, tc.dir) {
			t.Errorf("no schema registered for %s %s %s", tc.ver, tc.action, tc.dir)
		}
	}
}

func TestRegister_SchemasEnforceRequiredFields(t *testing.T) {
	v := ocpp.NewSchemaValidator(true)
	if err := Register(v); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	err := v.Validate(ocpp.V16, "BootNotification", ocpp.Request, []byte(`{}`))
	if err == nil {
		t.Fatal("empty BootNotification request must not validate")
	}
	oe := ocpp.AsError(err)
	if oe.Code != ocpp.ErrorOccurrenceConstraintViolation {
		t.Errorf("expected occurrence violation, got %s", oe.Code)
	}

	ok := v.Validate(ocpp.V16, "BootNotification", ocpp.Request,
		[]byte(`{"chargePointVendor":"VoltBench","chargePointModel":"SIM-1"}`))
	if ok != nil {
		t.Errorf("minimal valid request rejected: %v", ok)
	}
}
