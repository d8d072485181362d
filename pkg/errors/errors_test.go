package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/multierr"
)

func TestMetadataTable(t *testing.T) {
	cases := map[Code]struct {
		status    int
		retryable bool
		details   bool
	}{
		CodeValidation:      {status: http.StatusBadRequest, details: true},
		CodeNotFound:        {status: http.StatusNotFound},
		CodeConflict:        {status: http.StatusConflict},
		CodeStateConflict:   {status: http.StatusUnprocessableEntity, details: true},
		CodeInternal:        {status: http.StatusInternalServerError, retryable: true},
		CodeDependency:      {status: http.StatusServiceUnavailable, retryable: true, details: true},
		CodeRateLimit:       {status: http.StatusTooManyRequests, retryable: true},
		CodeCheckoutPartial: {status: http.StatusBadGateway, details: true},
	}

	for code, want := range cases {
		got := MetadataFor(code)
		if got.HTTPStatus != want.status || got.Retryable != want.retryable || got.DetailsAllowed != want.details {
			t.Fatalf("%s: got %+v, want status=%d retryable=%v details=%v", code, got, want.status, want.retryable, want.details)
		}
		if got.PublicMessage == "" {
			t.Fatalf("%s: missing public message", code)
		}
	}

	if MetadataFor("SOMETHING_UNKNOWN").HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unknown codes should map to internal")
	}
}

func TestNewAndWrap(t *testing.T) {
	e := Newf(CodeValidation, "quantity %d out of range", 120)
	if e.Code() != CodeValidation || e.Message() != "quantity 120 out of range" {
		t.Fatalf("unexpected error %q", e.Error())
	}
	if e.Details() != nil {
		t.Fatalf("details should start nil")
	}
	if e.WithDetails(map[string]any{"quantity": "max 99"}).Details() == nil {
		t.Fatalf("details were dropped")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("cause not reachable through Unwrap")
	}
	if wrapped.Error() != "CONFLICT: ctx: boom" {
		t.Fatalf("unexpected error string %q", wrapped.Error())
	}
}

func TestNilErrorIsSafe(t *testing.T) {
	var e *Error
	if e.Code() != CodeInternal || e.Error() != "" || e.Unwrap() != nil {
		t.Fatalf("nil *Error should behave as an empty internal error")
	}
	if e.WithDetails("x") != nil {
		t.Fatalf("WithDetails on nil should stay nil")
	}
}

func TestAsAndCodeOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeNotFound, "no entry"))
	if got := As(err); got == nil || got.Code() != CodeNotFound {
		t.Fatalf("As did not find typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should be nil")
	}
	if CodeOf(err) != CodeNotFound {
		t.Fatalf("CodeOf = %s", CodeOf(err))
	}
	if CodeOf(stdErrors.New("plain")) != CodeInternal {
		t.Fatalf("untyped errors should report internal")
	}
}

func TestIsCodeSearchesWholeTree(t *testing.T) {
	inner := Wrap(CodeDependency, New(CodeConflict, "duplicate"), "insert order")
	if !IsCode(fmt.Errorf("line 2: %w", inner), CodeConflict) {
		t.Fatalf("IsCode should see codes beneath the outermost typed error")
	}

	joined := multierr.Combine(stdErrors.New("plain"), New(CodeRateLimit, "slow down"))
	if !IsCode(joined, CodeRateLimit) {
		t.Fatalf("IsCode should descend into multierr")
	}
	if !IsCode(stdErrors.Join(nil, New(CodeNotFound, "gone")), CodeNotFound) {
		t.Fatalf("IsCode should descend into errors.Join")
	}
	if IsCode(stdErrors.New("plain"), CodeNotFound) || IsCode(nil, CodeNotFound) {
		t.Fatalf("IsCode matched an untyped error")
	}
}

func TestDump(t *testing.T) {
	err := fmt.Errorf("persist: %w", Wrap(CodeDependency, stdErrors.New("redis down"), "save cart"))
	dump := Dump(err)
	if dump.Code != CodeDependency || !dump.Retryable {
		t.Fatalf("unexpected dump %+v", dump)
	}
	if len(dump.Chain) != 3 {
		t.Fatalf("expected chain of 3, got %d: %v", len(dump.Chain), dump.Chain)
	}
	if dump.PG != nil {
		t.Fatalf("no postgres error in chain")
	}
	fields := dump.Fields()
	if fields["error_code"] != CodeDependency || fields["retryable"] != true {
		t.Fatalf("unexpected fields %v", fields)
	}
	if Dump(nil).TopMessage != "" {
		t.Fatalf("nil dump should be empty")
	}
}

func TestDumpExtractsPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "orders_pkey", TableName: "orders", Message: "duplicate key"}
	dump := Dump(Wrap(CodeConflict, pgErr, "create order"))
	if dump.PG == nil || dump.PG.Code != "23505" || dump.PG.Table != "orders" {
		t.Fatalf("unexpected pg info %+v", dump.PG)
	}
	if dump.Fields()["pg_constraint"] != "orders_pkey" {
		t.Fatalf("pg fields missing")
	}
}
