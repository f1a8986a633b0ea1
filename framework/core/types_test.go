package core

import (
	"errors"
	"testing"
)

const testKind FailureKind = "TestError"

func TestFailure_Error(t *testing.T) {
	cause := errors.New("root cause")
	f := &Failure{Kind: testKind, Cause: cause}

	if f.Error() != "TestError: root cause" {
		t.Errorf("Expected 'TestError: root cause', got '%s'", f.Error())
	}

	// Без cause
	f2 := &Failure{Kind: testKind}
	if f2.Error() != "TestError" {
		t.Errorf("Expected 'TestError', got '%s'", f2.Error())
	}
}

func TestFailure_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	f := &Failure{Kind: testKind, Cause: cause}

	if !errors.Is(f, cause) {
		t.Error("Expected errors.Is to find cause")
	}
}

func TestResult_Ok(t *testing.T) {
	result := Ok("success")
	if !result.IsOk() {
		t.Error("Expected result to be ok")
	}
	if result.IsErr() {
		t.Error("Expected result to not be error")
	}
	if result.Value() != "success" {
		t.Errorf("Expected 'success', got %v", result.Value())
	}
	if result.Failure() != nil || result.Err() != nil {
		t.Error("Expected no failure on ok result")
	}
}

func TestResult_FailWith(t *testing.T) {
	err := errors.New("test error")
	result := FailWith[string](testKind, err, true)
	if result.IsOk() {
		t.Error("Expected result to not be ok")
	}
	if !result.IsErr() {
		t.Error("Expected result to be error")
	}
	if !errors.Is(result.Err(), err) {
		t.Error("Expected error to wrap cause")
	}
	if result.Failure().Kind != testKind {
		t.Errorf("Expected kind %s, got %s", testKind, result.Failure().Kind)
	}
}

func TestResult_IsFailureOfKind(t *testing.T) {
	result := FailWith[int](testKind, nil, false)
	if !result.IsFailureOfKind(testKind) {
		t.Error("Expected IsFailureOfKind to return true")
	}
	if result.IsFailureOfKind("Other") {
		t.Error("Expected IsFailureOfKind to return false for other kind")
	}
	if Ok(1).IsFailureOfKind(testKind) {
		t.Error("Expected ok result to match no kind")
	}
}

func TestResult_IsFailureTransient(t *testing.T) {
	if !FailWith[int](testKind, nil, true).IsFailureTransient() {
		t.Error("Expected transient failure")
	}
	if FailWith[int](testKind, nil, false).IsFailureTransient() {
		t.Error("Expected non-transient failure")
	}
	if Ok(1).IsFailureTransient() {
		t.Error("Expected ok result to be non-transient")
	}
}

func TestResult_Propagate(t *testing.T) {
	source := FailWith[int](testKind, errors.New("boom"), true)
	propagated := Propagate[string](source)

	if propagated.Failure() != source.Failure() {
		t.Error("Expected the same failure to be propagated")
	}
}

func TestResult_PropagateOkPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic on propagating ok result")
		}
	}()
	_ = Propagate[string](Ok(1))
}

func TestOption_Some(t *testing.T) {
	opt := Some("value")
	if !opt.IsSome() {
		t.Error("Expected option to be Some")
	}
	if opt.IsNone() {
		t.Error("Expected option to not be None")
	}
	if opt.Value() != "value" {
		t.Errorf("Expected 'value', got %v", opt.Value())
	}
}

func TestOption_None(t *testing.T) {
	opt := None[string]()
	if opt.IsSome() {
		t.Error("Expected option to not be Some")
	}
	if !opt.IsNone() {
		t.Error("Expected option to be None")
	}
}

func TestOption_ValueOr(t *testing.T) {
	opt1 := Some("value")
	if val := opt1.ValueOr("default"); val != "value" {
		t.Errorf("Expected 'value', got %v", val)
	}

	opt2 := None[string]()
	if val := opt2.ValueOr("default"); val != "default" {
		t.Errorf("Expected 'default', got %v", val)
	}
}
