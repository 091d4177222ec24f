package recovery

import (
	"errors"
	"testing"
)

func TestStrictStrategyFails(t *testing.T) {
	s := NewStrictStrategy()
	if got := s.OnError(nil, errors.New("boom"), Location{}); got != ActionFail {
		t.Fatalf("expected ActionFail, got %v", got)
	}
}

func TestLenientStrategyAccumulates(t *testing.T) {
	s := NewLenientStrategy()
	if got := s.OnError(nil, errors.New("first"), Location{Component: "scanner", ByteOffset: 10}); got != ActionFix {
		t.Fatalf("expected ActionFix, got %v", got)
	}
	s.OnError(nil, errors.New("second"), Location{Component: "xref"})
	if len(s.Errors) != 2 {
		t.Fatalf("expected 2 accumulated errors, got %d", len(s.Errors))
	}
	if s.Errors[0].Error() != "[scanner] offset 10: first" {
		t.Fatalf("unexpected error format: %v", s.Errors[0])
	}
}
