package errors

import "testing"

func TestIndexNotFoundError_Error(t *testing.T) {
	err := &IndexNotFoundError{Name: "i1"}
	if err.Error() == "" {
		t.Errorf("Error() returned empty string for %T", err)
	}
}
