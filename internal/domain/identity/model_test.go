package identity

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/ehr/hospital/pkg/validation"
)

func TestRole_Valid(t *testing.T) {
	for _, r := range Roles {
		if !r.Valid() {
			t.Errorf("expected %q to be valid", r)
		}
	}
	if Role("janitor").Valid() {
		t.Error("expected unknown role to be invalid")
	}
}

func TestUser_DisplayName(t *testing.T) {
	u := User{Username: "jdoe", FirstName: "Jane", LastName: "Doe"}
	if got := u.DisplayName(); got != "Jane Doe" {
		t.Errorf("DisplayName() = %q, want Jane Doe", got)
	}
	u.FirstName, u.LastName = "", ""
	if got := u.DisplayName(); got != "jdoe" {
		t.Errorf("DisplayName() = %q, want jdoe", got)
	}
}

func TestUser_Validate(t *testing.T) {
	u := User{Username: "nurse1", Role: RoleNurse, Email: "n@example.com"}
	if err := u.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u.Role = "janitor"
	u.Password = "short"
	err := u.Validate()
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected validation.Errors, got %v", err)
	}
	if len(verrs["role"]) == 0 || len(verrs["password"]) == 0 {
		t.Errorf("expected role and password errors, got %v", verrs)
	}
}

func TestUser_JSONOmitsPasswordWhenEmpty(t *testing.T) {
	data, err := json.Marshal(User{ID: 3, Username: "doc", Role: RoleDoctor})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var m map[string]interface{}
	json.Unmarshal(data, &m)
	if _, ok := m["password"]; ok {
		t.Error("password should be omitted when empty")
	}
	if m["role"] != "doctor" {
		t.Errorf("role = %v, want doctor", m["role"])
	}
}

func TestPasswordResetConfirm_Validate(t *testing.T) {
	ok := PasswordResetConfirm{Token: "t", UIDB64: "MQ", NewPassword: "longenough", ConfirmPassword: "longenough"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := ok
	bad.ConfirmPassword = "different1"
	if err := bad.Validate(); err == nil {
		t.Error("expected mismatch to fail")
	}
}
