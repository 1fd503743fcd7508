package users

import (
	"testing"
)

func TestUserValuesAssignsIDWhenMissing(t *testing.T) {
	u := &User{Name: "Ada", Email: "ada@example.com"}
	vals := userValues(u)
	if u.ID == "" {
		t.Fatal("expected userValues to assign an ID when missing")
	}
	if len(vals) != len(userColumns) {
		t.Fatalf("len(vals) = %d, want %d", len(vals), len(userColumns))
	}
}

func TestUserEntitySettersRoundTrip(t *testing.T) {
	u := &User{}
	u.SetID("abc")
	if u.GetID() != "abc" {
		t.Errorf("GetID() = %q, want abc", u.GetID())
	}
}
