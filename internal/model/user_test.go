package model

import (
	"testing"
	"time"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		input  string
		want   Role
		wantOK bool
	}{
		{"patient", RolePatient, true},
		{"Doctor", RoleDoctor, true},
		{"ADMIN", RoleAdmin, true},
		{"  admin  ", RoleAdmin, true},
		{"nurse", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseRole(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseRole(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestRole_Equals(t *testing.T) {
	if !Role("Doctor").Equals(RoleDoctor) {
		t.Error("Equals should ignore case")
	}
	if RolePatient.Equals(RoleAdmin) {
		t.Error("distinct roles must not be equal")
	}
}

func TestRole_HomePath(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RolePatient, "/patient"},
		{RoleDoctor, "/doctor"},
		{RoleAdmin, "/admin"},
		{Role("Admin"), "/admin"},
		{Role("unknown"), "/"},
	}

	for _, tt := range tests {
		if got := tt.role.HomePath(); got != tt.want {
			t.Errorf("HomePath(%q) = %q, want %q", tt.role, got, tt.want)
		}
	}
}

func TestSession_Authenticated(t *testing.T) {
	full := &Session{
		ID:        "sess-1",
		Token:     "token-1",
		Identity:  Identity{ID: "u1", Role: RolePatient},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if !full.Authenticated() {
		t.Error("complete session should be authenticated")
	}

	tests := []struct {
		name    string
		session *Session
	}{
		{"nil", nil},
		{"missing token", &Session{Identity: Identity{ID: "u1", Role: RolePatient}}},
		{"missing identity id", &Session{Token: "t", Identity: Identity{Role: RolePatient}}},
		{"missing role", &Session{Token: "t", Identity: Identity{ID: "u1"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.session.Authenticated() {
				t.Error("incomplete session must be unauthenticated")
			}
		})
	}
}
