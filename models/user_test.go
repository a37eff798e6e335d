package models

import "testing"

func TestLoginInfoUsesDisplayName(t *testing.T) {
	user := User{
		Username: "thandar.w",
		Name:     "Thandar Win",
		Role:     UserRoleStaff,
	}

	info := user.loginInfo("tok-1")
	if info.Name != "Thandar Win" {
		t.Errorf("name = %q, want the display name, not the username", info.Name)
	}
	if info.Token != "tok-1" {
		t.Errorf("token = %q", info.Token)
	}
	if info.Role != string(UserRoleStaff) {
		t.Errorf("role = %q", info.Role)
	}
}
