package rbac

import "testing"

func TestDefaultPolicy(t *testing.T) {
	c := NewChecker(nil)

	if !c.Has("enumerator", "response:submit") {
		t.Error("enumerators must be able to submit")
	}
	if c.Has("enumerator", "form:publish") {
		t.Error("enumerators must not publish forms")
	}
	if !c.Has("coordinator", "users:bulk_upsert") {
		t.Error("coordinators provision field teams")
	}
	if !c.Has("admin", "anything:at-all") {
		t.Error("admin wildcard failed")
	}
	if c.Has("nosuchrole", "response:submit") {
		t.Error("unknown role must have nothing")
	}
}

func TestAnyAndPrefixMatch(t *testing.T) {
	c := NewChecker(map[string][]string{
		"viewer": {"response:view-*"},
	})
	if !c.Has("viewer", "response:view-own") || !c.Has("viewer", "response:view-all") {
		t.Error("prefix pattern should cover both view permissions")
	}
	if c.Has("viewer", "response:submit") {
		t.Error("prefix pattern leaked")
	}
	if !c.Any("viewer", "response:submit", "response:view-own") {
		t.Error("Any should succeed when one permission matches")
	}
	if c.Any("viewer", "form:create", "form:publish") {
		t.Error("Any should fail when none match")
	}
}
