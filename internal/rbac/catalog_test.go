package rbac

import "testing"

func TestCatalogSupersetOrder(t *testing.T) {
	c := NewCatalog()

	user := c.CapabilitiesFor(RoleUser)
	moderator := c.CapabilitiesFor(RoleModerator)
	admin := c.CapabilitiesFor(RoleAdmin)

	for capability := range user {
		if _, ok := moderator[capability]; !ok {
			t.Fatalf("moderator missing user capability %s", capability)
		}
	}
	for capability := range moderator {
		if _, ok := admin[capability]; !ok {
			t.Fatalf("admin missing moderator capability %s", capability)
		}
	}
	if len(user) >= len(moderator) || len(moderator) >= len(admin) {
		t.Fatalf("expected strict supersets: user=%d moderator=%d admin=%d",
			len(user), len(moderator), len(admin))
	}
}

func TestCatalogUnknownRole(t *testing.T) {
	c := NewCatalog()
	if got := c.CapabilitiesFor(Anonymous); len(got) != 0 {
		t.Fatalf("expected empty set for anonymous, got %d capabilities", len(got))
	}
	if c.Has(Anonymous, CapCreateListing) {
		t.Fatal("anonymous must hold no capabilities")
	}
}

func TestCatalogCapabilitiesForReturnsCopy(t *testing.T) {
	c := NewCatalog()
	set := c.CapabilitiesFor(RoleUser)
	delete(set, CapCreateListing)
	if !c.Has(RoleUser, CapCreateListing) {
		t.Fatal("mutating the returned set must not affect the catalog")
	}
}

func TestParseRole(t *testing.T) {
	cases := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"user", RoleUser, true},
		{"Moderator", RoleModerator, true},
		{" admin ", RoleAdmin, true},
		{"", Anonymous, false},
		{"superuser", Anonymous, false},
	}
	for _, tc := range cases {
		got, ok := ParseRole(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseRole(%q) = %v,%v, want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
