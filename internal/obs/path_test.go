package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                  "/",
		"/metrics":                          "/metrics",
		"/v1/listings/01ABC":                "/v1/listings/:id",
		"/v1/listings/01ABC/approve":        "/v1/listings/:id/approve",
		"/v1/users/01ABC/reputation":        "/v1/users/:id/reputation",
		"/v1/notifications/01ABC/read":      "/v1/notifications/:id/read",
		"/v1/notifications":                 "/v1/notifications",
		"/v1/notifications/stream":          "/v1/notifications/stream",
		"/v1/listings/01ABC?fields=status":  "/v1/listings/:id",
		"/v1/categories/abc":                "/v1/categories/abc",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
