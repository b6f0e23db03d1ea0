package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "s3cret"

func whoAmI(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	return c.SendString(userID)
}

func call(t *testing.T, app *fiber.App, req *http.Request) (int, string) {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestGatewayAuthMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(GatewayAuthMiddleware("gw-token"))
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/matches/open", func(c *fiber.Ctx) error { return c.SendString("open") })
	app.Get("/ws/matches/:id", func(c *fiber.Ctx) error { return c.SendString("ws") })

	tests := []struct {
		name string
		path string
		auth string
		want int
	}{
		{"health bypass", "/health", "", http.StatusOK},
		{"missing token", "/matches/open", "", http.StatusUnauthorized},
		{"wrong token", "/matches/open", "Bearer nope", http.StatusUnauthorized},
		{"bearer token", "/matches/open", "Bearer gw-token", http.StatusOK},
		{"raw token", "/matches/open", "gw-token", http.StatusOK},
		{"socket with jwt", "/ws/matches/m1?token=abc", "", http.StatusOK},
		{"socket without anything", "/ws/matches/m1", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			if code, _ := call(t, app, req); code != tt.want {
				t.Fatalf("status = %d, want %d", code, tt.want)
			}
		})
	}
}

func TestUserContextMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/me", UserContextMiddleware(), whoAmI)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if code, _ := call(t, app, req); code != http.StatusUnauthorized {
		t.Fatalf("missing user = %d", code)
	}

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-User-ID", " u-1 ")
	code, body := call(t, app, req)
	if code != http.StatusOK || body != "u-1" {
		t.Fatalf("with user = %d %q", code, body)
	}
}

func TestSocketTokenRoundTrip(t *testing.T) {
	token, err := IssueSocketToken(testSecret, "u-42", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	userID, err := ParseSocketToken(testSecret, token)
	if err != nil || userID != "u-42" {
		t.Fatalf("parse = %q, %v", userID, err)
	}

	if _, err := ParseSocketToken("other", token); err == nil {
		t.Fatal("token accepted with the wrong secret")
	}

	expired, _ := IssueSocketToken(testSecret, "u-42", -time.Minute)
	if _, err := ParseSocketToken(testSecret, expired); err == nil {
		t.Fatal("expired token accepted")
	}

	// subject works when the uid claim is absent
	bare := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u-7"})
	signed, _ := bare.SignedString([]byte(testSecret))
	if userID, err := ParseSocketToken(testSecret, signed); err != nil || userID != "u-7" {
		t.Fatalf("subject only = %q, %v", userID, err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{})
	signed, _ = none.SignedString([]byte(testSecret))
	if _, err := ParseSocketToken(testSecret, signed); err == nil {
		t.Fatal("token without identity accepted")
	}
}

func TestSocketAuthMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(GatewayAuthMiddleware("gw-token"))
	app.Get("/ws/matches/:id", SocketAuthMiddleware(testSecret), whoAmI)

	token, _ := IssueSocketToken(testSecret, "u-9", time.Minute)

	tests := []struct {
		name     string
		path     string
		auth     string
		userID   string
		want     int
		wantUser string
	}{
		{"jwt", "/ws/matches/m1?token=" + token, "", "", http.StatusOK, "u-9"},
		{"gateway header", "/ws/matches/m1", "Bearer gw-token", "u-gw", http.StatusOK, "u-gw"},
		{"gateway without user falls back to jwt", "/ws/matches/m1?token=" + token, "Bearer gw-token", "", http.StatusOK, "u-9"},
		{"header ignored without gateway token", "/ws/matches/m1?token=junk", "", "victim", http.StatusUnauthorized, ""},
		{"header ignored next to valid jwt", "/ws/matches/m1?token=" + token, "", "victim", http.StatusOK, "u-9"},
		{"bad token", "/ws/matches/m1?token=garbage", "", "", http.StatusUnauthorized, ""},
		{"no identity", "/ws/matches/m1", "Bearer gw-token", "", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			if tt.userID != "" {
				req.Header.Set("X-User-ID", tt.userID)
			}
			code, body := call(t, app, req)
			if code != tt.want {
				t.Fatalf("status = %d, want %d", code, tt.want)
			}
			if tt.want == http.StatusOK && body != tt.wantUser {
				t.Fatalf("user = %q, want %q", body, tt.wantUser)
			}
		})
	}
}

func TestSocketAuthWithoutGateway(t *testing.T) {
	app := fiber.New()
	app.Get("/ws/matches/:id", SocketAuthMiddleware(testSecret), whoAmI)

	req := httptest.NewRequest(http.MethodGet, "/ws/matches/m1", nil)
	req.Header.Set("X-User-ID", "victim")
	if code, _ := call(t, app, req); code != http.StatusUnauthorized {
		t.Fatalf("unverified header = %d", code)
	}
}
