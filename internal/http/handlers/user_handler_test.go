package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestPaginationClampsBadInput(t *testing.T) {
	app := fiber.New()
	var limit, offset int
	app.Get("/items", func(c *fiber.Ctx) error {
		limit, offset = pagination(c)
		return c.SendStatus(fiber.StatusOK)
	})

	cases := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"defaults", "", 20, 0},
		{"explicit", "?limit=50&offset=10", 50, 10},
		{"negative values", "?limit=-5&offset=-3", 20, 0},
		{"zero and garbage", "?limit=0&offset=abc", 20, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", "/items"+tc.query, nil))
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			resp.Body.Close()
			if limit != tc.wantLimit || offset != tc.wantOffset {
				t.Errorf("pagination(%q) = (%d, %d), want (%d, %d)",
					tc.query, limit, offset, tc.wantLimit, tc.wantOffset)
			}
		})
	}
}
