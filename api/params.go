package api

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/missioncontrol/pkg/mission"
	"github.com/papercomputeco/missioncontrol/pkg/storage"
)

// listResponse wraps every list endpoint's body.
type listResponse[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func newListResponse[T any](items []T, p storage.Page) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	p = p.Normalize()
	return listResponse[T]{Items: items, Limit: p.Limit, Offset: p.Offset}
}

// decode unmarshals the JSON request body into v.
func decode(c *fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return badRequest("request body is required")
	}
	if err := json.Unmarshal(c.Body(), v); err != nil {
		return badRequest("invalid request body")
	}
	return nil
}

// pageParam reads "limit" and "offset".
func pageParam(c *fiber.Ctx) (storage.Page, error) {
	var p storage.Page
	for name, dst := range map[string]*int{"limit": &p.Limit, "offset": &p.Offset} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return p, badRequest("invalid " + name)
		}
		*dst = n
	}
	return p, nil
}

// boolParam reads an optional boolean query parameter.
func boolParam(c *fiber.Ctx, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, badRequest("invalid " + name)
	}
	return &b, nil
}

// sinceParam reads the stream cursor. A missing or malformed value starts
// the stream at the current time.
func sinceParam(c *fiber.Ctx) time.Time {
	if t, err := mission.ParseTimestamp(c.Query("since")); err == nil {
		return t
	}
	return mission.Now()
}

// lenientBoolParam is boolParam for stream endpoints: malformed values are
// ignored.
func lenientBoolParam(c *fiber.Ctx, name string) *bool {
	b, err := boolParam(c, name)
	if err != nil {
		return nil
	}
	return b
}
