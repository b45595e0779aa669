package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/lib/pq"
)

// userID pulls the authenticated user out of locals. The auth middleware
// guarantees it is set on every protected route.
func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("issuer").(string)
	return id
}

func userEmail(c *fiber.Ctx) string {
	email, _ := c.Locals("email").(string)
	return email
}

func idParam(c *fiber.Ctx, name string) (int, error) {
	return strconv.Atoi(c.Params(name))
}

// pageParams reads page/limit query params with defaults and a hard cap.
func pageParams(c *fiber.Ctx) (page, limit, offset int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.Query("limit", "20"))
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit, (page - 1) * limit
}

// sortClause builds an ORDER BY from whitelisted columns. Anything not in
// the whitelist falls back to created_at.
func sortClause(c *fiber.Ctx, allowed map[string]bool) string {
	col := c.Query("sort_by", "created_at")
	if !allowed[col] {
		col = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(c.Query("sort_order"), "asc") {
		order = "ASC"
	}
	return col + " " + order
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": message,
		"success": false,
		"status":  400,
	})
}

func notFound(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"message": message,
		"success": false,
		"status":  404,
	})
}

func serverError(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"message": message,
		"success": false,
		"status":  500,
	})
}

// dbError translates Postgres error codes into client-facing responses.
func dbError(c *fiber.Ctx, err error) error {
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "23505":
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"message": "Resource already exists",
				"success": false,
				"status":  409,
			})
		case "23503":
			return badRequest(c, "Referenced resource does not exist")
		}
	}
	return serverError(c, "Database error")
}
