package server

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func idParam(c *gin.Context, name string) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.Param(name))
	if raw == "" {
		return 0, newValidationError(name, "required", name+" is required")
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, newValidationError(name, "invalid_"+name, "invalid "+name)
	}
	return id, nil
}

// dateRangeQuery reads the from/to query parameters as YYYY-MM-DD dates. A
// missing range defaults to the coming month.
func dateRangeQuery(c *gin.Context, now time.Time) (time.Time, time.Time, error) {
	from := now.Truncate(24 * time.Hour)
	to := from.AddDate(0, 1, 0)

	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return from, to, newValidationError("from", "invalid_from", "invalid from date")
		}
		from = parsed
	}
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return from, to, newValidationError("to", "invalid_to", "invalid to date")
		}
		to = parsed.AddDate(0, 0, 1)
	}
	if !to.After(from) {
		return from, to, newValidationError("to", "invalid_range", "to must be after from")
	}
	return from, to, nil
}
