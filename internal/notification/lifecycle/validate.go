// internal/notification/lifecycle/validate.go
package lifecycle

import (
	"fmt"
	"strings"

	"loyalty-notify/internal/common/errors"
	"loyalty-notify/internal/common/validation"
	"loyalty-notify/internal/models"
)

var draftSchema = validation.MustCompile(fmt.Sprintf(`{
	"type": "object",
	"required": ["title", "body"],
	"properties": {
		"title": {"type": "string", "minLength": 1, "maxLength": %d},
		"body":  {"type": "string", "minLength": 1, "maxLength": %d}
	}
}`, models.MaxTitleLength, models.MaxBodyLength))

// normalizeDraft trims surrounding whitespace and validates the result.
// Lengths are counted in characters, not bytes.
func normalizeDraft(title, body string) (models.NotificationDraft, error) {
	draft := models.NotificationDraft{
		Title: strings.TrimSpace(title),
		Body:  strings.TrimSpace(body),
	}

	result, err := draftSchema.Validate(map[string]interface{}{
		"title": draft.Title,
		"body":  draft.Body,
	})
	if err != nil {
		return draft, errors.NewInternalError(err)
	}
	if result.Valid {
		return draft, nil
	}

	fields := make(map[string]string, len(result.Errors))
	for _, e := range result.Errors {
		if _, seen := fields[e.Field]; seen {
			continue
		}
		fields[e.Field] = fieldMessage(e)
	}
	return draft, errors.NewValidationError(fields)
}

func fieldMessage(e validation.ValidationError) string {
	switch e.Code {
	case "string_gte", "required":
		return "must not be blank"
	case "string_lte":
		limit := models.MaxBodyLength
		if e.Field == "title" {
			limit = models.MaxTitleLength
		}
		return fmt.Sprintf("must be at most %d characters", limit)
	default:
		return e.Message
	}
}
