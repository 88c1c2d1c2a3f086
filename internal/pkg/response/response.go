package response

import (
	"github.com/gofiber/fiber/v2"
)

// SuccessBody is the envelope of every successful API response. Data is
// always an object keyed by resource name.
type SuccessBody struct {
	Status   string      `json:"status"`
	Message  string      `json:"message"`
	Data     interface{} `json:"data"`
	Metadata interface{} `json:"metadata,omitempty"`
}

// ErrorBody is the envelope of every failed API response.
type ErrorBody struct {
	Status string      `json:"status"`
	Error  ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message    string      `json:"message"`
	StatusCode int         `json:"statusCode"`
	Details    interface{} `json:"details,omitempty"`
}

const (
	statusSuccess = "success"
	statusError   = "error"
)

func emptyIfNil(v interface{}) interface{} {
	if v == nil {
		return fiber.Map{}
	}
	return v
}

func success(c *fiber.Ctx, code int, message string, data, metadata interface{}) error {
	// balances and ledgers must not be served from intermediary caches
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Status(code).JSON(SuccessBody{
		Status:   statusSuccess,
		Message:  message,
		Data:     emptyIfNil(data),
		Metadata: emptyIfNil(metadata),
	})
}

// Success sends 200 OK.
func Success(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	return success(c, fiber.StatusOK, message, data, metadata)
}

// SuccessCreated sends 201 Created.
func SuccessCreated(c *fiber.Ctx, message string, data interface{}, metadata interface{}) error {
	return success(c, fiber.StatusCreated, message, data, metadata)
}

// Page sends 200 OK with total/page/limit pagination metadata.
func Page(c *fiber.Ctx, message string, data interface{}, total int64, page, limit int) error {
	return success(c, fiber.StatusOK, message, data, fiber.Map{
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// Error sends statusCode with the error envelope.
func Error(c *fiber.Ctx, message string, statusCode int, details interface{}) error {
	return c.Status(statusCode).JSON(ErrorBody{
		Status: statusError,
		Error: ErrorDetail{
			Message:    message,
			StatusCode: statusCode,
			Details:    emptyIfNil(details),
		},
	})
}

// Unauthorized sends 401 with the error envelope.
func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, message, fiber.StatusUnauthorized, nil)
}
