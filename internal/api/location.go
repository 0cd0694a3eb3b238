package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bstardust/photo-ingest/internal/geocode"
	"github.com/bstardust/photo-ingest/internal/logger"
)

// GetLocation handles POST /api/get-location. The body is a location
// payload; the answer is {location} where location may be null.
func (s *Server) GetLocation(c *gin.Context) {
	payload, ok := readPayload(c)
	if !ok {
		abort(c, http.StatusBadRequest, "Invalid payload")
		return
	}

	loc, err := s.locator.Resolve(c.Request.Context(), payload)
	if err != nil {
		logger.Error("Failed to resolve location: %v", err)
		abort(c, http.StatusInternalServerError, "Failed to resolve location")
		return
	}

	c.JSON(http.StatusOK, gin.H{"location": loc.Value()})
}

// readPayload accepts a JSON object or array body. Arrays carry no fields
// and resolve like an empty payload; null and scalars are rejected.
func readPayload(c *gin.Context) (geocode.Payload, bool) {
	var payload geocode.Payload
	body, err := c.GetRawData()
	if err != nil {
		return payload, false
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || !json.Valid(body) {
		return payload, false
	}
	switch body[0] {
	case '{':
		if err := json.Unmarshal(body, &payload); err != nil {
			return payload, false
		}
		return payload, true
	case '[':
		return payload, true
	}
	return payload, false
}
