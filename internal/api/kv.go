package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/bstardust/photo-ingest/internal/kv"
	"github.com/bstardust/photo-ingest/internal/logger"
)

const msgReadOnly = "Configuration store is read-only"

type putConfigRequest struct {
	KV json.RawMessage `json:"kv"`
}

// GetConfig handles POST /api/kv {keys}. The answer lists one {key: value}
// object per requested key, in request order, with "" for unset keys.
func (s *Server) GetConfig(c *gin.Context) {
	keys := readKeys(c)
	if len(keys) == 0 {
		c.JSON(http.StatusOK, []map[string]string{})
		return
	}

	values, err := s.config.Get(c.Request.Context(), lo.Uniq(keys))
	if err != nil {
		logger.Error("Failed to fetch configuration: %v", err)
		abort(c, http.StatusInternalServerError, "Failed to fetch configuration")
		return
	}

	out := lo.Map(keys, func(k string, _ int) map[string]string {
		return map[string]string{k: values[k]}
	})
	c.JSON(http.StatusOK, out)
}

// PutConfig handles PUT /api/kv {kv: [{key: value}, ...]}
func (s *Server) PutConfig(c *gin.Context) {
	w, ok := s.config.(kv.Writer)
	if !ok {
		abort(c, http.StatusMethodNotAllowed, msgReadOnly)
		return
	}

	var req putConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "Invalid payload")
		return
	}
	entries, err := decodeEntries(req.KV)
	if err != nil {
		abort(c, http.StatusBadRequest, "Invalid payload")
		return
	}
	if len(entries) == 0 {
		abort(c, http.StatusBadRequest, "No configuration entries provided")
		return
	}

	if err := w.Put(c.Request.Context(), entries); err != nil {
		if errors.Is(err, kv.ErrReadOnly) {
			abort(c, http.StatusMethodNotAllowed, msgReadOnly)
			return
		}
		logger.Error("Failed to update configuration: %v", err)
		abort(c, http.StatusInternalServerError, "Failed to update configuration")
		return
	}
	c.String(http.StatusOK, "Configuration updated successfully")
}

// DeleteConfig handles DELETE /api/kv {keys}
func (s *Server) DeleteConfig(c *gin.Context) {
	w, ok := s.config.(kv.Writer)
	if !ok {
		abort(c, http.StatusMethodNotAllowed, msgReadOnly)
		return
	}

	keys := readKeys(c)
	if len(keys) == 0 {
		abort(c, http.StatusBadRequest, "No keys provided")
		return
	}

	if err := w.Delete(c.Request.Context(), keys); err != nil {
		if errors.Is(err, kv.ErrReadOnly) {
			abort(c, http.StatusMethodNotAllowed, msgReadOnly)
			return
		}
		logger.Error("Failed to delete configuration: %v", err)
		abort(c, http.StatusInternalServerError, "Failed to delete configuration")
		return
	}
	c.String(http.StatusOK, "Configuration deleted successfully")
}

// decodeEntries flattens a JSON list of {key: value} objects. Non-string
// values are stored in their JSON text form, null as "".
func decodeEntries(raw json.RawMessage) (map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var items []map[string]any
	if err := dec.Decode(&items); err != nil {
		return nil, err
	}
	if items == nil {
		return nil, errors.New("kv must be a list")
	}

	entries := map[string]string{}
	for _, item := range items {
		for k, v := range item {
			if k == "" {
				continue
			}
			switch val := v.(type) {
			case nil:
				entries[k] = ""
			case string:
				entries[k] = val
			default:
				entries[k] = fmt.Sprint(val)
			}
		}
	}
	return entries, nil
}
