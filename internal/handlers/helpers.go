package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cookbook/internal/middleware"
	"cookbook/internal/models"
	"cookbook/internal/validation"
)

// более устойчиво к типам (int / int64 / float64 / string)
func getIntFromCtx(c *gin.Context, key string) (int, bool) {
	v, ok := c.Get(key)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n, true
		}
	}
	return 0, false
}

// viewerID: 0 для анонимного запроса.
func viewerID(c *gin.Context) int {
	id, _ := getIntFromCtx(c, middleware.CtxUserID)
	return id
}

func isStaff(c *gin.Context) bool {
	return c.GetBool(middleware.CtxIsStaff)
}

// pathID читает положительный int из пути; при ошибке сам отвечает 400.
func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

// queryInt: пустой параметр даёт def; мусор даёт ошибку.
func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, validation.Errors{name: "must be a non-negative integer"}
	}
	return n, nil
}

// readUpload returns nil when the multipart field is absent.
func readUpload(c *gin.Context, field string) (*models.Upload, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, validation.Errors{field: "cannot read upload"}
	}
	if fh.Size > validation.MaxImageBytes {
		return nil, validation.Errors{field: "must be at most 1 MiB"}
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", field, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, validation.MaxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", field, err)
	}
	if len(data) > validation.MaxImageBytes {
		return nil, validation.Errors{field: "must be at most 1 MiB"}
	}
	return &models.Upload{Filename: fh.Filename, Data: data}, nil
}
