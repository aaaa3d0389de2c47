package apirouter

import (
	"context"
	"errors"
	"net/http"

	"github.com/dbcv/platform/internal/storage"
	"github.com/gin-gonic/gin"
)

type ObjectGetter interface {
	Get(ctx context.Context, key string) (*storage.Object, error)
}

func MediaHandler(objects ObjectGetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		obj, err := objects.Get(c.Request.Context(), c.Param("key"))
		if err != nil {
			switch {
			case errors.Is(err, storage.ErrNotFound):
				AbortWithError(c, http.StatusNotFound, NewErrNotFound("file"))
			case errors.Is(err, storage.ErrInvalidKey):
				AbortWithError(c, http.StatusBadRequest, NewErrBadRequest(err))
			default:
				AbortWithError(c, http.StatusInternalServerError, NewErrInternalServer(err))
			}
			return
		}
		defer obj.Body.Close()

		contentType := obj.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		extra := map[string]string{}
		if obj.ETag != "" {
			extra["ETag"] = obj.ETag
		}
		c.DataFromReader(http.StatusOK, obj.ContentLength, contentType, obj.Body, extra)
	}
}
