package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/envlocker/envlocker/dao/store"
	"github.com/envlocker/envlocker/internal/resputil"
)

// respondStoreError maps the store sentinels onto the response envelope.
func respondStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		resputil.HTTPError(c, http.StatusNotFound, "Not found", resputil.ResourceNotFound)
	case errors.Is(err, store.ErrForbidden):
		resputil.HTTPError(c, http.StatusForbidden, "Forbidden", resputil.UserNotAllowed)
	case errors.Is(err, store.ErrConflict):
		resputil.HTTPError(c, http.StatusConflict, err.Error(), resputil.ResourceConflict)
	case errors.Is(err, store.ErrValidation):
		resputil.BadRequestError(c, err.Error())
	default:
		resputil.Error(c, err.Error(), resputil.NotSpecified)
	}
}
