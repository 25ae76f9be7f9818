package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moguls753/kontor/internal/services/linking"
)

type InstitutionHandler struct {
	adapters *linking.Factory
}

func NewInstitutionHandler(adapters *linking.Factory) *InstitutionHandler {
	return &InstitutionHandler{adapters: adapters}
}

// Index lists the banks available for linking in a country.
func (h *InstitutionHandler) Index(c *gin.Context) {
	country := c.DefaultQuery("country", "DE")

	client, err := h.adapters.GoCardlessClient(c.Request.Context(), currentUserID(c))
	if err != nil {
		renderError(c, err)
		return
	}
	institutions, err := client.ListInstitutions(c.Request.Context(), country)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, institutions)
}
