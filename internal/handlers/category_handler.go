package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moguls753/kontor/internal/models"
	"github.com/moguls753/kontor/internal/repository"
	"github.com/moguls753/kontor/internal/services/categorizer"
)

type CategoryHandler struct {
	categories *repository.CategoryRepository
	suggester  *categorizer.Service
}

func NewCategoryHandler(categories *repository.CategoryRepository, suggester *categorizer.Service) *CategoryHandler {
	return &CategoryHandler{categories: categories, suggester: suggester}
}

func (h *CategoryHandler) Index(c *gin.Context) {
	categories, err := h.categories.ListByUser(currentUserID(c))
	if err != nil {
		renderError(c, err)
		return
	}
	out := make([]gin.H, 0, len(categories))
	for i := range categories {
		out = append(out, gin.H{"id": categories[i].ID, "name": categories[i].Name})
	}
	c.JSON(http.StatusOK, out)
}

func (h *CategoryHandler) Create(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": []string{"name can't be blank"}})
		return
	}
	category, err := h.categories.Create(currentUserID(c), req.Name)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": []string{"name has already been taken"}})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": category.ID, "name": category.Name})
}

func (h *CategoryHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": []string{"name can't be blank"}})
		return
	}
	category, err := h.categories.GetForUser(id, currentUserID(c))
	if err != nil {
		renderError(c, err)
		return
	}
	if err := h.categories.Rename(category, req.Name); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": []string{"name has already been taken"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": category.ID, "name": category.Name})
}

// Destroy nullifies category references on transactions; it never deletes
// them.
func (h *CategoryHandler) Destroy(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	category, err := h.categories.GetForUser(id, currentUserID(c))
	if err != nil {
		renderError(c, err)
		return
	}
	if err := h.categories.Delete(category); err != nil {
		renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateDefaults seeds the locale's starter categories, skipping names the
// user already has.
func (h *CategoryHandler) CreateDefaults(c *gin.Context) {
	var req struct {
		Locale string `json:"locale"`
	}
	_ = c.ShouldBindJSON(&req)

	names, ok := models.DefaultCategories[req.Locale]
	if !ok {
		names = models.DefaultCategories["en"]
	}
	userID := currentUserID(c)
	for _, name := range names {
		if _, err := h.categories.FirstOrCreate(userID, name); err != nil {
			renderError(c, err)
			return
		}
	}
	categories, err := h.categories.ListByUser(userID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"created": len(categories)})
}

func (h *CategoryHandler) Suggest(c *gin.Context) {
	suggestions, err := h.suggester.Suggest(c.Request.Context(), currentUserID(c))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}
