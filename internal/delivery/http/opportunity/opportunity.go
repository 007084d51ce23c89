package http_opportunity

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wellworld/core/internal/model"
	usecase_selection "github.com/wellworld/core/internal/usecase/selection"
)

type Catalog interface {
	Load(ctx context.Context) []model.Opportunity
}

type Controller struct {
	catalog Catalog
	matcher usecase_selection.CountryMatcher
	logger  *slog.Logger
}

func New(catalog Catalog, matcher usecase_selection.CountryMatcher) *Controller {
	return &Controller{
		catalog: catalog,
		matcher: matcher,
		logger:  slog.Default(),
	}
}

func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/opportunities", c.list)
}

type ListResponseDTO struct {
	Opportunities []model.Opportunity `json:"opportunities"`
}

func (c *Controller) list(ctx *gin.Context) {
	opps := c.catalog.Load(ctx.Request.Context())

	if country := ctx.Query("country"); country != "" {
		view := usecase_selection.View{ShowAll: true}
		view.Country = &country
		opps = usecase_selection.DisplayList(opps, view, c.matcher)
	}

	ctx.JSON(http.StatusOK, ListResponseDTO{
		Opportunities: opps,
	})
}
