package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kargonusa/freight-core/internal/api/middleware"
	"github.com/kargonusa/freight-core/internal/core/domain"
)

// ctxActor extracts the caller injected by the Auth middleware. A missing
// actor id means the route was mounted without Auth.
func ctxActor(c echo.Context) (domain.Actor, error) {
	id, _ := c.Get(middleware.ContextActorID).(string)
	if id == "" {
		return domain.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	role, _ := c.Get(middleware.ContextRole).(string)
	branch, _ := c.Get(middleware.ContextBranchID).(string)

	actor := domain.Actor{ID: id, Role: role, BranchID: branch}
	if role == domain.RoleBranch && branch == "" {
		return domain.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "token missing branch identity")
	}
	return actor, nil
}

// bindAndValidate decodes the request body into req and runs the validator.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return nil
}
