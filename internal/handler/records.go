package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ngo-data-hub/internal/middleware"
	"github.com/iliyamo/ngo-data-hub/internal/repository"
)

// RecordStore is the generic entity-table store.
type RecordStore interface {
	List(ctx context.Context, table string, limit, offset int) ([]repository.Record, error)
	Get(ctx context.Context, table string, id uint64) (repository.Record, error)
	Create(ctx context.Context, table string, data repository.Record) (uint64, error)
	Update(ctx context.Context, table string, id uint64, data repository.Record, modifiedBy string, at time.Time) error
	Delete(ctx context.Context, table string, id uint64) error
}

// RecordsHandler serves list/detail/create/update/delete for one table.
// The router builds one per allow-listed table.
type RecordsHandler struct {
	Store RecordStore
	Table string
}

func NewRecordsHandler(store RecordStore, table string) *RecordsHandler {
	return &RecordsHandler{Store: store, Table: table}
}

func (h *RecordsHandler) storeError(c echo.Context, err error, what string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return msg(c, http.StatusNotFound, "Record not found")
	case errors.Is(err, repository.ErrInvalidTable):
		return msg(c, http.StatusBadRequest, "Invalid table")
	case errors.Is(err, repository.ErrInvalidColumn):
		return msg(c, http.StatusBadRequest, "Invalid field name")
	default:
		return internalError(c, err, what)
	}
}

// bindBody decodes only the request body; path params such as :id must not
// leak into the column set.
func bindBody(c echo.Context, dst *repository.Record) error {
	return (&echo.DefaultBinder{}).BindBody(c, dst)
}

func queryInt(c echo.Context, name string) int {
	n, _ := strconv.Atoi(c.QueryParam(name))
	return n
}

func (h *RecordsHandler) List(c echo.Context) error {
	rows, err := h.Store.List(c.Request().Context(), h.Table, queryInt(c, "limit"), queryInt(c, "offset"))
	if err != nil {
		return h.storeError(c, err, "list records failed")
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *RecordsHandler) Get(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return msg(c, http.StatusBadRequest, "Invalid id")
	}
	rec, err := h.Store.Get(c.Request().Context(), h.Table, id)
	if err != nil {
		return h.storeError(c, err, "get record failed")
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *RecordsHandler) Create(c echo.Context) error {
	data := repository.Record{}
	if err := bindBody(c, &data); err != nil {
		return msg(c, http.StatusBadRequest, "Invalid request body")
	}
	delete(data, "id")
	id, err := h.Store.Create(c.Request().Context(), h.Table, data)
	if err != nil {
		return h.storeError(c, err, "create record failed")
	}
	data["id"] = id
	return c.JSON(http.StatusCreated, data)
}

// Update stamps modified_by with the caller's email.
func (h *RecordsHandler) Update(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return msg(c, http.StatusBadRequest, "Invalid id")
	}
	data := repository.Record{}
	if err := bindBody(c, &data); err != nil {
		return msg(c, http.StatusBadRequest, "Invalid request body")
	}
	by := "System"
	if who, ok := middleware.IdentityFrom(c); ok && who.Email != "" {
		by = who.Email
	}
	if err := h.Store.Update(c.Request().Context(), h.Table, id, data, by, time.Now().UTC()); err != nil {
		return h.storeError(c, err, "update record failed")
	}
	return msg(c, http.StatusOK, "Updated successfully")
}

func (h *RecordsHandler) Delete(c echo.Context) error {
	id, ok := parseID(c)
	if !ok {
		return msg(c, http.StatusBadRequest, "Invalid id")
	}
	if err := h.Store.Delete(c.Request().Context(), h.Table, id); err != nil {
		return h.storeError(c, err, "delete record failed")
	}
	return msg(c, http.StatusOK, "Deleted successfully")
}
