package handler

import (
	"net/http"
	"strconv"

	"github.com/friendsforever/server-go/internal/service"
)

type PaginationParams struct {
	Limit  int
	Offset int
}

func ParsePagination(r *http.Request) PaginationParams {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	if limit <= 0 {
		limit = service.DefaultMessageLimit
	}
	if limit > service.MaxMessagePageLimit {
		limit = service.MaxMessagePageLimit
	}
	if offset < 0 {
		offset = 0
	}

	return PaginationParams{
		Limit:  limit,
		Offset: offset,
	}
}
