package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/sumire/timeledger/internal/domain"
	"github.com/sumire/timeledger/internal/invoice"
	"github.com/sumire/timeledger/internal/service"
)

// UserMessage is the dispatch request: an operation tag and its
// payload. Data stays raw until the operation decides its shape.
type UserMessage struct {
	What string          `json:"what"`
	Data json.RawMessage `json:"data"`
}

// DispatchHandler serves the {what,data} message endpoints.
type DispatchHandler struct {
	projects *service.ProjectService
	ledger   *service.LedgerService
	renderer *invoice.Renderer
}

// NewDispatchHandler creates a new DispatchHandler.
func NewDispatchHandler(projects *service.ProjectService, ledger *service.LedgerService, renderer *invoice.Renderer) *DispatchHandler {
	return &DispatchHandler{projects: projects, ledger: ledger, renderer: renderer}
}

// User handles POST /api/user: the authenticated dispatch. Business
// failures come back as the server error envelope with HTTP 200; role
// denials come back as the operation's denied envelope.
func (h *DispatchHandler) User(c echo.Context) error {
	user, ok := GetUser(c)
	if !ok {
		return domain.ErrUnauthorized
	}

	var msg UserMessage
	if err := c.Bind(&msg); err != nil {
		return ReplyError(c, "malformed json data")
	}

	ctx := c.Request().Context()

	switch msg.What {
	case "GetProjectList":
		projects, err := h.projects.ProjectList(ctx, user.ID)
		if err != nil {
			return h.fail(c, msg.What, err)
		}
		return Reply(c, "projectlist", projects)

	case "SaveProjectEdit":
		var spe domain.SaveProjectEdit
		if err := json.Unmarshal(msg.Data, &spe); err != nil {
			return ReplyError(c, "malformed json data")
		}
		saved, err := h.projects.SaveProjectEdit(ctx, user.ID, spe)
		if err != nil {
			if errors.Is(err, domain.ErrForbidden) {
				return Reply(c, "saveprojectedit_denied", nil)
			}
			return h.fail(c, msg.What, err)
		}
		return Reply(c, "savedprojectedit", saved)

	case "GetProjectEdit":
		var pid int64
		if err := json.Unmarshal(msg.Data, &pid); err != nil {
			return ReplyError(c, "malformed json data")
		}
		edit, err := h.projects.ReadProjectEdit(ctx, user.ID, pid)
		if err != nil {
			if errors.Is(err, domain.ErrForbidden) {
				return Reply(c, "projectedit_denied", nil)
			}
			return h.fail(c, msg.What, err)
		}
		return Reply(c, "projectedit", edit)

	case "GetProjectTime":
		var pid int64
		if err := json.Unmarshal(msg.Data, &pid); err != nil {
			return ReplyError(c, "malformed json data")
		}
		pt, err := h.ledger.ReadProjectTime(ctx, user.ID, pid)
		if err != nil {
			if errors.Is(err, domain.ErrForbidden) {
				return Reply(c, "projecttime_denied", nil)
			}
			return h.fail(c, msg.What, err)
		}
		return Reply(c, "projecttime", pt)

	case "SaveProjectTime":
		var spt domain.SaveProjectTime
		if err := json.Unmarshal(msg.Data, &spt); err != nil {
			return ReplyError(c, "malformed json data")
		}
		pt, err := h.ledger.SaveProjectTime(ctx, user.ID, spt)
		if err != nil {
			if errors.Is(err, domain.ErrForbidden) {
				return Reply(c, "projecttime_denied", nil)
			}
			return h.fail(c, msg.What, err)
		}
		return Reply(c, "projecttime", pt)

	case "GetUserTime":
		entries, err := h.ledger.UserTime(ctx, user.ID)
		if err != nil {
			return h.fail(c, msg.What, err)
		}
		return Reply(c, "usertime", entries)

	case "GetAllMembers":
		members, err := h.projects.AllMembers(ctx)
		if err != nil {
			return h.fail(c, msg.What, err)
		}
		return Reply(c, "allmembers", members)

	case "SaveProjectInvoice":
		var spi domain.SaveProjectInvoice
		if err := json.Unmarshal(msg.Data, &spi); err != nil {
			return ReplyError(c, "malformed json data")
		}
		if err := h.projects.SaveProjectInvoice(ctx, user.ID, spi); err != nil {
			if errors.Is(err, domain.ErrForbidden) {
				return Reply(c, "saveprojectinvoice_denied", nil)
			}
			return h.fail(c, msg.What, err)
		}
		return Reply(c, "savedprojectinvoice", spi)

	case "PrintInvoice":
		var pi invoice.PrintInvoice
		if err := json.Unmarshal(msg.Data, &pi); err != nil {
			return ReplyError(c, "malformed json data")
		}
		pdf, err := h.renderer.Render(ctx, pi)
		if err != nil {
			return h.fail(c, msg.What, err)
		}
		return c.File(pdf)

	default:
		return ReplyError(c, fmt.Sprintf("invalid 'what' code:'%s'", msg.What))
	}
}

// Public handles POST /api/public: the unauthenticated dispatch. Only
// public project snapshots are reachable here.
func (h *DispatchHandler) Public(c echo.Context) error {
	var msg UserMessage
	if err := c.Bind(&msg); err != nil {
		return ReplyError(c, "malformed json data")
	}

	switch msg.What {
	case "GetProjectTime":
		var pid int64
		if err := json.Unmarshal(msg.Data, &pid); err != nil {
			return ReplyError(c, "malformed json data")
		}
		pt, err := h.ledger.ReadPublicProjectTime(c.Request().Context(), pid)
		if err != nil {
			if errors.Is(err, domain.ErrForbidden) {
				return Reply(c, "projecttime_denied", nil)
			}
			return h.fail(c, msg.What, err)
		}
		return Reply(c, "projecttime", pt)

	default:
		return ReplyError(c, fmt.Sprintf("invalid 'what' code:'%s'", msg.What))
	}
}

func (h *DispatchHandler) fail(c echo.Context, what string, err error) error {
	slog.Error("dispatch failed", "what", what, "error", err)
	return ReplyError(c, err.Error())
}
