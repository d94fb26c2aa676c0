package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/alan/citascrit-cli/internal/errors"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"version":   s.svc.Version,
		"timestamp": time.Now().Unix(),
		"metrics":   s.metrics.Snapshot(),
	})
}

func (s *Server) handleAgenda(c *fiber.Ctx) error {
	entries, err := s.svc.List(c.UserContext(), c.QueryBool("all", false))
	if err != nil {
		return err
	}
	return c.JSON(newEntryResponses(entries))
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	st, err := s.svc.Status(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(newStatusResponse(st))
}

func (s *Server) handleAlarms(c *fiber.Ctx) error {
	log, err := s.svc.AlarmLog(c.UserContext())
	if err != nil {
		return err
	}
	resp := AlarmsResponse{Log: log}
	if resp.Log == nil {
		resp.Log = []string{}
	}
	if s.pending != nil {
		resp.Pending = s.pending.Pending()
	}
	return c.JSON(resp)
}

func (s *Server) handleCancel(c *fiber.Ctx) error {
	number, err := c.ParamsInt("number")
	if err != nil || number < 1 {
		return apperrors.New(apperrors.ErrBadRequest.Code, "invalid appointment number")
	}

	a, err := s.svc.CancelAppointment(c.UserContext(), number-1)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"cita": a})
}

func (s *Server) handleClearAlarmLog(c *fiber.Ctx) error {
	if err := s.svc.ClearAlarmLog(c.UserContext()); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// errorHandler maps application errors to HTTP statuses.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(ErrorResponse{Error: fe.Message})
	}

	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrAppointmentNotFound), errors.Is(err, apperrors.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, apperrors.ErrBadRequest):
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(ErrorResponse{Error: err.Error(), Code: apperrors.GetCode(err)})
}
