package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/koinonia/pkg/llm"
	"github.com/papercomputeco/koinonia/pkg/storage"
)

// errorHandler renders unhandled fiber errors with the API's JSON error shape.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}

	return c.Status(code).JSON(llm.ErrorResponse{Error: err.Error()})
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

func (s *Server) handleListConversations(c *fiber.Ctx) error {
	convs, err := s.driver.ListConversations(c.Context(), c.Params("user"))
	if err != nil {
		return s.storageError(c, "failed to list conversations", err)
	}

	return c.JSON(convs)
}

func (s *Server) handleCreateConversation(c *fiber.Ctx) error {
	var req llm.CreateConversationRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
		}
	}

	id, err := s.driver.CreateConversation(c.Context(), c.Params("user"), req.Title)
	if err != nil {
		return s.storageError(c, "failed to create conversation", err)
	}

	return c.Status(fiber.StatusCreated).JSON(llm.CreateConversationResponse{ID: id})
}

func (s *Server) handleGetConversation(c *fiber.Ctx) error {
	conv, err := s.driver.GetConversation(c.Context(), c.Params("id"))
	if err != nil {
		return s.storageError(c, "failed to get conversation", err)
	}

	return c.JSON(conv)
}

func (s *Server) handleRenameConversation(c *fiber.Ctx) error {
	var req llm.RenameConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	if err := s.driver.RenameConversation(c.Context(), c.Params("id"), req.Title); err != nil {
		return s.storageError(c, "failed to rename conversation", err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleDeleteConversation(c *fiber.Ctx) error {
	if err := s.driver.DeleteConversation(c.Context(), c.Params("id")); err != nil {
		return s.storageError(c, "failed to delete conversation", err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleListMessages(c *fiber.Ctx) error {
	msgs, err := s.driver.ListMessages(c.Context(), c.Params("id"))
	if err != nil {
		return s.storageError(c, "failed to list messages", err)
	}

	return c.JSON(msgs)
}

func (s *Server) handleAppendMessage(c *fiber.Ctx) error {
	var req llm.AppendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	if err := s.driver.AppendMessage(c.Context(), c.Params("id"), req.Role, req.Content); err != nil {
		return s.storageError(c, "failed to append message", err)
	}

	return c.SendStatus(fiber.StatusCreated)
}

// storageError maps driver errors to status codes: NotFoundError to 404,
// invalid input to 400, anything else to 500.
func (s *Server) storageError(c *fiber.Ctx, msg string, err error) error {
	switch {
	case storage.IsNotFound(err):
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: err.Error()})

	case errors.Is(err, storage.ErrInvalidMessage):
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: err.Error()})

	default:
		s.logger.Error(msg,
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: msg})
	}
}
