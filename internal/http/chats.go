package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (s *Server) createChat(c echo.Context) error {
	var req struct {
		Title string `json:"title"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	chat, err := s.chats.Create(userID(c), req.Title)
	if err != nil {
		return badRequest("%v", err)
	}
	return c.JSON(http.StatusCreated, chat)
}

func (s *Server) listChats(c echo.Context) error {
	chats, err := s.chats.List(userID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, chats)
}

func (s *Server) getChat(c echo.Context) error {
	chat, err := s.chats.Get(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, chat)
}

func (s *Server) deleteChat(c echo.Context) error {
	if err := s.chats.Delete(c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listChatMessages(c echo.Context) error {
	if _, err := s.chats.Get(c.Param("id")); err != nil {
		return httpError(err)
	}
	messages, err := s.chats.Messages(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, messages)
}

func (s *Server) sendChat(c echo.Context) error {
	var req struct {
		ChatID  string `json:"chat_id"`
		Message string `json:"message"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	if req.Message == "" {
		return badRequest("message required")
	}
	msg, err := s.chats.Send(c.Request().Context(), req.ChatID, userID(c), req.Message)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, msg)
}
