package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"changeTracker/internal/handlers/dto"
	"changeTracker/internal/logger"
	"changeTracker/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuthHandler struct {
	UserService UserService
}

func NewAuthHandler(userService UserService) AuthHandler {
	return AuthHandler{
		UserService: userService,
	}
}

func (s *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	if !checkContentType(r, "application/json") {
		responseWithError(w, http.StatusUnsupportedMediaType, "ожидается Content-Type application/json")
		return
	}

	var req dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("HTTP: Ошибка декодирования тела запроса",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "не удалось разобрать тело запроса: "+err.Error())
		return
	}

	created, err := s.UserService.Register(r.Context(), req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		if handleBusinessError(w, err, "не удалось зарегистрировать пользователя") {
			return
		}
		logger.Error("HTTP: Ошибка Service", err)
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Пользователь зарегистрирован",
		zap.String("user_id", created.ID.String()),
		zap.String("status", string(created.Status)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	responseWithJSON(w, http.StatusCreated, toPayload("user", created))
}

func (s *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("HTTP: Ошибка декодирования тела запроса",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "не удалось разобрать тело запроса: "+err.Error())
		return
	}

	token, logged, err := s.UserService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if handleBusinessError(w, err, "не удалось выполнить вход") {
			return
		}
		logger.Error("HTTP: Ошибка Service", err)
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Вход выполнен",
		zap.String("user_id", logged.ID.String()),
		zap.String("role", string(logged.Role)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK,
		toPayload("token", token),
		toPayload("user", logged))
}

func (s *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP_IN:")

	actor := middleware.GetCurrentUser(r.Context())
	if actor == nil {
		responseWithError(w, http.StatusUnauthorized, "требуется авторизация")
		return
	}

	responseWithJSON(w, http.StatusOK, toPayload("user", actor))
}

func (s *AuthHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	actor := middleware.GetCurrentUser(r.Context())

	users, err := s.UserService.ListUsers(r.Context(), actor)
	if err != nil {
		if handleBusinessError(w, err, "не удалось получить пользователей") {
			return
		}
		logger.Error("HTTP: Ошибка Service", err)
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Пользователи получены",
		zap.Int("count", len(users)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("users", users))
}

func (s *AuthHandler) PostRegistrationDecision(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		logger.Warn("HTTP: Неверный идентификатор пользователя",
			zap.String("id", raw),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "неверный идентификатор пользователя")
		return
	}

	var req dto.UserDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("HTTP: Ошибка декодирования тела запроса",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithError(w, http.StatusBadRequest, "не удалось разобрать тело запроса: "+err.Error())
		return
	}

	actor := middleware.GetCurrentUser(r.Context())

	decided, err := s.UserService.DecideRegistration(r.Context(), actor, id, req.Approve, req.Reason)
	if err != nil {
		if handleBusinessError(w, err, "не удалось вынести решение по регистрации") {
			return
		}
		logger.Error("HTTP: Ошибка Service", err)
		responseWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("HTTP_OUT: Решение по регистрации вынесено",
		zap.String("user_id", id.String()),
		zap.String("status", string(decided.Status)),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	responseWithJSON(w, http.StatusOK, toPayload("user", decided))
}
