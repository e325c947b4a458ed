package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/versehub/internal/database"
	"github.com/npezzotti/versehub/internal/server"
)

const closeWait = time.Second

type Pagination struct {
	Total       int `json:"total"`
	Pages       int `json:"pages"`
	CurrentPage int `json:"currentPage"`
	PerPage     int `json:"perPage"`
}

type NotificationsResponse struct {
	Notifications []database.Notification `json:"notifications"`
	Pagination    Pagination              `json:"pagination"`
}

type SystemNotificationRequest struct {
	Type    database.NotificationType `json:"type"`
	Title   string                    `json:"title"`
	Content string                    `json:"content"`
	Link    *string                   `json:"link,omitempty"`
	UserIds []int                     `json:"userIds,omitempty"`
}

type CreateChatMessageRequest struct {
	Content string `json:"content"`
}

type PresenceResponse struct {
	Users []int `json:"users"`
}

func (s *App) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *App) writeError(w http.ResponseWriter, errResp *ApiError) {
	if errResp.Err != nil {
		s.log.Println(errResp)
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

func pathId(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", r.PathValue("id"))
	}
	return id, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func (s *App) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// serveWs upgrades first so that credential failures can be reported with
// a policy violation close frame.
func (s *App) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		s.closeConn(conn, websocket.ClosePolicyViolation, "No authentication token provided")
		return
	}

	userId, err := s.extractUserIdFromToken(token)
	if err != nil {
		s.log.Printf("ws handshake: %v", err)
		s.closeConn(conn, websocket.ClosePolicyViolation, "Authentication failed")
		return
	}

	account, err := s.db.GetAccountById(r.Context(), userId)
	if err != nil {
		s.log.Printf("ws handshake: get account %d: %v", userId, err)
		if errors.Is(err, database.ErrNotFound) {
			s.closeConn(conn, websocket.ClosePolicyViolation, "Authentication failed")
		} else {
			s.closeConn(conn, websocket.CloseInternalServerErr, "internal server error")
		}
		return
	}

	s.cs.ServeClient(server.User{Id: account.Id, Name: account.Name}, conn)
}

func (s *App) closeConn(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWait)); err != nil {
		s.log.Printf("write close: %v", err)
	}
	conn.Close()
}

func (s *App) presence(w http.ResponseWriter, _ *http.Request) {
	s.writeJson(w, http.StatusOK, PresenceResponse{Users: s.cs.Registry().OnlineUsers()})
}

func (s *App) listNotifications(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	page, err := queryInt(r, "page")
	if err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}
	page, limit = database.PageBounds(page, limit)

	notifications, total, err := s.db.ListNotifications(r.Context(), userId, page, limit)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, NotificationsResponse{
		Notifications: notifications,
		Pagination: Pagination{
			Total:       total,
			Pages:       (total + limit - 1) / limit,
			CurrentPage: page,
			PerPage:     limit,
		},
	})
}

func (s *App) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	id, err := pathId(r)
	if err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	n, err := s.db.MarkNotificationRead(r.Context(), id, userId)
	if err != nil {
		s.writeError(w, repositoryError(err))
		return
	}

	s.writeJson(w, http.StatusOK, n)
}

func (s *App) markAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	updated, err := s.db.MarkAllNotificationsRead(r.Context(), userId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, map[string]int64{"updated": updated})
}

func (s *App) getPreferences(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	prefs, err := s.db.GetNotificationPreferences(r.Context(), userId)
	if err != nil {
		s.writeError(w, repositoryError(err))
		return
	}

	s.writeJson(w, http.StatusOK, prefs)
}

func (s *App) updatePreferences(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	var params database.UpdatePreferencesParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	prefs, err := s.db.UpdateNotificationPreferences(r.Context(), userId, params)
	if err != nil {
		s.writeError(w, repositoryError(err))
		return
	}

	s.writeJson(w, http.StatusOK, prefs)
}

func (s *App) sendSystemNotification(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	if !slices.Contains(s.adminIds, userId) {
		s.writeError(w, NewForbiddenError())
		return
	}

	var req SystemNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		s.writeError(w, NewBadRequestError())
		return
	}
	if req.Type == "" {
		req.Type = database.NotificationSystem
	}

	sent, err := s.cs.Dispatcher().DispatchSystem(r.Context(), server.SystemNotificationParams{
		Kind:    req.Type,
		Title:   req.Title,
		Content: req.Content,
		Link:    req.Link,
		UserIds: req.UserIds,
	})
	if err != nil {
		if errors.Is(err, server.ErrInvalidNotification) {
			s.writeError(w, NewBadRequestError())
			return
		}
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, map[string]int{"sent": len(sent)})
}

func (s *App) followUser(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	targetId, err := pathId(r)
	if err != nil || targetId == userId {
		s.writeError(w, NewBadRequestError())
		return
	}

	if _, err := s.db.GetAccountById(r.Context(), targetId); err != nil {
		s.writeError(w, repositoryError(err))
		return
	}

	follower, err := s.db.GetAccountById(r.Context(), userId)
	if err != nil {
		s.writeError(w, repositoryError(err))
		return
	}

	created, err := s.db.FollowAccount(r.Context(), userId, targetId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	if created {
		link := fmt.Sprintf("/profile/%d", userId)
		_, err := s.cs.Dispatcher().Dispatch(r.Context(), server.NotificationParams{
			Kind:        database.NotificationFollow,
			Content:     fmt.Sprintf("%s started following you", follower.Name),
			RecipientId: targetId,
			SenderId:    &userId,
			Link:        &link,
		})
		if err != nil {
			s.writeError(w, NewInternalServerError(err))
			return
		}
	}

	s.writeJson(w, http.StatusOK, map[string]bool{"following": true, "created": created})
}

func (s *App) likePoem(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	poemId, err := pathId(r)
	if err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	authorId, err := s.db.GetPoemAuthor(r.Context(), poemId)
	if err != nil {
		s.writeError(w, repositoryError(err))
		return
	}

	liked, err := s.db.LikePoem(r.Context(), poemId, userId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	if liked && authorId != userId {
		liker, err := s.db.GetAccountById(r.Context(), userId)
		if err != nil {
			s.writeError(w, repositoryError(err))
			return
		}

		link := fmt.Sprintf("/poems/%d", poemId)
		_, err = s.cs.Dispatcher().Dispatch(r.Context(), server.NotificationParams{
			Kind:        database.NotificationLike,
			Content:     fmt.Sprintf("%s liked your poem", liker.Name),
			RecipientId: authorId,
			SenderId:    &userId,
			PoemId:      &poemId,
			Link:        &link,
		})
		if err != nil {
			s.writeError(w, NewInternalServerError(err))
			return
		}
	}

	s.writeJson(w, http.StatusOK, map[string]bool{"liked": true, "created": liked})
}

// createChatMessage persists first; the live fan-out afterwards is best
// effort and never fails the request.
func (s *App) createChatMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	chatId, err := pathId(r)
	if err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	var req CreateChatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		s.writeError(w, NewBadRequestError())
		return
	}

	member, err := s.db.IsChatParticipant(r.Context(), chatId, userId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}
	if !member {
		s.writeError(w, NewForbiddenError())
		return
	}

	msg, err := s.db.CreateChatMessage(r.Context(), database.ChatMessage{
		ChatId:   chatId,
		SenderId: userId,
		Content:  req.Content,
	})
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, msg)

	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Printf("encode chat message %d: %v", msg.Id, err)
		return
	}

	out := server.NewChatMessage(chatId, userId, msg.Content, payload)
	if _, err := s.cs.Router().Broadcast(r.Context(), chatId, userId, out); err != nil {
		s.log.Printf("broadcast chat message %d: %v", msg.Id, err)
	}
}
