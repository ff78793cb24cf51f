package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"social-chat/internal/domain"
)

type logger interface {
	Printf(format string, v ...interface{})
}

// Client habla con la API HTTP y el endpoint WebSocket del servidor de chat.
type Client struct {
	baseURL string
	access  string
	client  *http.Client
	dialer  *websocket.Dialer
	logger  logger
}

// New construye un cliente apuntando a baseURL (por ejemplo http://localhost:8080).
func New(baseURL string, log any) *Client {
	l, _ := log.(logger)
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:  l,
	}
}

// APIError es una respuesta >= 400 del servidor.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d %s", e.Status, e.Message)
}

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Login obtiene un par de tokens y guarda el access token para las llamadas siguientes.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var pair tokenPair
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/users/token/", body, &pair); err != nil {
		return err
	}
	if pair.Access == "" {
		return fmt.Errorf("login: empty access token")
	}
	c.access = pair.Access
	return nil
}

func (c *Client) Rooms(ctx context.Context) ([]domain.ChatRoom, error) {
	var rooms []domain.ChatRoom
	err := c.do(ctx, http.MethodGet, "/chat/rooms/", nil, &rooms)
	return rooms, err
}

func (c *Client) CreateRoom(ctx context.Context, name string, isGroup bool, memberIDs []int64) (domain.ChatRoom, error) {
	var room domain.ChatRoom
	body := map[string]any{"name": name, "is_group": isGroup, "member_ids": memberIDs}
	err := c.do(ctx, http.MethodPost, "/chat/rooms/", body, &room)
	return room, err
}

// History devuelve los ultimos limit mensajes de la sala, del mas viejo al mas nuevo.
func (c *Client) History(ctx context.Context, roomID int64, limit int) ([]domain.ChatMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/chat/rooms/" + strconv.FormatInt(roomID, 10) + "/messages/"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var msgs []domain.ChatMessage
	err := c.do(ctx, http.MethodGet, path, nil, &msgs)
	return msgs, err
}

// Event es un frame recibido por WebSocket.
type Event struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	UserID    int64  `json:"user_id"`
	MessageID int64  `json:"message_id"`
	FileURL   string `json:"file_url,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	Username  string `json:"username,omitempty"`
	IsTyping  bool   `json:"is_typing,omitempty"`
}

// Conn es una conexion de chat abierta sobre una sala.
type Conn struct {
	ws *websocket.Conn
}

// Join abre el WebSocket de la sala autenticando con el token en el query string.
func (c *Client) Join(ctx context.Context, roomID int64) (*Conn, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/chat/" + strconv.FormatInt(roomID, 10) + "/"
	u.RawQuery = url.Values{"token": {c.access}}.Encode()

	ws, resp, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, &APIError{Status: resp.StatusCode, Message: "websocket handshake rejected"}
		}
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	return &Conn{ws: ws}, nil
}

func (c *Conn) Send(text string) error {
	return c.ws.WriteJSON(map[string]string{"type": "message", "message": text})
}

// Next bloquea hasta el proximo evento o hasta que la conexion se cierre.
func (c *Conn) Next() (Event, error) {
	var ev Event
	err := c.ws.ReadJSON(&ev)
	return ev, err
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.access != "" {
		req.Header.Set("Authorization", "Bearer "+c.access)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(respBody, &apiErr)
		if c.logger != nil {
			c.logger.Printf("chat api error status %d: %s", resp.StatusCode, string(respBody))
		}
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
