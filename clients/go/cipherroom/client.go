// Package cipherroom provides a client for the cipherroom chat API.
// The server handles all encryption; this client only ever sees
// plaintext over the authenticated transport.
package cipherroom

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client is a cipherroom API client.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a client for the given server. The token is the JWT
// identifying the caller; mint one with the server's minttoken tool.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Room is a room as returned by the API.
type Room struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	IsPrivate    bool      `json:"is_private"`
	CreatedBy    string    `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	Participants int       `json:"participants"`
	MessageCount int64     `json:"message_count"`
}

// Message is a decrypted message as returned by the API.
type Message struct {
	ID           string `json:"id"`
	RoomID       string `json:"room_id"`
	SenderID     string `json:"sender_id"`
	SenderName   string `json:"sender_name"`
	Content      string `json:"content"`
	Kind         string `json:"kind"`
	ReplyTo      string `json:"reply_to,omitempty"`
	Timestamp    int64  `json:"ts"`
	Edited       bool   `json:"edited,omitempty"`
	EditedAt     int64  `json:"edited_at,omitempty"`
	DecodeFailed bool   `json:"decode_failed,omitempty"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(method, path string, body, into interface{}) error {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if into != nil {
		return json.NewDecoder(resp.Body).Decode(into)
	}
	return nil
}

// CreateRoom creates a room. Private rooms require a passphrase of at
// least 16 characters.
func (c *Client) CreateRoom(name, description string, isPrivate bool, passphrase string) (*Room, error) {
	var room Room
	err := c.do(http.MethodPost, "/rooms", map[string]interface{}{
		"name":        name,
		"description": description,
		"is_private":  isPrivate,
		"passphrase":  passphrase,
	}, &room)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// Rooms lists the rooms the caller participates in, newest first.
func (c *Client) Rooms() ([]Room, error) {
	var rooms []Room
	if err := c.do(http.MethodGet, "/rooms", nil, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// Join adds the caller to a room. The passphrase is required for
// private rooms and ignored for public ones.
func (c *Client) Join(roomID, passphrase string) error {
	body := map[string]interface{}{}
	if passphrase != "" {
		body["passphrase"] = passphrase
	}
	return c.do(http.MethodPost, "/rooms/"+roomID+"/join", body, nil)
}

// Send posts a message to a room.
func (c *Client) Send(roomID, content string) (*Message, error) {
	var msg Message
	err := c.do(http.MethodPost, "/rooms/"+roomID+"/messages", map[string]interface{}{
		"content": content,
	}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Reply posts a message referencing an earlier one in the same room.
func (c *Client) Reply(roomID, replyTo, content string) (*Message, error) {
	var msg Message
	err := c.do(http.MethodPost, "/rooms/"+roomID+"/messages", map[string]interface{}{
		"content":  content,
		"reply_to": replyTo,
	}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Messages fetches a page of room history, oldest first. limit and
// offset of 0 use the server defaults.
func (c *Client) Messages(roomID string, limit, offset int) ([]Message, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/rooms/" + roomID + "/messages"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var page struct {
		Messages []Message `json:"messages"`
	}
	if err := c.do(http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return page.Messages, nil
}

// Edit replaces the body of a message the caller sent.
func (c *Client) Edit(messageID, content string) (*Message, error) {
	var msg Message
	err := c.do(http.MethodPatch, "/messages/"+messageID, map[string]interface{}{
		"content": content,
	}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Delete permanently removes a message the caller sent.
func (c *Client) Delete(messageID string) error {
	return c.do(http.MethodDelete, "/messages/"+messageID, nil, nil)
}
