// cipherroom CLI - command line client for a cipherroom server.
package main

import (
	"fmt"
	"os"

	"github.com/cipherroom/cipherroom/clients/go/cipherroom"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("CIPHERROOM_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	token := os.Getenv("CIPHERROOM_TOKEN")
	if token == "" {
		fmt.Fprintln(os.Stderr, "CIPHERROOM_TOKEN is required (mint one with the server's minttoken tool)")
		os.Exit(1)
	}

	c := cipherroom.NewClient(baseURL, token)

	var err error
	switch os.Args[1] {
	case "rooms":
		err = listRooms(c)
	case "create":
		err = createRoom(c, os.Args[2:])
	case "join":
		err = joinRoom(c, os.Args[2:])
	case "send":
		err = sendMessage(c, os.Args[2:])
	case "history":
		err = showHistory(c, os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: cipherroom <command> [args]

Commands:
  rooms                      list your rooms
  create <name> [passphrase] create a room (passphrase makes it private)
  join <room-id> [passphrase]
  send <room-id> <content>
  history <room-id>

Environment:
  CIPHERROOM_URL    server base URL (default http://localhost:8080)
  CIPHERROOM_TOKEN  bearer token`)
}

func listRooms(c *cipherroom.Client) error {
	rooms, err := c.Rooms()
	if err != nil {
		return err
	}
	for _, room := range rooms {
		marker := ""
		if room.IsPrivate {
			marker = " (private)"
		}
		fmt.Printf("%s  %s%s  %d messages\n", room.ID, room.Name, marker, room.MessageCount)
	}
	return nil
}

func createRoom(c *cipherroom.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("create requires a room name")
	}
	passphrase := ""
	if len(args) > 1 {
		passphrase = args[1]
	}
	room, err := c.CreateRoom(args[0], "", passphrase != "", passphrase)
	if err != nil {
		return err
	}
	fmt.Printf("created %s (%s)\n", room.Name, room.ID)
	return nil
}

func joinRoom(c *cipherroom.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("join requires a room ID")
	}
	passphrase := ""
	if len(args) > 1 {
		passphrase = args[1]
	}
	if err := c.Join(args[0], passphrase); err != nil {
		return err
	}
	fmt.Println("joined")
	return nil
}

func sendMessage(c *cipherroom.Client, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("send requires a room ID and content")
	}
	msg, err := c.Send(args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("sent %s\n", msg.ID)
	return nil
}

func showHistory(c *cipherroom.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("history requires a room ID")
	}
	messages, err := c.Messages(args[0], 50, 0)
	if err != nil {
		return err
	}
	for _, msg := range messages {
		body := msg.Content
		if msg.Edited {
			body += " (edited)"
		}
		fmt.Printf("[%s] %s: %s\n", msg.ID, msg.SenderName, body)
	}
	return nil
}
