package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Connect to the chat room",
		Long: `Connect to the chat room over WebSocket and stream events.

Lines typed on stdin are sent as chat messages. Slash commands the
server understands (/roll, /leaderboard, /clear, /kick) pass through
unchanged. Two commands are handled locally:

  /auth <pin>           attempt admin elevation
  /msg <conn-id> <text> send a private message

Press Ctrl+C to disconnect.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Token == "" {
				return fmt.Errorf("not logged in; run 'readingroom account login' first")
			}
			return runChat(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output events as JSON lines")

	return cmd
}

// frame mirrors the wire envelope in both directions
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func runChat(jsonOutput bool) error {
	wsURL, err := chatURL(cfg.ServerURL, cfg.Token)
	if err != nil {
		return err
	}

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == 401 {
			return fmt.Errorf("token rejected; log in again")
		}
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if !jsonOutput {
		fmt.Println("Connected. Type to chat, Ctrl+C to leave.")
	}

	done := make(chan struct{})

	// Incoming events to stdout
	go func() {
		defer close(done)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if jsonOutput {
				fmt.Println(string(raw))
				continue
			}
			var f frame
			if err := json.Unmarshal(raw, &f); err != nil {
				continue
			}
			printChatEvent(f)
		}
	}()

	// Stdin lines to the server
	input := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			input <- scanner.Text()
		}
		close(input)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-done:
			return fmt.Errorf("disconnected by server")
		case <-sigCh:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return nil
		case line, ok := <-input:
			if !ok {
				return nil
			}
			if err := sendChatLine(conn, line); err != nil {
				return err
			}
		}
	}
}

// chatURL converts the configured HTTP base URL to the ws endpoint
func chatURL(serverURL, token string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func sendChatLine(conn *websocket.Conn, line string) error {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil
	}

	event := "chat_message"
	var data any = map[string]string{"text": line}

	if pin, ok := strings.CutPrefix(line, "/auth "); ok {
		event = "admin_auth"
		data = map[string]string{"pin": strings.TrimSpace(pin)}
	} else if rest, ok := strings.CutPrefix(line, "/msg "); ok {
		target, text, found := strings.Cut(strings.TrimSpace(rest), " ")
		if !found {
			fmt.Println("usage: /msg <conn-id> <text>")
			return nil
		}
		event = "private_message"
		data = map[string]string{"targetId": target, "text": text}
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return conn.WriteJSON(frame{Event: event, Data: payload})
}

func printChatEvent(f frame) {
	switch f.Event {
	case "chat_message":
		var m struct {
			Username string `json:"username"`
			Text     string `json:"text"`
			IsAdmin  bool   `json:"isAdmin"`
			IsBot    bool   `json:"isBot"`
		}
		if json.Unmarshal(f.Data, &m) != nil {
			return
		}
		tag := ""
		if m.IsAdmin {
			tag = " [admin]"
		}
		if m.IsBot {
			tag = " [bot]"
		}
		fmt.Printf("<%s>%s %s\n", m.Username, tag, m.Text)

	case "system_message", "admin_announcement":
		var m struct {
			Text string `json:"text"`
		}
		if json.Unmarshal(f.Data, &m) != nil {
			return
		}
		fmt.Printf("* %s\n", m.Text)

	case "private_message":
		var m struct {
			SenderName string `json:"senderName"`
			Text       string `json:"text"`
			IsEcho     bool   `json:"isEcho"`
		}
		if json.Unmarshal(f.Data, &m) != nil {
			return
		}
		if m.IsEcho {
			fmt.Printf("[pm sent] %s\n", m.Text)
		} else {
			fmt.Printf("[pm from %s] %s\n", m.SenderName, m.Text)
		}

	case "update_roster":
		var roster []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		}
		if json.Unmarshal(f.Data, &roster) != nil {
			return
		}
		names := make([]string, len(roster))
		for i, r := range roster {
			names[i] = fmt.Sprintf("%s (%s)", r.Username, r.ID)
		}
		fmt.Printf("* online: %s\n", strings.Join(names, ", "))

	case "chat_history":
		var history []struct {
			Username string `json:"username"`
			Text     string `json:"text"`
			Type     string `json:"type"`
		}
		if json.Unmarshal(f.Data, &history) != nil {
			return
		}
		for _, h := range history {
			if h.Type == "chat" {
				fmt.Printf("<%s> %s\n", h.Username, h.Text)
			} else {
				fmt.Printf("* %s\n", h.Text)
			}
		}

	case "admin_auth_success":
		fmt.Println("* admin access granted")
	case "admin_auth_fail":
		fmt.Println("* admin access denied")
	case "kicked_out":
		fmt.Println("* you have been removed from the room")
	case "reputation_update":
		var m struct {
			Username   string `json:"username"`
			Reputation int    `json:"reputation"`
		}
		if json.Unmarshal(f.Data, &m) != nil {
			return
		}
		fmt.Printf("* %s reputation is now %d\n", m.Username, m.Reputation)
	}
}
