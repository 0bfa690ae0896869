package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// ws_listen stands in for the mobile host: it connects to /bridge, prints
// every scene event, and can send commands once the scene reports loaded.

// hostEvent is the union of the loaded and action-keyed payloads.
type hostEvent struct {
	Type             string `json:"type"`
	Action           string `json:"action"`
	Message          string `json:"message"`
	BearMode         *int   `json:"bearMode"`
	Vibrate          bool   `json:"vibrate"`
	VibrationPattern []int  `json:"vibrationPattern"`
	Timestamp        int64  `json:"timestamp"`
}

func main() {
	var (
		wsURL    = flag.String("ws", "ws://127.0.0.1:3001/bridge", "bearbridge websocket URL")
		send     = flag.String("send", "", "Comma-separated payloads to send after UNITY_LOADED (e.g. '1,2,RESET')")
		interval = flag.Int("interval", 1000, "Delay between sent payloads in milliseconds")
		wrap     = flag.Bool("wrap", false, "Send payloads as {\"data\": ...} objects instead of bare strings")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	// Mutex to protect concurrent writes to websocket
	var writeMu sync.Mutex

	// The host holds its commands until the scene announces itself.
	loaded := make(chan struct{})
	var loadedOnce sync.Once

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				fmt.Printf("[BINARY] %d bytes\n", len(message))
				continue
			}
			if handleTextMessage(message) {
				loadedOnce.Do(func() { close(loaded) })
			}
		}
	}()

	if *send != "" {
		payloads := strings.Split(*send, ",")
		go func() {
			select {
			case <-loaded:
			case <-done:
				return
			}
			for i, p := range payloads {
				if i > 0 {
					time.Sleep(time.Duration(*interval) * time.Millisecond)
				}
				sendPayload(conn, &writeMu, strings.TrimSpace(p), *wrap)
			}
		}()
	}

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	case <-done:
		log.Printf("connection closed")
	}
}

// handleTextMessage prints one scene event and reports whether it was UNITY_LOADED.
func handleTextMessage(message []byte) bool {
	var ev hostEvent
	if err := json.Unmarshal(message, &ev); err != nil {
		fmt.Printf("[TEXT] %s\n", string(message))
		return false
	}

	at := time.UnixMilli(ev.Timestamp).Format("15:04:05.000")

	switch {
	case ev.Type == "UNITY_LOADED":
		fmt.Printf("[LOADED] %s %s\n", at, ev.Message)
		return true

	case ev.Action != "":
		mode := "-"
		if ev.BearMode != nil {
			mode = fmt.Sprint(*ev.BearMode)
		}
		fmt.Printf("[%s] %s mode=%s %s\n", strings.ToUpper(ev.Action), at, mode, ev.Message)
		if ev.Vibrate {
			fmt.Printf("  [VIBRATE] %v\n", ev.VibrationPattern)
		}

	default:
		prettyJSON, _ := json.MarshalIndent(json.RawMessage(message), "", "  ")
		fmt.Printf("[UNKNOWN]\n%s\n\n", string(prettyJSON))
	}
	return false
}

// sendPayload writes one raw bridge payload (thread-safe).
func sendPayload(conn *websocket.Conn, writeMu *sync.Mutex, payload string, wrap bool) {
	msg := []byte(payload)
	if wrap {
		b, err := json.Marshal(map[string]string{"data": payload})
		if err != nil {
			log.Printf("error marshaling payload: %v", err)
			return
		}
		msg = b
	}

	writeMu.Lock()
	err := conn.WriteMessage(websocket.TextMessage, msg)
	writeMu.Unlock()

	if err != nil {
		log.Printf("error sending payload: %v", err)
		return
	}
	log.Printf("sent %s", string(msg))
}
