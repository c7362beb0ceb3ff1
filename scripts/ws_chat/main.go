package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/pairchat-server/internal/core"
	"github.com/vovakirdan/pairchat-server/internal/proto"
)

type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "cli-user", "your user id")
	peer := flag.String("peer", "", "user id to chat with")
	token := flag.String("token", "", "JWT for servers that require one")
	flag.Parse()
	if *peer == "" {
		return errors.New("-peer is required")
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	room := core.RoomKey(*user, *peer)
	if err := send(ctx, conn, proto.InboundTypeUserOnline, proto.UserOnlineData{UserID: *user, Token: *token, Protocol: proto.ProtocolVersion}); err != nil {
		return err
	}
	if err := send(ctx, conn, proto.InboundTypeJoinRoom, proto.RoomData{RoomKey: room}); err != nil {
		return err
	}

	fmt.Printf("Connected to %s as %s, chatting with %s in %s\n", *addr, *user, *peer, room)
	fmt.Println("Type messages and press Enter to send. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn, *user)
	}()

	writeLoop(ctx, conn, room, *user)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn, self string) {
	for {
		var out frame
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		if out.Error != nil {
			fmt.Printf("! %s: %s\n", out.Error.Code, out.Error.Msg)
			continue
		}

		switch out.Event {
		case proto.EventReceiveMessage:
			var msg proto.MessagePayload
			if err := json.Unmarshal(out.Data, &msg); err != nil {
				log.Printf("unmarshal message: %v", err)
				continue
			}
			name := msg.Sender.Username
			if name == "" {
				name = msg.SenderID
			}
			fmt.Printf("[%s] %s: %s\n", msg.Timestamp, name, msg.Content)
		case proto.EventUserStatus:
			var st proto.UserStatusData
			if err := json.Unmarshal(out.Data, &st); err != nil || st.UserID == self {
				continue
			}
			state := "offline"
			if st.IsOnline {
				state = "online"
			}
			fmt.Printf("* %s is %s\n", st.UserID, state)
		case proto.EventUserTyping:
			var ty proto.TypingData
			if err := json.Unmarshal(out.Data, &ty); err == nil {
				fmt.Printf("* %s is typing...\n", ty.UserID)
			}
		case proto.EventMessageFailed:
			fmt.Printf("! not delivered: %s\n", out.Data)
		case proto.EventJoinedRoom, proto.EventUserStopTyping:
		default:
			fmt.Printf("event=%s data=%s\n", out.Event, out.Data)
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, room, self string) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if err := send(ctx, conn, proto.InboundTypeSendMessage, proto.SendMessageData{RoomKey: room, SenderID: self, Content: text}); err != nil {
				log.Printf("%v", err)
				return
			}
		}
	}
}
