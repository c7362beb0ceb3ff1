package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/pairchat-server/internal/core"
	"github.com/vovakirdan/pairchat-server/internal/proto"
)

// frame is an outbound envelope with its payload left undecoded.
type frame struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "tester", "user id to go online as")
	peer := flag.String("peer", "echo", "user id of the other participant")
	token := flag.String("token", "", "JWT for servers that require one")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(typ string, data any) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", typ, err)
		}
		return nil
	}

	room := core.RoomKey(*user, *peer)
	steps := []struct {
		typ  string
		data any
	}{
		{proto.InboundTypeUserOnline, proto.UserOnlineData{UserID: *user, Token: *token, Protocol: proto.ProtocolVersion}},
		{proto.InboundTypeJoinRoom, proto.RoomData{RoomKey: room}},
		{proto.InboundTypeSendMessage, proto.SendMessageData{RoomKey: room, SenderID: *user, Content: *text}},
	}
	for _, step := range steps {
		if err := send(step.typ, step.data); err != nil {
			return err
		}
	}

	for {
		var out frame
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		if out.Error != nil {
			return fmt.Errorf("server error %s: %s", out.Error.Code, out.Error.Msg)
		}
		fmt.Printf("received type=%s event=%s data=%s\n", out.Type, out.Event, out.Data)

		switch out.Event {
		case proto.EventReceiveMessage:
			var msg proto.MessagePayload
			if err := json.Unmarshal(out.Data, &msg); err != nil {
				return fmt.Errorf("unmarshal message: %w", err)
			}
			fmt.Printf("message id=%d room=%s sender=%s content=%q at=%s\n", msg.ID, msg.RoomKey, msg.SenderID, msg.Content, msg.Timestamp)
			return nil
		case proto.EventMessageFailed:
			return fmt.Errorf("message was not stored: %s", out.Data)
		}
	}
}
