package http

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/vovakirdan/pairchat-server/internal/core"
	"github.com/vovakirdan/pairchat-server/internal/proto"
)

func TestInboundToCommand(t *testing.T) {
	identify := func(d proto.UserOnlineData) (string, *proto.Error) { return d.UserID, nil }

	tests := []struct {
		name string
		in   proto.Inbound
		want core.Command
		code string
	}{
		{
			name: "user online",
			in:   proto.Inbound{Type: proto.InboundTypeUserOnline, Data: json.RawMessage(`{"userId":"u1"}`)},
			want: core.Command{Kind: core.CommandIdentify, UserID: "u1"},
		},
		{
			name: "leave room",
			in:   proto.Inbound{Type: proto.InboundTypeLeaveRoom, Data: json.RawMessage(`{"roomKey":"u1_u2"}`)},
			want: core.Command{Kind: core.CommandLeaveRoom, Room: "u1_u2"},
		},
		{
			name: "send message ignores client timestamp",
			in:   proto.Inbound{Type: proto.InboundTypeSendMessage, Data: json.RawMessage(`{"roomKey":"u1_u2","senderId":"u1","content":"hi","timestamp":"1999-01-01T00:00:00Z"}`)},
			want: core.Command{Kind: core.CommandSendMessage, Room: "u1_u2", UserID: "u1", Content: "hi"},
		},
		{
			name: "stop typing",
			in:   proto.Inbound{Type: proto.InboundTypeStopTyping, Data: json.RawMessage(`{"roomKey":"u1_u2","userId":"spoofed","username":"Ann"}`)},
			want: core.Command{Kind: core.CommandStopTyping, Room: "u1_u2", Username: "Ann"},
		},
		{
			name: "wrong payload shape",
			in:   proto.Inbound{Type: proto.InboundTypeJoinRoom, Data: json.RawMessage(`["u1_u2"]`)},
			code: core.ErrCodeInvalidMessage,
		},
		{
			name: "unknown type",
			in:   proto.Inbound{Type: "dance"},
			code: core.ErrCodeInvalidMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, protoErr := inboundToCommand(tt.in, identify)
			if tt.code != "" {
				if protoErr == nil || protoErr.Code != tt.code {
					t.Fatalf("expected error %s, got %+v", tt.code, protoErr)
				}
				return
			}
			if protoErr != nil {
				t.Fatalf("unexpected error: %+v", protoErr)
			}
			if *cmd != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, *cmd)
			}
		})
	}
}

func TestOutboundFromEvent(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 6, time.UTC)

	out := outboundFromEvent(&core.Event{
		Kind: core.EventMessageDelivered,
		Room: "a_b",
		Message: &core.Message{
			ID: 7, Room: "a_b", SenderID: "a", SenderUsername: "ann", Content: "yo", CreatedAt: at,
		},
	})
	msg, ok := out.Data.(proto.MessagePayload)
	if out.Event != proto.EventReceiveMessage || !ok {
		t.Fatalf("unexpected outbound: %+v", out)
	}
	if msg.Timestamp != "2025-01-02T03:04:05.000000006Z" || msg.Sender.Username != "ann" {
		t.Fatalf("unexpected payload: %+v", msg)
	}

	out = outboundFromEvent(&core.Event{
		Kind:   core.EventMessageFailed,
		Room:   "a_b",
		Failed: &core.FailedMessage{Room: "a_b", Content: "yo", Code: core.ErrCodePersistFailed},
	})
	if failed, ok := out.Data.(proto.MessageFailedData); !ok || out.Event != proto.EventMessageFailed || failed.Code != core.ErrCodePersistFailed {
		t.Fatalf("unexpected nack: %+v", out)
	}

	out = outboundFromEvent(&core.Event{Kind: core.EventError})
	if out.Type != proto.OutboundTypeError || out.Error == nil || out.Error.Code != "unknown" {
		t.Fatalf("unexpected error outbound: %+v", out)
	}
}
