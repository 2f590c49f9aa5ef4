package protocol

import (
	"errors"
	"testing"
)

func TestDecodeAuth(t *testing.T) {
	raw := `{"type":"auth","token":"jwt-token-here"}`

	result, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	msg, ok := result.(*AuthMessage)
	if !ok {
		t.Fatalf("Expected *AuthMessage, got %T", result)
	}
	if msg.Token != "jwt-token-here" {
		t.Errorf("Expected token 'jwt-token-here', got '%s'", msg.Token)
	}
}

func TestDecodeResponseWithNullAudio(t *testing.T) {
	raw := `{"type":"response","text":"hello","audio":null}`

	result, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	msg, ok := result.(*ResponseMessage)
	if !ok {
		t.Fatalf("Expected *ResponseMessage, got %T", result)
	}
	if msg.Text != "hello" {
		t.Errorf("Expected text 'hello', got '%s'", msg.Text)
	}
	if msg.Audio != nil {
		t.Error("Expected nil audio for a text-only response")
	}
}

func TestDecodeBuffering(t *testing.T) {
	raw := `{"type":"buffering","buffered_seconds":2.5,"target_seconds":5}`

	result, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	msg, ok := result.(*BufferingMessage)
	if !ok {
		t.Fatalf("Expected *BufferingMessage, got %T", result)
	}
	if msg.BufferedSeconds != 2.5 || msg.TargetSeconds != 5 {
		t.Errorf("Unexpected progress fields: %v / %v", msg.BufferedSeconds, msg.TargetSeconds)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	raw := `{"type":"telemetry","payload":"ignored"}`

	_, err := Decode([]byte(raw))
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("Expected ErrUnknownType, got %v", err)
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	_, err := Decode([]byte(`{not json`))
	if err == nil {
		t.Error("Expected error for malformed JSON")
	}
	if errors.Is(err, ErrUnknownType) {
		t.Error("Malformed JSON must not be reported as an unknown type")
	}
}

func TestEncodeDecodeError(t *testing.T) {
	out, err := Encode(NewError(ErrCodeTranscriptionFailed, "failed to transcribe audio"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	result, err := Decode(out)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	msg, ok := result.(*ErrorMessage)
	if !ok {
		t.Fatalf("Expected *ErrorMessage, got %T", result)
	}
	if msg.Code != ErrCodeTranscriptionFailed {
		t.Errorf("Expected code %s, got %s", ErrCodeTranscriptionFailed, msg.Code)
	}
}

func TestConnectionAckCarriesSessionID(t *testing.T) {
	ack := NewConnectionAck("session-123")
	if ack.Status != "ok" {
		t.Errorf("Expected status 'ok', got '%s'", ack.Status)
	}
	if ack.SessionID != "session-123" {
		t.Errorf("Expected session id 'session-123', got '%s'", ack.SessionID)
	}
	if ack.Timestamp == "" {
		t.Error("Expected timestamp to be stamped")
	}
}
