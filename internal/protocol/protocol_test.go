package protocol

import (
	"encoding/json"
	"testing"
)

func TestEncodeWithSequence(t *testing.T) {
	data, err := Encode(TypeScoreUpdated, json.RawMessage(`{"score":14}`), 7)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != TypeScoreUpdated {
		t.Errorf("Type = %q, want %q", env.Type, TypeScoreUpdated)
	}
	if env.Sequence != 7 {
		t.Errorf("Sequence = %d, want 7", env.Sequence)
	}
}

func TestEncodeOmitsZeroSequence(t *testing.T) {
	data, err := Encode(TypeMatchCompleted, map[string]string{"winner": "alice"}, 0)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, present := raw["sequence"]; present {
		t.Error("sequence field present on unbatched delivery, want omitted")
	}
}

func TestEncodeNilData(t *testing.T) {
	data, err := Encode(TypePong, nil, 0)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, present := raw["data"]; present {
		t.Error("data field present, want omitted")
	}
}

func TestEncodeError(t *testing.T) {
	data, err := EncodeError(CodeInvalidSchema, "message requires a type field")
	if err != nil {
		t.Fatalf("EncodeError failed: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != TypeError {
		t.Errorf("Type = %q, want %q", env.Type, TypeError)
	}

	var ed ErrorData
	if err := json.Unmarshal(env.Data, &ed); err != nil {
		t.Fatalf("unmarshal error data: %v", err)
	}
	if ed.Code != CodeInvalidSchema {
		t.Errorf("Code = %q, want %q", ed.Code, CodeInvalidSchema)
	}
}
