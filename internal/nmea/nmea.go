// Package nmea frames and verifies NMEA 0183 sentences. It knows the
// wire shape only; what a DPT or XDR sentence means is the business of
// the ingest handlers.
package nmea

import (
	"encoding/hex"
	"strings"
)

// MaxLineLen bounds an accepted line. The standard caps sentences at 82
// characters but real multiplexers emit longer XDR chains, so allow
// slack before calling a line garbage.
const MaxLineLen = 1024

// Sentence is one verified sentence. Fields is the comma-split payload
// between the start delimiter and the checksum; Fields[0] is the
// address field, so data fields start at index 1 like the field numbers
// in the 0183 tables.
type Sentence struct {
	Raw    string
	Talker string
	Type   string
	Fields []string
}

// Field returns the data field at index i, trimmed, or "" when the
// sentence is too short.
func (s Sentence) Field(i int) string {
	if i < 0 || i >= len(s.Fields) {
		return ""
	}
	return strings.TrimSpace(s.Fields[i])
}

// Checksum returns the XOR of all payload bytes.
func Checksum(payload string) byte {
	var ck byte
	for i := 0; i < len(payload); i++ {
		ck ^= payload[i]
	}
	return ck
}

// Line builds a complete sentence from a payload, with start delimiter
// and checksum.
func Line(payload string) string {
	const hexDigits = "0123456789ABCDEF"
	ck := Checksum(payload)
	return "$" + payload + "*" + string(hexDigits[ck>>4]) + string(hexDigits[ck&0x0f])
}

// Decode frames one line. It strips surrounding whitespace, verifies the
// start delimiter and checksum, and splits the payload into fields. The
// declared checksum is matched case-insensitively. Decode does not judge
// whether the sentence type is handled.
func Decode(line string) (Sentence, error) {
	raw := strings.TrimSpace(line)
	if raw == "" {
		return Sentence{}, &MalformedError{Reason: "empty line"}
	}
	if len(raw) > MaxLineLen {
		return Sentence{}, &MalformedError{Reason: "line too long"}
	}
	if raw[0] != '$' && raw[0] != '!' {
		return Sentence{}, &MalformedError{Reason: "missing start delimiter"}
	}
	star := strings.LastIndexByte(raw, '*')
	if star == -1 {
		return Sentence{}, &MalformedError{Reason: "missing checksum"}
	}
	payload := raw[1:star]
	ck := strings.TrimSpace(raw[star+1:])
	if len(ck) < 2 {
		return Sentence{}, &MalformedError{Reason: "short checksum"}
	}
	declared, err := hex.DecodeString(ck[:2])
	if err != nil || len(declared) != 1 {
		return Sentence{}, &MalformedError{Reason: "checksum is not hex"}
	}
	computed := Checksum(payload)
	if computed != declared[0] {
		return Sentence{}, &ChecksumError{Declared: declared[0], Computed: computed}
	}

	parts := strings.Split(payload, ",")
	address := parts[0]
	if len(address) < 3 {
		return Sentence{}, &MalformedError{Reason: "short address field"}
	}
	typ := strings.ToUpper(address[len(address)-3:])
	talker := strings.ToUpper(address[:len(address)-3])
	return Sentence{Raw: raw, Talker: talker, Type: typ, Fields: parts}, nil
}
