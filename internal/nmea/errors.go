package nmea

import "fmt"

// ChecksumError reports a sentence whose declared checksum does not
// match the XOR of its payload bytes.
type ChecksumError struct {
	Declared byte
	Computed byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("nmea: checksum mismatch: sentence declares %02X, computed %02X", e.Declared, e.Computed)
}

// MalformedError reports a line that does not have the shape of an NMEA
// sentence, or a sentence whose fields cannot carry the meaning its type
// requires.
type MalformedError struct {
	Type   string // sentence type when known, empty otherwise
	Reason string
}

func (e *MalformedError) Error() string {
	if e.Type == "" {
		return "nmea: malformed sentence: " + e.Reason
	}
	return fmt.Sprintf("nmea: malformed %s sentence: %s", e.Type, e.Reason)
}

// UnknownSentenceError reports a well-formed sentence whose type has no
// registered handler.
type UnknownSentenceError struct {
	Type string
}

func (e *UnknownSentenceError) Error() string {
	return fmt.Sprintf("nmea: no handler for sentence type %q", e.Type)
}

// UnknownMeasurementError reports a transducer group whose measurement
// and unit combination is not in the dispatch table.
type UnknownMeasurementError struct {
	Measurement string
	Units       string
}

func (e *UnknownMeasurementError) Error() string {
	return fmt.Sprintf("nmea: no route for transducer measurement %q with units %q", e.Measurement, e.Units)
}
