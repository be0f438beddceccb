package ecengine

import (
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

const (
	asn1SequenceID = 0x30
	asn1IntegerID  = 0x02

	// minSigLen is the length of the smallest DER signature: a sequence
	// of two one-byte integers.
	minSigLen = 8
)

// DecodeSignature parses a DER SEQUENCE of two INTEGERs into a signature
// with big-endian fields of NBytes. It does not range check r and s.
func DecodeSignature(c *Curve, der []byte) (*Signature, error) {
	if c == nil {
		return nil, makeError(ErrInvalidState, "curve not configured")
	}
	if len(der) < minSigLen {
		str := fmt.Sprintf("malformed signature: too short: %d < %d", len(der), minSigLen)
		return nil, makeError(ErrSigTooShort, str)
	}
	if der[0] != asn1SequenceID {
		str := fmt.Sprintf("malformed signature: format has wrong type: %#x", der[0])
		return nil, makeError(ErrSigInvalidSeqID, str)
	}

	input := cryptobyte.String(der)
	var seq cryptobyte.String
	if !input.ReadASN1(&seq, asn1.SEQUENCE) {
		return nil, makeError(ErrSigInvalidDataLen, "malformed signature: bad sequence length")
	}
	if !input.Empty() {
		str := fmt.Sprintf("malformed signature: %d bytes after the sequence", len(input))
		return nil, makeError(ErrSigTrailingData, str)
	}

	r, err := readInteger(c, &seq, "R")
	if err != nil {
		return nil, err
	}
	s, err := readInteger(c, &seq, "S")
	if err != nil {
		return nil, err
	}
	if !seq.Empty() {
		str := fmt.Sprintf("malformed signature: %d bytes after S", len(seq))
		return nil, makeError(ErrSigTrailingData, str)
	}
	return &Signature{R: r, S: s}, nil
}

// readInteger reads one INTEGER and returns it left-padded to NBytes.
func readInteger(c *Curve, seq *cryptobyte.String, field string) ([]byte, error) {
	var v cryptobyte.String
	if !seq.ReadASN1(&v, asn1.INTEGER) {
		str := fmt.Sprintf("malformed signature: %s is not an integer", field)
		return nil, makeError(ErrSigInvalidInteger, str)
	}
	if len(v) == 0 {
		str := fmt.Sprintf("malformed signature: %s is empty", field)
		return nil, makeError(ErrSigInvalidInteger, str)
	}
	if v[0]&0x80 != 0 {
		str := fmt.Sprintf("malformed signature: %s is negative", field)
		return nil, makeError(ErrSigInvalidInteger, str)
	}
	if len(v) > 1 && v[0] == 0x00 && v[1]&0x80 == 0 {
		str := fmt.Sprintf("malformed signature: %s has excess padding", field)
		return nil, makeError(ErrSigInvalidInteger, str)
	}
	if v[0] == 0x00 && len(v) > 1 {
		v = v[1:]
	}
	if len(v) > c.NBytes {
		str := fmt.Sprintf("malformed signature: %s is %d bytes, curve %s allows %d",
			field, len(v), c.Name, c.NBytes)
		return nil, makeError(ErrSigInvalidInteger, str)
	}
	out := make([]byte, c.NBytes)
	copy(out[c.NBytes-len(v):], v)
	return out, nil
}

// EncodeSignature returns the DER encoding of sig. The sequence length
// takes one byte below 128 and two bytes (0x81 form) up to 255.
func EncodeSignature(sig *Signature) ([]byte, error) {
	if sig == nil {
		return nil, makeError(ErrInvalidArgument, "signature is nil")
	}
	r, s := sig.bigEndian()
	defer clearBytes(r)
	defer clearBytes(s)
	rb, sb := canonicalInt(r), canonicalInt(s)
	if len(rb) > 127 || len(sb) > 127 {
		return nil, makeError(ErrInvalidArgument, "signature fields too long to encode")
	}

	contentLen := 2 + len(rb) + 2 + len(sb)
	lenBytes := 1
	if contentLen >= 128 {
		lenBytes = 2
	}
	if contentLen > 255 {
		return nil, makeError(ErrInvalidArgument, "signature too long to encode")
	}
	want := 1 + lenBytes + contentLen

	b := make([]byte, 0, want)
	b = append(b, asn1SequenceID)
	if lenBytes == 2 {
		b = append(b, 0x81)
	}
	b = append(b, byte(contentLen))
	b = append(b, asn1IntegerID, byte(len(rb)))
	b = append(b, rb...)
	b = append(b, asn1IntegerID, byte(len(sb)))
	b = append(b, sb...)

	if len(b) != want {
		str := fmt.Sprintf("encoded signature is %d bytes, predicted %d", len(b), want)
		return nil, makeError(ErrInternal, str)
	}
	return b, nil
}

// canonicalInt strips leading zeros from big-endian v and prepends one
// zero byte when the top bit is set.
func canonicalInt(v []byte) []byte {
	for len(v) > 1 && v[0] == 0 {
		v = v[1:]
	}
	if len(v) == 0 {
		return []byte{0}
	}
	if v[0]&0x80 != 0 {
		return append([]byte{0}, v...)
	}
	return append([]byte(nil), v...)
}
