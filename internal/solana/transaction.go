package solana

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// Signer signs serialized transaction message bytes.
type Signer interface {
	Sign(message []byte) []byte
}

// Wire format: shortvec signature count, then count*64 signature bytes, then
// the serialized message. The aggregator returns the transaction unsigned
// with the fee payer's signature slot zeroed.
const signatureLen = 64

var errMalformedTransaction = errors.New("malformed transaction bytes")

// SignTransaction decodes a base64 unsigned transaction, signs its message
// bytes and populates the fee payer signature (index 0). Returns the signed
// transaction re-encoded as base64 for submission.
func SignTransaction(txBase64 string, signer Signer) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(txBase64)
	if err != nil {
		return "", fmt.Errorf("decode transaction: %w", err)
	}

	numSigs, offset, err := decodeShortVecLen(raw)
	if err != nil {
		return "", err
	}
	if numSigs < 1 {
		return "", fmt.Errorf("%w: no signature slots", errMalformedTransaction)
	}

	msgStart := offset + numSigs*signatureLen
	if len(raw) <= msgStart {
		return "", fmt.Errorf("%w: truncated signature section", errMalformedTransaction)
	}

	signature := signer.Sign(raw[msgStart:])
	if len(signature) != signatureLen {
		return "", fmt.Errorf("unexpected signature length %d", len(signature))
	}

	signed := make([]byte, len(raw))
	copy(signed, raw)
	copy(signed[offset:offset+signatureLen], signature)

	return base64.StdEncoding.EncodeToString(signed), nil
}

// decodeShortVecLen decodes a compact-u16 length prefix and returns the value
// and the number of bytes consumed.
func decodeShortVecLen(data []byte) (int, int, error) {
	value := 0
	for i := 0; i < 3; i++ {
		if i >= len(data) {
			return 0, 0, fmt.Errorf("%w: truncated length prefix", errMalformedTransaction)
		}
		b := int(data[i])
		value |= (b & 0x7f) << (7 * i)
		if b&0x80 == 0 {
			return value, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: length prefix too long", errMalformedTransaction)
}
