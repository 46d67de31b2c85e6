// Package reconcile verifies inbound gateway notifications and applies
// at-most-once status transitions to local contribution records. This file
// implements the HMAC signature check that forms the security boundary of
// the webhook endpoint.
package reconcile

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrSignatureInvalid covers every authentication failure on an inbound
// notification: missing headers, a malformed x-signature value, or a digest
// mismatch. Notifications failing this check are rejected outright and
// never touch any contribution; the gateway owns its own retry policy.
var ErrSignatureInvalid = errors.New("webhook signature invalid")

// VerifySignature authenticates a gateway notification.
//
// The x-signature header carries "ts=<unix>,v1=<hex-hmac>". The expected
// digest is HMAC-SHA256 over the canonical manifest
//
//	id:<paymentID>;request-id:<requestID>;ts:<timestamp>;
//
// keyed with the configured webhook secret. Digests are compared in
// constant time. Every failure mode returns an error matching
// ErrSignatureInvalid via errors.Is.
func VerifySignature(signatureHeader, requestID, paymentID, secret string) error {
	if strings.TrimSpace(signatureHeader) == "" {
		return fmt.Errorf("%w: missing x-signature header", ErrSignatureInvalid)
	}
	if strings.TrimSpace(requestID) == "" {
		return fmt.Errorf("%w: missing x-request-id header", ErrSignatureInvalid)
	}
	if strings.TrimSpace(paymentID) == "" {
		return fmt.Errorf("%w: missing payment id", ErrSignatureInvalid)
	}
	if secret == "" {
		return fmt.Errorf("%w: no webhook secret configured", ErrSignatureInvalid)
	}

	ts, v1, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return err
	}

	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", paymentID, requestID, ts)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(v1)
	if err != nil {
		return fmt.Errorf("%w: v1 is not hex", ErrSignatureInvalid)
	}
	if !hmac.Equal(expected, got) {
		return fmt.Errorf("%w: digest mismatch", ErrSignatureInvalid)
	}
	return nil
}

// parseSignatureHeader splits "ts=...,v1=..." into its parts. Order of the
// comma-separated fields is not significant.
func parseSignatureHeader(h string) (ts, v1 string, err error) {
	for _, part := range strings.Split(h, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(k) {
		case "ts":
			ts = strings.TrimSpace(v)
		case "v1":
			v1 = strings.TrimSpace(v)
		}
	}
	if ts == "" || v1 == "" {
		return "", "", fmt.Errorf("%w: malformed x-signature header", ErrSignatureInvalid)
	}
	return ts, v1, nil
}
