package polarwebhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/scribeflow/scribeflow-backend/pkg/errors"
)

const (
	// SignatureTolerance bounds how stale a delivery timestamp may be.
	SignatureTolerance = 5 * time.Minute

	secretPrefix     = "whsec_"
	signatureVersion = "v1"
)

// VerifySignature checks a delivery against the provider's signing secret.
// The signed content is "<id>.<timestamp>.<payload>" and the signature header
// holds space-separated "v1,<base64>" candidates; any matching candidate
// passes.
func VerifySignature(secret, msgID, timestamp, signatureHeader string, payload []byte, now time.Time) error {
	if msgID == "" || timestamp == "" || signatureHeader == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "signature headers missing")
	}

	key, err := decodeSecret(secret)
	if err != nil {
		return err
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid signature timestamp")
	}
	sent := time.Unix(ts, 0)
	if sent.Before(now.Add(-SignatureTolerance)) || sent.After(now.Add(SignatureTolerance)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "signature timestamp out of tolerance")
	}

	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s.%s.", msgID, timestamp)
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, candidate := range strings.Fields(signatureHeader) {
		version, sig, found := strings.Cut(candidate, ",")
		if !found || version != signatureVersion {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "signature mismatch")
}

// Sign produces the "v1,<base64>" signature for a delivery. Used by local
// tooling and tests to construct verifiable payloads.
func Sign(secret, msgID, timestamp string, payload []byte) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	fmt.Fprintf(mac, "%s.%s.", msgID, timestamp)
	mac.Write(payload)
	return signatureVersion + "," + base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

func decodeSecret(secret string) ([]byte, error) {
	if secret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "signing secret not configured")
	}
	encoded := strings.TrimPrefix(secret, secretPrefix)
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "signing secret malformed")
	}
	return key, nil
}
