package http

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const signatureLabel = "sig1"

// Signer produces HTTP message signatures (ed25519) identifying this client to Open Payments
// authorization and resource servers.
type Signer struct {
	keyID string
	key   ed25519.PrivateKey
	now   func() time.Time
}

// NewSigner creates a Signer for the given key id and private key.
func NewSigner(keyID string, key ed25519.PrivateKey) *Signer {
	return &Signer{keyID: keyID, key: key, now: time.Now}
}

// ParsePrivateKey accepts a PKCS#8 PEM block, a base64-encoded PEM block, or a base64-encoded
// 32-byte ed25519 seed.
func ParsePrivateKey(encoded string) (ed25519.PrivateKey, error) {
	raw := []byte(strings.TrimSpace(encoded))
	if !bytes.HasPrefix(raw, []byte("-----BEGIN")) {
		decoded, err := base64.StdEncoding.DecodeString(string(raw))
		if err != nil {
			return nil, fmt.Errorf("private key is neither PEM nor base64: %w", err)
		}
		if len(decoded) == ed25519.SeedSize {
			return ed25519.NewKeyFromSeed(decoded), nil
		}
		raw = decoded
	}

	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("failed to decode private key PEM block")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PKCS#8 private key: %w", err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is %T, expected ed25519", parsed)
	}
	return key, nil
}

// Sign adds Content-Digest (when there is a body), Signature-Input and Signature headers to req.
func (s *Signer) Sign(req *http.Request) error {
	components := []string{"@method", "@target-uri"}

	if req.Header.Get("Authorization") != "" {
		components = append(components, "authorization")
	}

	if req.Body != nil && req.Body != http.NoBody {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return fmt.Errorf("failed to read request body for signing: %w", err)
		}
		_ = req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.ContentLength = int64(len(body))

		digest := sha512.Sum512(body)
		req.Header.Set("Content-Digest", "sha-512=:"+base64.StdEncoding.EncodeToString(digest[:])+":")
		req.Header.Set("Content-Length", strconv.Itoa(len(body)))
		components = append(components, "content-digest", "content-length", "content-type")
	}

	quoted := make([]string, len(components))
	for i, c := range components {
		quoted[i] = strconv.Quote(c)
	}
	params := fmt.Sprintf("(%s);keyid=%s;created=%d",
		strings.Join(quoted, " "), strconv.Quote(s.keyID), s.now().Unix())

	base := signatureBase(req, components, params)
	sig := ed25519.Sign(s.key, []byte(base))

	req.Header.Set("Signature-Input", signatureLabel+"="+params)
	req.Header.Set("Signature", signatureLabel+"=:"+base64.StdEncoding.EncodeToString(sig)+":")
	return nil
}

func signatureBase(req *http.Request, components []string, params string) string {
	var b strings.Builder
	for _, c := range components {
		b.WriteString(strconv.Quote(c))
		b.WriteString(": ")
		switch c {
		case "@method":
			b.WriteString(req.Method)
		case "@target-uri":
			b.WriteString(req.URL.String())
		default:
			b.WriteString(req.Header.Get(c))
		}
		b.WriteString("\n")
	}
	b.WriteString(`"@signature-params": `)
	b.WriteString(params)
	return b.String()
}

// SigningMiddleware signs every outgoing request with s.
func SigningMiddleware(s *Signer) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
			signed := req.Clone(req.Context())
			if err := s.Sign(signed); err != nil {
				return nil, err
			}
			return next.RoundTrip(signed)
		})
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
