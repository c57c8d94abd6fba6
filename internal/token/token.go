// Package token implements the gateway's Token Decoder: parsing of the
// compact three-segment JWT format without signature verification. Trust is
// delegated to the upstream issuer and to transport confidentiality — the
// permission service re-validates on every resolve, so the gateway only
// needs to read the claims, not authenticate them.
package token

import (
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/streamspace/authgateway/internal/apperr"
)

// Payload mirrors the claim set the gateway cares about. Immutable once
// parsed.
type Payload struct {
	Issuer    string
	Subject   string
	Audience  []string
	Expiry    int64
	IssuedAt  int64
	NotBefore int64
	ID        string
}

// JWT is a decoded payload plus the original opaque token text, which must
// be retained verbatim for forwarding to the permission service and sidecar.
type JWT struct {
	Payload Payload
	Raw     string
}

// IsExpired reports whether the token's exp claim is before now (seconds
// since epoch).
func (j JWT) IsExpired(now int64) bool {
	return j.Payload.Expiry < now
}

// Parse decodes raw into a JWT without verifying its signature. It fails
// with MalformedToken if raw is not exactly three dot-separated segments,
// and with MalformedPayload if the middle segment is not a JSON object.
func Parse(raw string) (JWT, error) {
	if strings.Count(raw, ".") != 2 {
		return JWT{}, apperr.MalformedToken("expected exactly three dot-separated segments")
	}

	parser := jwt.NewParser()
	if payloadJSON, decErr := parser.DecodeSegment(strings.Split(raw, ".")[1]); decErr == nil {
		var probe map[string]interface{}
		if err := json.Unmarshal(payloadJSON, &probe); err != nil {
			return JWT{}, apperr.MalformedPayload(err)
		}
	}

	parsed, _, err := parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return JWT{}, apperr.MalformedToken(err.Error())
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return JWT{}, apperr.MalformedPayload(nil)
	}

	payload, err := payloadFromClaims(claims)
	if err != nil {
		return JWT{}, apperr.MalformedPayload(err)
	}

	return JWT{Payload: payload, Raw: raw}, nil
}

func payloadFromClaims(claims jwt.MapClaims) (Payload, error) {
	var p Payload

	if v, ok := claims["iss"].(string); ok {
		p.Issuer = v
	}
	if v, ok := claims["sub"].(string); ok {
		p.Subject = v
	}
	if v, ok := claims["jti"].(string); ok {
		p.ID = v
	}
	p.Audience = stringSlice(claims["aud"])

	exp, err := claims.GetExpirationTime()
	if err == nil && exp != nil {
		p.Expiry = exp.Unix()
	}
	iat, err := claims.GetIssuedAt()
	if err == nil && iat != nil {
		p.IssuedAt = iat.Unix()
	}
	nbf, err := claims.GetNotBefore()
	if err == nil && nbf != nil {
		p.NotBefore = nbf.Unix()
	}

	return p, nil
}

// stringSlice normalizes the "aud" claim, which per the JWT spec may be
// either a single string or an array of strings.
func stringSlice(v interface{}) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, e := range val {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
