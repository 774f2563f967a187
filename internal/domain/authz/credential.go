package authz

import (
	"errors"
	"fmt"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const bearerScheme = "bearer"

var errEmptySecret = errors.New("signing secret is empty")

// tokenDecoder verifies a JWT with one secret and maps its claims to a
// credential. Decoders are tried in slice order.
type tokenDecoder struct {
	kind   CredentialKind
	secret []byte
	build  func(claims jwtlib.MapClaims) Credential
}

func (d tokenDecoder) decode(raw string) (Credential, error) {
	if len(d.secret) == 0 {
		return Credential{}, errEmptySecret
	}

	token, err := jwtlib.Parse(raw, func(*jwtlib.Token) (any, error) {
		return d.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return Credential{}, fmt.Errorf("decode %s: %w", d.kind, err)
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok || !token.Valid {
		return Credential{}, fmt.Errorf("decode %s: invalid claims", d.kind)
	}

	return d.build(claims), nil
}

// Classifier turns an Authorization header into exactly one Credential.
type Classifier struct {
	apiKeys  APIKeyValidator
	decoders []tokenDecoder
}

func NewClassifier(apiKeys APIKeyValidator, clientSecret, candidateSecret string) *Classifier {
	return &Classifier{
		apiKeys: apiKeys,
		decoders: []tokenDecoder{
			{kind: CredentialClient, secret: []byte(clientSecret), build: clientCredential},
			{kind: CredentialCandidate, secret: []byte(candidateSecret), build: candidateCredential},
		},
	}
}

// Classify never fails: anything that cannot be verified is CredentialNone.
func (c *Classifier) Classify(authorization string) Credential {
	token, ok := bearerToken(authorization)
	if !ok {
		return Credential{Kind: CredentialNone}
	}

	if c.apiKeys != nil && c.apiKeys.ValidateAPIKey(token) {
		return Credential{
			Kind:   CredentialAPIKey,
			Token:  token,
			UserID: SystemUserID,
			Role:   RoleAdmin,
		}
	}

	for _, d := range c.decoders {
		cred, err := d.decode(token)
		if err == nil {
			return cred
		}
	}

	return Credential{Kind: CredentialNone}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}

	return token, true
}

func clientCredential(claims jwtlib.MapClaims) Credential {
	cred := Credential{
		Kind:     CredentialClient,
		ClientID: claimString(claims, "client_id"),
		UserID:   firstClaim(claims, "user_id", "sub"),
		TenantID: claimString(claims, "tenant_id"),
		Role:     claimString(claims, "role"),
	}
	if cred.TenantID == "" {
		cred.TenantID = cred.ClientID
	}
	if cred.Role == "" {
		cred.Role = RoleClient
	}
	return cred
}

func candidateCredential(claims jwtlib.MapClaims) Credential {
	return Credential{
		Kind:        CredentialCandidate,
		CandidateID: firstClaim(claims, "candidate_id", "sub"),
		UserID:      claimString(claims, "user_id"),
		TenantID:    claimString(claims, "tenant_id"),
		Role:        RoleCandidate,
	}
}

func firstClaim(claims jwtlib.MapClaims, keys ...string) string {
	for _, key := range keys {
		if v := claimString(claims, key); v != "" {
			return v
		}
	}
	return ""
}

// claimString accepts string and numeric claims; ids are often issued as
// integers.
func claimString(claims jwtlib.MapClaims, key string) string {
	switch v := claims[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}
