package security

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// AccessClaims is the shape of the externally issued credential
// (Supabase-style): the subject carries the user id and user_metadata
// carries profile hints captured at signup.
type AccessClaims struct {
	UserMetadata map[string]any `json:"user_metadata"`
	jwt.RegisteredClaims
}

// UserID returns the subject claim.
func (c *AccessClaims) UserID() string {
	return c.Subject
}

// ProfileName returns the display name embedded in user_metadata, if any.
func (c *AccessClaims) ProfileName() string {
	if c.UserMetadata == nil {
		return ""
	}
	if name, ok := c.UserMetadata["name"].(string); ok {
		return name
	}
	if name, ok := c.UserMetadata["full_name"].(string); ok {
		return name
	}
	return ""
}

// ProfileAge returns the age embedded in user_metadata, if any.
func (c *AccessClaims) ProfileAge() *int {
	if c.UserMetadata == nil {
		return nil
	}
	if v, ok := c.UserMetadata["age"].(float64); ok {
		age := int(v)
		return &age
	}
	return nil
}

func ParseAccessToken(tokenStr string, secret string, audience string, issuer string) (*AccessClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	token, err := jwt.ParseWithClaims(tokenStr, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token missing subject")
	}
	return claims, nil
}
