package livekit

import (
	"fmt"

	"github.com/livekit/protocol/auth"

	"github.com/ayush-jadaun/livekitagent/internal/config"
)

// TokenIssuer mints signed room-join tokens for the media server.
type TokenIssuer struct {
	cfg config.LiveKitConfig
}

func NewTokenIssuer(cfg config.LiveKitConfig) *TokenIssuer {
	return &TokenIssuer{cfg: cfg}
}

// Mint returns a join token granting access to the given room, creating
// it if it does not exist yet.
func (t *TokenIssuer) Mint(identity string, name string, room string) (string, error) {
	grant := &auth.VideoGrant{
		RoomJoin:   true,
		Room:       room,
		RoomCreate: true,
	}

	at := auth.NewAccessToken(t.cfg.APIKey, t.cfg.APISecret).
		SetIdentity(identity).
		SetName(name).
		AddGrant(grant).
		SetValidFor(t.cfg.TokenTTL)

	token, err := at.ToJWT()
	if err != nil {
		return "", fmt.Errorf("mint livekit token: %w", err)
	}
	return token, nil
}

// URL returns the media server websocket endpoint clients should dial.
func (t *TokenIssuer) URL() string {
	return t.cfg.URL
}
