package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/DragonOfMath/discord.io/internal/codec"
)

var ErrNoGatewayURL = errors.New("gateway lookup returned no url")

// GatewayResolver looks up the websocket URL before every connect.
type GatewayResolver struct {
	Requester Requester
}

func (r GatewayResolver) GatewayURL(ctx context.Context) (string, error) {
	resp, err := r.Requester.Do(ctx, http.MethodGet, GatewayPath, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get gateway: %w", err)
	}
	var body struct {
		URL string `json:"url"`
	}
	if err := resp.Decode(&body); err != nil {
		return "", err
	}
	if body.URL == "" {
		return "", ErrNoGatewayURL
	}
	return body.URL + codec.GatewayQuery, nil
}
