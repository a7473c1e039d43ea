package twitch

import (
	"context"
	"fmt"
	"sync"

	"github.com/nicklaw5/helix/v2"

	"github.com/Aniszorek/twitch-chat-relay/internal/domain"
)

// Client wraps the Helix API behind the domain interfaces. The underlying
// helix client mutates its access token in place, so every call that swaps
// the token holds the mutex for the whole request.
type Client struct {
	mu       sync.Mutex
	client   *helix.Client
	botToken string
}

func NewClient(clientID, botOAuthToken string) (*Client, error) {
	client, err := helix.NewClient(&helix.Options{
		ClientID:        clientID,
		UserAccessToken: botOAuthToken,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create helix client: %w", err)
	}

	return &Client{client: client, botToken: botOAuthToken}, nil
}

func (c *Client) GetUserByLogin(ctx context.Context, login string) (*domain.ChannelUser, error) {
	c.mu.Lock()
	resp, err := c.client.GetUsers(&helix.UsersParams{Logins: []string{login}})
	c.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("failed to fetch user %q: %w", login, err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("unexpected status code %d fetching user %q: %s", resp.StatusCode, login, resp.ErrorMessage)
	}
	if len(resp.Data.Users) == 0 {
		return nil, fmt.Errorf("%w: %q", domain.ErrUserNotFound, login)
	}

	u := resp.Data.Users[0]
	return &domain.ChannelUser{ID: u.ID, Login: u.Login, DisplayName: u.DisplayName}, nil
}

func (c *Client) GetStreamByUserID(ctx context.Context, userID string) (*domain.StreamInfo, bool, error) {
	c.mu.Lock()
	resp, err := c.client.GetStreams(&helix.StreamsParams{UserIDs: []string{userID}})
	c.mu.Unlock()

	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch stream for user %s: %w", userID, err)
	}
	if resp.StatusCode != 200 {
		return nil, false, fmt.Errorf("unexpected status code %d fetching stream: %s", resp.StatusCode, resp.ErrorMessage)
	}
	if len(resp.Data.Streams) == 0 {
		return nil, false, nil
	}

	s := resp.Data.Streams[0]
	return &domain.StreamInfo{
		ID:          s.ID,
		Title:       s.Title,
		Category:    s.GameName,
		ViewerCount: s.ViewerCount,
		StartedAt:   s.StartedAt,
	}, true, nil
}

func (c *Client) GetFollowerCount(ctx context.Context, broadcasterID string) (int, error) {
	c.mu.Lock()
	resp, err := c.client.GetUsersFollows(&helix.UsersFollowsParams{ToID: broadcasterID})
	c.mu.Unlock()

	if err != nil {
		return 0, fmt.Errorf("failed to fetch follower count: %w", err)
	}
	if resp.StatusCode != 200 {
		return 0, fmt.Errorf("unexpected status code %d fetching follower count: %s", resp.StatusCode, resp.ErrorMessage)
	}

	return resp.Data.Total, nil
}

func (c *Client) GetSubscriberCount(ctx context.Context, broadcasterID string) (int, error) {
	c.mu.Lock()
	resp, err := c.client.GetSubscriptions(&helix.SubscriptionsParams{BroadcasterID: broadcasterID})
	c.mu.Unlock()

	if err != nil {
		return 0, fmt.Errorf("failed to fetch subscriber count: %w", err)
	}
	if resp.StatusCode != 200 {
		return 0, fmt.Errorf("unexpected status code %d fetching subscriber count: %s", resp.StatusCode, resp.ErrorMessage)
	}

	return resp.Data.Total, nil
}

// GetTokenUser resolves the user that owns oauthToken. The client token is
// swapped for the duration of the call and restored before the mutex is
// released.
func (c *Client) GetTokenUser(ctx context.Context, oauthToken string) (*domain.ChannelUser, error) {
	c.mu.Lock()
	c.client.SetUserAccessToken(oauthToken)
	resp, err := c.client.GetUsers(&helix.UsersParams{})
	c.client.SetUserAccessToken(c.botToken)
	c.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("failed to resolve token user: %w", err)
	}
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("unexpected status code %d resolving token user: %s", resp.StatusCode, resp.ErrorMessage)
	}
	if len(resp.Data.Users) == 0 {
		return nil, domain.ErrUserNotFound
	}

	u := resp.Data.Users[0]
	return &domain.ChannelUser{ID: u.ID, Login: u.Login, DisplayName: u.DisplayName}, nil
}

func (c *Client) IsModerator(ctx context.Context, broadcasterID, userID string) (bool, error) {
	c.mu.Lock()
	resp, err := c.client.GetModerators(&helix.GetModeratorsParams{
		BroadcasterID: broadcasterID,
		UserIDs:       []string{userID},
	})
	c.mu.Unlock()

	if err != nil {
		return false, fmt.Errorf("failed to check moderator status: %w", err)
	}
	if resp.StatusCode != 200 {
		return false, fmt.Errorf("unexpected status code %d checking moderator status: %s", resp.StatusCode, resp.ErrorMessage)
	}

	return len(resp.Data.Moderators) > 0, nil
}

func (c *Client) CreateSubscription(ctx context.Context, sessionID, subType, version string, cond domain.SubscriptionCondition) (string, error) {
	c.mu.Lock()
	resp, err := c.client.CreateEventSubSubscription(&helix.EventSubSubscription{
		Type:    subType,
		Version: version,
		Condition: helix.EventSubCondition{
			BroadcasterUserID: cond.BroadcasterUserID,
			UserID:            cond.UserID,
			ModeratorUserID:   cond.ModeratorUserID,
		},
		Transport: helix.EventSubTransport{
			Method:    "websocket",
			SessionID: sessionID,
		},
	})
	c.mu.Unlock()

	if err != nil {
		return "", fmt.Errorf("failed to create eventsub subscription: %w", err)
	}
	if resp.StatusCode != 202 {
		return "", fmt.Errorf("unexpected status code: %d, error: %s, message: %s", resp.StatusCode, resp.Error, resp.ErrorMessage)
	}
	if len(resp.Data.EventSubSubscriptions) == 0 {
		return "", fmt.Errorf("no subscription returned")
	}

	return resp.Data.EventSubSubscriptions[0].ID, nil
}

func (c *Client) DeleteSubscription(ctx context.Context, subscriptionID string) error {
	c.mu.Lock()
	resp, err := c.client.RemoveEventSubSubscription(subscriptionID)
	c.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to delete eventsub subscription: %w", err)
	}
	if resp.StatusCode != 204 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}
