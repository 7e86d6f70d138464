package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// AgentInfo is the public profile of an agent
type AgentInfo struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
	Phone  string `json:"phone"`
}

// AgentPage is one page of the agent directory
type AgentPage struct {
	Agents []AgentInfo `json:"agents"`
	Total  int64       `json:"total"`
}

// AgentDirectory resolves agent identities from the auth service
type AgentDirectory interface {
	GetAgentPublicInfo(ctx context.Context, agentID uint) (*AgentInfo, error)
	ListAgents(ctx context.Context, page, limit int, search string, onlyAgents bool) (*AgentPage, error)
	ListUsersByIDs(ctx context.Context, ids []uint, search string) ([]AgentInfo, error)
}

type AgentDirectoryClient struct {
	client   internalClient
	rc       *redis.Client
	prefix   string
	cacheTTL time.Duration
	logger   logrus.FieldLogger
}

// NewAgentDirectoryClient creates an auth-service backed directory; rc may be nil to disable caching
func NewAgentDirectoryClient(baseURL, apiKey string, timeout time.Duration, rc *redis.Client, prefix string, cacheTTL time.Duration, logger logrus.FieldLogger) *AgentDirectoryClient {
	return &AgentDirectoryClient{
		client:   newInternalClient("auth-service", baseURL, apiKey, timeout),
		rc:       rc,
		prefix:   prefix,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

func (c *AgentDirectoryClient) agentCacheKey(agentID uint) string {
	return fmt.Sprintf("%sagent:%d", c.prefix, agentID)
}

// GetAgentPublicInfo returns an agent's profile, served from redis when cached
func (c *AgentDirectoryClient) GetAgentPublicInfo(ctx context.Context, agentID uint) (*AgentInfo, error) {
	if c.rc != nil {
		bs, err := c.rc.Get(ctx, c.agentCacheKey(agentID)).Bytes()
		if err == nil && len(bs) > 0 {
			var cached AgentInfo
			if err := json.Unmarshal(bs, &cached); err == nil {
				return &cached, nil
			}
		} else if err != nil && !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).Warn("agent cache read failed")
		}
	}

	var info AgentInfo
	if err := c.client.do(ctx, http.MethodGet, fmt.Sprintf("/internal/users/%d/public", agentID), nil, &info); err != nil {
		return nil, err
	}
	if info.ID == 0 {
		return nil, nil
	}

	if c.rc != nil && c.cacheTTL > 0 {
		if bs, err := json.Marshal(info); err == nil {
			if err := c.rc.Set(ctx, c.agentCacheKey(agentID), bs, c.cacheTTL).Err(); err != nil {
				c.logger.WithError(err).Warn("agent cache write failed")
			}
		}
	}
	return &info, nil
}

// ListAgents pages through users, restricted to agents when onlyAgents is set
func (c *AgentDirectoryClient) ListAgents(ctx context.Context, page, limit int, search string, onlyAgents bool) (*AgentPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	if search != "" {
		q.Set("search", search)
	}
	q.Set("onlyAgents", strconv.FormatBool(onlyAgents))

	var out AgentPage
	if err := c.client.do(ctx, http.MethodGet, "/internal/users?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type usersByIDsRequest struct {
	IDs    []uint `json:"ids"`
	Search string `json:"search,omitempty"`
}

// ListUsersByIDs resolves several users at once
func (c *AgentDirectoryClient) ListUsersByIDs(ctx context.Context, ids []uint, search string) ([]AgentInfo, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []AgentInfo
	if err := c.client.do(ctx, http.MethodPost, "/internal/users/by-ids", usersByIDsRequest{IDs: ids, Search: search}, &out); err != nil {
		return nil, err
	}
	return out, nil
}
