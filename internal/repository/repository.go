// Package repository provides backend access for the client. Each repository
// pairs a transport call with the matching normalizer so callers only ever
// see canonical models.
package repository

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"questline/internal/models"
	"questline/internal/normalize"
	"questline/internal/transport"
)

// Doer issues one backend request. *transport.Client implements it.
type Doer interface {
	Do(ctx context.Context, req transport.Request) (*transport.Response, error)
}

// Backend routes.
const (
	routeFeed            = "/posts/feed"
	routePosts           = "/posts"
	routeCommunities     = "/communities"
	routeJoined          = "/communities/joined"
	routeAchievementRoot = "/achievements/users/"
)

func postPath(postID string) string { return routePosts + "/" + url.PathEscape(postID) }

func communityPostsPath(communityID string) string {
	return routePosts + "/community/" + url.PathEscape(communityID)
}

func commentPath(commentID string) string { return "/comments/" + url.PathEscape(commentID) }

func communityPath(communityID string) string {
	return routeCommunities + "/" + url.PathEscape(communityID)
}

func userAchievementsPath(userID string) string {
	return routeAchievementRoot + url.PathEscape(userID)
}

func achievementPath(userID, category string, milestone int) string {
	return userAchievementsPath(userID) + "/achievements/" + url.PathEscape(category) + "/" + strconv.Itoa(milestone)
}

func viewerQuery(userID string) url.Values {
	if userID == "" {
		return nil
	}
	return url.Values{"userId": {userID}}
}

// getList performs a read and decodes a list of raw records.
func getList(ctx context.Context, d Doer, path string, q url.Values) ([]normalize.Raw, error) {
	resp, err := d.Do(ctx, transport.Request{Path: path, Query: q, Kind: transport.KindRead})
	if err != nil {
		return nil, err
	}
	raws, err := normalize.DecodeList(resp.Body)
	if err != nil {
		return nil, malformed("GET "+path, err)
	}
	return raws, nil
}

// send performs a mutation and decodes the (possibly empty) response object.
// Status flags are read from env.Merged() and entities from env.Inner.
func send(ctx context.Context, d Doer, method, path string, kind transport.Kind, body any, envelopes ...string) (normalize.Envelope, error) {
	resp, err := d.Do(ctx, transport.Request{Method: method, Path: path, Body: body, Kind: kind})
	if err != nil {
		return normalize.Envelope{}, err
	}
	env, err := normalize.DecodeEnvelope(resp.Body, envelopes...)
	if err != nil {
		return normalize.Envelope{}, malformed(method+" "+path, err)
	}
	return env, nil
}

func malformed(op string, err error) *models.AppError {
	return models.NewMalformedError(op, err)
}
