// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

package twitch

import "github.com/goccy/go-json"

// Persisted operation names and their default hashes.
const (
	OpDashboard = "ViewerDropsDashboard"
	OpDetails   = "DropCampaignDetails"

	DefaultDashboardHash = "5a4da2ab3d5b47c9f9ce864e727b2cb346af1e3ea8b897fe8f704a97ff017619"
	DefaultDetailsHash   = "039277bf98f3130929262cc7c6efd9c141ca3749cb6dca442fc8ead9a53f77c1"
)

type persistedQuery struct {
	Version    int    `json:"version"`
	SHA256Hash string `json:"sha256Hash"`
}

type extensions struct {
	PersistedQuery persistedQuery `json:"persistedQuery"`
}

// operation is one persisted GQL call.
type operation struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    extensions     `json:"extensions"`
}

func newOperation(name, hash string, vars map[string]any) operation {
	return operation{
		OperationName: name,
		Variables:     vars,
		Extensions:    extensions{PersistedQuery: persistedQuery{Version: 1, SHA256Hash: hash}},
	}
}

func dashboardOperation(hash string) operation {
	return newOperation(OpDashboard, hash, map[string]any{"fetchRewardCampaigns": false})
}

func detailsOperation(hash, campaignID, login string) operation {
	return newOperation(OpDetails, hash, map[string]any{
		"dropID":       campaignID,
		"channelLogin": login,
	})
}

// dashboardResponse is the ViewerDropsDashboard shape. Pointers distinguish
// absent (schema drift) from empty.
type dashboardResponse struct {
	Data struct {
		CurrentUser *struct {
			DropCampaigns *[]json.RawMessage `json:"dropCampaigns"`
		} `json:"currentUser"`
	} `json:"data"`
}

// detailsResponse is one element of a DropCampaignDetails batch.
type detailsResponse struct {
	Data struct {
		User *struct {
			DropCampaign json.RawMessage `json:"dropCampaign"`
		} `json:"user"`
	} `json:"data"`
}
