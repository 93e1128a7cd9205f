// Package svcconfig implements svcconfig.Mirror: an in-memory snapshot of
// the service directory, periodically refreshed from the facilitator over
// S2S. The snapshot is swapped atomically via atomic.Pointer so readers
// never observe a partially-updated directory.
package svcconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/meridianmesh/edge-gateway/internal/apperr"
	"github.com/meridianmesh/edge-gateway/internal/domain/svcconfig"
	"github.com/meridianmesh/edge-gateway/internal/port/outbound"
)

// snapshot is the immutable directory state readers see for the duration of
// one request. Replacement is always a full-map atomic pointer swap, never
// an in-place mutation.
type snapshot struct {
	records map[svcconfig.RecordKey]svcconfig.Record
}

// facilitatorDirectoryResponse is the wire shape of the facilitator's full
// directory listing.
type facilitatorDirectoryResponse struct {
	OK   bool `json:"ok"`
	Data struct {
		Records []facilitatorRecord `json:"records"`
	} `json:"data"`
}

type facilitatorRecord struct {
	Env          string              `json:"env"`
	Slug         string              `json:"slug"`
	Version      int                 `json:"version"`
	BaseURL      string              `json:"baseUrl"`
	InternalOnly bool                `json:"internalOnly"`
	RoutePolicy  *facilitatorPolicy  `json:"routePolicy,omitempty"`
}

type facilitatorPolicy struct {
	Revision int                    `json:"revision"`
	Defaults facilitatorDefaults    `json:"defaults"`
	Rules    []facilitatorRule      `json:"rules"`
}

type facilitatorDefaults struct {
	Public        bool   `json:"public"`
	UserAssertion string `json:"userAssertion"`
}

type facilitatorRule struct {
	Version        int    `json:"version"`
	Method         string `json:"method"`
	PathPrefix     string `json:"pathPrefix"`
	Public         bool   `json:"public"`
	UserAssertion  string `json:"userAssertion"`
	MinAccessLevel int    `json:"minAccessLevel"`
}

// Mirror implements svcconfig.Mirror. Refresh failures keep the last good
// snapshot and are only logged; readers are never blocked on a refresh and
// never observe a torn snapshot.
type Mirror struct {
	caller         outbound.S2SCall
	directoryURL   string
	refreshTimeout time.Duration
	logger         *slog.Logger

	snap atomic.Pointer[snapshot]
}

// New builds a Mirror with an empty initial snapshot. Call Refresh (or start
// a periodic refresh loop via Run) before serving requests.
func New(caller outbound.S2SCall, directoryURL string, refreshTimeout time.Duration, logger *slog.Logger) *Mirror {
	m := &Mirror{caller: caller, directoryURL: directoryURL, refreshTimeout: refreshTimeout, logger: logger}
	m.snap.Store(&snapshot{records: map[svcconfig.RecordKey]svcconfig.Record{}})
	return m
}

// Run refreshes the snapshot every interval until ctx is canceled. Refresh
// errors are logged at WARN and never stop the loop.
func (m *Mirror) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.Refresh(ctx); err != nil {
				m.logger.WarnContext(ctx, "svcconfig refresh failed, keeping last good snapshot", "error", err)
			}
		}
	}
}

// ResolveTarget returns the current snapshot's record for (env, slug,
// version), or apperr.CodeServiceUnknown if absent.
func (m *Mirror) ResolveTarget(ctx context.Context, env, slug string, version int) (svcconfig.Record, error) {
	snap := m.snap.Load()
	key := svcconfig.RecordKey{Env: env, Slug: slug, Version: version}
	rec, ok := snap.records[key]
	if !ok {
		return svcconfig.Record{}, apperr.New(apperr.KindPolicy, apperr.CodeServiceUnknown,
			fmt.Sprintf("no service directory entry for %s", key))
	}
	return rec, nil
}

// RoutePolicyFor returns the RoutePolicy attached to the resolved record, or
// nil if the record carries none.
func (m *Mirror) RoutePolicyFor(ctx context.Context, env, slug string, version int) (*svcconfig.Policy, error) {
	rec, err := m.ResolveTarget(ctx, env, slug, version)
	if err != nil {
		return nil, err
	}
	return rec.RoutePolicy, nil
}

// Refresh fetches the full directory from the facilitator and swaps the
// snapshot pointer on success. On failure it returns the error without
// discarding the current snapshot.
func (m *Mirror) Refresh(ctx context.Context) error {
	fetchCtx, cancel := context.WithTimeout(ctx, m.refreshTimeout)
	defer cancel()

	resp, err := m.caller.Call(fetchCtx, outbound.S2SCallRequest{
		Method: "GET",
		URL:    m.directoryURL,
	})
	if err != nil {
		return apperr.Wrap(apperr.KindUpstream, apperr.CodeRoutePolicyResolution, err)
	}
	if resp.StatusCode != 200 {
		return apperr.New(apperr.KindUpstream, apperr.CodeRoutePolicyResolution,
			fmt.Sprintf("facilitator directory returned status %d", resp.StatusCode))
	}

	var body facilitatorDirectoryResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return apperr.Wrap(apperr.KindUpstream, apperr.CodeRoutePolicyResolution, err)
	}
	if !body.OK {
		return apperr.New(apperr.KindUpstream, apperr.CodeRoutePolicyResolution, "facilitator directory response ok=false")
	}

	records := make(map[svcconfig.RecordKey]svcconfig.Record, len(body.Data.Records))
	for _, fr := range body.Data.Records {
		rec := svcconfig.Record{
			Env:          fr.Env,
			Slug:         fr.Slug,
			Version:      fr.Version,
			BaseURL:      fr.BaseURL,
			InternalOnly: fr.InternalOnly,
			RoutePolicy:  convertPolicy(fr.RoutePolicy),
		}
		records[rec.Key()] = rec
	}

	m.snap.Store(&snapshot{records: records})
	return nil
}

func convertPolicy(fp *facilitatorPolicy) *svcconfig.Policy {
	if fp == nil {
		return nil
	}
	rules := make([]svcconfig.Rule, 0, len(fp.Rules))
	for _, fr := range fp.Rules {
		rules = append(rules, svcconfig.Rule{
			Version:        fr.Version,
			Method:         fr.Method,
			PathPrefix:     fr.PathPrefix,
			Public:         fr.Public,
			UserAssertion:  svcconfig.UserAssertionMode(fr.UserAssertion),
			MinAccessLevel: fr.MinAccessLevel,
		})
	}
	return &svcconfig.Policy{
		Revision: fp.Revision,
		Defaults: svcconfig.Defaults{
			Public:        fp.Defaults.Public,
			UserAssertion: svcconfig.UserAssertionMode(fp.Defaults.UserAssertion),
		},
		Rules: rules,
	}
}

var _ svcconfig.Mirror = (*Mirror)(nil)
