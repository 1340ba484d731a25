package poller

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/opsdeck/opsdeck/pkg/engine"
	"github.com/opsdeck/opsdeck/pkg/normalize"
	"github.com/opsdeck/opsdeck/pkg/stores"
)

// maxPages bounds how many pages of one collection are followed.
const maxPages = 100

// fetchPages GETs req and every page reachable through its "next" link.
func fetchPages(ctx context.Context, transport engine.Transport, req engine.Request, each func(normalize.Page)) error {
	for i := 0; i < maxPages; i++ {
		var page normalize.Page
		if err := transport.Do(ctx, req, &page); err != nil {
			return err
		}
		each(page)

		next := page.NextHref()
		if next == "" {
			return nil
		}
		req = engine.Request{Method: http.MethodGet, Path: next}
	}
	return fmt.Errorf("collection %s has more than %d pages", req.Path, maxPages)
}

func environmentRequest(collection, envID string) engine.Request {
	return engine.Request{
		Method: http.MethodGet,
		Path:   "/accounts/:envId/" + collection,
		Params: map[string]string{"envId": envID},
	}
}

// FetchEnvironmentOperations refreshes every operation of an environment
// and upserts them into the store.
func FetchEnvironmentOperations(ctx context.Context, transport engine.Transport, store *stores.ResourceStore, envID string) ([]engine.Operation, error) {
	var ops []engine.Operation
	err := fetchPages(ctx, transport, environmentRequest("operations", envID), func(page normalize.Page) {
		for _, op := range normalize.Operations(page) {
			if op.EnvironmentID == "" {
				op.EnvironmentID = envID
			}
			ops = append(ops, op)
		}
	})
	if err != nil {
		return nil, err
	}

	store.Operations.Add(ops...)
	return ops, nil
}

// FetchEnvironment loads the apps, services, databases and endpoints of an
// environment into the store. The collections are fetched concurrently and
// the first failure is returned.
func FetchEnvironment(ctx context.Context, transport engine.Transport, store *stores.ResourceStore, envID string) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return fetchPages(ctx, transport, environmentRequest("apps", envID), func(page normalize.Page) {
			store.Apps.Add(normalize.Apps(page)...)
		})
	})
	g.Go(func() error {
		return fetchPages(ctx, transport, environmentRequest("services", envID), func(page normalize.Page) {
			store.Services.Add(normalize.Services(page)...)
		})
	})
	g.Go(func() error {
		return fetchPages(ctx, transport, environmentRequest("databases", envID), func(page normalize.Page) {
			dbs := normalize.Databases(page)
			for i := range dbs {
				if dbs[i].EnvironmentID == "" {
					dbs[i].EnvironmentID = envID
				}
			}
			store.Databases.Add(dbs...)
		})
	})
	g.Go(func() error {
		return fetchPages(ctx, transport, environmentRequest("vhosts", envID), func(page normalize.Page) {
			store.Endpoints.Add(normalize.Endpoints(page)...)
		})
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to load environment %s: %w", envID, err)
	}
	return nil
}

// PollEnvironmentOperations refreshes every operation of an environment
// each interval, the broad sweep that complements per-resource pollers.
func (s *Supervisor) PollEnvironmentOperations(key, envID string, interval time.Duration) *Handle {
	return s.Poll(key, func(ctx context.Context) error {
		_, err := FetchEnvironmentOperations(ctx, s.transport, s.store, envID)
		return err
	}, interval)
}
