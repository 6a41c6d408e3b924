package turn

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/pairing-buds/companion/internal/model/chat"
	"github.com/pairing-buds/companion/internal/store"
)

// HistoryFetchLimit is how many recent messages the aggregator pulls.
const HistoryFetchLimit = 6

// SimilarFetchLimit is how many related past messages the aggregator pulls.
const SimilarFetchLimit = 3

// Aggregator gathers everything a turn needs from the stores. The profile
// fetch is mandatory; history, summary and similar-context fetches degrade
// to empty values so one slow or broken source cannot block the reply.
type Aggregator struct {
	profiles store.ProfileStore
	contexts store.ContextStore
}

// NewAggregator wires an aggregator over the given stores.
func NewAggregator(profiles store.ProfileStore, contexts store.ContextStore) *Aggregator {
	return &Aggregator{profiles: profiles, contexts: contexts}
}

// Gather fetches the four context sources concurrently. It returns
// ErrIdentity when the profile cannot be loaded, and ErrContextDegraded
// (alongside a usable TurnContext) when any optional source failed.
func (a *Aggregator) Gather(ctx context.Context, userID, message string) (chat.TurnContext, error) {
	var (
		tc   chat.TurnContext
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error

		profileErr error
	)

	degrade := func(source string, err error) {
		log.Printf("[turn] %s fetch failed for user=%s: %v", source, userID, err)
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	wg.Add(4)
	go func() {
		defer wg.Done()
		profile, err := a.profiles.GetProfile(ctx, userID)
		if err != nil {
			profileErr = err
			return
		}
		tc.Profile = profile
	}()
	go func() {
		defer wg.Done()
		history, err := a.contexts.RecentHistory(ctx, userID, HistoryFetchLimit)
		if err != nil {
			degrade("history", err)
			return
		}
		tc.History = history
	}()
	go func() {
		defer wg.Done()
		summary, err := a.contexts.Summary(ctx, userID)
		if err != nil {
			degrade("summary", err)
			return
		}
		tc.Summary = summary
	}()
	go func() {
		defer wg.Done()
		similar, err := a.contexts.QuerySimilar(ctx, userID, message, SimilarFetchLimit)
		if err != nil {
			degrade("similar", err)
			return
		}
		tc.Similar = similar
	}()
	wg.Wait()

	if profileErr != nil {
		return chat.TurnContext{}, fmt.Errorf("%w: %v", ErrIdentity, profileErr)
	}
	if len(errs) > 0 {
		return tc, fmt.Errorf("%w: %d of 3 optional sources failed", ErrContextDegraded, len(errs))
	}
	return tc, nil
}
