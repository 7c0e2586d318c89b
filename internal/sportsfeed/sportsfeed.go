// Package sportsfeed defines the narrow interface the Sniper strategy
// consumes to learn which outcome token actually won a finished game.
//
// The real poller (an ESPN-results client) is an external collaborator
// specified only at its interface — the same boundary spec §1/§6 draw
// around it — so only the interface and a static test/dry-run
// implementation live here. Grounded on
// original_source/engine/src/external/espn.rs's FinishedGame shape.
package sportsfeed

import "context"

// FinishedGame names a game whose outcome is known and the token that
// represents the winning side.
type FinishedGame struct {
	GameID       string
	MarketID     string
	WinningToken string
}

// ResultsFeed supplies finished-game results to the Sniper strategy. This
// is the explicit-input boundary that resolves spec §9's open question:
// callers must supply the winning token through this interface — nothing
// in the strategy may default to assuming the YES leg won.
type ResultsFeed interface {
	FinishedGames(ctx context.Context) ([]FinishedGame, error)
}

// StaticFeed is a fixed-result ResultsFeed for tests and dry-run
// deployments that have no live sports-results poller wired in.
type StaticFeed struct {
	Games []FinishedGame
}

// FinishedGames returns the static result set, ignoring ctx.
func (f *StaticFeed) FinishedGames(_ context.Context) ([]FinishedGame, error) {
	return f.Games, nil
}
