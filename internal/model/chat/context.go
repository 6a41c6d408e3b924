package chat

import "github.com/pairing-buds/companion/internal/model/user"

// TurnContext bundles the per-turn inputs gathered before prompt assembly.
// It is built fresh for every turn and never persisted as a unit.
type TurnContext struct {
	Profile user.Profile
	History []Message
	Summary string
	Similar []string
}
