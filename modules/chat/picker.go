package chat

import (
	"math/rand/v2"

	domain "github.com/averyowl/chat/domain/user"
)

// SuccessorPicker chooses a new owner from a non-empty remaining member set
// when the current owner leaves. The selection rule is a replaceable policy,
// not load-bearing semantics; any rule that picks a remaining member is
// acceptable.
type SuccessorPicker interface {
	Pick(members []domain.User) domain.User
}

// RandomPicker selects uniformly at random among the remaining members.
type RandomPicker struct{}

// Pick implements SuccessorPicker.
func (RandomPicker) Pick(members []domain.User) domain.User {
	return members[rand.IntN(len(members))]
}
