package models

import (
	"sort"
	"strings"
)

// Collections holding the entities that carry counters.
const (
	PostsCollection = "posts"
	UsersCollection = "users"
)

// Kind describes one relation type: where its records live and which
// counters move with them.
type Kind struct {
	Name string
	// TargetCollection holds the entity the relation points at.
	TargetCollection string
	// RelationCollection is the per-target subcollection of relation records.
	RelationCollection string
	// Counter is the camelCase name of the counter on the target.
	Counter string
	// ActorCollection and ActorCounter are set when the actor entity keeps a
	// counter of its own outgoing relations (following count).
	ActorCollection string
	ActorCounter    string
	AllowSelf       bool
}

// HasActorCounter reports whether a toggle must also move a counter on the actor.
func (k Kind) HasActorCounter() bool {
	return k.ActorCollection != "" && k.ActorCounter != ""
}

var (
	LikeKind = Kind{
		Name:               "like",
		TargetCollection:   PostsCollection,
		RelationCollection: "likes",
		Counter:            "likesCount",
		AllowSelf:          true,
	}
	SaveKind = Kind{
		Name:               "save",
		TargetCollection:   PostsCollection,
		RelationCollection: "saves",
		Counter:            "savesCount",
		AllowSelf:          true,
	}
	FollowKind = Kind{
		Name:               "follow",
		TargetCollection:   UsersCollection,
		RelationCollection: "followers",
		Counter:            "followersCount",
		ActorCollection:    UsersCollection,
		ActorCounter:       "followingCount",
	}
)

var kinds = map[string]Kind{
	LikeKind.Name:   LikeKind,
	SaveKind.Name:   SaveKind,
	FollowKind.Name: FollowKind,
}

// LookupKind returns the registered kind with the given name.
func LookupKind(name string) (Kind, bool) {
	k, ok := kinds[name]
	return k, ok
}

// Kinds returns every registered kind ordered by name.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// MaxIDLength bounds target, actor and post IDs.
const MaxIDLength = 128

// ValidID reports whether id can address a document in every backend.
func ValidID(id string) bool {
	return id != "" && len(id) <= MaxIDLength && !strings.Contains(id, "/") && id != "." && id != ".."
}
